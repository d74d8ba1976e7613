package broker

// --------------------------------------------------------------------------
// Response State
// --------------------------------------------------------------------------

// State describes the outcome of a lookup at a point in time.
type State uint8

const (
	// StateNone means no data is associated with the key - it will never arrive.
	StateNone State = iota
	// StateComplete means the data has been fetched.
	StateComplete
	// StateInProgress means the fetch is ongoing.
	StateInProgress
	// StateError means the fetch failed terminally.
	StateError
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "None"
	case StateComplete:
		return "Complete"
	case StateInProgress:
		return "InProgress"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Terminal reports whether a Response in this state will never change again.
func (s State) Terminal() bool {
	return s != StateInProgress
}

// --------------------------------------------------------------------------
// Response Record
// --------------------------------------------------------------------------

// Response is an immutable snapshot of the outcome of a lookup. It never
// mutates after being produced - a new lookup produces a new Response.
//
// The following invariants hold for every Response:
//   - State == StateComplete if and only if Data() is non-nil
//   - State == StateError if and only if Err() is non-nil (and Data() is nil)
//   - State == StateNone implies neither header nor data are set
//   - State == StateInProgress if and only if Token() is non-nil
//
// Responses are constructed only by the database façade and the backend
// resolution path, never by consumers.
type Response struct {
	state  State
	header []byte
	data   []byte
	err    error
	token  *Token
}

// NewComplete creates a terminal Response holding the fetched value.
// The header and data buffers are copied.
func NewComplete(header, data []byte) *Response {
	if data == nil {
		data = []byte{}
	}
	return &Response{
		state:  StateComplete,
		header: copyBytes(header),
		data:   copyBytes(data),
	}
}

// NewNone creates a terminal Response signaling that no value is associated
// with the key and none will ever arrive.
func NewNone() *Response {
	return &Response{state: StateNone}
}

// NewFailed creates a terminal Response for a fetch that failed. The cause
// is delivered through the normal resolution path - it is data, not a fault.
func NewFailed(header []byte, cause error) *Response {
	return &Response{
		state:  StateError,
		header: copyBytes(header),
		err:    cause,
	}
}

// NewInProgress creates a non-terminal Response carrying the token for an
// ongoing fetch.
func NewInProgress(header []byte, token *Token) *Response {
	return &Response{
		state:  StateInProgress,
		header: copyBytes(header),
		token:  token,
	}
}

// State returns the response state.
func (r *Response) State() State {
	return r.state
}

// Header returns a read-only view of the header buffer (nil if absent).
// Callers must not modify the returned slice.
func (r *Response) Header() []byte {
	return r.header
}

// Data returns a read-only view of the data buffer (nil if absent).
// Callers must not modify the returned slice.
func (r *Response) Data() []byte {
	return r.data
}

// Err returns the terminal fetch failure, or nil.
func (r *Response) Err() error {
	return r.err
}

// Token returns the in-flight request token, or nil for terminal responses.
func (r *Response) Token() *Token {
	return r.token
}

// Validate checks the state invariants of the Response. A violation is a
// programming defect and is reported as an ErrCodeInternal fault.
func (r *Response) Validate() error {
	switch r.state {
	case StateComplete:
		if r.data == nil || r.err != nil || r.token != nil {
			return NewError(ErrCodeInternal, "Complete response must carry data and nothing else")
		}
	case StateError:
		if r.err == nil || r.data != nil || r.token != nil {
			return NewError(ErrCodeInternal, "Error response must carry an error and no data")
		}
	case StateNone:
		if r.header != nil || r.data != nil || r.err != nil || r.token != nil {
			return NewError(ErrCodeInternal, "None response must be empty")
		}
	case StateInProgress:
		if r.token == nil || r.data != nil || r.err != nil {
			return NewError(ErrCodeInternal, "InProgress response must carry a token and no result")
		}
	default:
		return NewError(ErrCodeInternal, "unknown response state")
	}
	return nil
}

// copyBytes returns a copy of b, preserving nil-ness.
func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
