package broker

import (
	"bytes"
	"errors"
	"testing"
)

// TestStateTerminal verifies the terminal/non-terminal split of the states
func TestStateTerminal(t *testing.T) {
	terminal := []State{StateNone, StateComplete, StateError}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("State %s should be terminal", s)
		}
	}

	if StateInProgress.Terminal() {
		t.Error("StateInProgress should not be terminal")
	}
}

// TestResponseInvariants verifies the state/data correspondence for all constructors
func TestResponseInvariants(t *testing.T) {
	header := []byte("header")
	data := []byte("value")
	cause := errors.New("fetch failed")

	t.Run("Complete", func(t *testing.T) {
		resp := NewComplete(header, data)
		if resp.State() != StateComplete {
			t.Errorf("Expected state Complete, got %s", resp.State())
		}
		if !bytes.Equal(resp.Data(), data) {
			t.Errorf("Expected data %q, got %q", data, resp.Data())
		}
		if resp.Err() != nil || resp.Token() != nil {
			t.Error("Complete response must not carry an error or a token")
		}
		if err := resp.Validate(); err != nil {
			t.Errorf("Validate failed: %v", err)
		}
	})

	t.Run("CompleteEmptyValue", func(t *testing.T) {
		// an empty value is still a present value
		resp := NewComplete(nil, nil)
		if resp.Data() == nil {
			t.Error("Complete response must carry non-nil data even for empty values")
		}
		if err := resp.Validate(); err != nil {
			t.Errorf("Validate failed: %v", err)
		}
	})

	t.Run("None", func(t *testing.T) {
		resp := NewNone()
		if resp.State() != StateNone {
			t.Errorf("Expected state None, got %s", resp.State())
		}
		if resp.Header() != nil || resp.Data() != nil || resp.Err() != nil {
			t.Error("None response must not carry header, data or error")
		}
		if err := resp.Validate(); err != nil {
			t.Errorf("Validate failed: %v", err)
		}
	})

	t.Run("Failed", func(t *testing.T) {
		resp := NewFailed(header, cause)
		if resp.State() != StateError {
			t.Errorf("Expected state Error, got %s", resp.State())
		}
		if resp.Err() == nil || resp.Data() != nil {
			t.Error("Error response must carry an error and no data")
		}
		if err := resp.Validate(); err != nil {
			t.Errorf("Validate failed: %v", err)
		}
	})

	t.Run("InProgress", func(t *testing.T) {
		token := NewToken(1, nil)
		defer token.Release()

		resp := NewInProgress(header, token)
		if resp.State() != StateInProgress {
			t.Errorf("Expected state InProgress, got %s", resp.State())
		}
		if resp.Token() != token {
			t.Error("InProgress response must carry the token")
		}
		if err := resp.Validate(); err != nil {
			t.Errorf("Validate failed: %v", err)
		}
	})
}

// TestResponseSnapshotIsolation verifies that a Response is decoupled from the
// buffers it was constructed with
func TestResponseSnapshotIsolation(t *testing.T) {
	header := []byte("header")
	data := []byte("value")

	resp := NewComplete(header, data)

	// mutate the source buffers after construction
	header[0] = 'X'
	data[0] = 'X'

	if !bytes.Equal(resp.Header(), []byte("header")) {
		t.Errorf("Response header changed after source mutation: %q", resp.Header())
	}
	if !bytes.Equal(resp.Data(), []byte("value")) {
		t.Errorf("Response data changed after source mutation: %q", resp.Data())
	}
}

// TestErrCodeOf verifies the fault code extraction helper
func TestErrCodeOf(t *testing.T) {
	err := NewError(ErrCodeInvalidArgument, "bad key")

	code, ok := CodeOf(err)
	if !ok {
		t.Fatal("CodeOf should recognize a broker Error")
	}
	if code != ErrCodeInvalidArgument {
		t.Errorf("Expected code InvalidArgument, got %s", code)
	}

	if _, ok := CodeOf(errors.New("plain")); ok {
		t.Error("CodeOf should not recognize a plain error")
	}
}
