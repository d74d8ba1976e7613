package internal

import (
	"fmt"

	"github.com/cachersdb/cachers/lib/cache/util"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Event Types are used to signal entry changes to the shard's GC goroutine
// --------------------------------------------------------------------------

type EventType int

const (
	// EventTWrite signals that an entry was written; ExpireAt carries its
	// new deadline (0 = no expiry, any earlier deadline must be cancelled)
	EventTWrite EventType = iota
	// EventTDelete signals that an entry was removed
	EventTDelete
)

func (e EventType) String() string {
	switch e {
	case EventTWrite:
		return "Write"
	case EventTDelete:
		return "Delete"
	default:
		return "Unknown"
	}
}

type Event struct {
	Type     EventType
	Key      util.UintKey
	ExpireAt uint64
}

func (e Event) String() string {
	return fmt.Sprintf("Event{Type: %s, Key: %d, ExpireAt: %d}", e.Type, e.Key, e.ExpireAt)
}

// --------------------------------------------------------------------------
// Entry Type (cached lookup answer with metadata)
// --------------------------------------------------------------------------

// Entry stores one cached answer. A Negative entry records that the key has
// no value and none will arrive.
type Entry struct {
	Header   []byte // Opaque header buffer
	Value    []byte // Opaque data buffer (nil for negative entries)
	Negative bool   // True if this is a negative cache entry
	ExpireAt uint64 // Expiry deadline in unix seconds (0 = never)
}

// Expired reports whether the entry is past its deadline at the given time
func (e Entry) Expired(now uint64) bool {
	return e.ExpireAt != 0 && now >= e.ExpireAt
}

// --------------------------------------------------------------------------
// Shard Type (partition of the engine)
// --------------------------------------------------------------------------

// Shard represents a partition of the engine. Each shard has its own
// independent map, expiry schedule and event queue; no two shards share
// state.
type Shard struct {
	Data     *xsync.MapOf[util.UintKey, Entry] // Map of cached entries
	Schedule *util.ExpirySchedule              // Expiry deadlines, owned by the GC goroutine
	Events   *util.MPSC[Event]                 // Write/delete notifications for the GC
}

// NewShard creates a new shard with the provided hash function
func NewShard(hasher func(util.UintKey, uint64) uint64) *Shard {
	return &Shard{
		Data:     xsync.NewMapOfWithHasher[util.UintKey, Entry](hasher),
		Schedule: util.NewExpirySchedule(),
		Events:   util.NewMPSC[Event](), // closing this queue stops the shard's GC
	}
}

// ShardFor returns the appropriate shard for a given key
//
// Thread-safety: this function is thread-safe and can be called concurrently.
func ShardFor(key util.UintKey, shards []*Shard) *Shard {
	// shift right to use higher-quality bits for distribution
	shifted := uint64(key) >> 7
	return shards[shifted%uint64(len(shards))]
}
