package memstore

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Entity ID prefixes. Every identifier is "<prefix>-<uuid>", globally
// unique and self-describing.
const (
	PrefixEpisode      = "ep"
	PrefixFact         = "fact"
	PrefixCausalLink   = "cl"
	PrefixProcedure    = "proc"
	PrefixChange       = "mc"
	PrefixRun          = "cr"
	PrefixForesight    = "fs"
	PrefixPreference   = "pref"
	PrefixRelationship = "rel"
	PrefixCoreMemory   = "cm"
	PrefixProfile      = "up"
)

// NewID returns a fresh prefixed identifier.
func NewID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// IDPrefix returns the prefix portion of an identifier, or "" if the id
// has no prefix.
func IDPrefix(id string) string {
	i := strings.IndexByte(id, '-')
	if i < 0 {
		return ""
	}
	return id[:i]
}

// lastNano tracks the most recently returned timestamp to ensure
// monotonicity. If the wall clock hasn't advanced since the last call,
// the counter increments by 1 nanosecond. This keeps change-log KV keys
// unique and totally ordered even under bursts of writes.
var lastNano atomic.Int64

// nowNano returns a monotonically increasing Unix nanosecond timestamp.
// Extracted as a variable to allow test injection.
var nowNano = func() int64 {
	now := time.Now().UnixNano()
	for {
		old := lastNano.Load()
		next := now
		if next <= old {
			next = old + 1
		}
		if lastNano.CompareAndSwap(old, next) {
			return next
		}
	}
}

// Now returns the current store time: monotonic, UTC.
func Now() time.Time {
	return time.Unix(0, nowNano()).UTC()
}
