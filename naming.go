package mailpdf

import (
	"strconv"
	"sync"
	"time"
)

// Namer produces base names (without extension) for output files.
// Implementations must be safe for concurrent use and must not return
// the same name twice within a process.
type Namer interface {
	Next() string
}

// MillisNamer names files after the current time in Unix milliseconds.
// When two calls land in the same millisecond, or the clock steps back,
// the value is bumped past the previous one, so names are strictly
// increasing.
type MillisNamer struct {
	// Now defaults to time.Now.
	Now func() time.Time

	mu   sync.Mutex
	last int64
}

// Next returns the next name.
func (n *MillisNamer) Next() string {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	ms := now().UnixMilli()
	if ms <= n.last {
		ms = n.last + 1
	}
	n.last = ms
	return strconv.FormatInt(ms, 10)
}
