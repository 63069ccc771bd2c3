package transfer

import "sync/atomic"

// Progress reports a transfer's advancement. The reference implementation
// shares this state between a separate OS process (the transfer worker)
// and the controlling UI via an 8-byte shared-memory block of two
// little-endian uint32s (spec.md §5, §9). Since this Go port runs the
// transfer in a goroutine rather than a separate process, a pair of
// atomics serves the same purpose without torn reads.
type Progress struct {
	Sent  atomic.Uint32
	Total atomic.Uint32
}

// NewProgress returns a Progress with Total pre-set and Sent at zero.
func NewProgress(total uint32) *Progress {
	p := &Progress{}
	p.Total.Store(total)
	return p
}
