// Copyright (c) 2024, The Pulse Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pulse

import "fmt"

// Stamped is the constraint on history entry payloads: a value record
// carrying its archive time in ms.
type Stamped interface {
	Time() float64
}

// History is the bounded, access-counted archive shared by all
// plasticity variants.  Entries are strictly time-ordered; each entry
// has a read count (held here in a parallel slice, so the pruning
// invariant is enforced in exactly one place) and is erasable once all
// registered readers have consumed it and no reader can still need it
// given the maximum registered delay.
//
// All time comparisons use the eps tolerance passed in from the
// Context's StdpEps.
type History[E Stamped] struct {

	// archived entries, oldest first.
	Entries []E

	// per-entry count of reader accesses, parallel to Entries.
	Access []int64

	// number of registered readers (incoming plasticity connections).
	// Never decreases except via Clear.
	NReaders int64

	// maximum delay in ms over all registered readers; bounds how far
	// into the past an entry must remain available.
	MaxDelayMs float64

	// erasure is managed externally, in bulk: Append never prunes.
	// Set by owners whose readers consume whole intervals rather than
	// individual entries.
	NoPrune bool
}

// Len returns the number of stored entries.
func (h *History[E]) Len() int {
	return len(h.Entries)
}

// At returns a pointer to the entry at index i.
func (h *History[E]) At(i int) *E {
	return &h.Entries[i]
}

// AccessAt returns the access count of the entry at index i.
func (h *History[E]) AccessAt(i int) int64 {
	return h.Access[i]
}

// Clear erases all entries and access counts.  Reader registration and
// max delay are preserved: readers exist independently of the archived
// data.
func (h *History[E]) Clear() {
	h.Entries = h.Entries[:0]
	h.Access = h.Access[:0]
}

// RegisterReader registers one incoming plasticity connection that
// will read this history.  tFirstRead is the earliest time the new
// reader will query; access counters are seeded for entries at or
// after it (within eps) so the reader's future reads balance against
// the increased reader count.  delayMs updates the running maximum
// delay used by pruning.  Called once per connection, at connect time.
func (h *History[E]) RegisterReader(tFirstRead, delayMs, eps float64) {
	h.NReaders++
	if delayMs > h.MaxDelayMs {
		h.MaxDelayMs = delayMs
	}
	for i := range h.Entries {
		if h.Entries[i].Time() >= tFirstRead-eps {
			h.Access[i]++
		}
	}
}

// Append adds an entry, which must not be earlier than the last stored
// one.  An entry at the same time (within eps) replaces the stored one
// rather than duplicating it: multiplicities are event fields, not
// duplicate entries.  Stale fully-read entries are pruned from the
// front, using the new entry's time as the chronology reference.
func (h *History[E]) Append(e E, eps float64) {
	if n := len(h.Entries); n > 0 {
		dt := e.Time() - h.Entries[n-1].Time()
		if dt < -eps {
			panic(fmt.Sprintf("pulse.History: entry at %g ms is earlier than last stored %g ms", e.Time(), h.Entries[n-1].Time()))
		}
		if dt <= eps {
			h.Entries[n-1] = e
			return
		}
	}
	h.prune(e.Time(), eps)
	h.Entries = append(h.Entries, e)
	h.Access = append(h.Access, 0)
}

// prune drops entries from the front while the front has been read by
// every registered reader and the next entry is already further in the
// past than the maximum delay relative to the new time: no reader can
// still need the front entry, because any query it serves is answered
// at least as well by its successor.
func (h *History[E]) prune(newT, eps float64) {
	if h.NoPrune {
		return
	}
	for len(h.Entries) > 1 &&
		h.Access[0] >= h.NReaders &&
		newT-h.Entries[1].Time() > h.MaxDelayMs+eps {
		h.Entries = h.Entries[1:]
		h.Access = h.Access[1:]
	}
	if len(h.Entries) == 0 {
		// reclaim backing storage abandoned by front reslicing
		h.Entries = nil
		h.Access = nil
	}
}

// Range returns the index range [lo, hi) of entries in the half-open
// time interval (t1, t2], within eps, and counts one access on every
// entry in it: reading is consuming, for eventual pruning.
func (h *History[E]) Range(t1, t2, eps float64) (lo, hi int) {
	lo = h.upperBound(t1, eps)
	hi = h.upperBound(t2, eps)
	for i := lo; i < hi; i++ {
		h.Access[i]++
	}
	return lo, hi
}

// View returns the entries in [lo, hi) as a slice view into the
// history; valid until the next Append or Clear.
func (h *History[E]) View(lo, hi int) []E {
	return h.Entries[lo:hi]
}

// IndexBefore returns the index of the most recent entry strictly
// before t (within eps), or -1 if there is none.  Point queries are
// non-consuming; only ranged reads count as accesses.
func (h *History[E]) IndexBefore(t, eps float64) int {
	for i := len(h.Entries) - 1; i >= 0; i-- {
		if t-h.Entries[i].Time() > eps {
			return i
		}
	}
	return -1
}

// upperBound returns the index of the first entry with time > t + eps,
// by binary search.
func (h *History[E]) upperBound(t, eps float64) int {
	lo, hi := 0, len(h.Entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if h.Entries[mid].Time() > t+eps {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}
