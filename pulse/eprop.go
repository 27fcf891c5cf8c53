// Copyright (c) 2024, The Pulse Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pulse

import (
	"fmt"

	"github.com/pulsenet/pulse/stime"
)

// EpropArchive records per-step surrogate gradients and learning
// signals for e-prop synapses.  E-prop synapses never make point
// queries: each one reads exactly one whole update interval per weight
// update, shifted by its own connection delay.  That lets erasure run
// in bulk: a second history of interval marks carries the access
// counts, and once every registered reader has consumed an interval,
// all gradient entries inside it are dropped at once instead of one at
// a time.
type EpropArchive struct {

	// per-step gradient / learning-signal entries.
	Hist History[EpropEntry] `display:"-"`

	// update-interval boundary marks with consumption counts.
	Updates History[EpropUpdateEntry] `display:"-"`

	// number of registered e-prop readers.
	NReaders int64 `inactive:"+"`

	// minimum registered connection delay in steps; bounds how far
	// erasure may cut, since the smallest-shift reader is the first to
	// need entries of the next interval.
	MinShiftSteps int64 `inactive:"+"`

	// maximum registered connection delay in steps; bounds the read
	// shift.
	MaxShiftSteps int64 `inactive:"+"`
}

// bulkErased marks both histories as externally erased: consumed
// intervals are dropped whole in EraseUsedUpdateHistory, so the
// per-entry pruning in Append must never run here.
func (ea *EpropArchive) bulkErased() {
	ea.Hist.NoPrune = true
	ea.Updates.NoPrune = true
}

// RegisterEpropConnection registers one incoming e-prop connection at
// connect time; the read shift for that connection is its own delay,
// so delaySteps must be positive.
func (ea *EpropArchive) RegisterEpropConnection(ctx *Context, delaySteps int64) {
	if delaySteps <= 0 {
		panic(fmt.Sprintf("pulse.EpropArchive: connection delay must be > 0 steps, got %d", delaySteps))
	}
	ea.bulkErased()
	ea.NReaders++
	if ea.NReaders == 1 || delaySteps < ea.MinShiftSteps {
		ea.MinShiftSteps = delaySteps
	}
	if delaySteps > ea.MaxShiftSteps {
		ea.MaxShiftSteps = delaySteps
	}
}

// WriteEpropHistory appends one step's entry.
func (ea *EpropArchive) WriteEpropHistory(ctx *Context, t float64, surrogateGradient, learningSignal, firingRateReg float32) {
	ea.bulkErased()
	ea.Hist.Append(EpropEntry{
		T:                 t,
		SurrogateGradient: surrogateGradient,
		LearningSignal:    learningSignal,
		FiringRateReg:     firingRateReg,
	}, ctx.StdpEps)
}

// MarkUpdate records an update-interval boundary at t; intervals run
// from one mark to the next.
func (ea *EpropArchive) MarkUpdate(ctx *Context, t float64) {
	ea.bulkErased()
	ea.Updates.Append(EpropUpdateEntry{T: t}, ctx.StdpEps)
}

// GradientHistory returns the entries in (t1, t2] without consuming
// them; interval consumption is tracked on the marks, not per entry.
func (ea *EpropArchive) GradientHistory(ctx *Context, t1, t2 float64) []EpropEntry {
	lo := ea.Hist.upperBound(t1, ctx.StdpEps)
	hi := ea.Hist.upperBound(t2, ctx.StdpEps)
	return ea.Hist.View(lo, hi)
}

// ReadUpdateInterval reads, for one connection with the given delay,
// the gradient entries of the update interval starting at the mark
// with time tStart: entries in (tStart+shift, tEnd+shift], where shift
// is the connection's delay and tEnd the next mark (or open-ended for
// the last interval).  Counts one consumption on the interval mark.
func (ea *EpropArchive) ReadUpdateInterval(ctx *Context, tStart float64, delaySteps int64) []EpropEntry {
	mi := ea.markIndex(tStart, ctx.StdpEps)
	if mi < 0 {
		panic(fmt.Sprintf("pulse.EpropArchive: no update mark at t=%g ms", tStart))
	}
	shift := stime.MsFromSteps(delaySteps)
	t1 := ea.Updates.At(mi).T + shift
	var t2 float64
	if mi+1 < ea.Updates.Len() {
		t2 = ea.Updates.At(mi+1).T + shift
	} else if n := ea.Hist.Len(); n > 0 {
		t2 = ea.Hist.At(n-1).T + shift
	} else {
		t2 = t1
	}
	ea.Updates.Access[mi]++
	return ea.GradientHistory(ctx, t1, t2)
}

// markIndex finds the update mark at exactly t, within eps.
func (ea *EpropArchive) markIndex(t, eps float64) int {
	for i := ea.Updates.Len() - 1; i >= 0; i-- {
		d := ea.Updates.At(i).T - t
		if d <= eps && d >= -eps {
			return i
		}
		if d < -eps {
			break
		}
	}
	return -1
}

// EraseUsedUpdateHistory drops, in bulk, every leading update interval
// that all registered readers have consumed, together with all
// gradient entries inside it.  The cut is bounded by the minimum
// registered shift: entries past it still belong to the next interval
// for the smaller-delay readers.  The last mark is always kept as the
// start of the open interval.
func (ea *EpropArchive) EraseUsedUpdateHistory(ctx *Context) {
	for ea.Updates.Len() > 1 && ea.Updates.Access[0] >= ea.NReaders {
		upTo := ea.Updates.At(1).T + stime.MsFromSteps(ea.MinShiftSteps)
		cut := ea.Hist.upperBound(upTo, ctx.StdpEps)
		if cut > 0 {
			ea.Hist.Entries = ea.Hist.Entries[cut:]
			ea.Hist.Access = ea.Hist.Access[cut:]
		}
		ea.Updates.Entries = ea.Updates.Entries[1:]
		ea.Updates.Access = ea.Updates.Access[1:]
	}
}

// ClearHistory erases both histories; reader registration survives.
func (ea *EpropArchive) ClearHistory() {
	ea.Hist.Clear()
	ea.Updates.Clear()
}
