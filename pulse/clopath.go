// Copyright (c) 2024, The Pulse Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pulse

import (
	"fmt"

	"github.com/pulsenet/pulse/stime"
)

// ClopathParams are the voltage-based plasticity archiving parameters:
// thresholds on the low-pass membrane traces and the processing delay
// applied before entries are written.
type ClopathParams struct {

	// LTP threshold on the membrane potential in mV.
	ThetaPlus float32 `def:"-45.3"`

	// LTD threshold on the slow trace in mV.
	ThetaMinus float32 `def:"-70.6"`

	// LTD amplitude.
	AmpLTD float32 `min:"0" def:"0.00014"`

	// LTP amplitude.
	AmpLTP float32 `min:"0" def:"0.00008"`

	// processing delay in steps applied to the low-pass u-bar traces
	// before thresholding; entries are written at t - delay.
	DelayUBarsSteps int64 `min:"0" def:"0"`
}

func (cp *ClopathParams) Defaults() {
	cp.ThetaPlus = -45.3
	cp.ThetaMinus = -70.6
	cp.AmpLTD = 0.00014
	cp.AmpLTP = 0.00008
	cp.DelayUBarsSteps = 0
}

// Validate checks the parameter ranges without touching state.
func (cp *ClopathParams) Validate() error {
	if cp.AmpLTD < 0 || cp.AmpLTP < 0 {
		return fmt.Errorf("ClopathParams: amplitudes must be >= 0, got A_LTD=%g A_LTP=%g", cp.AmpLTD, cp.AmpLTP)
	}
	if cp.DelayUBarsSteps < 0 {
		return fmt.Errorf("ClopathParams: delay_u_bars must be >= 0 steps, got %d", cp.DelayUBarsSteps)
	}
	return nil
}

// ClopathArchive is the voltage-based plasticity variant of the spike
// archive.  The LTD side is a dense per-step record queried by point
// lookups (plain slice, binary searched); the LTP side is sparse and
// reader-counted like the spike history, pruned through the shared
// History machinery.
type ClopathArchive struct {

	// archiving parameters.
	Params ClopathParams `display:"inline"`

	// dense LTD record, one entry per written step, time-ordered.
	LTDHist []ClopathEntry `display:"-"`

	// sparse reader-counted LTP history.
	LTPHist History[ClopathEntry] `display:"-"`

	// bound in steps on the dense LTD record, from the max registered
	// reader delay.
	maxDelaySteps int64
}

func (ca *ClopathArchive) Defaults() {
	ca.Params.Defaults()
}

// RegisterClopathConnection registers one incoming voltage-based
// plasticity connection at connect time.
func (ca *ClopathArchive) RegisterClopathConnection(ctx *Context, tFirstRead, delayMs float64) {
	ca.LTPHist.RegisterReader(tFirstRead, delayMs, ctx.StdpEps)
	if ds := stime.StepsFromMs(delayMs); ds > ca.maxDelaySteps {
		ca.maxDelaySteps = ds
	}
}

// WriteClopathHistory records the low-pass traces for one step: the
// traces belong to t - DelayUBarsSteps, and an entry at that time
// replaces any previous one (update-or-append).  The LTD record keeps
// a bounded window; the LTP side records only above-threshold steps.
func (ca *ClopathArchive) WriteClopathHistory(ctx *Context, t float64, uBarPlus, uBarMinus, vm float32) {
	ts := t - stime.MsFromSteps(ca.Params.DelayUBarsSteps)

	dwLTD := float32(0)
	if uBarMinus > ca.Params.ThetaMinus {
		dwLTD = ca.Params.AmpLTD * (uBarMinus - ca.Params.ThetaMinus)
	}
	n := len(ca.LTDHist)
	if n > 0 && ts <= ca.LTDHist[n-1].T+ctx.StdpEps {
		ca.LTDHist[n-1] = ClopathEntry{T: ts, DW: dwLTD}
	} else {
		ca.LTDHist = append(ca.LTDHist, ClopathEntry{T: ts, DW: dwLTD})
	}
	ca.pruneLTD(ts)

	if vm > ca.Params.ThetaPlus && uBarPlus > ca.Params.ThetaMinus {
		dwLTP := ca.Params.AmpLTP * (vm - ca.Params.ThetaPlus) * (uBarPlus - ca.Params.ThetaMinus)
		ca.LTPHist.Append(ClopathEntry{T: ts, DW: dwLTP}, ctx.StdpEps)
	}
}

// pruneLTD keeps only the window any registered reader can still reach.
func (ca *ClopathArchive) pruneLTD(newT float64) {
	bound := stime.MsFromSteps(ca.maxDelaySteps + 1)
	cut := 0
	for cut < len(ca.LTDHist)-1 && newT-ca.LTDHist[cut+1].T > bound {
		cut++
	}
	if cut > 0 {
		ca.LTDHist = ca.LTDHist[cut:]
	}
}

// LTDValue returns the LTD term at the step containing t: the most
// recent dense entry at or before t, found by binary search; 0 when
// the record is empty or t precedes it.
func (ca *ClopathArchive) LTDValue(t float64) float32 {
	lo, hi := 0, len(ca.LTDHist)
	for lo < hi {
		mid := (lo + hi) / 2
		if ca.LTDHist[mid].T > t {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	if lo == 0 {
		return 0
	}
	return ca.LTDHist[lo-1].DW
}

// LTPHistory returns the LTP entries in (t1, t2], counting one access
// per returned entry; the view is valid until the next write.
func (ca *ClopathArchive) LTPHistory(ctx *Context, t1, t2 float64) []ClopathEntry {
	lo, hi := ca.LTPHist.Range(t1, t2, ctx.StdpEps)
	return ca.LTPHist.View(lo, hi)
}

// ClearHistory erases both records; reader registration survives.
func (ca *ClopathArchive) ClearHistory() {
	ca.LTDHist = nil
	ca.LTPHist.Clear()
}
