// Copyright (c) 2024, The Pulse Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pulse

import (
	"fmt"

	"cogentcore.org/core/math32"
)

// ArchiveParams contains the spike-archiving parameters: the time
// constants of the low-pass-filtered postsynaptic traces consulted by
// STDP synapses.
type ArchiveParams struct {

	// time constant in ms of the pair STDP postsynaptic trace (Kminus).
	TauMinus float32 `min:"0.001" def:"20"`

	// time constant in ms of the triplet STDP postsynaptic trace.
	TauMinusTriplet float32 `min:"0.001" def:"110"`

	// nearest-neighbor trace mode: each spike resets the trace to
	// exactly 1 instead of accumulating (all-to-all) by +1.
	NearestNeighbor bool

	// rate = 1 / tau
	TauMinusDt float32 `inactive:"+" display:"-" json:"-" xml:"-"`

	// rate = 1 / tau
	TauMinusTripletDt float32 `inactive:"+" display:"-" json:"-" xml:"-"`
}

func (ap *ArchiveParams) Defaults() {
	ap.TauMinus = 20
	ap.TauMinusTriplet = 110
	ap.NearestNeighbor = false
	ap.Update()
}

// Update must be called after any changes to parameters
func (ap *ArchiveParams) Update() {
	ap.TauMinusDt = 1 / ap.TauMinus
	ap.TauMinusTripletDt = 1 / ap.TauMinusTriplet
}

// Validate checks the parameter ranges, returning an error without
// touching any state; used by the stage-validate-commit status path.
func (ap *ArchiveParams) Validate() error {
	if ap.TauMinus <= 0 {
		return fmt.Errorf("ArchiveParams: tau_minus must be > 0, got %g", ap.TauMinus)
	}
	if ap.TauMinusTriplet <= 0 {
		return fmt.Errorf("ArchiveParams: tau_minus_triplet must be > 0, got %g", ap.TauMinusTriplet)
	}
	return nil
}

// SpikeArchive maintains the bounded spike history and running STDP
// traces for one node: the per-object realization of the archiving
// contract.  The identical semantics over VectorizedPool parallel
// arrays are produced by the same archive* functions below.
type SpikeArchive struct {

	// archiving parameters (trace time constants)
	Params ArchiveParams `display:"inline"`

	// running pair trace, decayed to LastSpikeMs.
	Kminus float32 `inactive:"+"`

	// running triplet trace, decayed to LastSpikeMs.
	KminusTriplet float32 `inactive:"+"`

	// time of the most recent archived spike in ms; -1 before any spike.
	LastSpikeMs float64 `inactive:"+"`

	// the bounded access-counted spike history.
	Hist History[SpikeEntry] `display:"-"`
}

func (ar *SpikeArchive) Defaults() {
	ar.Params.Defaults()
	ar.InitState()
}

// InitState resets the running traces and history to the no-spike state.
func (ar *SpikeArchive) InitState() {
	ar.Kminus = 0
	ar.KminusTriplet = 0
	ar.LastSpikeMs = -1
	ar.Hist.Clear()
}

// RegisterSTDPConnection registers one incoming plasticity connection
// at connect time: tFirstRead is the earliest time the synapse will
// query, delayMs its dendritic delay.
func (ar *SpikeArchive) RegisterSTDPConnection(ctx *Context, tFirstRead, delayMs float64) {
	ar.Hist.RegisterReader(tFirstRead, delayMs, ctx.StdpEps)
}

// SpikeTime archives a spike at time t - offset (ms), updating the
// running traces by exponential decay from the previous spike and
// incrementing (or resetting, in nearest-neighbor mode) by 1.
func (ar *SpikeArchive) SpikeTime(ctx *Context, t, offset float64) {
	archiveSpikeTime(&ar.Params, &ar.Hist, &ar.Kminus, &ar.KminusTriplet, &ar.LastSpikeMs, ctx, t, offset)
}

// KValue returns the pair trace at time t: the stored trace of the
// most recent spike strictly before t, decayed to t.  Returns 0 if the
// node has not spiked before t; "no history yet" is expected, not an
// error.
func (ar *SpikeArchive) KValue(ctx *Context, t float64) float32 {
	return archiveKValue(&ar.Params, &ar.Hist, ctx, t)
}

// KValues returns both the pair and triplet traces at time t.
func (ar *SpikeArchive) KValues(ctx *Context, t float64) (kminus, ktriplet float32) {
	return archiveKValues(&ar.Params, &ar.Hist, ctx, t)
}

// Spikes returns the archived entries in (t1, t2], counting one access
// on each returned entry.  The returned slice is a view into the
// history, valid until the next SpikeTime.
func (ar *SpikeArchive) Spikes(ctx *Context, t1, t2 float64) []SpikeEntry {
	lo, hi := ar.Hist.Range(t1, t2, ctx.StdpEps)
	return ar.Hist.View(lo, hi)
}

// ClearHistory erases the archived entries and resets the running
// traces; reader registration survives.
func (ar *SpikeArchive) ClearHistory() {
	ar.Hist.Clear()
	ar.Kminus = 0
	ar.KminusTriplet = 0
	ar.LastSpikeMs = -1
}

// Status returns the status dictionary for this archive.
func (ar *SpikeArchive) Status() map[string]any {
	return map[string]any{
		"tau_minus":         ar.Params.TauMinus,
		"tau_minus_triplet": ar.Params.TauMinusTriplet,
		"t_spike":           ar.LastSpikeMs,
		"archiver_length":   ar.Hist.Len(),
	}
}

// SetStatus applies the given status dictionary.  Parameters are
// staged into a temporary and validated before anything is committed,
// so an invalid value leaves all prior state untouched.
func (ar *SpikeArchive) SetStatus(st map[string]any) error {
	np := ar.Params
	if v, ok := st["tau_minus"]; ok {
		f, err := toFloat32(v, "tau_minus")
		if err != nil {
			return err
		}
		np.TauMinus = f
	}
	if v, ok := st["tau_minus_triplet"]; ok {
		f, err := toFloat32(v, "tau_minus_triplet")
		if err != nil {
			return err
		}
		np.TauMinusTriplet = f
	}
	if err := np.Validate(); err != nil {
		return err
	}
	np.Update()
	ar.Params = np
	if v, ok := st["clear"]; ok {
		if b, isb := v.(bool); isb && b {
			ar.ClearHistory()
		}
	}
	return nil
}

// toFloat32 converts a status dictionary value to float32.
func toFloat32(v any, key string) (float32, error) {
	switch f := v.(type) {
	case float32:
		return f, nil
	case float64:
		return float32(f), nil
	case int:
		return float32(f), nil
	}
	return 0, fmt.Errorf("status key %v: expected number, got %T", key, v)
}

//////////////////////////////////////////////////////////////////////
//  Shared archive operations
//
//  These functions are the single implementation of the spike-archive
//  semantics, operating on explicit state locations so that both the
//  per-object SpikeArchive and the VectorizedPool parallel arrays run
//  exactly the same code.

func archiveSpikeTime(p *ArchiveParams, hist *History[SpikeEntry], kminus, ktrip *float32, lastSpike *float64, ctx *Context, t, offset float64) {
	ts := t - offset
	if *lastSpike >= 0 {
		dt := float32(*lastSpike - ts)
		if p.NearestNeighbor {
			*kminus = 1
			*ktrip = 1
		} else {
			*kminus = *kminus*math32.Exp(dt*p.TauMinusDt) + 1
			*ktrip = *ktrip*math32.Exp(dt*p.TauMinusTripletDt) + 1
		}
	} else {
		*kminus = 1
		*ktrip = 1
	}
	*lastSpike = ts
	hist.Append(SpikeEntry{T: ts, Kminus: *kminus, KminusTriplet: *ktrip}, ctx.StdpEps)
}

func archiveKValue(p *ArchiveParams, hist *History[SpikeEntry], ctx *Context, t float64) float32 {
	i := hist.IndexBefore(t, ctx.StdpEps)
	if i < 0 {
		return 0
	}
	e := hist.At(i)
	return e.Kminus * math32.Exp(float32(e.T-t)*p.TauMinusDt)
}

func archiveKValues(p *ArchiveParams, hist *History[SpikeEntry], ctx *Context, t float64) (kminus, ktriplet float32) {
	i := hist.IndexBefore(t, ctx.StdpEps)
	if i < 0 {
		return 0, 0
	}
	e := hist.At(i)
	kminus = e.Kminus * math32.Exp(float32(e.T-t)*p.TauMinusDt)
	ktriplet = e.KminusTriplet * math32.Exp(float32(e.T-t)*p.TauMinusTripletDt)
	return kminus, ktriplet
}
