// Copyright (c) 2024, The Pulse Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pulse

import (
	"testing"

	"cogentcore.org/core/math32"
)

func newTestCtx() *Context {
	ctx := NewContext()
	ctx.Reset()
	return ctx
}

func TestArchiveMonotonicHistory(t *testing.T) {
	ctx := newTestCtx()
	ar := &SpikeArchive{}
	ar.Defaults()
	ts := []float64{1, 2, 3.5, 5}
	for _, tm := range ts {
		ar.SpikeTime(ctx, tm, 0)
	}
	if ar.Hist.Len() != len(ts) {
		t.Fatalf("expected %d entries, got %d", len(ts), ar.Hist.Len())
	}
	for i, tm := range ts {
		if ar.Hist.At(i).T != tm {
			t.Errorf("entry %d: t = %v, expected %v", i, ar.Hist.At(i).T, tm)
		}
		if k := ar.KValue(ctx, tm+1e-4); k <= 0 {
			t.Errorf("KValue just after spike at %v must be > 0, got %v", tm, k)
		}
	}
	if k := ar.KValue(ctx, ts[0]-1e-4); k != 0 {
		t.Errorf("KValue before first spike must be 0, got %v", k)
	}
}

func TestArchiveDecayCorrectness(t *testing.T) {
	ctx := newTestCtx()
	ar := &SpikeArchive{}
	ar.Defaults()
	ar.SpikeTime(ctx, 1, 0)
	dts := []float32{0.5, 1, 5, 20, 100}
	out := make([]float32, len(dts))
	cor := make([]float32, len(dts))
	for i, dt := range dts {
		out[i] = ar.KValue(ctx, 1+float64(dt))
		cor[i] = math32.Exp(-dt / ar.Params.TauMinus)
	}
	CmprFloats(out, cor, "single-spike trace decay", t)
}

func TestArchiveTraceAccumulation(t *testing.T) {
	ctx := newTestCtx()
	ar := &SpikeArchive{}
	ar.Defaults()
	ar.SpikeTime(ctx, 1, 0)
	ar.SpikeTime(ctx, 2, 0)
	cor := math32.Exp(-1/ar.Params.TauMinus) + 1
	if dif := math32.Abs(ar.Kminus - cor); dif > difTol {
		t.Errorf("accumulated trace: %v, expected %v", ar.Kminus, cor)
	}

	nn := &SpikeArchive{}
	nn.Defaults()
	nn.Params.NearestNeighbor = true
	nn.SpikeTime(ctx, 1, 0)
	nn.SpikeTime(ctx, 2, 0)
	if nn.Kminus != 1 {
		t.Errorf("nearest-neighbor trace must reset to 1, got %v", nn.Kminus)
	}
}

func TestArchiveOffset(t *testing.T) {
	ctx := newTestCtx()
	ar := &SpikeArchive{}
	ar.Defaults()
	ar.SpikeTime(ctx, 1.1, 0.1)
	if ar.Hist.At(0).T != 1.0 {
		t.Errorf("offset spike archived at %v, expected 1.0", ar.Hist.At(0).T)
	}
}

func TestArchiveStatusRoundTrip(t *testing.T) {
	ctx := newTestCtx()
	_ = ctx
	ar := &SpikeArchive{}
	ar.Defaults()
	ar.Params.TauMinus = 33
	ar.Params.TauMinusTriplet = 144
	ar.Params.Update()
	st := ar.Status()
	if err := ar.SetStatus(st); err != nil {
		t.Fatalf("round-trip SetStatus failed: %v", err)
	}
	if ar.Params.TauMinus != 33 || ar.Params.TauMinusTriplet != 144 {
		t.Errorf("status round-trip changed params: %v, %v", ar.Params.TauMinus, ar.Params.TauMinusTriplet)
	}
}

func TestArchiveStatusRejectsInvalid(t *testing.T) {
	ar := &SpikeArchive{}
	ar.Defaults()
	for _, bad := range []float64{0, -5} {
		err := ar.SetStatus(map[string]any{"tau_minus": bad, "tau_minus_triplet": 50.0})
		if err == nil {
			t.Fatalf("tau_minus = %v must be rejected", bad)
		}
		st := ar.Status()
		if st["tau_minus"].(float32) != 20 {
			t.Errorf("rejected set must leave tau_minus untouched, got %v", st["tau_minus"])
		}
		if st["tau_minus_triplet"].(float32) != 110 {
			t.Errorf("rejected set must leave tau_minus_triplet untouched, got %v", st["tau_minus_triplet"])
		}
	}
}

func TestArchiveStatusClear(t *testing.T) {
	ctx := newTestCtx()
	ar := &SpikeArchive{}
	ar.Defaults()
	ar.SpikeTime(ctx, 1, 0)
	ar.SpikeTime(ctx, 2, 0)
	if err := ar.SetStatus(map[string]any{"clear": true}); err != nil {
		t.Fatalf("SetStatus clear failed: %v", err)
	}
	if ar.Hist.Len() != 0 || ar.LastSpikeMs != -1 || ar.Kminus != 0 {
		t.Errorf("clear did not reset archive: len=%d t_spike=%v Kminus=%v", ar.Hist.Len(), ar.LastSpikeMs, ar.Kminus)
	}
}

func TestArchiveKValues(t *testing.T) {
	ctx := newTestCtx()
	ar := &SpikeArchive{}
	ar.Defaults()
	ar.SpikeTime(ctx, 1, 0)
	k, kt := ar.KValues(ctx, 3)
	cork := math32.Exp(-2 / ar.Params.TauMinus)
	corkt := math32.Exp(-2 / ar.Params.TauMinusTriplet)
	CmprFloats([]float32{k, kt}, []float32{cork, corkt}, "pair and triplet traces", t)
}

// TestArchiveEndToEnd runs the canonical single-reader scenario: three
// spikes, a point query between them, consuming reads, then pruning
// once a much later spike arrives.
func TestArchiveEndToEnd(t *testing.T) {
	ctx := newTestCtx()
	ar := &SpikeArchive{}
	ar.Defaults()
	ar.Params.NearestNeighbor = true
	ar.RegisterSTDPConnection(ctx, 0, 1)

	for _, tm := range []float64{1, 2, 3} {
		ar.SpikeTime(ctx, tm, 0)
	}

	k := ar.KValue(ctx, 2.5)
	cor := math32.Exp(-0.5 / 20)
	if dif := math32.Abs(k - cor); dif > difTol {
		t.Errorf("KValue(2.5) = %v, expected %v (decay from t=2 spike only)", k, cor)
	}

	sp := ar.Spikes(ctx, 0, 2.5)
	if len(sp) != 2 {
		t.Fatalf("Spikes(0, 2.5] expected 2 entries, got %d", len(sp))
	}
	sp = ar.Spikes(ctx, 2.5, 3.5)
	if len(sp) != 1 || sp[0].T != 3 {
		t.Fatalf("Spikes(2.5, 3.5] expected just the t=3 entry, got %d", len(sp))
	}

	// all entries consumed by the single reader; a spike far beyond
	// the max registered delay makes the early ones prunable
	ar.SpikeTime(ctx, 10, 0)
	if ar.Hist.Len() != 2 {
		t.Fatalf("expected pruning down to 2 entries, got %d", ar.Hist.Len())
	}
	if ar.Hist.At(0).T != 3 || ar.Hist.At(1).T != 10 {
		t.Errorf("expected entries at 3, 10, got %v, %v", ar.Hist.At(0).T, ar.Hist.At(1).T)
	}
}
