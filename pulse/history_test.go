// Copyright (c) 2024, The Pulse Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pulse

import (
	"testing"

	"cogentcore.org/core/math32"
)

var difTol = float32(1.0e-6)

func CmprFloats(out, cor []float32, msg string, t *testing.T) {
	t.Helper()
	for i := range out {
		dif := math32.Abs(out[i] - cor[i])
		if dif > difTol {
			t.Errorf("%v err: out: %v, cor: %v, dif: %v\n", msg, out[i], cor[i], dif)
		}
	}
}

const eps = 1e-6

func TestHistoryOrdering(t *testing.T) {
	h := History[SpikeEntry]{}
	ts := []float64{1, 2.5, 3, 7.25, 10}
	for _, tm := range ts {
		h.Append(SpikeEntry{T: tm}, eps)
	}
	if h.Len() != len(ts) {
		t.Fatalf("expected %d entries, got %d", len(ts), h.Len())
	}
	for i := 1; i < h.Len(); i++ {
		if h.At(i).T <= h.At(i-1).T {
			t.Errorf("entries out of order at %d: %v <= %v", i, h.At(i).T, h.At(i-1).T)
		}
	}
}

func TestHistoryEqualTimeReplaces(t *testing.T) {
	h := History[SpikeEntry]{}
	h.Append(SpikeEntry{T: 1, Kminus: 1}, eps)
	h.Append(SpikeEntry{T: 1, Kminus: 2}, eps)
	if h.Len() != 1 {
		t.Fatalf("same-time append must replace, got %d entries", h.Len())
	}
	if h.At(0).Kminus != 2 {
		t.Errorf("replacement did not take: Kminus = %v", h.At(0).Kminus)
	}
}

func TestHistoryRangeHalfOpen(t *testing.T) {
	h := History[SpikeEntry]{}
	h.Append(SpikeEntry{T: 1}, eps)
	h.Append(SpikeEntry{T: 2}, eps)
	lo, hi := h.Range(1, 2, eps)
	got := h.View(lo, hi)
	if len(got) != 1 {
		t.Fatalf("range (1, 2] expected 1 entry, got %d", len(got))
	}
	if got[0].T != 2 {
		t.Errorf("range (1, 2] expected the t=2 entry, got t=%v", got[0].T)
	}
}

func TestHistoryRegisterReaderSeeding(t *testing.T) {
	h := History[SpikeEntry]{}
	h.Append(SpikeEntry{T: 1}, eps)
	h.Append(SpikeEntry{T: 2}, eps)
	h.Append(SpikeEntry{T: 3}, eps)
	h.RegisterReader(2, 1, eps)
	cor := []int64{0, 1, 1}
	for i, c := range cor {
		if h.AccessAt(i) != c {
			t.Errorf("entry %d: access = %d, expected %d", i, h.AccessAt(i), c)
		}
	}
}

func TestHistoryAccessCountedPruning(t *testing.T) {
	h := History[SpikeEntry]{}
	h.RegisterReader(0, 1, eps)
	h.RegisterReader(0, 1, eps)
	h.Append(SpikeEntry{T: 1}, eps)
	h.Append(SpikeEntry{T: 2}, eps)

	// first read: both entries touched once, k-1 of 2 readers
	h.Range(0, 3, eps)
	h.Append(SpikeEntry{T: 10}, eps)
	if h.Len() != 3 {
		t.Fatalf("entry read by 1 of 2 readers must be retained, len = %d", h.Len())
	}

	// second read completes the count; next spike beyond max delay prunes
	h.Range(0, 3, eps)
	h.Append(SpikeEntry{T: 20}, eps)
	if h.Len() != 2 {
		t.Fatalf("fully-read stale entries must be pruned, len = %d", h.Len())
	}
	if h.At(0).T != 10 || h.At(1).T != 20 {
		t.Errorf("expected entries at 10, 20, got %v, %v", h.At(0).T, h.At(1).T)
	}
}

func TestHistoryPruneNeedsLaterSpike(t *testing.T) {
	h := History[SpikeEntry]{}
	h.RegisterReader(0, 1, eps)
	h.Append(SpikeEntry{T: 1}, eps)
	h.Append(SpikeEntry{T: 1.5}, eps)
	h.Range(0, 2, eps)
	// next spike within max delay of the successor entry: no pruning
	h.Append(SpikeEntry{T: 2}, eps)
	if h.Len() != 3 {
		t.Fatalf("fully-read entry within max delay must be retained, len = %d", h.Len())
	}
}

func TestHistoryIndexBefore(t *testing.T) {
	h := History[SpikeEntry]{}
	h.Append(SpikeEntry{T: 1}, eps)
	h.Append(SpikeEntry{T: 2}, eps)
	if i := h.IndexBefore(0.5, eps); i != -1 {
		t.Errorf("IndexBefore(0.5) = %d, expected -1", i)
	}
	if i := h.IndexBefore(1, eps); i != -1 {
		t.Errorf("IndexBefore(1) = %d, expected -1 (strictly before)", i)
	}
	if i := h.IndexBefore(1.5, eps); i != 0 {
		t.Errorf("IndexBefore(1.5) = %d, expected 0", i)
	}
	if i := h.IndexBefore(5, eps); i != 1 {
		t.Errorf("IndexBefore(5) = %d, expected 1", i)
	}
	// point queries are non-consuming
	if h.AccessAt(0) != 0 || h.AccessAt(1) != 0 {
		t.Errorf("IndexBefore must not count accesses: %d, %d", h.AccessAt(0), h.AccessAt(1))
	}
}

func TestHistoryClearKeepsReaders(t *testing.T) {
	h := History[SpikeEntry]{}
	h.RegisterReader(0, 2.5, eps)
	h.Append(SpikeEntry{T: 1}, eps)
	h.Clear()
	if h.Len() != 0 {
		t.Fatalf("Clear left %d entries", h.Len())
	}
	if h.NReaders != 1 || h.MaxDelayMs != 2.5 {
		t.Errorf("Clear must preserve registration: NReaders=%d MaxDelayMs=%v", h.NReaders, h.MaxDelayMs)
	}
}

func TestHistoryOutOfOrderPanics(t *testing.T) {
	h := History[SpikeEntry]{}
	h.Append(SpikeEntry{T: 2}, eps)
	defer func() {
		if recover() == nil {
			t.Errorf("append earlier than the last stored entry must panic")
		}
	}()
	h.Append(SpikeEntry{T: 1}, eps)
}
