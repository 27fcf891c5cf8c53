// Copyright (c) 2024, The Pulse Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pulse

import (
	"errors"
	"testing"

	"github.com/pulsenet/pulse/stime"
)

func TestRingBufferTiming(t *testing.T) {
	ctx := newTestCtx()
	rb := RingBuffer{}
	rb.Init(ctx)
	rb.AddValue(ctx, 5, 1.5)
	for lag := int64(0); lag < 5; lag++ {
		if v := rb.Value(ctx, lag); v != 0 {
			t.Errorf("lag %d: value %v before due step", lag, v)
		}
	}
	if v := rb.Value(ctx, 5); v != 1.5 {
		t.Errorf("due step: value %v, expected 1.5", v)
	}
	// reads consume
	if v := rb.Value(ctx, 5); v != 0 {
		t.Errorf("slot not zeroed after read: %v", v)
	}
}

func TestRingBufferAccumulates(t *testing.T) {
	ctx := newTestCtx()
	rb := RingBuffer{}
	rb.Init(ctx)
	rb.AddValue(ctx, 3, 1)
	rb.AddValue(ctx, 3, 2)
	if v := rb.Value(ctx, 3); v != 3 {
		t.Errorf("coincident payloads must accumulate: %v", v)
	}
}

func TestRingBufferDelayBounds(t *testing.T) {
	ctx := newTestCtx()
	rb := RingBuffer{}
	rb.Init(ctx)
	for _, d := range []int64{0, -1, ctx.BufferLen() + 1} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("delay %d must panic", d)
				}
			}()
			rb.AddValue(ctx, d, 1)
		}()
	}
}

func TestEventDoubleDispatch(t *testing.T) {
	ctx := newTestCtx()
	sr := NewSpikeRecorder("rec")
	ev := NewSpikeEvent()
	ev.SetSender(7)
	ev.SetStamp(stime.FromMs(2))
	var e Event = ev
	e.Deliver(ctx, sr)
	if len(sr.Senders) != 1 || sr.Senders[0] != 7 {
		t.Fatalf("dispatch did not reach HandleSpike: %v", sr.Senders)
	}
	if sr.Times[0] != 2 {
		t.Errorf("recorded time %v, expected 2", sr.Times[0])
	}
}

func TestEventMultiplicity(t *testing.T) {
	ctx := newTestCtx()
	sr := NewSpikeRecorder("rec")
	ev := NewSpikeEvent()
	ev.Multiplicity = 3
	ev.SetStamp(stime.FromMs(1))
	ev.Deliver(ctx, sr)
	if len(sr.Senders) != 3 {
		t.Errorf("multiplicity 3 must record 3 events, got %d", len(sr.Senders))
	}
}

func TestEventDelayMustBePositive(t *testing.T) {
	ev := NewSpikeEvent()
	defer func() {
		if recover() == nil {
			t.Errorf("zero delay must panic")
		}
	}()
	ev.SetDelay(0)
}

func TestHandshakeRejection(t *testing.T) {
	ctx := newTestCtx()
	nt := NewNetwork("hs")
	mm := NewMultimeter("mm", "Vm")
	sr := NewSpikeRecorder("rec")
	nt.AddNode(mm)
	nt.AddNode(sr)

	// recorder accepts spikes only, not data logging requests
	spec := &SynSpec{}
	spec.Defaults()
	err := nt.Connect(ctx, mm, sr, spec)
	if !errors.Is(err, ErrIncompatibleReceptor) {
		t.Fatalf("expected ErrIncompatibleReceptor, got %v", err)
	}
	if len(nt.Conns) != 0 {
		t.Errorf("failed handshake must leave the network unchanged")
	}
}

func TestHandshakeUnknownReceptor(t *testing.T) {
	ctx := newTestCtx()
	nt := NewNetwork("hs")
	n1 := NewLifNeuron("n1")
	n2 := NewLifNeuron("n2")
	nt.AddNode(n1)
	nt.AddNode(n2)
	spec := &SynSpec{}
	spec.Defaults()
	spec.Receptor = 3
	err := nt.Connect(ctx, n1, n2, spec)
	if !errors.Is(err, ErrUnknownReceptor) {
		t.Fatalf("expected ErrUnknownReceptor, got %v", err)
	}
}

func TestHandshakeAccepts(t *testing.T) {
	ctx := newTestCtx()
	nt := NewNetwork("hs")
	n1 := NewLifNeuron("n1")
	sr := NewSpikeRecorder("rec")
	nt.AddNode(n1)
	nt.AddNode(sr)
	spec := &SynSpec{}
	spec.Defaults()
	if err := nt.Connect(ctx, n1, sr, spec); err != nil {
		t.Fatalf("spike source to spike recorder must connect: %v", err)
	}
	if nt.Conns[n1.ID()][0].NConns() != 1 {
		t.Errorf("connection not recorded")
	}
}
