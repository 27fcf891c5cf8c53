// Copyright (c) 2024, The Pulse Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pulse

import (
	"bytes"
	"strings"
	"testing"

	"github.com/emer/emergent/v2/params"
	"github.com/emer/emergent/v2/paths"

	"github.com/pulsenet/pulse/stime"
)

var NetParamSets = params.Sets{
	"Base": {
		{Sel: "Neuron", Desc: "slow membrane for the scheduler tests",
			Params: params.Params{
				"Neuron.Lif.Tau": "25",
			}},
	},
}

func TestNetworkDelivery(t *testing.T) {
	ctx := newTestCtx()
	nt := NewNetwork("net")
	n1 := NewLifNeuron("n1")
	n2 := NewLifNeuron("n2")
	nt.AddNode(n1)
	nt.AddNode(n2)
	spec := testSpec(Static, 15)
	if err := nt.Connect(ctx, n1, n2, spec); err != nil {
		t.Fatal(err)
	}
	nt.Init(ctx)

	// a source spike in the first slice lands in the target's buffer
	// one delay later
	origin := stime.FromSteps(ctx.Step)
	n1.SpikeOccurred(ctx, ctx.StepMs(origin, 0))

	nt.Run(ctx, 1) // one min-delay slice
	if v := n2.SpikeBuf.Value(ctx, 0); v != 15 {
		t.Errorf("delivered weight %v, expected 15", v)
	}
}

func TestNetworkSTDPRegistersReader(t *testing.T) {
	ctx := newTestCtx()
	nt := NewNetwork("net")
	n1 := NewLifNeuron("n1")
	n2 := NewLifNeuron("n2")
	nt.AddNode(n1)
	nt.AddNode(n2)
	if err := nt.Connect(ctx, n1, n2, testSpec(STDP, 10)); err != nil {
		t.Fatal(err)
	}
	if n2.Archive.Hist.NReaders != 1 {
		t.Errorf("STDP connect must register a reader, got %d", n2.Archive.Hist.NReaders)
	}
	if n2.Archive.Hist.MaxDelayMs != 1 {
		t.Errorf("reader delay not recorded: %v", n2.Archive.Hist.MaxDelayMs)
	}
}

func TestNetworkRunAdvancesTime(t *testing.T) {
	ctx := newTestCtx()
	nt := NewNetwork("net")
	nt.AddNode(NewLifNeuron("n1"))
	nt.Init(ctx)
	nt.Run(ctx, 5)
	if ctx.TimeMs != 5 {
		t.Errorf("time after Run(5) = %v", ctx.TimeMs)
	}
	if ctx.Step != 50 {
		t.Errorf("steps after Run(5) = %v", ctx.Step)
	}
	if ctx.Slice != 5 {
		t.Errorf("slices after Run(5) = %v", ctx.Slice)
	}
}

func TestNetworkPoissonToRecorder(t *testing.T) {
	ctx := newTestCtx()
	nt := NewNetwork("net")
	// per-step emission probability 1: deterministic
	pg := NewPoissonGenerator("gen", 10000)
	sr := NewSpikeRecorder("rec")
	nt.AddNode(pg)
	nt.AddNode(sr)
	if err := pg.SendTestEvent(ctx, sr, 0); err != nil {
		t.Fatal(err)
	}
	pg.AddTarget(sr, 0, 10, 1)
	nt.Init(ctx)
	nt.Run(ctx, 1)
	if len(sr.Times) != 10 {
		t.Errorf("expected 10 direct-sent spikes in 1 ms, got %d", len(sr.Times))
	}
}

func TestNetworkEventHook(t *testing.T) {
	ctx := newTestCtx()
	pg := NewPoissonGenerator("gen", 10000)
	sr := NewSpikeRecorder("rec")
	sr.SetID(1)
	hooked := 0
	pg.Hook = func(ctx *Context, ev *SpikeEvent, tgt Node) {
		hooked++
		ev.Deliver(ctx, tgt)
	}
	pg.AddTarget(sr, 0, 10, 1)
	pg.Update(ctx, stime.FromSteps(0), 0, 10)
	if hooked != 10 {
		t.Errorf("event hook called %d times, expected 10", hooked)
	}
	if len(sr.Times) != 10 {
		t.Errorf("hook delivery recorded %d spikes, expected 10", len(sr.Times))
	}
}

func TestNetworkMultimeter(t *testing.T) {
	ctx := newTestCtx()
	nt := NewNetwork("net")
	ln := NewLifNeuron("n1")
	mm := NewMultimeter("mm", "Vm", "Kminus")
	nt.AddNode(ln)
	nt.AddNode(mm)
	if err := mm.SendTestEvent(ctx, ln, 0); err != nil {
		t.Fatal(err)
	}
	mm.Targets = append(mm.Targets, ln.ID())
	nt.Init(ctx)
	nt.Run(ctx, 1)
	if len(mm.Rows) != 1 {
		t.Fatalf("expected 1 sample row per interval, got %d", len(mm.Rows))
	}
	CmprFloats(mm.Rows[0], []float32{ln.Lif.VRest, 0}, "multimeter sample", t)
	smp := mm.Samples()
	if smp.DimSize(0) != 1 || smp.DimSize(1) != 2 {
		t.Errorf("samples tensor shape %v x %v", smp.DimSize(0), smp.DimSize(1))
	}
}

func TestNetworkConnectPools(t *testing.T) {
	ctx := newTestCtx()
	nt := NewNetwork("net")
	sp := NewVectorizedPool("send", []int{2})
	rp := NewVectorizedPool("recv", []int{3})
	nt.AddPool(sp)
	nt.AddPool(rp)
	made, err := nt.ConnectPools(ctx, sp, rp, paths.NewFull(), testSpec(Static, 1))
	if err != nil {
		t.Fatal(err)
	}
	if made != 6 {
		t.Errorf("full pattern 2x3 must make 6 connections, got %d", made)
	}
	total := 0
	for _, cns := range nt.Conns {
		for _, cn := range cns {
			total += cn.NConns()
		}
	}
	if total != 6 {
		t.Errorf("connectors hold %d connections, expected 6", total)
	}
}

func TestNetworkCalibrate(t *testing.T) {
	ctx := newTestCtx()
	defer stime.ResetResolution()
	nt := NewNetwork("net")
	n1 := NewLifNeuron("n1")
	n2 := NewLifNeuron("n2")
	nt.AddNode(n1)
	nt.AddNode(n2)
	if err := nt.Connect(ctx, n1, n2, testSpec(Static, 1)); err != nil {
		t.Fatal(err)
	}
	nt.Init(ctx)
	nt.Run(ctx, 2)

	stime.SetResolution(0.05)
	nt.Calibrate(ctx)
	if ctx.TimeMs != 2 {
		t.Errorf("ms time must survive recalibration: %v", ctx.TimeMs)
	}
	if ctx.Step != 40 {
		t.Errorf("steps re-derived at 0.05 ms/step: %d, expected 40", ctx.Step)
	}
	c := &nt.Conns[n1.ID()][0].Cons[0]
	if c.DelaySteps != 20 {
		t.Errorf("delay steps after recalibration: %d, expected 20", c.DelaySteps)
	}
}

func TestNetworkApplyParams(t *testing.T) {
	ctx := newTestCtx()
	nt := NewNetwork("net")
	ln := NewLifNeuron("n1")
	nt.AddNode(ln)
	app, err := nt.ApplyParams(ctx, NetParamSets["Base"], false)
	if err != nil {
		t.Fatal(err)
	}
	if !app {
		t.Fatal("params were not applied")
	}
	if ln.Lif.Tau != 25 {
		t.Errorf("Tau after params: %v, expected 25", ln.Lif.Tau)
	}
}

func TestNetworkWriteWeightsJSON(t *testing.T) {
	ctx := newTestCtx()
	nt := NewNetwork("net")
	n1 := NewLifNeuron("n1")
	n2 := NewLifNeuron("n2")
	nt.AddNode(n1)
	nt.AddNode(n2)
	if err := nt.Connect(ctx, n1, n2, testSpec(Static, 3)); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := nt.WriteWeightsJSON(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, frag := range []string{"\"Network\": \"net\"", "\"Conns\"", "\"Ri\": 1"} {
		if !strings.Contains(out, frag) {
			t.Errorf("network weights JSON missing %v:\n%v", frag, out)
		}
	}
}
