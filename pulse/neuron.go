// Copyright (c) 2024, The Pulse Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pulse

import (
	"fmt"

	"cogentcore.org/core/math32"
	"cogentcore.org/core/math32/minmax"
	"cogentcore.org/core/tensor"

	"github.com/pulsenet/pulse/stime"
)

// LifParams are the leaky integrate-and-fire membrane parameters.
// Biophysics is deliberately minimal: the neuron exists to drive the
// archiving and delivery machinery, not to model channels.
type LifParams struct {

	// membrane time constant in ms.
	Tau float32 `min:"0.001" def:"10"`

	// input resistance scaling injected currents.
	R float32 `def:"1"`

	// resting potential in mV.
	VRest float32 `def:"-70"`

	// reset potential after a spike in mV.
	VReset float32 `def:"-70"`

	// spike threshold in mV.
	VThr float32 `def:"-55"`

	// absolute refractory period in ms.
	RefracMs float32 `min:"0" def:"2"`

	// range to clamp Vm within
	VmRange minmax.F32 `display:"inline"`

	// membrane decay per step = exp(-step/tau); step-denominated,
	// re-derived in Calibrate.
	P22 float32 `inactive:"+" display:"-" json:"-" xml:"-"`

	// refractory period in steps; re-derived in Calibrate.
	RefracSteps int64 `inactive:"+" display:"-" json:"-" xml:"-"`
}

func (lp *LifParams) Defaults() {
	lp.Tau = 10
	lp.R = 1
	lp.VRest = -70
	lp.VReset = -70
	lp.VThr = -55
	lp.RefracMs = 2
	lp.VmRange.Set(-90, 20)
	lp.Update()
}

// Update must be called after any changes to parameters
func (lp *LifParams) Update() {
	h := stime.FromSteps(1).Ms()
	lp.P22 = math32.Exp(float32(-h) / lp.Tau)
	lp.RefracSteps = stime.StepsFromMs(float64(lp.RefracMs))
}

// LifNeuron is a leaky integrate-and-fire neuron over a SpikingNode
// base: weighted input spikes and currents arrive through the ring
// buffers, threshold crossings are archived and sent out.
type LifNeuron struct {
	SpikingNode

	// membrane parameters.
	Lif LifParams `display:"add-fields"`

	// membrane potential in mV.
	Vm float32 `inactive:"+"`

	// remaining refractory steps; 0 when excitable.
	RefracLeft int64 `inactive:"+"`
}

func NewLifNeuron(name string) *LifNeuron {
	ln := &LifNeuron{}
	ln.Nm = name
	ln.Id = NoNode
	ln.Defaults()
	return ln
}

func (ln *LifNeuron) Defaults() {
	ln.SpikingNode.Defaults()
	ln.Lif.Defaults()
	ln.InitState()
}

// InitState resets the dynamic membrane state.
func (ln *LifNeuron) InitState() {
	ln.Vm = ln.Lif.VRest
	ln.RefracLeft = 0
	ln.Archive.InitState()
}

func (ln *LifNeuron) Calibrate(ctx *Context) {
	ln.Lif.Update()
	ln.Archive.Params.Update()
}

// Update advances the membrane across steps [from, to) of the slice
// starting at origin, consuming the due ring-buffer slots and archiving
// any threshold crossings.
func (ln *LifNeuron) Update(ctx *Context, origin stime.Time, from, to int64) {
	for lag := from; lag < to; lag++ {
		in := ln.SpikeBuf.Value(ctx, lag)
		cur := ln.CurrentBuf.Value(ctx, lag)
		if ln.RefracLeft > 0 {
			ln.RefracLeft--
			ln.Vm = ln.Lif.VReset
			continue
		}
		ln.Vm = ln.Lif.VRest + (ln.Vm-ln.Lif.VRest)*ln.Lif.P22 + in + ln.Lif.R*cur*(1-ln.Lif.P22)
		ln.Vm = ln.Lif.VmRange.ClipValue(ln.Vm)
		if ln.Vm >= ln.Lif.VThr {
			ln.Vm = ln.Lif.VReset
			ln.RefracLeft = ln.Lif.RefracSteps
			ln.SpikeOccurred(ctx, ctx.StepMs(origin, lag))
		}
	}
}

// HandleDataLoggingRequest replies with the requested variable values,
// routed back to the requesting node.
func (ln *LifNeuron) HandleDataLoggingRequest(ctx *Context, ev *DataLoggingRequest) {
	if ln.Route == nil {
		return
	}
	rp := &DataLoggingReply{Values: make([]float32, len(ev.Vars))}
	for i, vn := range ev.Vars {
		v, err := ln.VarByName(vn)
		if err != nil {
			v = math32.NaN()
		}
		rp.Values[i] = v
	}
	rp.SetSender(ln.Id)
	rp.SetReceiver(ev.Sender())
	rp.SetStamp(ev.Stamp())
	ln.Route(ctx, rp)
}

func (ln *LifNeuron) HandlesTestEvent(ev Event, receptor int32) error {
	switch ev.(type) {
	case *DataLoggingRequest:
		if receptor != 0 {
			return fmt.Errorf("node %v, receptor %d: %w", ln.Nm, receptor, ErrUnknownReceptor)
		}
		return nil
	}
	return ln.SpikingNode.HandlesTestEvent(ev, receptor)
}

// NeuronVars are the variable names accessible on a LifNeuron.
var NeuronVars = []string{"Vm", "RefracLeft", "Kminus", "KminusTriplet", "Ca"}

var NeuronVarsMap map[string]int

func init() {
	NeuronVarsMap = make(map[string]int, len(NeuronVars))
	for i, v := range NeuronVars {
		NeuronVarsMap[v] = i
	}
}

// VarByName returns the variable with the given name, error if not found.
func (ln *LifNeuron) VarByName(varNm string) (float32, error) {
	switch varNm {
	case "Vm":
		return ln.Vm, nil
	case "RefracLeft":
		return float32(ln.RefracLeft), nil
	case "Kminus":
		return ln.Archive.Kminus, nil
	case "KminusTriplet":
		return ln.Archive.KminusTriplet, nil
	case "Ca":
		return ln.Ca, nil
	}
	return math32.NaN(), fmt.Errorf("neuron VarByName: variable name %v not valid", varNm)
}

//////////////////////////////////////////////////////////////////////
//  PoissonGenerator

// EventHook is the direct-sending indirection: the generator calls it
// once per target per emitted spike, after the per-target random draw,
// and the hook performs the final delivery.
type EventHook func(ctx *Context, ev *SpikeEvent, tgt Node)

// poissonTarget is one direct-sending edge of a generator.
type poissonTarget struct {
	Node       Node
	Receptor   int32
	DelaySteps int64
	Weight     float32
}

// PoissonGenerator emits Poisson spike trains by an independent
// per-target draw each step: a direct-sending device, bypassing the
// connector fan-out so each target sees its own realization.
type PoissonGenerator struct {
	NodeBase

	// mean firing rate in spikes per second.
	RateHz float32 `min:"0" def:"10"`

	// per-step emission probability; re-derived in Calibrate.
	PStep float64 `inactive:"+" display:"-" json:"-" xml:"-"`

	// delivery hook; defaults to direct Deliver into the target.
	Hook EventHook `display:"-" json:"-" xml:"-"`

	targets []poissonTarget
}

func NewPoissonGenerator(name string, rateHz float32) *PoissonGenerator {
	pg := &PoissonGenerator{RateHz: rateHz}
	pg.Nm = name
	pg.Id = NoNode
	pg.UpdateRate()
	return pg
}

func (pg *PoissonGenerator) TypeName() string { return "Generator" }

// UpdateRate must be called after any changes to RateHz or resolution.
func (pg *PoissonGenerator) UpdateRate() {
	pg.PStep = float64(pg.RateHz) * stime.FromSteps(1).Ms() / 1000
}

func (pg *PoissonGenerator) Calibrate(ctx *Context) {
	pg.UpdateRate()
}

// AddTarget registers a direct-sending edge; the handshake must have
// passed before this is called.
func (pg *PoissonGenerator) AddTarget(tgt Node, receptor int32, delaySteps int64, weight float32) {
	pg.targets = append(pg.targets, poissonTarget{Node: tgt, Receptor: receptor, DelaySteps: delaySteps, Weight: weight})
}

func (pg *PoissonGenerator) SendTestEvent(ctx *Context, tgt Node, receptor int32) error {
	ev := NewSpikeEvent()
	ev.SetSender(pg.Id)
	return tgt.HandlesTestEvent(ev, receptor)
}

// Update draws, for each step and each target independently, whether a
// spike is emitted, delivering through the event hook.
func (pg *PoissonGenerator) Update(ctx *Context, origin stime.Time, from, to int64) {
	if pg.PStep <= 0 || ctx.Rand == nil {
		return
	}
	for lag := from; lag < to; lag++ {
		for i := range pg.targets {
			tg := &pg.targets[i]
			if ctx.Rand.Float64() >= pg.PStep {
				continue
			}
			ev := NewSpikeEvent()
			ev.SetSender(pg.Id)
			ev.SetReceiver(tg.Node.ID())
			ev.SetReceptor(tg.Receptor)
			ev.SetDelay(tg.DelaySteps)
			ev.SetWeight(tg.Weight)
			ev.SetStamp(origin.AddSteps(lag + 1))
			if pg.Hook != nil {
				pg.Hook(ctx, ev, tg.Node)
			} else {
				ev.Deliver(ctx, tg.Node)
			}
		}
	}
}

//////////////////////////////////////////////////////////////////////
//  SpikeRecorder

// SpikeRecorder collects (sender, time) pairs for every spike event
// delivered to it.
type SpikeRecorder struct {
	NodeBase

	// sender ids of recorded spikes, in delivery order.
	Senders []NodeID

	// spike times in ms, parallel to Senders.
	Times []float64
}

func NewSpikeRecorder(name string) *SpikeRecorder {
	sr := &SpikeRecorder{}
	sr.Nm = name
	sr.Id = NoNode
	return sr
}

func (sr *SpikeRecorder) TypeName() string { return "Recorder" }

func (sr *SpikeRecorder) HandleSpike(ctx *Context, ev *SpikeEvent) {
	for m := int32(0); m < ev.Multiplicity; m++ {
		sr.Senders = append(sr.Senders, ev.Sender())
		sr.Times = append(sr.Times, ev.Stamp().Ms()+ev.Offset())
	}
}

func (sr *SpikeRecorder) HandlesTestEvent(ev Event, receptor int32) error {
	if _, ok := ev.(*SpikeEvent); ok {
		if receptor != 0 {
			return fmt.Errorf("node %v, receptor %d: %w", sr.Nm, receptor, ErrUnknownReceptor)
		}
		return nil
	}
	return fmt.Errorf("node %v: %w", sr.Nm, ErrIncompatibleReceptor)
}

func (sr *SpikeRecorder) Update(ctx *Context, origin stime.Time, from, to int64) {}

// Reset discards the recorded events.
func (sr *SpikeRecorder) Reset() {
	sr.Senders = sr.Senders[:0]
	sr.Times = sr.Times[:0]
}

// Events returns the recording as an n x 2 tensor of (sender, time ms)
// rows, for analysis and logging.
func (sr *SpikeRecorder) Events() *tensor.Float32 {
	n := len(sr.Senders)
	tsr := tensor.NewFloat32([]int{n, 2}, "Spike", "SenderTime")
	for i := 0; i < n; i++ {
		tsr.Set([]int{i, 0}, float32(sr.Senders[i]))
		tsr.Set([]int{i, 1}, float32(sr.Times[i]))
	}
	return tsr
}

//////////////////////////////////////////////////////////////////////
//  Multimeter

// Multimeter polls state variables from its targets once per recording
// interval by sending DataLoggingRequests and collecting the replies.
type Multimeter struct {
	NodeBase

	// variable names to record.
	Vars []string

	// recording interval in steps.
	IntervalSteps int64 `min:"1" def:"10"`

	// polled node ids.
	Targets []NodeID

	// collected samples: one row per reply, parallel to RowSenders
	// and RowTimes.
	Rows [][]float32

	// sender id per collected row.
	RowSenders []NodeID

	// sample time in ms per collected row.
	RowTimes []float64
}

func NewMultimeter(name string, vars ...string) *Multimeter {
	mm := &Multimeter{Vars: vars, IntervalSteps: 10}
	mm.Nm = name
	mm.Id = NoNode
	return mm
}

func (mm *Multimeter) TypeName() string { return "Recorder" }

func (mm *Multimeter) SendTestEvent(ctx *Context, tgt Node, receptor int32) error {
	ev := &DataLoggingRequest{Vars: mm.Vars}
	ev.SetSender(mm.Id)
	return tgt.HandlesTestEvent(ev, receptor)
}

func (mm *Multimeter) HandleDataLoggingReply(ctx *Context, ev *DataLoggingReply) {
	row := make([]float32, len(ev.Values))
	copy(row, ev.Values)
	mm.Rows = append(mm.Rows, row)
	mm.RowSenders = append(mm.RowSenders, ev.Sender())
	mm.RowTimes = append(mm.RowTimes, ev.Stamp().Ms())
}

func (mm *Multimeter) HandlesTestEvent(ev Event, receptor int32) error {
	if _, ok := ev.(*DataLoggingReply); ok {
		return nil
	}
	return fmt.Errorf("node %v: %w", mm.Nm, ErrIncompatibleReceptor)
}

// Update sends one DataLoggingRequest per target at each interval
// boundary within the slice.
func (mm *Multimeter) Update(ctx *Context, origin stime.Time, from, to int64) {
	if mm.Route == nil || len(mm.Targets) == 0 {
		return
	}
	for lag := from; lag < to; lag++ {
		step := origin.Steps() + lag
		if step%mm.IntervalSteps != 0 {
			continue
		}
		for _, tid := range mm.Targets {
			ev := &DataLoggingRequest{Vars: mm.Vars}
			ev.SetSender(mm.Id)
			ev.SetReceiver(tid)
			ev.SetStamp(origin.AddSteps(lag))
			mm.Route(ctx, ev)
		}
	}
}

// Samples returns the collected rows as an n x nvars tensor.
func (mm *Multimeter) Samples() *tensor.Float32 {
	n := len(mm.Rows)
	nv := len(mm.Vars)
	tsr := tensor.NewFloat32([]int{n, nv}, "Sample", "Var")
	for i, row := range mm.Rows {
		for j := 0; j < nv && j < len(row); j++ {
			tsr.Set([]int{i, j}, row[j])
		}
	}
	return tsr
}
