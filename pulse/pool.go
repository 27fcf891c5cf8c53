// Copyright (c) 2024, The Pulse Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pulse

import (
	"fmt"

	"cogentcore.org/core/tensor"

	"github.com/pulsenet/pulse/stime"
)

// VectorizedPool is the struct-of-arrays realization of a population
// of one model type: archive traces, histories, and membrane state
// live in parallel slices indexed by row, and the shared archive*
// functions run over them, so pool rows and per-object SpikeArchive
// nodes are behaviorally identical by construction.
type VectorizedPool struct {

	// pool name.
	Nm string

	// geometry of the population.
	Shape tensor.Shape

	// archiving parameters, shared by all rows.
	Params ArchiveParams `display:"inline"`

	// membrane parameters, shared by all rows.
	Lif LifParams `display:"add-fields"`

	// running pair traces by row.
	Kminus []float32 `display:"-"`

	// running triplet traces by row.
	KminusTriplet []float32 `display:"-"`

	// last archived spike time in ms by row; -1 before any spike.
	LastSpikeMs []float64 `display:"-"`

	// spike histories by row.
	Hists []History[SpikeEntry] `display:"-"`

	// membrane potentials by row.
	Vm []float32 `display:"-"`

	// remaining refractory steps by row.
	RefracLeft []int64 `display:"-"`

	// input spike buffers by row.
	SpikeBufs []RingBuffer `display:"-"`

	// input current buffers by row.
	CurrentBufs []RingBuffer `display:"-"`

	// outgoing event hooks by row, wired by the network.
	Sends []SendFunc `display:"-" json:"-" xml:"-"`

	// row proxy nodes, created on demand.
	nodes []*PoolNode
}

// NewVectorizedPool creates a pool with the given geometry (e.g.,
// []int{10} or []int{4, 5}) and default parameters.
func NewVectorizedPool(name string, shape []int) *VectorizedPool {
	vp := &VectorizedPool{Nm: name}
	vp.Shape.SetShape(shape)
	vp.Params.Defaults()
	vp.Lif.Defaults()
	vp.Resize(vp.Shape.Len())
	return vp
}

// NRows returns the number of rows.
func (vp *VectorizedPool) NRows() int { return len(vp.Kminus) }

// Resize grows or shrinks all parallel slices to n rows, preserving
// existing row state.  Stop-the-world: must only be called between
// slices, never while any row's Update is running.
func (vp *VectorizedPool) Resize(n int) {
	grow := func(old int) {
		for i := old; i < n; i++ {
			vp.Kminus = append(vp.Kminus, 0)
			vp.KminusTriplet = append(vp.KminusTriplet, 0)
			vp.LastSpikeMs = append(vp.LastSpikeMs, -1)
			vp.Hists = append(vp.Hists, History[SpikeEntry]{})
			vp.Vm = append(vp.Vm, vp.Lif.VRest)
			vp.RefracLeft = append(vp.RefracLeft, 0)
			vp.SpikeBufs = append(vp.SpikeBufs, RingBuffer{})
			vp.CurrentBufs = append(vp.CurrentBufs, RingBuffer{})
			vp.Sends = append(vp.Sends, nil)
			vp.nodes = append(vp.nodes, nil)
		}
	}
	old := vp.NRows()
	if n >= old {
		grow(old)
		return
	}
	vp.Kminus = vp.Kminus[:n]
	vp.KminusTriplet = vp.KminusTriplet[:n]
	vp.LastSpikeMs = vp.LastSpikeMs[:n]
	vp.Hists = vp.Hists[:n]
	vp.Vm = vp.Vm[:n]
	vp.RefracLeft = vp.RefracLeft[:n]
	vp.SpikeBufs = vp.SpikeBufs[:n]
	vp.CurrentBufs = vp.CurrentBufs[:n]
	vp.Sends = vp.Sends[:n]
	vp.nodes = vp.nodes[:n]
}

// InitState resets the dynamic state of all rows.
func (vp *VectorizedPool) InitState() {
	for i := range vp.Kminus {
		vp.Kminus[i] = 0
		vp.KminusTriplet[i] = 0
		vp.LastSpikeMs[i] = -1
		vp.Hists[i].Clear()
		vp.Vm[i] = vp.Lif.VRest
		vp.RefracLeft[i] = 0
	}
}

// InitBuffers allocates / clears the delivery buffers of all rows.
func (vp *VectorizedPool) InitBuffers(ctx *Context) {
	for i := range vp.SpikeBufs {
		vp.SpikeBufs[i].Init(ctx)
		vp.CurrentBufs[i].Init(ctx)
	}
}

// Calibrate re-derives step-denominated parameters.
func (vp *VectorizedPool) Calibrate(ctx *Context) {
	vp.Lif.Update()
	vp.Params.Update()
}

// SpikeTime archives a spike for row i; same semantics as
// SpikeArchive.SpikeTime.
func (vp *VectorizedPool) SpikeTime(ctx *Context, i int, t, offset float64) {
	archiveSpikeTime(&vp.Params, &vp.Hists[i], &vp.Kminus[i], &vp.KminusTriplet[i], &vp.LastSpikeMs[i], ctx, t, offset)
}

// KValue returns the pair trace of row i at time t.
func (vp *VectorizedPool) KValue(ctx *Context, i int, t float64) float32 {
	return archiveKValue(&vp.Params, &vp.Hists[i], ctx, t)
}

// KValues returns both traces of row i at time t.
func (vp *VectorizedPool) KValues(ctx *Context, i int, t float64) (kminus, ktriplet float32) {
	return archiveKValues(&vp.Params, &vp.Hists[i], ctx, t)
}

// Spikes returns row i's archived entries in (t1, t2], consuming.
func (vp *VectorizedPool) Spikes(ctx *Context, i int, t1, t2 float64) []SpikeEntry {
	lo, hi := vp.Hists[i].Range(t1, t2, ctx.StdpEps)
	return vp.Hists[i].View(lo, hi)
}

// RegisterSTDPConnection registers a reader on row i's history.
func (vp *VectorizedPool) RegisterSTDPConnection(ctx *Context, i int, tFirstRead, delayMs float64) {
	vp.Hists[i].RegisterReader(tFirstRead, delayMs, ctx.StdpEps)
}

// Update advances all rows through steps [from, to); the whole pool is
// one scheduling unit.
func (vp *VectorizedPool) Update(ctx *Context, origin stime.Time, from, to int64) {
	for i := range vp.Vm {
		vp.updateRow(ctx, i, origin, from, to)
	}
}

func (vp *VectorizedPool) updateRow(ctx *Context, i int, origin stime.Time, from, to int64) {
	for lag := from; lag < to; lag++ {
		in := vp.SpikeBufs[i].Value(ctx, lag)
		cur := vp.CurrentBufs[i].Value(ctx, lag)
		if vp.RefracLeft[i] > 0 {
			vp.RefracLeft[i]--
			vp.Vm[i] = vp.Lif.VReset
			continue
		}
		vm := vp.Lif.VRest + (vp.Vm[i]-vp.Lif.VRest)*vp.Lif.P22 + in + vp.Lif.R*cur*(1-vp.Lif.P22)
		vm = vp.Lif.VmRange.ClipValue(vm)
		if vm >= vp.Lif.VThr {
			vp.Vm[i] = vp.Lif.VReset
			vp.RefracLeft[i] = vp.Lif.RefracSteps
			t := ctx.StepMs(origin, lag)
			vp.SpikeTime(ctx, i, t, 0)
			if sf := vp.Sends[i]; sf != nil {
				ev := NewSpikeEvent()
				if vp.nodes[i] != nil {
					ev.SetSender(vp.nodes[i].ID())
				}
				ev.SetStamp(stime.FromMsStamp(t))
				ev.SetOffset(t - stime.FromMsStamp(t).Ms())
				sf(ctx, ev)
			}
		} else {
			vp.Vm[i] = vm
		}
	}
}

// Node returns the proxy node for row i, creating it on first use.
func (vp *VectorizedPool) Node(i int) *PoolNode {
	if i < 0 || i >= vp.NRows() {
		panic(fmt.Sprintf("pulse.VectorizedPool %v: row %d out of range [0, %d)", vp.Nm, i, vp.NRows()))
	}
	if vp.nodes[i] == nil {
		pn := &PoolNode{Pool: vp, Index: i}
		pn.Nm = fmt.Sprintf("%s[%d]", vp.Nm, i)
		pn.Id = NoNode
		vp.nodes[i] = pn
	}
	return vp.nodes[i]
}

// PoolNode is a thin proxy presenting one pool row through the Node
// and SpikeHistory contracts; it holds no state of its own beyond
// identity.
type PoolNode struct {
	NodeBase

	// backing pool.
	Pool *VectorizedPool `display:"-"`

	// row index within the pool.
	Index int
}

func (pn *PoolNode) TypeName() string { return "Neuron" }

func (pn *PoolNode) InitBuffers(ctx *Context) {
	pn.Pool.SpikeBufs[pn.Index].Init(ctx)
	pn.Pool.CurrentBufs[pn.Index].Init(ctx)
}

func (pn *PoolNode) Calibrate(ctx *Context) {
	pn.Pool.Calibrate(ctx)
}

// Update advances just this row; used when rows are scheduled as
// individual nodes rather than through the pool.
func (pn *PoolNode) Update(ctx *Context, origin stime.Time, from, to int64) {
	pn.Pool.updateRow(ctx, pn.Index, origin, from, to)
}

// SetSendFunc wires the outgoing event hook for this row.
func (pn *PoolNode) SetSendFunc(sf SendFunc) { pn.Pool.Sends[pn.Index] = sf }

func (pn *PoolNode) HandleSpike(ctx *Context, ev *SpikeEvent) {
	pn.Pool.SpikeBufs[pn.Index].AddValue(ctx, ev.DueSteps(ctx), ev.Weight()*float32(ev.Multiplicity))
}

func (pn *PoolNode) HandleCurrent(ctx *Context, ev *CurrentEvent) {
	pn.Pool.CurrentBufs[pn.Index].AddValue(ctx, ev.DueSteps(ctx), ev.Weight()*ev.Current)
}

func (pn *PoolNode) HandlesTestEvent(ev Event, receptor int32) error {
	switch ev.(type) {
	case *SpikeEvent, *CurrentEvent:
		if receptor != 0 {
			return fmt.Errorf("node %v, receptor %d: %w", pn.Nm, receptor, ErrUnknownReceptor)
		}
		return nil
	}
	return fmt.Errorf("node %v: %w", pn.Nm, ErrIncompatibleReceptor)
}

func (pn *PoolNode) SendTestEvent(ctx *Context, tgt Node, receptor int32) error {
	ev := NewSpikeEvent()
	ev.SetSender(pn.Id)
	return tgt.HandlesTestEvent(ev, receptor)
}

// SpikeHistory capability, indexing the pool row.

func (pn *PoolNode) RegisterSTDPConnection(ctx *Context, tFirstRead, delayMs float64) {
	pn.Pool.RegisterSTDPConnection(ctx, pn.Index, tFirstRead, delayMs)
}

func (pn *PoolNode) KValue(ctx *Context, t float64) float32 {
	return pn.Pool.KValue(ctx, pn.Index, t)
}

func (pn *PoolNode) KValues(ctx *Context, t float64) (kminus, ktriplet float32) {
	return pn.Pool.KValues(ctx, pn.Index, t)
}

func (pn *PoolNode) Spikes(ctx *Context, t1, t2 float64) []SpikeEntry {
	return pn.Pool.Spikes(ctx, pn.Index, t1, t2)
}

// SpikeTime archives a spike for this row directly; the pool's Update
// normally does this, but external drivers (tests, replay) use it.
func (pn *PoolNode) SpikeTime(ctx *Context, t, offset float64) {
	pn.Pool.SpikeTime(ctx, pn.Index, t, offset)
}
