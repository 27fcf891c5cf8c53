// Copyright (c) 2024, The Pulse Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pulse

import (
	"fmt"

	"github.com/pulsenet/pulse/growth"
	"github.com/pulsenet/pulse/stime"
)

// Node is the contract every simulated element (neuron, device, pool
// row proxy) satisfies.  Update advances the node across one slice of
// the time grid; the scheduler calls it exactly once per node per
// slice with 0 <= from < to, and all mutation of the node's archiving
// state happens inside that call or inside synchronous sends from
// connections targeting it (single writer per node).
type Node interface {
	Handler

	// Name returns the node's name (params Styler).
	Name() string

	// Class returns the node's class tags (params Styler).
	Class() string

	// TypeName returns the type category for params selection.
	TypeName() string

	// ID returns the node's network id.
	ID() NodeID

	// SetID sets the network id; called by the network on Add.
	SetID(id NodeID)

	// Update advances the node through steps [from, to) of the slice
	// starting at origin.
	Update(ctx *Context, origin stime.Time, from, to int64)

	// Calibrate re-derives any step-denominated state after a
	// resolution change, before the next Update.
	Calibrate(ctx *Context)

	// InitBuffers allocates / clears the node's delivery buffers.
	InitBuffers(ctx *Context)

	// HandlesTestEvent checks whether this node accepts the given
	// event type on the given receptor port, returning
	// ErrUnknownReceptor / ErrIncompatibleReceptor to abort the
	// connection attempt.  Called only at connection setup.
	HandlesTestEvent(ev Event, receptor int32) error

	// SendTestEvent constructs a throwaway instance of the event type
	// this node emits and asks the target whether it handles it.
	SendTestEvent(ctx *Context, tgt Node, receptor int32) error
}

// SpikeHistory is the archiving capability consulted by STDP synapses;
// both SpikeArchive-backed nodes and PoolNode proxies provide it.
type SpikeHistory interface {
	RegisterSTDPConnection(ctx *Context, tFirstRead, delayMs float64)
	KValue(ctx *Context, t float64) float32
	KValues(ctx *Context, t float64) (kminus, ktriplet float32)
	Spikes(ctx *Context, t1, t2 float64) []SpikeEntry
}

// ClopathHistory is the archiving capability for Clopath synapses.
type ClopathHistory interface {
	RegisterClopathConnection(ctx *Context, tFirstRead, delayMs float64)
	LTPHistory(ctx *Context, t1, t2 float64) []ClopathEntry
	LTDValue(ctx *Context, t float64) float32
}

// UrbanczikHistory is the archiving capability for Urbanczik-Senn
// synapses, per dendritic compartment.
type UrbanczikHistory interface {
	RegisterUrbanczikConnection(ctx *Context, comp int, tFirstRead, delayMs float64)
	UrbanczikHistoryRange(ctx *Context, comp int, t1, t2 float64) []UrbanczikEntry
}

// EpropHistory is the archiving capability for e-prop synapses.
type EpropHistory interface {
	RegisterEpropConnection(ctx *Context, delaySteps int64)
	GradientHistory(ctx *Context, t1, t2 float64) []EpropEntry
}

// SendFunc forwards an event emitted by a node to its outgoing
// connector; wired by the network at build time.
type SendFunc func(ctx *Context, ev Event)

// NodeBase provides the identity plumbing and the contract-violation
// defaults for the Handler methods: an unsupported event type reaching
// a node is a misconstructed connection, which the connect-time
// handshake exists to prevent, so it is fatal rather than recoverable.
type NodeBase struct {

	// name of the node, for lookup and params styling.
	Nm string

	// class tags for params styling.
	Cls string

	// network id; set by the network on Add.
	Id NodeID

	// targeted event route back into the network (receiver-id
	// addressed, used for logging replies); wired by the network on
	// Add.
	Route SendFunc `display:"-" json:"-" xml:"-"`
}

// SetRoute wires the targeted event route; called by the network.
func (nb *NodeBase) SetRoute(sf SendFunc) { nb.Route = sf }

func (nb *NodeBase) Name() string     { return nb.Nm }
func (nb *NodeBase) Class() string    { return nb.Cls }
func (nb *NodeBase) TypeName() string { return "Node" }
func (nb *NodeBase) ID() NodeID       { return nb.Id }
func (nb *NodeBase) SetID(id NodeID)  { nb.Id = id }

func (nb *NodeBase) Calibrate(ctx *Context)   {}
func (nb *NodeBase) InitBuffers(ctx *Context) {}

func (nb *NodeBase) HandleSpike(ctx *Context, ev *SpikeEvent) {
	panic(fmt.Sprintf("node %v: cannot handle SpikeEvent", nb.Nm))
}

func (nb *NodeBase) HandleCurrent(ctx *Context, ev *CurrentEvent) {
	panic(fmt.Sprintf("node %v: cannot handle CurrentEvent", nb.Nm))
}

func (nb *NodeBase) HandleRate(ctx *Context, ev *RateEvent) {
	panic(fmt.Sprintf("node %v: cannot handle RateEvent", nb.Nm))
}

func (nb *NodeBase) HandleDataLoggingRequest(ctx *Context, ev *DataLoggingRequest) {
	panic(fmt.Sprintf("node %v: cannot handle DataLoggingRequest", nb.Nm))
}

func (nb *NodeBase) HandleDataLoggingReply(ctx *Context, ev *DataLoggingReply) {
	panic(fmt.Sprintf("node %v: cannot handle DataLoggingReply", nb.Nm))
}

func (nb *NodeBase) HandleGapJunction(ctx *Context, ev *GapJunctionEvent) {
	panic(fmt.Sprintf("node %v: cannot handle GapJunctionEvent", nb.Nm))
}

func (nb *NodeBase) HandleLearningSignal(ctx *Context, ev *LearningSignalEvent) {
	panic(fmt.Sprintf("node %v: cannot handle LearningSignalEvent", nb.Nm))
}

// HandlesTestEvent default: a bare node accepts nothing.
func (nb *NodeBase) HandlesTestEvent(ev Event, receptor int32) error {
	return fmt.Errorf("node %v: %w", nb.Nm, ErrIncompatibleReceptor)
}

// SendTestEvent default: a bare node emits nothing.
func (nb *NodeBase) SendTestEvent(ctx *Context, tgt Node, receptor int32) error {
	return fmt.Errorf("node %v emits no events: %w", nb.Nm, ErrIllegalConnection)
}

// SpikingNode is the embeddable base for spike-emitting nodes: it
// bundles the per-object spike archive, the input delivery buffers,
// the calcium trace and structural-plasticity elements, and the
// outgoing send hook.
type SpikingNode struct {
	NodeBase

	// spike / trace archiving state for this node.
	Archive SpikeArchive `display:"add-fields"`

	// calcium trace parameters for structural plasticity.
	CaPars growth.CaParams `display:"inline"`

	// calcium trace, decayed to LastCaMs.
	Ca float32 `inactive:"+"`

	// time of last calcium update in ms.
	LastCaMs float64 `inactive:"+"`

	// time in ms up to which the elements have been integrated.
	LastElemsMs float64 `inactive:"+"`

	// structural-plasticity contact-point counters by element type
	// (e.g., "Axon", "Dendrite").
	Elems map[string]*growth.Element

	// incoming spikes, weighted, by delivery step.
	SpikeBuf RingBuffer `display:"-"`

	// incoming currents by delivery step.
	CurrentBuf RingBuffer `display:"-"`

	// outgoing event hook, wired by the network.
	Send SendFunc `display:"-" json:"-" xml:"-"`
}

func (sn *SpikingNode) Defaults() {
	sn.Archive.Defaults()
	sn.CaPars.Defaults()
	sn.Ca = 0
	sn.LastCaMs = 0
	sn.LastElemsMs = 0
}

func (sn *SpikingNode) TypeName() string { return "Neuron" }

// SetSendFunc wires the outgoing event hook; called by the network
// when the node's first connector is created.
func (sn *SpikingNode) SetSendFunc(sf SendFunc) { sn.Send = sf }

func (sn *SpikingNode) InitBuffers(ctx *Context) {
	sn.SpikeBuf.Init(ctx)
	sn.CurrentBuf.Init(ctx)
}

// HandleSpike enqueues the weighted spike for delivery at the event's
// due step; never allocates.
func (sn *SpikingNode) HandleSpike(ctx *Context, ev *SpikeEvent) {
	sn.SpikeBuf.AddValue(ctx, ev.DueSteps(ctx), ev.Weight()*float32(ev.Multiplicity))
}

// HandleCurrent enqueues the injected current.
func (sn *SpikingNode) HandleCurrent(ctx *Context, ev *CurrentEvent) {
	sn.CurrentBuf.AddValue(ctx, ev.DueSteps(ctx), ev.Weight()*ev.Current)
}

// HandlesTestEvent accepts spike and current events on receptor 0.
func (sn *SpikingNode) HandlesTestEvent(ev Event, receptor int32) error {
	switch ev.(type) {
	case *SpikeEvent, *CurrentEvent:
		if receptor != 0 {
			return fmt.Errorf("node %v, receptor %d: %w", sn.Nm, receptor, ErrUnknownReceptor)
		}
		return nil
	}
	return fmt.Errorf("node %v: %w", sn.Nm, ErrIncompatibleReceptor)
}

// SendTestEvent: spiking nodes emit SpikeEvents.
func (sn *SpikingNode) SendTestEvent(ctx *Context, tgt Node, receptor int32) error {
	ev := NewSpikeEvent()
	ev.SetSender(sn.Id)
	return tgt.HandlesTestEvent(ev, receptor)
}

// SpikeOccurred archives a spike at tMs, bumps the calcium trace, and
// emits a SpikeEvent through the node's connector.  Called by concrete
// models from inside their own Update.
func (sn *SpikingNode) SpikeOccurred(ctx *Context, tMs float64) {
	sn.Archive.SpikeTime(ctx, tMs, 0)
	sn.UpdateElements(tMs)
	sn.Ca = sn.CaPars.OnSpike(sn.Ca, sn.LastCaMs, tMs)
	sn.LastCaMs = tMs
	if sn.Send != nil {
		ev := NewSpikeEvent()
		ev.SetSender(sn.Id)
		ev.SetStamp(stime.FromMsStamp(tMs))
		ev.SetOffset(tMs - stime.FromMsStamp(tMs).Ms())
		sn.Send(ctx, ev)
	}
}

// CaValue returns the calcium trace decayed to time t.
func (sn *SpikingNode) CaValue(t float64) float32 {
	return sn.CaPars.Decay(sn.Ca, sn.LastCaMs, t)
}

// UpdateElements integrates all structural-plasticity element counters
// from the last integrated time to t using the node's calcium trace.
// Called on every spike (before the calcium bump, so each integration
// segment sees one continuous decay) and at growth-update times;
// repeated calls at the same t are no-ops, never double-counted.
func (sn *SpikingNode) UpdateElements(t float64) {
	if t <= sn.LastElemsMs {
		return
	}
	ca := sn.CaPars.Decay(sn.Ca, sn.LastCaMs, sn.LastElemsMs)
	for _, el := range sn.Elems {
		el.Update(t, sn.LastElemsMs, ca, &sn.CaPars)
	}
	sn.LastElemsMs = t
}

// AddElement registers a structural-plasticity element type.
func (sn *SpikingNode) AddElement(name string, el *growth.Element) {
	if sn.Elems == nil {
		sn.Elems = make(map[string]*growth.Element)
	}
	sn.Elems[name] = el
}

// Status returns the node-level status dictionary, merging archive and
// calcium keys.
func (sn *SpikingNode) Status() map[string]any {
	st := sn.Archive.Status()
	st["Ca"] = sn.Ca
	st["tau_Ca"] = sn.CaPars.TauCa
	st["beta_Ca"] = sn.CaPars.BetaCa
	if len(sn.Elems) > 0 {
		se := make(map[string]float32, len(sn.Elems))
		for nm, el := range sn.Elems {
			se[nm] = el.Z
		}
		st["synaptic_elements"] = se
	}
	return st
}

// SetStatus applies node-level status; archive keys are staged and
// validated by the archive itself.
func (sn *SpikingNode) SetStatus(st map[string]any) error {
	cp := sn.CaPars
	if v, ok := st["tau_Ca"]; ok {
		f, err := toFloat32(v, "tau_Ca")
		if err != nil {
			return err
		}
		cp.TauCa = f
	}
	if v, ok := st["beta_Ca"]; ok {
		f, err := toFloat32(v, "beta_Ca")
		if err != nil {
			return err
		}
		cp.BetaCa = f
	}
	if err := cp.Validate(); err != nil {
		return err
	}
	if err := sn.Archive.SetStatus(st); err != nil {
		return err
	}
	cp.Update()
	sn.CaPars = cp
	return nil
}

// Archive capability forwarding (SpikeHistory interface).

func (sn *SpikingNode) RegisterSTDPConnection(ctx *Context, tFirstRead, delayMs float64) {
	sn.Archive.RegisterSTDPConnection(ctx, tFirstRead, delayMs)
}

func (sn *SpikingNode) KValue(ctx *Context, t float64) float32 {
	return sn.Archive.KValue(ctx, t)
}

func (sn *SpikingNode) KValues(ctx *Context, t float64) (kminus, ktriplet float32) {
	return sn.Archive.KValues(ctx, t)
}

func (sn *SpikingNode) Spikes(ctx *Context, t1, t2 float64) []SpikeEntry {
	return sn.Archive.Spikes(ctx, t1, t2)
}
