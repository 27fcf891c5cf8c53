// Copyright (c) 2024, The Pulse Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pulse

import (
	"errors"
	"fmt"

	"github.com/pulsenet/pulse/stime"
)

// NodeID identifies a node within a Network.
type NodeID int32

// NoNode is the invalid / unset node id.
const NoNode NodeID = -1

// Connection-compatibility errors, raised only during connection setup
// (the handshake), never during simulation.  They abort the single
// connection attempt being made, leaving all other connections
// unaffected.
var (
	ErrUnknownReceptor      = errors.New("unknown receptor type")
	ErrIncompatibleReceptor = errors.New("incompatible receptor / event combination")
	ErrIllegalConnection    = errors.New("illegal connection")
)

// Event is a typed message between nodes, carrying sender and receiver
// identity, receptor port, integer-step delay, weight, a grid
// timestamp, and a sub-step offset for precise-timing variants.
// Delivery is double-dispatched: Deliver calls the matching Handle*
// method on the handler.
type Event interface {
	Sender() NodeID
	SetSender(id NodeID)
	Receiver() NodeID
	SetReceiver(id NodeID)
	Receptor() int32
	SetReceptor(rt int32)
	Delay() int64
	SetDelay(steps int64)
	Weight() float32
	SetWeight(w float32)
	Stamp() stime.Time
	SetStamp(t stime.Time)
	Offset() float64
	SetOffset(off float64)

	// Deliver dispatches this event to the handler's typed Handle
	// method.  During simulation it must not allocate or fail in
	// normal operation.
	Deliver(ctx *Context, h Handler)
}

// Handler is the receiving side of event double dispatch.  A node
// implements the methods for the event types it accepts; NodeBase
// provides contract-violation defaults for the rest (an event of an
// unsupported type reaching a node means the connection was
// misconstructed upstream, which the handshake is there to prevent).
type Handler interface {
	HandleSpike(ctx *Context, ev *SpikeEvent)
	HandleCurrent(ctx *Context, ev *CurrentEvent)
	HandleRate(ctx *Context, ev *RateEvent)
	HandleDataLoggingRequest(ctx *Context, ev *DataLoggingRequest)
	HandleDataLoggingReply(ctx *Context, ev *DataLoggingReply)
	HandleGapJunction(ctx *Context, ev *GapJunctionEvent)
	HandleLearningSignal(ctx *Context, ev *LearningSignalEvent)
}

// EventBase holds the fields common to all event types.
type EventBase struct {
	Snd NodeID
	Rcv NodeID
	Rpt int32
	Del int64
	Wt  float32
	Stp stime.Time
	Off float64
}

func (eb *EventBase) Sender() NodeID          { return eb.Snd }
func (eb *EventBase) SetSender(id NodeID)     { eb.Snd = id }
func (eb *EventBase) Receiver() NodeID        { return eb.Rcv }
func (eb *EventBase) SetReceiver(id NodeID)   { eb.Rcv = id }
func (eb *EventBase) Receptor() int32         { return eb.Rpt }
func (eb *EventBase) SetReceptor(rt int32)    { eb.Rpt = rt }
func (eb *EventBase) Delay() int64            { return eb.Del }
func (eb *EventBase) Weight() float32         { return eb.Wt }
func (eb *EventBase) SetWeight(w float32)     { eb.Wt = w }
func (eb *EventBase) Stamp() stime.Time       { return eb.Stp }
func (eb *EventBase) SetStamp(t stime.Time)   { eb.Stp = t }
func (eb *EventBase) Offset() float64         { return eb.Off }
func (eb *EventBase) SetOffset(off float64)   { eb.Off = off }

// SetDelay sets the delay in steps; delay must be positive, anything
// else is a misconstructed connection.
func (eb *EventBase) SetDelay(steps int64) {
	if steps <= 0 {
		panic(fmt.Sprintf("pulse.Event: delay must be > 0 steps, got %d", steps))
	}
	eb.Del = steps
}

// DueMs returns the time in ms at which this event takes effect:
// stamp + delay + offset.
func (eb *EventBase) DueMs() float64 {
	return eb.Stp.AddSteps(eb.Del).Ms() + eb.Off
}

// DueSteps returns the event's delivery slot relative to the current
// step: the emission step (stamp marks the end of it) plus the delay.
// Events must carry their emission stamp before delivery.
func (eb *EventBase) DueSteps(ctx *Context) int64 {
	return eb.Stp.Steps() - 1 + eb.Del - ctx.Step
}

// SpikeEvent reports one or more spikes emitted by the sender at the
// stamp time; multiplicity encodes simultaneous spikes (e.g., state
// transitions), never duplicate archive entries.
type SpikeEvent struct {
	EventBase
	Multiplicity int32
}

func NewSpikeEvent() *SpikeEvent {
	return &SpikeEvent{Multiplicity: 1}
}

func (ev *SpikeEvent) Deliver(ctx *Context, h Handler) { h.HandleSpike(ctx, ev) }

// CurrentEvent carries an injected current in pA.
type CurrentEvent struct {
	EventBase
	Current float32
}

func (ev *CurrentEvent) Deliver(ctx *Context, h Handler) { h.HandleCurrent(ctx, ev) }

// RateEvent carries an instantaneous rate value for rate-based
// connections.
type RateEvent struct {
	EventBase
	Rate float32
}

func (ev *RateEvent) Deliver(ctx *Context, h Handler) { h.HandleRate(ctx, ev) }

// DataLoggingRequest asks the receiver to report the named state
// variables back to the sender once per recording interval.
type DataLoggingRequest struct {
	EventBase
	Vars []string
}

func (ev *DataLoggingRequest) Deliver(ctx *Context, h Handler) { h.HandleDataLoggingRequest(ctx, ev) }

// DataLoggingReply returns the requested variable values.
type DataLoggingReply struct {
	EventBase
	Values []float32
}

func (ev *DataLoggingReply) Deliver(ctx *Context, h Handler) { h.HandleDataLoggingReply(ctx, ev) }

// GapJunctionEvent carries a membrane-potential waveform segment for
// gap-junction coupling.
type GapJunctionEvent struct {
	EventBase
	Waveform []float32
}

func (ev *GapJunctionEvent) Deliver(ctx *Context, h Handler) { h.HandleGapJunction(ctx, ev) }

// LearningSignalEvent carries a readout error signal to e-prop
// recurrent neurons.
type LearningSignalEvent struct {
	EventBase
	Signal float32
}

func (ev *LearningSignalEvent) Deliver(ctx *Context, h Handler) { h.HandleLearningSignal(ctx, ev) }
