// Copyright (c) 2024, The Pulse Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pulse

import (
	"fmt"
	"io"

	"cogentcore.org/core/base/errors"
	"cogentcore.org/core/base/indent"
	"github.com/emer/emergent/v2/params"
	"github.com/emer/emergent/v2/paths"

	"github.com/pulsenet/pulse/stime"
)

// sendSetter is implemented by nodes whose outgoing event hook the
// network wires at connect time.
type sendSetter interface {
	SetSendFunc(sf SendFunc)
}

// routeSetter is implemented by nodes that send receiver-addressed
// events (logging requests / replies) back through the network.
type routeSetter interface {
	SetRoute(sf SendFunc)
}

// Network is the registry of nodes and connectors and the slice
// scheduler.  Nodes are identified by their index in Nodes; each
// (source, synapse-kind) pair owns one Connector.
type Network struct {

	// name of the network.
	Nm string

	// all nodes, indexed by NodeID.
	Nodes []Node

	// connectors by source node, in creation order per source.
	Conns map[NodeID][]*Connector
}

func NewNetwork(name string) *Network {
	return &Network{Nm: name, Conns: make(map[NodeID][]*Connector)}
}

// AddNode registers a node, assigns its id, and wires its targeted
// event route.
func (nt *Network) AddNode(nd Node) NodeID {
	id := NodeID(len(nt.Nodes))
	nd.SetID(id)
	nt.Nodes = append(nt.Nodes, nd)
	if rs, ok := nd.(routeSetter); ok {
		rs.SetRoute(nt.Deliver)
	}
	return id
}

// AddPool registers every row of the pool as a proxy node.
func (nt *Network) AddPool(vp *VectorizedPool) []NodeID {
	ids := make([]NodeID, vp.NRows())
	for i := range ids {
		ids[i] = nt.AddNode(vp.Node(i))
	}
	return ids
}

// NodeByID returns the node with the given id, nil if out of range.
func (nt *Network) NodeByID(id NodeID) Node {
	if id < 0 || int(id) >= len(nt.Nodes) {
		return nil
	}
	return nt.Nodes[id]
}

// Deliver routes a receiver-addressed event to its target node.
func (nt *Network) Deliver(ctx *Context, ev Event) {
	nd := nt.NodeByID(ev.Receiver())
	if nd == nil {
		panic(fmt.Sprintf("pulse.Network %v: event receiver %d not in network", nt.Nm, ev.Receiver()))
	}
	ev.Deliver(ctx, nd)
}

// connector returns the source's connector for the given kind,
// creating it and wiring the source's send hook on first use.
func (nt *Network) connector(src Node, kind SynKinds) *Connector {
	id := src.ID()
	for _, cn := range nt.Conns[id] {
		if cn.Kind == kind {
			return cn
		}
	}
	cn := NewConnector(id, kind)
	nt.Conns[id] = append(nt.Conns[id], cn)
	if ss, ok := src.(sendSetter); ok && len(nt.Conns[id]) == 1 {
		ss.SetSendFunc(func(ctx *Context, ev Event) {
			for _, c := range nt.Conns[id] {
				c.Send(ctx, ev)
			}
		})
	}
	return cn
}

// Connect creates one connection from src to tgt: handshake
// first, then plasticity reader registration on the target's archive,
// then the connector entry.  A failed handshake aborts only this
// connection and leaves the network unchanged.
func (nt *Network) Connect(ctx *Context, src, tgt Node, spec *SynSpec) error {
	if src.ID() == NoNode || tgt.ID() == NoNode {
		return fmt.Errorf("pulse.Network %v: nodes must be added before connecting: %w", nt.Nm, ErrIllegalConnection)
	}
	if err := src.SendTestEvent(ctx, tgt, spec.Receptor); err != nil {
		return err
	}
	if spec.Kind == STDP {
		hist, ok := tgt.(SpikeHistory)
		if !ok {
			return fmt.Errorf("pulse.Network %v: target %v keeps no spike history: %w", nt.Nm, tgt.Name(), ErrIllegalConnection)
		}
		hist.RegisterSTDPConnection(ctx, ctx.TimeMs+spec.DelayMs, spec.DelayMs)
	}
	nt.connector(src, spec.Kind).Add(tgt, spec)
	return nil
}

// ConnectPools bulk-connects two pools following the connectivity
// pattern over their shapes, one connection per set bit.  Returns the
// number of connections made and the first error encountered; an
// erroring pair is skipped, the rest are still made.
func (nt *Network) ConnectPools(ctx *Context, spool, rpool *VectorizedPool, pat paths.Pattern, spec *SynSpec) (int, error) {
	ssh := &spool.Shape
	rsh := &rpool.Shape
	_, _, cons := pat.Connect(ssh, rsh, spool == rpool)
	slen := ssh.Len()
	rlen := rsh.Len()
	cbits := cons.Values
	made := 0
	var rerr error
	for ri := 0; ri < rlen; ri++ {
		rbi := ri * slen
		for si := 0; si < slen; si++ {
			if !cbits.Index(rbi + si) {
				continue
			}
			err := nt.Connect(ctx, spool.Node(si), rpool.Node(ri), spec)
			if err != nil {
				rerr = errors.Log(err)
				continue
			}
			made++
		}
	}
	return made, rerr
}

// Init allocates all delivery buffers; call after all nodes are added
// and before the first Run.
func (nt *Network) Init(ctx *Context) {
	for _, nd := range nt.Nodes {
		nd.InitBuffers(ctx)
	}
}

// Run advances the simulation by ms milliseconds in slices of MinDelay
// steps: within one slice every node is updated exactly once over the
// slice's step range, and all cross-node effects land at least one
// MinDelay later, so update order within a slice cannot change
// results.
func (nt *Network) Run(ctx *Context, ms float64) {
	left := stime.StepsFromMs(ms)
	for left > 0 {
		n := ctx.SliceSteps()
		if n > left {
			n = left
		}
		origin := stime.FromSteps(ctx.Step)
		for _, nd := range nt.Nodes {
			nd.Update(ctx, origin, 0, n)
		}
		for i := int64(0); i < n; i++ {
			ctx.StepInc()
		}
		ctx.SliceInc()
		left -= n
	}
}

// Calibrate propagates a resolution change: the context's step counter
// is re-derived from its ms time, every node re-derives its
// step-denominated state and re-sizes its buffers (pending in-flight
// events are dropped), and every connector recomputes delay steps.
// Must only be called between slices.
func (nt *Network) Calibrate(ctx *Context) {
	ctx.Step = stime.FromMs(ctx.TimeMs).Steps()
	for _, nd := range nt.Nodes {
		nd.Calibrate(ctx)
		nd.InitBuffers(ctx)
	}
	for _, cns := range nt.Conns {
		for _, cn := range cns {
			cn.Recalibrate(ctx)
		}
	}
}

// ApplyParams applies the given parameter style Sheet to all nodes and
// connectors, then recalibrates anything that was set so derived
// parameters are updated.  If setMsg is true a message is printed per
// parameter set; a message is always printed on failure.  Returns true
// if any params were set, and error for any errors.
func (nt *Network) ApplyParams(ctx *Context, pars *params.Sheet, setMsg bool) (bool, error) {
	applied := false
	var rerr error
	for _, nd := range nt.Nodes {
		app, err := pars.Apply(nd, setMsg)
		if app {
			nd.Calibrate(ctx)
			applied = true
		}
		if err != nil {
			rerr = err
		}
	}
	for _, cns := range nt.Conns {
		for _, cn := range cns {
			app, err := pars.Apply(cn, setMsg)
			if app {
				cn.Plast.Update()
				applied = true
			}
			if err != nil {
				rerr = err
			}
		}
	}
	return applied, rerr
}

// WriteWeightsJSON writes the weights of all connectors in a JSON text
// format, in node-id order.
func (nt *Network) WriteWeightsJSON(w io.Writer) error {
	depth := 0
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("{\n"))
	depth++
	w.Write(indent.TabBytes(depth))
	w.Write([]byte(fmt.Sprintf("\"Network\": %q,\n", nt.Nm)))
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("\"Conns\": [\n"))
	depth++
	first := true
	for id := NodeID(0); int(id) < len(nt.Nodes); id++ {
		for _, cn := range nt.Conns[id] {
			if !first {
				w.Write([]byte(",\n"))
			}
			first = false
			cn.WriteWeightsJSON(w, depth)
		}
	}
	if !first {
		w.Write([]byte("\n"))
	}
	depth--
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("]\n"))
	depth--
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("}\n"))
	return nil
}
