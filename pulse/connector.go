// Copyright (c) 2024, The Pulse Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pulse

import (
	"fmt"
	"io"
	"strconv"

	"cogentcore.org/core/base/indent"
	"cogentcore.org/core/math32"
	"github.com/emer/emergent/v2/etime"
	"github.com/emer/emergent/v2/weights"

	"github.com/pulsenet/pulse/stime"
)

// SynKinds are the synapse kinds a Connector can carry.
type SynKinds int32

const (
	// Static synapses deliver with fixed weight.
	Static SynKinds = iota

	// STDP synapses update weight per pair-based spike-timing
	// plasticity before each delivery.
	STDP

	SynKindsN
)

func (sk SynKinds) String() string {
	switch sk {
	case Static:
		return "Static"
	case STDP:
		return "STDP"
	}
	return "SynKinds(" + strconv.Itoa(int(sk)) + ")"
}

// STDPParams are the common plasticity properties shared by all
// connections of one connector (the common-properties object): one set
// of constants, per-connection state lives in Connection.
type STDPParams struct {

	// time constant in ms of the presynaptic trace (Kplus).
	TauPlus float32 `min:"0.001" def:"20"`

	// learning rate (step size of weight updates).
	Lambda float32 `min:"0" def:"0.01"`

	// asymmetry: depression amplitude relative to facilitation.
	Alpha float32 `min:"0" def:"1"`

	// weight-dependence exponent of facilitation.
	MuPlus float32 `min:"0" def:"1"`

	// weight-dependence exponent of depression.
	MuMinus float32 `min:"0" def:"1"`

	// maximum weight; facilitation saturates here.
	Wmax float32 `min:"0.001" def:"100"`

	// rate = 1 / tau
	TauPlusDt float32 `inactive:"+" display:"-" json:"-" xml:"-"`
}

func (sp *STDPParams) Defaults() {
	sp.TauPlus = 20
	sp.Lambda = 0.01
	sp.Alpha = 1
	sp.MuPlus = 1
	sp.MuMinus = 1
	sp.Wmax = 100
	sp.Update()
}

// Update must be called after any changes to parameters
func (sp *STDPParams) Update() {
	sp.TauPlusDt = 1 / sp.TauPlus
}

// Facilitate potentiates w by the presynaptic trace value kplus, in
// normalized weight space, saturating at Wmax.
func (sp *STDPParams) Facilitate(w, kplus float32) float32 {
	wn := w/sp.Wmax + sp.Lambda*math32.Pow(1-w/sp.Wmax, sp.MuPlus)*kplus
	if wn > 1 {
		wn = 1
	}
	return wn * sp.Wmax
}

// Depress weakens w by the postsynaptic trace value kminus, in
// normalized weight space, bounded at 0.
func (sp *STDPParams) Depress(w, kminus float32) float32 {
	wn := w/sp.Wmax - sp.Alpha*sp.Lambda*math32.Pow(w/sp.Wmax, sp.MuMinus)*kminus
	if wn < 0 {
		wn = 0
	}
	return wn * sp.Wmax
}

// SynSpec specifies one connection to be made: kind, target addressing,
// and initial per-connection values.
type SynSpec struct {

	// synapse kind.
	Kind SynKinds

	// receptor port on the target.
	Receptor int32

	// dendritic delay in ms.
	DelayMs float64 `min:"0.001" def:"1"`

	// initial weight.
	Weight float32 `def:"1"`
}

func (ss *SynSpec) Defaults() {
	ss.Kind = Static
	ss.Receptor = 0
	ss.DelayMs = 1
	ss.Weight = 1
}

// Connection is one outgoing synapse of a connector, held by value.
// Kplus and LastSpikeMs are the per-connection presynaptic STDP state.
type Connection struct {

	// target node.
	Node Node `display:"-" json:"-" xml:"-"`

	// target node id.
	Target NodeID

	// receptor port on the target.
	Receptor int32

	// dendritic delay in ms; authoritative across resolution changes.
	DelayMs float64

	// delay in steps, derived from DelayMs; recomputed in Recalibrate.
	DelaySteps int64 `inactive:"+"`

	// current weight.
	Weight float32

	// presynaptic trace, decayed to LastSpikeMs.
	Kplus float32 `inactive:"+"`

	// time in ms of the previous presynaptic spike through this
	// connection; -inf semantics via large negative start.
	LastSpikeMs float64 `inactive:"+"`
}

// ConnectionVars are the variable names accessible per connection.
var ConnectionVars = []string{"Wt", "Kplus", "DelayMs"}

// Connector owns all outgoing connections of one (source, synapse
// kind) pair and fans events out to them in insertion order.  Insertion
// order has no effect on results (synapses are independent) but makes
// status introspection deterministic.
type Connector struct {

	// source node id.
	Source NodeID

	// synapse kind of every connection in this connector.
	Kind SynKinds

	// shared plasticity properties (STDP kind only).
	Plast STDPParams `display:"add-fields"`

	// connections in insertion order.
	Cons []Connection
}

func NewConnector(src NodeID, kind SynKinds) *Connector {
	cn := &Connector{Source: src, Kind: kind}
	cn.Plast.Defaults()
	return cn
}

func (cn *Connector) Name() string     { return fmt.Sprintf("Conn%d%v", cn.Source, cn.Kind) }
func (cn *Connector) Class() string    { return cn.Kind.String() }
func (cn *Connector) TypeName() string { return "Connector" }

// NConns returns the number of connections.
func (cn *Connector) NConns() int { return len(cn.Cons) }

// Add appends a connection built from spec; handshake and reader registration
// are the network's responsibility, before calling this.
func (cn *Connector) Add(tgt Node, spec *SynSpec) *Connection {
	steps := stime.StepsFromMs(spec.DelayMs)
	if steps <= 0 {
		panic(fmt.Sprintf("pulse.Connector: delay %g ms is below resolution", spec.DelayMs))
	}
	cn.Cons = append(cn.Cons, Connection{
		Node:        tgt,
		Target:      tgt.ID(),
		Receptor:    spec.Receptor,
		DelayMs:     spec.DelayMs,
		DelaySteps:  steps,
		Weight:      spec.Weight,
		LastSpikeMs: -1e30,
	})
	return &cn.Cons[len(cn.Cons)-1]
}

// Send fans the event out to every connection, integrating plasticity
// against the target's archive first, then delivering a per-connection
// copy stamped with that connection's delay, weight, and receptor.
// Runs on the source node's update thread; never allocates beyond the
// event copies.
func (cn *Connector) Send(ctx *Context, ev Event) {
	switch se := ev.(type) {
	case *SpikeEvent:
		for i := range cn.Cons {
			cn.sendSpike(ctx, &cn.Cons[i], se)
		}
	default:
		for i := range cn.Cons {
			c := &cn.Cons[i]
			ev.SetReceiver(c.Target)
			ev.SetReceptor(c.Receptor)
			ev.SetDelay(c.DelaySteps)
			ev.SetWeight(c.Weight)
			ev.Deliver(ctx, c.Node)
		}
	}
}

// sendSpike delivers one spike through one connection.  For STDP, the
// weight is updated first: facilitation for every postsynaptic spike
// archived since the previous presynaptic one (read through the
// dendritic delay), then depression against the postsynaptic trace at
// the current spike, both in normalized weight space.  In Test mode
// weights and traces are frozen; delivery still happens.
func (cn *Connector) sendSpike(ctx *Context, c *Connection, se *SpikeEvent) {
	if cn.Kind == STDP && ctx.Mode != etime.Test {
		if hist, ok := c.Node.(SpikeHistory); ok {
			tSpike := se.Stamp().Ms() + se.Offset()
			d := c.DelayMs
			p := &cn.Plast
			post := hist.Spikes(ctx, c.LastSpikeMs-d, tSpike-d)
			for j := range post {
				dt := float32(c.LastSpikeMs - (post[j].T + d))
				c.Weight = p.Facilitate(c.Weight, c.Kplus*math32.Exp(dt*p.TauPlusDt))
			}
			c.Weight = p.Depress(c.Weight, hist.KValue(ctx, tSpike-d))
			c.Kplus = c.Kplus*math32.Exp(float32(c.LastSpikeMs-tSpike)*p.TauPlusDt) + 1
			c.LastSpikeMs = tSpike
		}
	}
	cp := *se
	cp.SetReceiver(c.Target)
	cp.SetReceptor(c.Receptor)
	cp.SetDelay(c.DelaySteps)
	cp.SetWeight(c.Weight)
	cp.Deliver(ctx, c.Node)
}

// Recalibrate recomputes the per-connection delay steps from the
// stored ms delays after a resolution change.  A delay falling below
// the new resolution is a contract violation.
func (cn *Connector) Recalibrate(ctx *Context) {
	for i := range cn.Cons {
		c := &cn.Cons[i]
		steps := stime.StepsFromMs(c.DelayMs)
		if steps <= 0 {
			panic(fmt.Sprintf("pulse.Connector: delay %g ms below resolution after recalibration", c.DelayMs))
		}
		c.DelaySteps = steps
	}
}

// ConnVals returns the named per-connection variable across all
// connections, in insertion order.
func (cn *Connector) ConnVals(varNm string) ([]float32, error) {
	vals := make([]float32, len(cn.Cons))
	for i := range cn.Cons {
		c := &cn.Cons[i]
		switch varNm {
		case "Wt":
			vals[i] = c.Weight
		case "Kplus":
			vals[i] = c.Kplus
		case "DelayMs":
			vals[i] = float32(c.DelayMs)
		default:
			return nil, fmt.Errorf("Connector ConnVals: variable name %v not valid", varNm)
		}
	}
	return vals, nil
}

// SetConnVals sets the named per-connection variable across all
// connections at once; the value slice length must match the
// connection count exactly.
func (cn *Connector) SetConnVals(varNm string, vals []float32) error {
	if len(vals) != len(cn.Cons) {
		return fmt.Errorf("Connector SetConnVals %v: got %d values, expected %d connections", varNm, len(vals), len(cn.Cons))
	}
	for i := range cn.Cons {
		c := &cn.Cons[i]
		switch varNm {
		case "Wt":
			c.Weight = vals[i]
		case "Kplus":
			c.Kplus = vals[i]
		case "DelayMs":
			c.DelayMs = float64(vals[i])
			steps := stime.StepsFromMs(c.DelayMs)
			if steps <= 0 {
				return fmt.Errorf("Connector SetConnVals: delay %g ms below resolution", c.DelayMs)
			}
			c.DelaySteps = steps
		default:
			return fmt.Errorf("Connector SetConnVals: variable name %v not valid", varNm)
		}
	}
	return nil
}

// WriteWeightsJSON writes the connector's weights in a JSON text
// format, one Rs row per connection.
func (cn *Connector) WriteWeightsJSON(w io.Writer, depth int) {
	nc := len(cn.Cons)
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("{\n"))
	depth++
	w.Write(indent.TabBytes(depth))
	w.Write([]byte(fmt.Sprintf("\"From\": %q,\n", fmt.Sprintf("%d", cn.Source))))
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("\"MetaData\": {\n"))
	depth++
	w.Write(indent.TabBytes(depth))
	w.Write([]byte(fmt.Sprintf("\"Wmax\": \"%g\"\n", cn.Plast.Wmax)))
	depth--
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("},\n"))
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("\"Rs\": [\n"))
	depth++
	for i := range cn.Cons {
		c := &cn.Cons[i]
		w.Write(indent.TabBytes(depth))
		w.Write([]byte("{\n"))
		depth++
		w.Write(indent.TabBytes(depth))
		w.Write([]byte(fmt.Sprintf("\"Ri\": %v,\n", c.Target)))
		w.Write(indent.TabBytes(depth))
		w.Write([]byte("\"N\": 1,\n"))
		w.Write(indent.TabBytes(depth))
		w.Write([]byte(fmt.Sprintf("\"Si\": [ %v ],\n", cn.Source)))
		w.Write(indent.TabBytes(depth))
		w.Write([]byte("\"Wt\": [ "))
		w.Write([]byte(strconv.FormatFloat(float64(c.Weight), 'g', weights.Prec, 32)))
		w.Write([]byte(" ]\n"))
		depth--
		w.Write(indent.TabBytes(depth))
		if i == nc-1 {
			w.Write([]byte("}\n"))
		} else {
			w.Write([]byte("},\n"))
		}
	}
	depth--
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("]\n"))
	depth--
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("}"))
}

// SetWeights sets connection weights from weights.Path decoded values,
// matching rows to connections by target id in insertion order.
func (cn *Connector) SetWeights(pw *weights.Path) error {
	if pw.MetaData != nil {
		if wm, ok := pw.MetaData["Wmax"]; ok {
			pv, _ := strconv.ParseFloat(wm, 32)
			cn.Plast.Wmax = float32(pv)
		}
	}
	var err error
	for i := range pw.Rs {
		pr := &pw.Rs[i]
		set := false
		for j := range cn.Cons {
			c := &cn.Cons[j]
			if int(c.Target) == pr.Ri && len(pr.Wt) > 0 {
				c.Weight = pr.Wt[0]
				set = true
				break
			}
		}
		if !set {
			err = fmt.Errorf("Connector SetWeights: no connection to target %d", pr.Ri)
		}
	}
	return err
}
