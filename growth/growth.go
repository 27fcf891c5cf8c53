// Copyright (c) 2024, The Pulse Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package growth implements structural-plasticity synaptic elements:
continuously-valued, activity-dependent counters of available axonal or
dendritic contact points, driven by a calcium trace and a pluggable
growth curve.  Decoupled from spike archiving (different decay law) but
using the same exponential-decay-since-last-touch numerics.
*/
package growth

import (
	"fmt"

	"cogentcore.org/core/math32"
)

// CaParams are the calcium-trace parameters of one node: the trace
// decays exponentially with TauCa and jumps by BetaCa on each spike.
type CaParams struct {

	// time constant in ms of the calcium trace.
	TauCa float32 `min:"0.001" def:"10000"`

	// increment of the calcium trace per spike.
	BetaCa float32 `def:"0.001"`

	// rate = 1 / tau
	CaDt float32 `inactive:"+" display:"-" json:"-" xml:"-"`
}

func (cp *CaParams) Defaults() {
	cp.TauCa = 10000
	cp.BetaCa = 0.001
	cp.Update()
}

// Update must be called after any changes to parameters
func (cp *CaParams) Update() {
	cp.CaDt = 1 / cp.TauCa
}

// Validate checks the parameter ranges without touching state.
func (cp *CaParams) Validate() error {
	if cp.TauCa <= 0 {
		return fmt.Errorf("CaParams: tau_Ca must be > 0, got %g", cp.TauCa)
	}
	return nil
}

// Decay returns the trace ca, last touched at tLast, decayed to t.
func (cp *CaParams) Decay(ca float32, tLast, t float64) float32 {
	return ca * math32.Exp(float32(tLast-t)*cp.CaDt)
}

// OnSpike returns the trace after a spike at t: decayed then bumped.
func (cp *CaParams) OnSpike(ca float32, tLast, t float64) float32 {
	return cp.Decay(ca, tLast, t) + cp.BetaCa
}

// Curve integrates the growth ODE dz/dt = rate * f(Ca(t)) analytically
// (or in closed step form) from tLast to t, given the calcium trace
// value ca at tLast, returning the new element count.
type Curve interface {
	Update(z float32, t, tLast float64, ca float32, cp *CaParams, rate float32) float32
	Name() string
}

// Linear is the linear growth curve dz/dt = rate * (1 - Ca(t)/Eps),
// integrated exactly over the calcium exponential.
type Linear struct {

	// target calcium level: growth stalls when Ca == Eps.
	Eps float32 `def:"0.7"`
}

func (gc *Linear) Defaults() { gc.Eps = 0.7 }

func (gc *Linear) Name() string { return "linear" }

func (gc *Linear) Update(z float32, t, tLast float64, ca float32, cp *CaParams, rate float32) float32 {
	caT := cp.Decay(ca, tLast, t)
	z += rate*float32(t-tLast) + rate*cp.TauCa*(caT-ca)/gc.Eps
	if z < 0 {
		z = 0
	}
	return z
}

// Gaussian is the Gaussian growth curve: growth is maximal at calcium
// level (Eta+Eps)/2 and zero at Eta and Eps, evaluated at the decayed
// trace over the step.
type Gaussian struct {

	// lower zero crossing of the growth rate.
	Eta float32 `def:"0.1"`

	// upper zero crossing of the growth rate.
	Eps float32 `def:"0.7"`
}

func (gc *Gaussian) Defaults() {
	gc.Eta = 0.1
	gc.Eps = 0.7
}

func (gc *Gaussian) Name() string { return "gaussian" }

func (gc *Gaussian) Update(z float32, t, tLast float64, ca float32, cp *CaParams, rate float32) float32 {
	zeta := (gc.Eta - gc.Eps) / (2 * math32.Sqrt(math32.Log(2)))
	xi := (gc.Eta + gc.Eps) / 2
	caT := cp.Decay(ca, tLast, t)
	y := (caT - xi) / zeta
	z += float32(t-tLast) * rate * (2*math32.Exp(-y*y) - 1)
	if z < 0 {
		z = 0
	}
	return z
}

// Sigmoid is the sigmoidal growth curve: growth saturates at +rate for
// low calcium and -rate for high calcium, crossing zero at Eps with
// slope set by Psi.
type Sigmoid struct {

	// calcium level at the zero crossing.
	Eps float32 `def:"0.7"`

	// width of the transition region.
	Psi float32 `min:"0.001" def:"0.1"`
}

func (gc *Sigmoid) Defaults() {
	gc.Eps = 0.7
	gc.Psi = 0.1
}

func (gc *Sigmoid) Name() string { return "sigmoid" }

func (gc *Sigmoid) Update(z float32, t, tLast float64, ca float32, cp *CaParams, rate float32) float32 {
	caT := cp.Decay(ca, tLast, t)
	z += float32(t-tLast) * rate * (2/(1+math32.Exp((caT-gc.Eps)/gc.Psi)) - 1)
	if z < 0 {
		z = 0
	}
	return z
}

// Element is one structural-plasticity counter of a node: a continuous
// amount Z of contact points of one type, of which ZConnected are bound
// in synapses.  Invariant: ZConnected <= floor(Z), re-enforced by
// clamping Z upward in Connect.
type Element struct {

	// continuous count of contact points.
	Z float32 `inactive:"+"`

	// number of contact points bound in synapses.
	ZConnected int32 `inactive:"+"`

	// growth rate in elements per ms.
	GrowthRate float32 `def:"0.0001"`

	// fraction of vacant elements retained per connectivity update;
	// the rest decay away.
	TauVacant float32 `min:"0" max:"1" def:"0.18"`

	// growth curve driving Z.
	Curve Curve
}

// NewElement returns an element with default parameters and the given
// curve (linear when nil).
func NewElement(curve Curve) *Element {
	el := &Element{GrowthRate: 0.0001, TauVacant: 0.18, Curve: curve}
	if el.Curve == nil {
		lin := &Linear{}
		lin.Defaults()
		el.Curve = lin
	}
	return el
}

// Update integrates the growth curve from tLast to t given the node's
// calcium trace value at tLast.
func (el *Element) Update(t, tLast float64, ca float32, cp *CaParams) {
	el.Z = el.Curve.Update(el.Z, t, tLast, ca, cp, el.GrowthRate)
	if zc := float32(el.ZConnected); el.Z < zc {
		el.Z = zc
	}
}

// Vacant returns the number of unbound whole contact points.
func (el *Element) Vacant() int32 {
	return int32(math32.Floor(el.Z)) - el.ZConnected
}

// Connect binds (or with negative n, releases) n contact points,
// clamping Z upward if binding would exceed the available amount.
func (el *Element) Connect(n int32) {
	el.ZConnected += n
	if el.ZConnected < 0 {
		el.ZConnected = 0
	}
	if zc := float32(el.ZConnected); zc > math32.Floor(el.Z) {
		el.Z = zc
	}
}

// DecayZVacant shrinks the vacant portion multiplicatively; called once
// per connectivity-update step.
func (el *Element) DecayZVacant() {
	if v := el.Vacant(); v > 0 {
		el.Z = float32(el.ZConnected) + float32(v)*el.TauVacant
	}
}
