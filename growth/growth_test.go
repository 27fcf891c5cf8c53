// Copyright (c) 2024, The Pulse Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package growth

import (
	"testing"

	"cogentcore.org/core/math32"
)

var difTol = float32(1.0e-6)

func TestCaTrace(t *testing.T) {
	cp := CaParams{}
	cp.Defaults()
	ca := cp.OnSpike(0, 0, 0)
	if ca != cp.BetaCa {
		t.Errorf("first spike trace %v, expected %v", ca, cp.BetaCa)
	}
	dec := cp.Decay(ca, 0, 10000)
	cor := cp.BetaCa * math32.Exp(-1)
	if dif := math32.Abs(dec - cor); dif > difTol {
		t.Errorf("decay over one tau: %v, expected %v", dec, cor)
	}
	ca2 := cp.OnSpike(ca, 0, 10000)
	if dif := math32.Abs(ca2 - (dec + cp.BetaCa)); dif > difTol {
		t.Errorf("spike on decayed trace: %v, expected %v", ca2, dec+cp.BetaCa)
	}
}

func TestCaParamsValidate(t *testing.T) {
	cp := CaParams{}
	cp.Defaults()
	cp.TauCa = 0
	if cp.Validate() == nil {
		t.Errorf("tau_Ca = 0 must be rejected")
	}
}

func TestLinearNoCalcium(t *testing.T) {
	cp := CaParams{}
	cp.Defaults()
	lin := &Linear{}
	lin.Defaults()
	// zero calcium: pure linear growth at the full rate
	z := lin.Update(0, 1000, 0, 0, &cp, 0.0001)
	if dif := math32.Abs(z - 0.1); dif > difTol {
		t.Errorf("z after 1000 ms at rate 1e-4: %v, expected 0.1", z)
	}
}

func TestLinearClampsAtZero(t *testing.T) {
	cp := CaParams{}
	cp.Defaults()
	lin := &Linear{}
	lin.Defaults()
	// calcium far above target: shrinkage, clamped at zero
	z := lin.Update(0.01, 100, 0, 10, &cp, 0.0001)
	if z != 0 {
		t.Errorf("z must clamp at 0, got %v", z)
	}
}

func TestGaussianZeroAtEps(t *testing.T) {
	cp := CaParams{}
	cp.Defaults()
	cp.TauCa = 1e12 // effectively no decay over the step
	cp.Update()
	gc := &Gaussian{}
	gc.Defaults()
	z := gc.Update(0.5, 1, 0, gc.Eps, &cp, 0.0001)
	if dif := math32.Abs(z - 0.5); dif > 1e-5 {
		t.Errorf("growth at Ca == Eps must vanish: z = %v", z)
	}
}

func TestSigmoidZeroAtEps(t *testing.T) {
	cp := CaParams{}
	cp.Defaults()
	cp.TauCa = 1e12
	cp.Update()
	gc := &Sigmoid{}
	gc.Defaults()
	z := gc.Update(0.5, 1, 0, gc.Eps, &cp, 0.0001)
	if dif := math32.Abs(z - 0.5); dif > 1e-5 {
		t.Errorf("growth at Ca == Eps must vanish: z = %v", z)
	}
}

func TestElementConnectInvariant(t *testing.T) {
	el := NewElement(nil)
	el.Z = 1.5
	el.Connect(1)
	if el.ZConnected != 1 {
		t.Fatalf("ZConnected = %d", el.ZConnected)
	}
	// binding beyond the available amount clamps Z upward
	el.Connect(3)
	if el.ZConnected != 4 {
		t.Fatalf("ZConnected = %d", el.ZConnected)
	}
	if float32(el.ZConnected) > math32.Floor(el.Z) {
		t.Errorf("invariant violated: ZConnected %d > floor(Z) %v", el.ZConnected, math32.Floor(el.Z))
	}
	el.Connect(-10)
	if el.ZConnected != 0 {
		t.Errorf("release clamps at 0, got %d", el.ZConnected)
	}
}

func TestElementVacantDecay(t *testing.T) {
	el := NewElement(nil)
	el.Z = 5
	el.Connect(2)
	if el.Vacant() != 3 {
		t.Fatalf("vacant = %d, expected 3", el.Vacant())
	}
	el.DecayZVacant()
	cor := float32(2) + 3*el.TauVacant
	if dif := math32.Abs(el.Z - cor); dif > difTol {
		t.Errorf("z after vacant decay: %v, expected %v", el.Z, cor)
	}
	if float32(el.ZConnected) > math32.Floor(el.Z)+difTol {
		t.Errorf("invariant violated after decay")
	}
}

func TestElementUpdateHoldsInvariant(t *testing.T) {
	cp := CaParams{}
	cp.Defaults()
	el := NewElement(nil)
	el.Z = 3
	el.Connect(3)
	// strong shrink pressure: update must not drop Z below ZConnected
	el.Update(1000, 0, 10, &cp)
	if el.Z < float32(el.ZConnected) {
		t.Errorf("update dropped Z (%v) below ZConnected (%d)", el.Z, el.ZConnected)
	}
}
