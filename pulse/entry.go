// Copyright (c) 2024, The Pulse Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pulse

import "fmt"

// History entry variants: small value records of an archived event at
// one point in time, one shape per plasticity rule.  Times are in ms
// and strictly increase within a node's history; trace values are the
// low-pass-filtered state at that time.

// SpikeEntry is one archived postsynaptic spike for pair / triplet STDP.
type SpikeEntry struct {
	T             float64 `desc:"time of the spike, in ms"`
	Kminus        float32 `desc:"low-pass filtered postsynaptic spike trace at T, pair time constant"`
	KminusTriplet float32 `desc:"low-pass filtered postsynaptic spike trace at T, triplet time constant"`
}

func (se SpikeEntry) Time() float64 { return se.T }

// ClopathEntry is one archived voltage-trace sample for the Clopath rule.
type ClopathEntry struct {
	T  float64 `desc:"time of the sample, in ms"`
	DW float32 `desc:"thresholded low-pass membrane potential term driving the weight change"`
}

func (ce ClopathEntry) Time() float64 { return ce.T }

// UrbanczikEntry is one archived dendritic prediction-error sample for
// one compartment under the Urbanczik-Senn rule.
type UrbanczikEntry struct {
	T   float64 `desc:"time of the sample, in ms"`
	Err float32 `desc:"dendritic prediction error of somatic activity: spike - phi(V_dendrite)"`
}

func (ue UrbanczikEntry) Time() float64 { return ue.T }

// EpropEntry is one per-step e-prop sample.  These are erased in bulk
// per update interval rather than one entry at a time.
type EpropEntry struct {
	T                 float64 `desc:"time of the step, in ms"`
	SurrogateGradient float32 `desc:"surrogate gradient / pseudo-derivative of the spike nonlinearity"`
	LearningSignal    float32 `desc:"weighted error signal received from readout neurons"`
	FiringRateReg     float32 `desc:"firing-rate regularization term accumulated for this step"`
}

func (ee EpropEntry) Time() float64 { return ee.T }

// EpropUpdateEntry marks the start of one e-prop update interval; its
// access count (held by the History) tracks how many registered
// readers have consumed the interval.
type EpropUpdateEntry struct {
	T float64 `desc:"start time of the update interval, in ms"`
}

func (ue EpropUpdateEntry) Time() float64 { return ue.T }

// SpikeEntryVars are the variable names on SpikeEntry, for
// introspection / status reporting.
var SpikeEntryVars = []string{"T", "Kminus", "KminusTriplet"}

var SpikeEntryVarsMap map[string]int

func init() {
	SpikeEntryVarsMap = make(map[string]int, len(SpikeEntryVars))
	for i, v := range SpikeEntryVars {
		SpikeEntryVarsMap[v] = i
	}
}

// VarByName returns entry variable by name, or error
func (se *SpikeEntry) VarByName(varNm string) (float32, error) {
	switch varNm {
	case "T":
		return float32(se.T), nil
	case "Kminus":
		return se.Kminus, nil
	case "KminusTriplet":
		return se.KminusTriplet, nil
	}
	return 0, fmt.Errorf("SpikeEntry VarByName: variable name: %v not valid", varNm)
}
