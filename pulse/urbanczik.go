// Copyright (c) 2024, The Pulse Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pulse

import "fmt"

// UrbanczikArchive keeps one reader-counted history per dendritic
// compartment (compartments 1..NComp-1; the soma, compartment 0, has
// no history).  Entries carry the dendritic prediction-error term
// integrated by Urbanczik-Senn synapses.
type UrbanczikArchive struct {

	// total number of compartments including the soma.
	NComp int

	// per-compartment histories, indexed by compartment-1.
	Hists []History[UrbanczikEntry] `display:"-"`
}

// NewUrbanczikArchive creates an archive for nComp compartments; at
// least the soma plus one dendritic compartment are required.
func NewUrbanczikArchive(nComp int) *UrbanczikArchive {
	if nComp < 2 {
		panic(fmt.Sprintf("pulse.UrbanczikArchive: need >= 2 compartments, got %d", nComp))
	}
	return &UrbanczikArchive{NComp: nComp, Hists: make([]History[UrbanczikEntry], nComp-1)}
}

// hist maps a dendritic compartment number to its history; the soma
// and out-of-range compartments are contract violations.
func (ua *UrbanczikArchive) hist(comp int) *History[UrbanczikEntry] {
	if comp < 1 || comp >= ua.NComp {
		panic(fmt.Sprintf("pulse.UrbanczikArchive: compartment %d out of range [1, %d)", comp, ua.NComp))
	}
	return &ua.Hists[comp-1]
}

// RegisterUrbanczikConnection registers one incoming connection onto
// the given dendritic compartment at connect time.
func (ua *UrbanczikArchive) RegisterUrbanczikConnection(ctx *Context, comp int, tFirstRead, delayMs float64) {
	ua.hist(comp).RegisterReader(tFirstRead, delayMs, ctx.StdpEps)
}

// WriteUrbanczikHistory appends the prediction-error term for one step
// of the given compartment.
func (ua *UrbanczikArchive) WriteUrbanczikHistory(ctx *Context, comp int, t float64, errTerm float32) {
	ua.hist(comp).Append(UrbanczikEntry{T: t, Err: errTerm}, ctx.StdpEps)
}

// UrbanczikHistoryRange returns the compartment's entries in (t1, t2],
// counting one access per returned entry.  The interval is open at t1
// within eps so a spike exactly on the boundary is consumed by exactly
// one of two adjacent reads, never both.
func (ua *UrbanczikArchive) UrbanczikHistoryRange(ctx *Context, comp int, t1, t2 float64) []UrbanczikEntry {
	h := ua.hist(comp)
	lo, hi := h.Range(t1, t2, ctx.StdpEps)
	return h.View(lo, hi)
}

// ClearHistory erases all compartment histories; reader registration
// survives.
func (ua *UrbanczikArchive) ClearHistory() {
	for i := range ua.Hists {
		ua.Hists[i].Clear()
	}
}
