// Copyright (c) 2024, The Pulse Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pulse

import (
	"math/rand"

	"github.com/emer/emergent/v2/etime"
	"github.com/pulsenet/pulse/stime"
)

// pulse.Context carries all the timing state and kernel-wide constants
// for running a simulation.  It is passed explicitly into every
// archiving and delivery operation so that components have no global
// kernel dependencies and can be unit tested in isolation.
type Context struct {

	// accumulated amount of time the network has been running,
	// in simulation-time milliseconds.
	TimeMs float64

	// current global step, on the simulation time grid.
	Step int64

	// slice counter: number of min-delay slices completed since Reset.
	Slice int64

	// minimum connection delay in the network, in steps.
	// Determines the slice length and the delivery buffer size.
	MinDelay int64 `def:"10"`

	// maximum connection delay in the network, in steps.
	MaxDelay int64 `def:"10"`

	// tolerance in ms used for all archive time comparisons, to avoid
	// floating comparison flakiness at entry boundaries.
	StdpEps float64 `def:"1e-6"`

	// current evaluation mode: plasticity runs in Train, weights are
	// frozen in Test.
	Mode etime.Modes

	// random number source for generator devices and event hooks.
	// Injected here rather than reached for globally.
	Rand *rand.Rand `display:"-"`
}

// NewContext returns a new Context with default parameters
func NewContext() *Context {
	ctx := &Context{}
	ctx.Defaults()
	return ctx
}

// Defaults sets default values
func (ctx *Context) Defaults() {
	ctx.MinDelay = 10
	ctx.MaxDelay = 10
	ctx.StdpEps = 1e-6
	ctx.Mode = etime.Train
	if ctx.Rand == nil {
		ctx.Rand = rand.New(rand.NewSource(0))
	}
}

// Reset resets the counters all back to zero
func (ctx *Context) Reset() {
	ctx.TimeMs = 0
	ctx.Step = 0
	ctx.Slice = 0
	if ctx.MinDelay == 0 {
		ctx.Defaults()
	}
}

// StepInc increments at the step level
func (ctx *Context) StepInc() {
	ctx.Step++
	ctx.TimeMs = stime.FromSteps(ctx.Step).Ms()
}

// SliceInc increments at the slice level
func (ctx *Context) SliceInc() {
	ctx.Slice++
}

// SliceSteps returns the number of steps per update slice, which is
// the minimum delay: events sent during one slice can never be due
// before the next one starts.
func (ctx *Context) SliceSteps() int64 {
	return ctx.MinDelay
}

// BufferLen returns the required delivery ring buffer length in steps.
func (ctx *Context) BufferLen() int64 {
	return ctx.MinDelay + ctx.MaxDelay
}

// StepMs returns the event time in ms for the given lag within an
// update slice starting at origin: events at step s cover the
// half-open interval (t(s)-h, t(s)], so the time of lag l is
// origin + l + 1 steps.
func (ctx *Context) StepMs(origin stime.Time, lag int64) float64 {
	return origin.AddSteps(lag + 1).Ms()
}
