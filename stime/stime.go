// Copyright (c) 2024, The Pulse Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package stime provides the simulation time value type used throughout
the pulse kernel.

A Time wraps an integer count of tics, the smallest representable unit
of simulated time.  Steps (the grid at which delays and node updates
are expressed) and milliseconds are derived quantities, computed
against the package-level resolution.  All arithmetic and comparison
is exact in tic space; floating point only ever appears at the
millisecond conversion boundary.
*/
package stime

import "math"

// TicsPerMsDefault is the default number of tics per millisecond.
const TicsPerMsDefault int64 = 1000

// StepDefaultMs is the default step size (resolution) in milliseconds.
const StepDefaultMs float64 = 0.1

// ticInfinity is the saturating positive infinity sentinel in tics.
// Finite times must stay strictly below it in magnitude so that
// saturating arithmetic cannot wrap.
const ticInfinity int64 = math.MaxInt64 / 4

var (
	ticsPerMs   int64 = TicsPerMsDefault
	ticsPerStep int64 = 100
)

// SetResolution sets the step size in milliseconds.  All stored Time
// values keep their tic counts; delays stored in steps elsewhere must
// be recalibrated by their owners after calling this.
func SetResolution(msPerStep float64) {
	tps := int64(math.Round(msPerStep * float64(ticsPerMs)))
	if tps < 1 {
		tps = 1
	}
	ticsPerStep = tps
}

// Resolution returns the current step size in milliseconds.
func Resolution() float64 {
	return float64(ticsPerStep) / float64(ticsPerMs)
}

// TicsPerStep returns the current number of tics per step.
func TicsPerStep() int64 {
	return ticsPerStep
}

// ResetResolution restores the default resolution (0.1 ms steps).
func ResetResolution() {
	ticsPerMs = TicsPerMsDefault
	ticsPerStep = int64(math.Round(StepDefaultMs * float64(TicsPerMsDefault)))
}

// Time is an immutable simulation-time value, stored as a raw tic count.
type Time struct {
	tics int64
}

// FromTics returns a Time holding the given raw tic count.
func FromTics(tics int64) Time {
	t := Time{tics: tics}
	t.Calibrate()
	return t
}

// FromSteps returns a Time at the given step count on the current grid.
func FromSteps(steps int64) Time {
	return FromTics(steps * ticsPerStep)
}

// FromMs returns the Time closest to the given millisecond value,
// rounding to the nearest tic.
func FromMs(ms float64) Time {
	if math.IsInf(ms, 1) {
		return PosInf()
	}
	if math.IsInf(ms, -1) {
		return NegInf()
	}
	return FromTics(int64(math.Round(ms * float64(ticsPerMs))))
}

// FromMsStamp returns the Time for the given millisecond value rounded
// up to the next step boundary.  This is the (step, offset) spike
// representation: for t = FromMsStamp(ms), the offset ms - t.Ms()
// satisfies -step < offset <= 0.
func FromMsStamp(ms float64) Time {
	t := FromMs(ms)
	rem := t.tics % ticsPerStep
	if rem == 0 {
		return t
	}
	if rem < 0 {
		// signed remainder: negative times round up toward zero
		return FromTics(t.tics - rem)
	}
	return FromTics(t.tics + ticsPerStep - rem)
}

// PosInf returns the saturating positive infinity.
func PosInf() Time { return Time{tics: ticInfinity} }

// NegInf returns the saturating negative infinity.
func NegInf() Time { return Time{tics: -ticInfinity} }

// Zero returns the zero time.
func Zero() Time { return Time{} }

// Tics returns the raw tic count.
func (t Time) Tics() int64 { return t.tics }

// Steps returns the number of steps, rounding up: any time strictly
// inside a step belongs to that step's grid point.
func (t Time) Steps() int64 {
	if t.tics >= 0 {
		return (t.tics + ticsPerStep - 1) / ticsPerStep
	}
	return -((-t.tics + ticsPerStep - 1) / ticsPerStep)
}

// Ms returns the time in milliseconds.
func (t Time) Ms() float64 {
	if t.tics >= ticInfinity {
		return math.Inf(1)
	}
	if t.tics <= -ticInfinity {
		return math.Inf(-1)
	}
	return float64(t.tics) / float64(ticsPerMs)
}

// IsFinite returns true if the time is not at either infinity.
func (t Time) IsFinite() bool {
	return t.tics > -ticInfinity && t.tics < ticInfinity
}

// IsGridTime returns true if the time falls exactly on a step boundary.
// This is an exact modulo check in tic space, never floating point.
func (t Time) IsGridTime() bool {
	return t.IsFinite() && t.tics%ticsPerStep == 0
}

// IsMultipleOf returns true if the time is an exact multiple of the
// given time, in tic space.
func (t Time) IsMultipleOf(o Time) bool {
	if o.tics == 0 {
		return false
	}
	return t.tics%o.tics == 0
}

// Calibrate clamps the time into the representable range, saturating
// at the infinity sentinels.  It must be called on stored Time values
// after a resolution change; calling it repeatedly is idempotent.
func (t *Time) Calibrate() {
	if t.tics >= ticInfinity {
		t.tics = ticInfinity
	} else if t.tics <= -ticInfinity {
		t.tics = -ticInfinity
	}
}

// Add returns t + o, saturating at the infinities.
func (t Time) Add(o Time) Time {
	if !t.IsFinite() {
		return t
	}
	if !o.IsFinite() {
		return o
	}
	return FromTics(t.tics + o.tics)
}

// Sub returns t - o, saturating at the infinities.
func (t Time) Sub(o Time) Time {
	if !t.IsFinite() {
		return t
	}
	if !o.IsFinite() {
		return Time{tics: -o.tics}
	}
	return FromTics(t.tics - o.tics)
}

// MulInt returns t * n, saturating at the infinities.
func (t Time) MulInt(n int64) Time {
	if !t.IsFinite() {
		if n < 0 {
			return Time{tics: -t.tics}
		}
		return t
	}
	return FromTics(t.tics * n)
}

// AddSteps returns the time advanced by the given number of steps.
func (t Time) AddSteps(steps int64) Time {
	return t.Add(FromSteps(steps))
}

// Comparison operators compare raw tic counts.

func (t Time) Equal(o Time) bool   { return t.tics == o.tics }
func (t Time) Before(o Time) bool  { return t.tics < o.tics }
func (t Time) After(o Time) bool   { return t.tics > o.tics }
func (t Time) AtMost(o Time) bool  { return t.tics <= o.tics }
func (t Time) AtLeast(o Time) bool { return t.tics >= o.tics }

// StepsFromMs returns the number of steps for the given millisecond
// interval, rounding up, as used for connection delays.
func StepsFromMs(ms float64) int64 {
	return FromMs(ms).Steps()
}

// MsFromSteps returns the millisecond value of the given step count.
func MsFromSteps(steps int64) float64 {
	return FromSteps(steps).Ms()
}
