// Copyright (c) 2024, The Pulse Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package pulse is the overall repository for the pulse event-driven
spiking network kernel, implemented in the Go language (golang).

This top-level of the repository has no functional code -- everything
is organized into the following sub-packages:

* pulse: the kernel core: spike/trace archiving (per-object and
vectorized struct-of-arrays realizations with identical semantics),
typed event delivery with integer-step delays over ring buffers,
connector fan-out with STDP plasticity, the Clopath / Urbanczik /
e-prop archive variants, minimal neuron and device models, and the
network registry and slice scheduler.

* stime: simulation time as integer tics with configurable resolution,
step/ms conversions, and calibration across resolution changes.

* growth: structural-plasticity synaptic elements: calcium-trace
driven growth curves and contact-point counters.
*/
package pulse
