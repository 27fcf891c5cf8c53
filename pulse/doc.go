// Copyright (c) 2024, The Pulse Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package pulse implements an event-driven spiking neural network kernel:
nodes advance through discrete simulation time in bounded update slices,
exchange typed events with integer-step delays through per-target ring
buffers, and archive bounded spike / trace histories that plasticity
rules consult and prune.

The archiving core exists in two physical realizations with identical
semantics: SpikeArchive embedded per-object in a node, and the parallel
arrays of a VectorizedPool addressed through a PoolNode proxy.  Both are
driven by the same underlying History operations and are covered by a
shared contract test.

Plasticity variants (pair STDP, Clopath, Urbanczik-Senn, e-prop) differ
only in their history-entry payloads and pruning triggers; the
access-counted pruning invariant lives in one place, History.
*/
package pulse
