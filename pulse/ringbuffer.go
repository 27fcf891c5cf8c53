// Copyright (c) 2024, The Pulse Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pulse

import "fmt"

// RingBuffer accumulates incoming event payloads for one input channel
// of one node, indexed by delivery step: an event with delay d sent at
// step s lands in slot (s + d) mod len, and is read (and zeroed)
// exactly when the node's update reaches that step.  Length is
// MinDelay + MaxDelay steps, the span within which any in-flight event
// must be due.  Adding never allocates.
type RingBuffer struct {
	Buf []float32
}

// Init sizes (or re-sizes) the buffer for the context's delay bounds
// and zeroes it.  Called from InitBuffers and Calibrate, between
// slices only.
func (rb *RingBuffer) Init(ctx *Context) {
	n := int(ctx.BufferLen())
	if cap(rb.Buf) < n {
		rb.Buf = make([]float32, n)
		return
	}
	rb.Buf = rb.Buf[:n]
	for i := range rb.Buf {
		rb.Buf[i] = 0
	}
}

// AddValue accumulates v into the slot due delaySteps after the
// current step.
func (rb *RingBuffer) AddValue(ctx *Context, delaySteps int64, v float32) {
	if delaySteps <= 0 || delaySteps > int64(len(rb.Buf)) {
		panic(fmt.Sprintf("pulse.RingBuffer: delay %d steps outside (0, %d]", delaySteps, len(rb.Buf)))
	}
	rb.Buf[(ctx.Step+delaySteps)%int64(len(rb.Buf))] += v
}

// Value reads and zeroes the slot for the given lag within the current
// update slice.
func (rb *RingBuffer) Value(ctx *Context, lag int64) float32 {
	i := (ctx.Step + lag) % int64(len(rb.Buf))
	v := rb.Buf[i]
	rb.Buf[i] = 0
	return v
}

// MultiRingBuffer is a set of ring buffers keyed by receptor port.
type MultiRingBuffer struct {
	Bufs []RingBuffer
}

// Init sizes the set for n receptor ports.
func (mb *MultiRingBuffer) Init(ctx *Context, n int) {
	if len(mb.Bufs) != n {
		mb.Bufs = make([]RingBuffer, n)
	}
	for i := range mb.Bufs {
		mb.Bufs[i].Init(ctx)
	}
}

// Buffer returns the ring buffer for the given receptor port; the port
// must be in range (checked at connection setup, so out of range here
// is a contract violation).
func (mb *MultiRingBuffer) Buffer(rt int32) *RingBuffer {
	if rt < 0 || int(rt) >= len(mb.Bufs) {
		panic(fmt.Sprintf("pulse.MultiRingBuffer: receptor %d out of range [0, %d)", rt, len(mb.Bufs)))
	}
	return &mb.Bufs[rt]
}
