// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package binding

import (
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/tiledcam/driver"
	"github.com/gogpu/tiledcam/internal/gpu"
)

// DeviceSlot is a driver.Slot over a device-resident transform buffer.
// Integrations that expose their bindings as raw GPU buffers wrap them
// in a DeviceSlot; the slot drives the buffer's async map protocol and
// presents the mapped bytes as float32 entries.
//
// Not safe for concurrent use, matching the Slot contract.
type DeviceSlot struct {
	buf     *gpu.Buffer
	entries int

	// scratch is the float view handed to mappings, reused across map
	// cycles to avoid a per-frame allocation.
	scratch []float32

	unbound bool
}

// NewDeviceSlot allocates a transform buffer for entries transforms on
// the given device and wraps it as a slot. device and queue may be nil
// for a host-only slot (tests, software renderers).
func NewDeviceSlot(device hal.Device, queue hal.Queue, entries int, label string) (*DeviceSlot, error) {
	buf, err := gpu.CreateTransformBuffer(device, queue, entries, label)
	if err != nil {
		return nil, fmt.Errorf("binding: %w", err)
	}
	return &DeviceSlot{
		buf:     buf,
		entries: entries,
		scratch: make([]float32, entries*transformFloats),
	}, nil
}

// Entries returns the number of transform entries in the slot.
func (s *DeviceSlot) Entries() int { return s.entries }

// Map acquires the buffer's write mapping and decodes the current
// contents into the float view. The mapping stays open until the
// returned mapping's Unmap commits.
func (s *DeviceSlot) Map() (driver.SlotMapping, error) {
	if s.unbound {
		return nil, driver.ErrSlotUnbound
	}

	var status gpu.MapStatus
	if err := s.buf.MapAsync(gputypes.MapModeWrite, 0, s.buf.Size(), func(st gpu.MapStatus) {
		status = st
	}); err != nil {
		return nil, fmt.Errorf("binding: map failed: %w", err)
	}
	for !s.buf.PollMapAsync() {
	}
	if status != gpu.MapStatusSuccess {
		return nil, fmt.Errorf("binding: map resolved with status %v", status)
	}

	raw, err := s.buf.GetMappedRange(0, uint64(len(s.scratch)*4))
	if err != nil {
		_ = s.buf.Unmap()
		return nil, fmt.Errorf("binding: mapped range: %w", err)
	}
	for i := range s.scratch {
		bits := uint32(raw[i*4]) |
			uint32(raw[i*4+1])<<8 |
			uint32(raw[i*4+2])<<16 |
			uint32(raw[i*4+3])<<24
		s.scratch[i] = math.Float32frombits(bits)
	}
	return &deviceMapping{slot: s, raw: raw}, nil
}

// Unbind releases the binding and its buffer. Subsequent Map calls fail
// with driver.ErrSlotUnbound.
func (s *DeviceSlot) Unbind() error {
	if s.unbound {
		return nil
	}
	s.unbound = true
	s.buf.Destroy()
	return nil
}

type deviceMapping struct {
	slot *DeviceSlot
	raw  []byte
}

func (m *deviceMapping) Floats() []float32 { return m.slot.scratch }

// Unmap encodes the float view back into the mapped bytes and commits
// the buffer. Float32 values go out little-endian, the layout compute
// shaders read. Unmap after the commit is a no-op, matching
// TensorView.Unmap and the buffer's own Unmap.
func (m *deviceMapping) Unmap() error {
	if m.raw == nil {
		return nil
	}
	for i, v := range m.slot.scratch {
		bits := math.Float32bits(v)
		m.raw[i*4+0] = byte(bits)
		m.raw[i*4+1] = byte(bits >> 8)
		m.raw[i*4+2] = byte(bits >> 16)
		m.raw[i*4+3] = byte(bits >> 24)
	}
	m.raw = nil
	return m.slot.buf.Unmap()
}
