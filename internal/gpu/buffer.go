// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpu manages device-resident buffers for renderer binding slots
// and the tiled atlas extraction pipeline.
//
// A Buffer follows the wgpu mapping discipline: MapAsync initiates the
// mapping, PollMapAsync drives it to completion, GetMappedRange exposes
// the bytes, Unmap commits. Unlike a plain wgpu buffer, every Buffer
// keeps a persistent host shadow of its contents, so values committed in
// one map cycle are still there in the next. When the buffer is backed
// by a real device, Unmap also writes the mapped range through to device
// memory via the queue.
package gpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Buffer errors.
var (
	// ErrDestroyed is returned when operating on a destroyed buffer.
	ErrDestroyed = errors.New("gpu: buffer has been destroyed")

	// ErrAlreadyMapped is returned when mapping a buffer that is already
	// mapped or has a mapping pending.
	ErrAlreadyMapped = errors.New("gpu: buffer is already mapped or mapping is pending")

	// ErrNotMapped is returned when accessing data of an unmapped buffer.
	ErrNotMapped = errors.New("gpu: buffer is not mapped")

	// ErrMapPending is returned when accessing data while a mapping is
	// still pending.
	ErrMapPending = errors.New("gpu: buffer mapping is pending")

	// ErrInvalidRange is returned when a map or access range is out of
	// bounds or misaligned.
	ErrInvalidRange = errors.New("gpu: range out of bounds")

	// ErrUsageMismatch is returned when the map mode does not match the
	// buffer's usage flags.
	ErrUsageMismatch = errors.New("gpu: map mode does not match buffer usage flags")

	// ErrInvalidSize is returned when creating a buffer with no size.
	ErrInvalidSize = errors.New("gpu: invalid buffer size")

	// ErrNilCallback is returned when MapAsync is called without a
	// callback.
	ErrNilCallback = errors.New("gpu: map callback is nil")
)

// MapState is the mapping state of a buffer.
type MapState int

const (
	// MapStateUnmapped means the buffer is not mapped.
	MapStateUnmapped MapState = iota
	// MapStatePending means a map operation is in flight.
	MapStatePending
	// MapStateMapped means the buffer is mapped.
	MapStateMapped
)

// String returns the string representation of MapState.
func (s MapState) String() string {
	switch s {
	case MapStateUnmapped:
		return "Unmapped"
	case MapStatePending:
		return "Pending"
	case MapStateMapped:
		return "Mapped"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// MapStatus is the result delivered to a MapAsync callback.
type MapStatus int

const (
	// MapStatusSuccess indicates the mapping completed.
	MapStatusSuccess MapStatus = iota
	// MapStatusValidationError indicates the request was invalid.
	MapStatusValidationError
	// MapStatusOutOfRange indicates the requested range was out of bounds.
	MapStatusOutOfRange
	// MapStatusAlreadyPending indicates another mapping was in flight.
	MapStatusAlreadyPending
	// MapStatusUnmappedBeforeCallback indicates Unmap canceled the mapping.
	MapStatusUnmappedBeforeCallback
	// MapStatusDestroyedBeforeCallback indicates Destroy canceled the mapping.
	MapStatusDestroyedBeforeCallback
)

// String returns the string representation of MapStatus.
func (s MapStatus) String() string {
	switch s {
	case MapStatusSuccess:
		return "Success"
	case MapStatusValidationError:
		return "ValidationError"
	case MapStatusOutOfRange:
		return "OutOfRange"
	case MapStatusAlreadyPending:
		return "AlreadyPending"
	case MapStatusUnmappedBeforeCallback:
		return "UnmappedBeforeCallback"
	case MapStatusDestroyedBeforeCallback:
		return "DestroyedBeforeCallback"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// mapAlignment is the WebGPU alignment requirement for map offsets and
// sizes.
const mapAlignment uint64 = 8

// Descriptor describes a buffer to create.
type Descriptor struct {
	// Label is an optional debug name.
	Label string

	// Size is the buffer size in bytes.
	Size uint64

	// Usage specifies how the buffer will be used.
	Usage gputypes.BufferUsage
}

// Buffer is a slot backing buffer with wgpu mapping semantics and a
// persistent host shadow.
//
// Safe for concurrent use; all state mutations hold the mutex. The map
// callback runs from the polling goroutine, outside the lock.
type Buffer struct {
	mu sync.RWMutex

	// halBuffer is the device allocation, or nil for a host-only buffer.
	halBuffer hal.Buffer
	device    hal.Device
	queue     hal.Queue

	desc Descriptor

	// shadow holds the buffer contents between map cycles.
	shadow []byte

	mapState  MapState
	mapMode   gputypes.MapMode
	mapOffset uint64
	mapSize   uint64
	callback  func(MapStatus)

	destroyed bool
}

// Create allocates a buffer. device and queue may both be nil, in which
// case the buffer is host-only: mapping works against the shadow alone
// and Unmap has no device to write through to. With a device, the hal
// allocation is created up front and every committed write range is
// pushed through the queue.
func Create(device hal.Device, queue hal.Queue, desc *Descriptor) (*Buffer, error) {
	if desc == nil {
		return nil, fmt.Errorf("gpu: buffer descriptor is nil")
	}
	if desc.Size == 0 {
		return nil, fmt.Errorf("%w: size is 0", ErrInvalidSize)
	}
	if desc.Usage == 0 {
		return nil, fmt.Errorf("gpu: buffer usage is empty")
	}

	// Align to 4 bytes for copy operations.
	const copyAlignment uint64 = 4
	resolved := *desc
	resolved.Size = (desc.Size + copyAlignment - 1) &^ (copyAlignment - 1)

	b := &Buffer{
		device:   device,
		queue:    queue,
		desc:     resolved,
		shadow:   make([]byte, resolved.Size),
		mapState: MapStateUnmapped,
	}

	if device != nil {
		halBuffer, err := device.CreateBuffer(&hal.BufferDescriptor{
			Label: resolved.Label,
			Size:  resolved.Size,
			Usage: resolved.Usage,
		})
		if err != nil {
			return nil, fmt.Errorf("gpu: buffer creation failed: %w", err)
		}
		b.halBuffer = halBuffer
	}

	return b, nil
}

// CreateTransformBuffer allocates a buffer sized for entries 4x4 float32
// transforms, with the usage flags the binding path needs.
func CreateTransformBuffer(device hal.Device, queue hal.Queue, entries int, label string) (*Buffer, error) {
	if entries <= 0 {
		return nil, fmt.Errorf("%w: %d entries", ErrInvalidSize, entries)
	}
	return Create(device, queue, &Descriptor{
		Label: label,
		Size:  uint64(entries) * 16 * 4,
		Usage: gputypes.BufferUsageMapWrite | gputypes.BufferUsageCopySrc | gputypes.BufferUsageStorage,
	})
}

// Label returns the buffer's debug label.
func (b *Buffer) Label() string { return b.desc.Label }

// Size returns the buffer size in bytes, after alignment.
func (b *Buffer) Size() uint64 { return b.desc.Size }

// Usage returns the buffer usage flags.
func (b *Buffer) Usage() gputypes.BufferUsage { return b.desc.Usage }

// MapState returns the current mapping state.
func (b *Buffer) MapState() MapState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mapState
}

// IsDestroyed reports whether the buffer has been destroyed.
func (b *Buffer) IsDestroyed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.destroyed
}

// Raw returns the underlying hal buffer, or nil for host-only and
// destroyed buffers.
func (b *Buffer) Raw() hal.Buffer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.destroyed {
		return nil
	}
	return b.halBuffer
}

// MapAsync initiates a mapping of size bytes at offset. The callback is
// invoked exactly once, with the final status. Drive the mapping to
// completion with PollMapAsync.
func (b *Buffer) MapAsync(mode gputypes.MapMode, offset, size uint64, callback func(MapStatus)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return ErrDestroyed
	}
	if b.mapState != MapStateUnmapped {
		if callback != nil {
			callback(MapStatusAlreadyPending)
		}
		return ErrAlreadyMapped
	}
	if callback == nil {
		return ErrNilCallback
	}

	if mode != gputypes.MapModeRead && mode != gputypes.MapModeWrite {
		callback(MapStatusValidationError)
		return fmt.Errorf("%w: mode %d", ErrUsageMismatch, mode)
	}
	if mode == gputypes.MapModeRead && !b.desc.Usage.Contains(gputypes.BufferUsageMapRead) {
		callback(MapStatusValidationError)
		return fmt.Errorf("%w: buffer does not have MapRead usage", ErrUsageMismatch)
	}
	if mode == gputypes.MapModeWrite && !b.desc.Usage.Contains(gputypes.BufferUsageMapWrite) {
		callback(MapStatusValidationError)
		return fmt.Errorf("%w: buffer does not have MapWrite usage", ErrUsageMismatch)
	}

	if offset+size > b.desc.Size || offset > b.desc.Size {
		callback(MapStatusOutOfRange)
		return fmt.Errorf("%w: offset %d + size %d > buffer size %d", ErrInvalidRange, offset, size, b.desc.Size)
	}
	if offset%mapAlignment != 0 {
		callback(MapStatusValidationError)
		return fmt.Errorf("%w: offset %d must be %d-byte aligned", ErrInvalidRange, offset, mapAlignment)
	}
	if size%mapAlignment != 0 && size != b.desc.Size-offset {
		// Size needs no alignment when mapping to the end of the buffer.
		callback(MapStatusValidationError)
		return fmt.Errorf("%w: size %d must be %d-byte aligned", ErrInvalidRange, size, mapAlignment)
	}

	b.mapState = MapStatePending
	b.mapMode = mode
	b.mapOffset = offset
	b.mapSize = size
	b.callback = callback
	return nil
}

// PollMapAsync drives a pending mapping to completion. Returns true once
// the mapping has resolved (success or failure), false while still
// pending. The shadow already holds the buffer contents, so completion
// never waits on a device round trip.
func (b *Buffer) PollMapAsync() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mapState != MapStatePending {
		return true
	}

	if b.destroyed {
		b.finishLocked(MapStateUnmapped, MapStatusDestroyedBeforeCallback)
		return true
	}

	b.finishLocked(MapStateMapped, MapStatusSuccess)
	return true
}

// finishLocked resolves the pending mapping and invokes the callback
// outside the lock. Caller holds b.mu.
func (b *Buffer) finishLocked(state MapState, status MapStatus) {
	callback := b.callback
	b.callback = nil
	b.mapState = state
	if callback != nil {
		b.mu.Unlock()
		callback(status)
		b.mu.Lock()
	}
}

// GetMappedRange returns the bytes at [offset, offset+size) of the
// buffer. Only valid while mapped; offset and size are relative to the
// buffer, and the range must lie inside the mapped region. The slice
// aliases the shadow, so writes persist across map cycles.
func (b *Buffer) GetMappedRange(offset, size uint64) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.destroyed {
		return nil, ErrDestroyed
	}
	if b.mapState == MapStatePending {
		return nil, ErrMapPending
	}
	if b.mapState != MapStateMapped {
		return nil, ErrNotMapped
	}
	if offset < b.mapOffset {
		return nil, fmt.Errorf("%w: offset %d is before mapped region start %d",
			ErrInvalidRange, offset, b.mapOffset)
	}
	if offset+size > b.mapOffset+b.mapSize {
		return nil, fmt.Errorf("%w: offset %d + size %d exceeds mapped region end %d",
			ErrInvalidRange, offset, size, b.mapOffset+b.mapSize)
	}

	return b.shadow[offset : offset+size], nil
}

// Unmap commits the mapping. For a write mapping on a device-backed
// buffer, the mapped range of the shadow is written through to device
// memory. Unmapping an unmapped buffer is a no-op; unmapping a pending
// buffer cancels it.
func (b *Buffer) Unmap() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return ErrDestroyed
	}

	switch b.mapState {
	case MapStatePending:
		b.finishLocked(MapStateUnmapped, MapStatusUnmappedBeforeCallback)
		return nil
	case MapStateMapped:
		if b.mapMode == gputypes.MapModeWrite && b.queue != nil && b.halBuffer != nil {
			b.queue.WriteBuffer(b.halBuffer, b.mapOffset, b.shadow[b.mapOffset:b.mapOffset+b.mapSize])
		}
		b.mapState = MapStateUnmapped
		b.callback = nil
		return nil
	default:
		return nil
	}
}

// Destroy releases the buffer. A pending mapping is canceled with
// MapStatusDestroyedBeforeCallback. Idempotent.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	device := b.device
	halBuf := b.halBuffer
	callback := b.callback
	wasPending := b.mapState == MapStatePending
	b.halBuffer = nil
	b.shadow = nil
	b.callback = nil
	b.mapState = MapStateUnmapped
	b.mu.Unlock()

	if wasPending && callback != nil {
		callback(MapStatusDestroyedBeforeCallback)
	}
	if device != nil && halBuf != nil {
		device.DestroyBuffer(halBuf)
	}
}
