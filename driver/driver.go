// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package driver defines the narrow interfaces through which tiledcam
// consumes its external collaborators: the rendering backend that owns
// the scene and produces frames, and the tiled camera sensor used by the
// native strategy.
//
// tiledcam never implements a renderer; it only writes transforms into
// the slots a renderer exposes, steps it, and decodes what comes back.
// Everything a real renderer integration has to provide is in this
// package, and the softdriver subpackage provides a deterministic
// software reference implementation for tests and development.
package driver

import (
	"errors"

	"github.com/gogpu/tiledcam"
)

// Common driver errors.
var (
	// ErrNoFrame is returned by integrations when a step produced no
	// frame for a requested render product.
	ErrNoFrame = errors.New("driver: step produced no frame for product")

	// ErrSlotUnbound is returned when mapping a slot whose binding has
	// been released.
	ErrSlotUnbound = errors.New("driver: slot is unbound")
)

// Well-known render variable names. A frame's RenderVars map contains at
// least the color variable; depth is present only when the render product
// requested it.
const (
	// VarColor is the low-dynamic-range color output of a render product.
	VarColor = "LdrColor"

	// VarDepth is the distance-to-camera output of a render product.
	VarDepth = "DistanceToCamera"
)

// SceneHandle identifies scene content added to a renderer, for later
// removal. Zero is never a valid handle.
type SceneHandle uint64

// Renderer is the scene-description rendering backend consumed by the
// scenegraph strategy. Implementations wrap the real external renderer;
// all methods are blocking and none are safe for concurrent use.
type Renderer interface {
	// AddScene loads scene-description source into the renderer and
	// returns a handle for later removal.
	AddScene(src string) (SceneHandle, error)

	// RemoveScene removes previously added scene content.
	RemoveScene(h SceneHandle) error

	// BindAttribute binds one attribute across a set of prim paths and
	// exposes the values as a device-resident slot with one entry per
	// path, in path order. Returns nil and an error if any path does not
	// exist in the scene.
	BindAttribute(primPaths []string, attribute, semantic string) (Slot, error)

	// Step renders the given render products and returns one frame per
	// product path. The call blocks until the renderer has produced the
	// frame; renderers that accumulate samples across steps return the
	// current accumulation state.
	Step(products []string, deltaTime float64) (map[string]Frame, error)

	// Reset discards accumulated render state (path-tracer samples and
	// the like) without touching scene content or bindings.
	Reset(time float64) error

	// Close releases the renderer. The renderer must not be used after
	// Close returns.
	Close() error
}

// Frame is the output of one render product for one step: a set of named
// render variables.
type Frame struct {
	// RenderVars maps variable name (VarColor, VarDepth, ...) to its
	// buffer. Contains at least VarColor.
	RenderVars map[string]RenderVar
}

// RenderVar is one named output buffer of a frame. Its pixels live in
// renderer-owned memory and are only accessible through a bounded Map
// scope.
type RenderVar interface {
	// Map exposes the variable's pixels. The returned view is valid
	// until its Unmap is called; the renderer must not be stepped while
	// a view is open.
	Map() (*TensorView, error)
}

// TensorView is a scoped view over a mapped render variable. Exactly one
// of U8 and F32 is non-nil, depending on the variable's element type.
// The slices alias renderer-owned memory: they must not be retained
// after Unmap.
type TensorView struct {
	// Width and Height are the pixel dimensions of the buffer.
	Width, Height int

	// Channels is the per-pixel channel count (4 for color, 1 for depth).
	Channels int

	// U8 holds byte-per-channel data, row-major, or nil.
	U8 []uint8

	// F32 holds float32-per-channel data, row-major, or nil.
	F32 []float32

	// unmap releases the view. Set by the integration; may be nil for
	// views over host-owned memory.
	unmap func() error
}

// NewTensorView builds a view with the given release hook. Integrations
// use this; unmap may be nil when no release is needed.
func NewTensorView(width, height, channels int, u8 []uint8, f32 []float32, unmap func() error) *TensorView {
	return &TensorView{
		Width:    width,
		Height:   height,
		Channels: channels,
		U8:       u8,
		F32:      f32,
		unmap:    unmap,
	}
}

// Unmap releases the view. The view's slices are invalid afterwards.
// Safe to call on a view without a release hook.
func (v *TensorView) Unmap() error {
	if v.unmap == nil {
		return nil
	}
	fn := v.unmap
	v.unmap = nil
	return fn()
}

// Slot is a renderer-owned, device-resident buffer of transform entries,
// one 4x4 float32 matrix per bound prim path. The renderer owns the
// allocation and layout; tiledcam owns the values written during a
// bounded mapping. See the binding package for the scoped write
// discipline.
type Slot interface {
	// Entries returns the number of transform entries in the slot.
	Entries() int

	// Map acquires exclusive mapped access to the slot's buffer. The
	// mapping is valid until Unmap; no renderer step or second mapping
	// of the same slot may happen while it is open.
	Map() (SlotMapping, error)

	// Unbind releases the binding. Subsequent Map calls fail with
	// ErrSlotUnbound.
	Unbind() error
}

// SlotMapping is one open mapping of a Slot.
type SlotMapping interface {
	// Floats returns the mapped transform entries as a flat float32
	// slice, 16 values per entry. Writes become visible to the renderer
	// when Unmap commits them.
	Floats() []float32

	// Unmap commits the written values and releases the mapping.
	Unmap() error
}

// TiledSensor is the native tiled camera sensor consumed by the sensor
// strategy. The sensor understands "N cameras, one shared framebuffer"
// itself: it renders every camera in one call and returns per-camera
// planes in its own packed formats.
type TiledSensor interface {
	// SetRays configures per-camera pinhole rays from vertical FOVs in
	// radians, one per camera.
	SetRays(fovY []float32) error

	// Render renders all cameras with the given world transforms. color
	// receives one packed uint32 pixel per camera pixel (low byte = R),
	// env-major row-major; depth receives one float32 per pixel in the
	// same order and may be nil if the caller does not want depth.
	Render(transforms []tiledcam.Transform, color []uint32, depth []float32) error

	// Close releases the sensor.
	Close() error
}
