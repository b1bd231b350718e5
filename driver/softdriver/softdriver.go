// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package softdriver is a deterministic software implementation of
// driver.Renderer, for tests and development without a real renderer.
//
// It retains scene sources verbatim, backs binding slots with host
// memory, and "renders" each environment tile as a constant color
// derived from the committed camera transform: R/G/B are the camera
// translation components truncated to bytes, depth is the translation
// z. That is enough signal to verify the whole commit, step and unpack
// loop end to end.
package softdriver

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gogpu/tiledcam"
	"github.com/gogpu/tiledcam/driver"
)

// ErrClosed is returned when using a closed driver.
var ErrClosed = errors.New("softdriver: driver is closed")

// Driver implements driver.Renderer over host memory.
type Driver struct {
	mu sync.Mutex

	grid tiledcam.Grid

	scenes     map[driver.SceneHandle]string
	nextHandle driver.SceneHandle

	cameraSlot *slot
	slots      []*slot

	atlas []uint8
	depth []float32

	steps  int
	time   float64
	resets []float64
	closed bool
}

// New creates a driver rendering into an atlas with the grid's
// dimensions.
func New(grid tiledcam.Grid) *Driver {
	return &Driver{
		grid:   grid,
		scenes: make(map[driver.SceneHandle]string),
		atlas:  make([]uint8, grid.AtlasWidth()*grid.AtlasHeight()*4),
		depth:  make([]float32, grid.AtlasWidth()*grid.AtlasHeight()),
	}
}

// AddScene retains the source verbatim and returns its handle.
func (d *Driver) AddScene(src string) (driver.SceneHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrClosed
	}
	if src == "" {
		return 0, fmt.Errorf("softdriver: empty scene source")
	}
	d.nextHandle++
	d.scenes[d.nextHandle] = src
	return d.nextHandle, nil
}

// RemoveScene drops previously added content.
func (d *Driver) RemoveScene(h driver.SceneHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.scenes[h]; !ok {
		return fmt.Errorf("softdriver: unknown scene handle %d", h)
	}
	delete(d.scenes, h)
	return nil
}

// Scenes returns the retained scene sources, for inspection.
func (d *Driver) Scenes() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.scenes))
	for _, src := range d.scenes {
		out = append(out, src)
	}
	return out
}

// BindAttribute creates a memory-backed slot with one entry per path.
// The slot bound to paths containing "Camera" poses the cameras at
// Step time.
func (d *Driver) BindAttribute(primPaths []string, attribute, semantic string) (driver.Slot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	if len(primPaths) == 0 {
		return nil, fmt.Errorf("softdriver: no prim paths")
	}

	s := &slot{
		entries: len(primPaths),
		vals:    make([]float32, len(primPaths)*16),
	}
	d.slots = append(d.slots, s)
	if strings.Contains(primPaths[0], "Camera") {
		d.cameraSlot = s
	}
	return s, nil
}

// Step rasterizes every environment tile from the committed camera
// transforms and returns the frame for each requested product.
func (d *Driver) Step(products []string, deltaTime float64) (map[string]driver.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	d.steps++
	d.time += deltaTime

	w, h := d.grid.AtlasWidth(), d.grid.AtlasHeight()
	for env := 0; env < d.grid.Envs(); env++ {
		r, g, b, z := d.envColor(env)
		for ly := 0; ly < d.grid.TileHeight(); ly++ {
			for lx := 0; lx < d.grid.TileWidth(); lx++ {
				x, y := d.grid.PixelOffset(env, lx, ly)
				i := y*w + x
				d.atlas[i*4+0] = r
				d.atlas[i*4+1] = g
				d.atlas[i*4+2] = b
				d.atlas[i*4+3] = 255
				d.depth[i] = z
			}
		}
	}

	frame := driver.Frame{RenderVars: map[string]driver.RenderVar{
		driver.VarColor: &memVar{w: w, h: h, channels: 4, u8: d.atlas},
		driver.VarDepth: &memVar{w: w, h: h, channels: 1, f32: d.depth},
	}}
	out := make(map[string]driver.Frame, len(products))
	for _, p := range products {
		out[p] = frame
	}
	return out, nil
}

// envColor derives the tile color for one environment from its
// committed camera transform (translation truncated to bytes). Without
// a camera slot every tile renders black at depth zero.
func (d *Driver) envColor(env int) (r, g, b uint8, z float32) {
	if d.cameraSlot == nil || env >= d.cameraSlot.entries {
		return 0, 0, 0, 0
	}
	t := d.cameraSlot.vals[env*16:]
	return uint8(int(t[12])), uint8(int(t[13])), uint8(int(t[14])), t[14]
}

// Reset records the accumulation reset time.
func (d *Driver) Reset(time float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	d.resets = append(d.resets, time)
	return nil
}

// Steps returns how many times Step has run.
func (d *Driver) Steps() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.steps
}

// Resets returns the recorded reset times.
func (d *Driver) Resets() []float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]float64(nil), d.resets...)
}

// Close releases the driver.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// slot is a host-memory binding slot.
type slot struct {
	entries int
	vals    []float32
	staging []float32
	mapped  bool
	unbound bool
}

func (s *slot) Entries() int { return s.entries }

func (s *slot) Map() (driver.SlotMapping, error) {
	if s.unbound {
		return nil, driver.ErrSlotUnbound
	}
	if s.mapped {
		return nil, fmt.Errorf("softdriver: slot is already mapped")
	}
	s.mapped = true
	s.staging = append(s.staging[:0], s.vals...)
	return &slotMapping{slot: s}, nil
}

func (s *slot) Unbind() error {
	s.unbound = true
	return nil
}

type slotMapping struct {
	slot *slot
}

func (m *slotMapping) Floats() []float32 { return m.slot.staging }

func (m *slotMapping) Unmap() error {
	copy(m.slot.vals, m.slot.staging)
	m.slot.mapped = false
	return nil
}

// memVar serves a host buffer as a render variable.
type memVar struct {
	w, h     int
	channels int
	u8       []uint8
	f32      []float32
}

func (v *memVar) Map() (*driver.TensorView, error) {
	return driver.NewTensorView(v.w, v.h, v.channels, v.u8, v.f32, nil), nil
}
