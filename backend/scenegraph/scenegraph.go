// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package scenegraph implements the generic scene-description strategy:
// the external renderer knows nothing about tiling, so the backend
// synthesizes a camera-per-environment declaration block with one
// shared render product, writes camera and object transforms into
// binding slots each frame, and unpacks the product's atlas through
// the codec.
package scenegraph

import (
	"fmt"

	"github.com/gogpu/tiledcam"
	"github.com/gogpu/tiledcam/backend"
	"github.com/gogpu/tiledcam/binding"
	"github.com/gogpu/tiledcam/driver"
	"github.com/gogpu/tiledcam/internal/gpu"
	"github.com/gogpu/tiledcam/internal/parallel"
	"github.com/gogpu/tiledcam/physics"
)

func init() {
	backend.Register(backend.BackendScenegraph, New)
}

// Attribute binding contract with the external renderer.
const (
	// attrWorldMatrix is the bound attribute carrying a prim's world
	// transform.
	attrWorldMatrix = "omni:fabric:worldMatrix"

	// semanticTransform tells the renderer to expose the attribute as
	// one 4x4 float32 per prim.
	semanticTransform = "transform_4x4"
)

// stepDeltaTime is the fixed per-frame advance handed to the renderer.
const stepDeltaTime = 1.0 / 60.0

// Backend drives a driver.Renderer.
type Backend struct {
	renderer driver.Renderer
	grid     tiledcam.Grid
	codec    *tiledcam.Codec
	pool     *parallel.Pool

	enableDepth bool
	cameraPaths []string

	provider physics.Provider
	filter   physics.Filter
	table    physics.BodyTable

	cameraSlot driver.Slot
	objectSlot driver.Slot
	handles    []driver.SceneHandle

	// extractor is the device-side tile scatter pipeline, built when
	// the host shares a hal device. Optional; the codec remains the
	// data path.
	extractor *gpu.Extractor

	transforms []tiledcam.Transform
	simTime    float64

	// Once-only flags for BindingUnavailable logging.
	cameraWarned bool
	objectWarned bool

	initialized bool
	bound       bool
	closed      bool
}

// New builds the scenegraph backend from cfg. Fails with ErrNoDriver
// when no renderer is configured.
func New(cfg *backend.Config) (tiledcam.Backend, error) {
	if cfg.Renderer == nil {
		return nil, fmt.Errorf("%w: renderer", backend.ErrNoDriver)
	}
	if cfg.Envs <= 0 {
		return nil, fmt.Errorf("%w: %d environments", tiledcam.ErrEnvCount, cfg.Envs)
	}

	grid := tiledcam.NewGrid(cfg.Envs, cfg.Width, cfg.Height)
	pool := cfg.NewPool()
	b := &Backend{
		renderer:    cfg.Renderer,
		grid:        grid,
		codec:       tiledcam.NewCodec(grid, pool),
		pool:        pool,
		enableDepth: cfg.EnableDepth,
		cameraPaths: cfg.CameraPaths(),
		provider:    cfg.Physics,
		filter:      cfg.BodyFilter(),
	}

	if dev, queue := cfg.HAL(); dev != nil {
		extractor, err := gpu.NewExtractor(dev, queue, &gpu.ExtractParams{
			AtlasWidth:   uint32(grid.AtlasWidth()),
			AtlasHeight:  uint32(grid.AtlasHeight()),
			TileWidth:    uint32(grid.TileWidth()),
			TileHeight:   uint32(grid.TileHeight()),
			TilesPerSide: uint32(grid.TilesPerSide()),
			EnvCount:     uint32(grid.Envs()),
		})
		if err != nil {
			tiledcam.Logger().Debug("tile extract pipeline unavailable, CPU codec only",
				"error", err)
		} else {
			b.extractor = extractor
		}
	}

	return b, nil
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return backend.BackendScenegraph }

// Init allocates per-frame scratch. The renderer is not touched until
// BindScene.
func (b *Backend) Init() error {
	if b.closed {
		return tiledcam.ErrClosed
	}
	b.transforms = make([]tiledcam.Transform, b.grid.Envs())
	b.initialized = true
	return nil
}

// RequiresScene reports true: rendering needs the merged scene bound
// first.
func (b *Backend) RequiresScene() bool { return true }

// BindScene merges the synthesized camera and render-product
// declarations with the user geometry, then establishes the camera and
// object binding slots. A slot that cannot be established is left nil
// and skipped each frame with a single warning; the scene itself
// failing to load is fatal.
func (b *Backend) BindScene(scene tiledcam.SceneRef) error {
	if b.closed {
		return tiledcam.ErrClosed
	}
	if !b.initialized {
		return tiledcam.ErrNotInitialized
	}

	h, err := b.renderer.AddScene(synthesizeScene(b.cameraPaths, b.grid, b.enableDepth))
	if err != nil {
		return fmt.Errorf("scenegraph: camera declarations: %w", err)
	}
	b.handles = append(b.handles, h)

	if scene != "" {
		h, err := b.renderer.AddScene(string(scene))
		if err != nil {
			return fmt.Errorf("scenegraph: user scene: %w", err)
		}
		b.handles = append(b.handles, h)
	}

	b.cameraSlot, err = b.renderer.BindAttribute(b.cameraPaths, attrWorldMatrix, semanticTransform)
	if err != nil {
		tiledcam.Logger().Warn("camera binding unavailable",
			"error", err)
		b.cameraSlot = nil
		b.cameraWarned = true
	}

	if b.provider != nil {
		b.table = physics.BuildBodyTable(b.provider.BodyPaths(), b.filter)
		if b.table.Len() > 0 {
			b.objectSlot, err = b.renderer.BindAttribute(b.table.Paths(), attrWorldMatrix, semanticTransform)
			if err != nil {
				tiledcam.Logger().Warn("object binding unavailable",
					"bodies", b.table.Len(), "error", err)
				b.objectSlot = nil
				b.objectWarned = true
			}
		}
	}

	b.bound = true
	tiledcam.Logger().Info("scene bound",
		"cameras", len(b.cameraPaths), "bodies", b.table.Len())
	return nil
}

// Render runs the frame sequence: camera commit, object sync, renderer
// step, atlas unpack. Both commits strictly precede the step. Binding
// failures skip their own stage only; a step or unpack failure returns
// with out untouched.
func (b *Backend) Render(in tiledcam.FrameInput, out *tiledcam.Output) error {
	if b.closed {
		return tiledcam.ErrClosed
	}
	if !b.initialized {
		return tiledcam.ErrNotInitialized
	}
	if !b.bound {
		return tiledcam.ErrNotBound
	}

	tiledcam.BuildTransforms(b.transforms, in.Pos, in.Orn, tiledcam.LayoutColumnMajor, b.pool)

	if err := binding.WriteTransforms(b.cameraSlot, b.transforms); err != nil {
		if !b.cameraWarned {
			tiledcam.Logger().Warn("camera sync skipped", "error", err)
			b.cameraWarned = true
		}
	} else {
		b.cameraWarned = false
	}

	if b.provider != nil && b.table.Len() > 0 {
		if err := physics.Sync(b.provider, b.table, b.objectSlot, tiledcam.LayoutColumnMajor, b.pool); err != nil {
			if !b.objectWarned {
				tiledcam.Logger().Warn("object sync skipped", "error", err)
				b.objectWarned = true
			}
		} else {
			b.objectWarned = false
		}
	}

	frames, err := b.renderer.Step([]string{ProductPath}, stepDeltaTime)
	if err != nil {
		return fmt.Errorf("scenegraph: render step: %w", err)
	}
	b.simTime += stepDeltaTime

	frame, ok := frames[ProductPath]
	if !ok {
		return fmt.Errorf("%w: %s", driver.ErrNoFrame, ProductPath)
	}

	return b.unpack(frame, out)
}

// unpack maps the frame's render variables and distributes them into
// out. Every view is validated before either plane is written, so a bad
// depth buffer cannot leave out with this frame's color and the
// previous frame's depth.
func (b *Backend) unpack(frame driver.Frame, out *tiledcam.Output) error {
	colorVar, ok := frame.RenderVars[driver.VarColor]
	if !ok {
		return fmt.Errorf("%w: missing %s", driver.ErrNoFrame, driver.VarColor)
	}
	colorView, err := colorVar.Map()
	if err != nil {
		return fmt.Errorf("scenegraph: map %s: %w", driver.VarColor, err)
	}
	defer colorView.Unmap()

	var depthView *driver.TensorView
	if b.enableDepth {
		if rv, ok := frame.RenderVars[driver.VarDepth]; ok {
			depthView, err = rv.Map()
			if err != nil {
				return fmt.Errorf("scenegraph: map %s: %w", driver.VarDepth, err)
			}
			defer depthView.Unmap()
		} else {
			// The renderer was asked for depth but did not produce it;
			// color still lands, depth keeps the previous frame.
			tiledcam.Logger().Debug("depth var missing from frame")
		}
	}

	if err := b.codec.CheckAtlas(colorView.Width, colorView.Height); err != nil {
		return err
	}
	if depthView != nil {
		if err := b.codec.CheckAtlas(depthView.Width, depthView.Height); err != nil {
			return err
		}
	}

	if err := b.codec.UnpackRGBA(colorView.U8, colorView.Width, colorView.Height, out); err != nil {
		return err
	}
	if depthView != nil {
		if err := b.codec.UnpackDepth(depthView.F32, depthView.Width, depthView.Height, out); err != nil {
			return err
		}
	}

	// Mirror the scatter on the device pipeline while the color view is
	// still mapped. Best effort: the CPU codec already produced the
	// host-side frame.
	if b.extractor.Ready() {
		if err := b.extractor.Dispatch(colorView.U8); err != nil {
			tiledcam.Logger().Debug("tile extract dispatch failed", "error", err)
		}
	}
	return nil
}

// Reset discards the renderer's accumulated samples at the current
// simulation time. Bindings and scene content stay.
func (b *Backend) Reset() error {
	if b.closed {
		return tiledcam.ErrClosed
	}
	return b.renderer.Reset(b.simTime)
}

// Close unbinds the slots, removes the scene content this backend
// added, and releases the renderer. Idempotent.
func (b *Backend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true

	if b.cameraSlot != nil {
		_ = b.cameraSlot.Unbind()
		b.cameraSlot = nil
	}
	if b.objectSlot != nil {
		_ = b.objectSlot.Unbind()
		b.objectSlot = nil
	}
	for _, h := range b.handles {
		_ = b.renderer.RemoveScene(h)
	}
	b.handles = nil

	if b.extractor != nil {
		b.extractor.Destroy()
		b.extractor = nil
	}
	b.pool.Close()
	return b.renderer.Close()
}
