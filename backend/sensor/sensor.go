// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package sensor implements the native tiled sensor strategy: the
// external sensor understands "N cameras, one batch" itself, so the
// backend's job is transform preparation on the way in and plane
// decoding on the way out.
package sensor

import (
	"fmt"

	"github.com/gogpu/tiledcam"
	"github.com/gogpu/tiledcam/backend"
	"github.com/gogpu/tiledcam/driver"
	"github.com/gogpu/tiledcam/internal/parallel"
)

func init() {
	backend.Register(backend.BackendSensor, New)
}

// Backend drives a driver.TiledSensor.
type Backend struct {
	sensor driver.TiledSensor
	grid   tiledcam.Grid
	codec  *tiledcam.Codec
	pool   *parallel.Pool

	enableDepth bool

	// Per-frame scratch, allocated once in Init.
	transforms []tiledcam.Transform
	color      []uint32
	depth      []float32

	raysSet     bool
	initialized bool
	closed      bool
}

// New builds the sensor backend from cfg. Fails with ErrNoDriver when
// no sensor is configured.
func New(cfg *backend.Config) (tiledcam.Backend, error) {
	if cfg.Sensor == nil {
		return nil, fmt.Errorf("%w: sensor", backend.ErrNoDriver)
	}
	if cfg.Envs <= 0 {
		return nil, fmt.Errorf("%w: %d environments", tiledcam.ErrEnvCount, cfg.Envs)
	}

	grid := tiledcam.NewGrid(cfg.Envs, cfg.Width, cfg.Height)
	pool := cfg.NewPool()
	return &Backend{
		sensor:      cfg.Sensor,
		grid:        grid,
		codec:       tiledcam.NewCodec(grid, pool),
		pool:        pool,
		enableDepth: cfg.EnableDepth,
	}, nil
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return backend.BackendSensor }

// Init allocates the per-frame transform and plane scratch.
func (b *Backend) Init() error {
	if b.closed {
		return tiledcam.ErrClosed
	}
	envs := b.grid.Envs()
	pixels := b.grid.TileWidth() * b.grid.TileHeight()
	b.transforms = make([]tiledcam.Transform, envs)
	b.color = make([]uint32, envs*pixels)
	if b.enableDepth {
		b.depth = make([]float32, envs*pixels)
	}
	b.initialized = true
	return nil
}

// RequiresScene reports false: the sensor owns its scene.
func (b *Backend) RequiresScene() bool { return false }

// BindScene is a no-op for the sensor strategy.
func (b *Backend) BindScene(tiledcam.SceneRef) error { return nil }

// Render renders every camera in one sensor call and decodes the
// packed color and depth planes into out. The first frame must carry
// intrinsics so the per-camera rays can be configured; later frames
// may omit them.
func (b *Backend) Render(in tiledcam.FrameInput, out *tiledcam.Output) error {
	if b.closed {
		return tiledcam.ErrClosed
	}
	if !b.initialized {
		return tiledcam.ErrNotInitialized
	}

	if in.Intrinsics != nil {
		fovs := tiledcam.VerticalFOVs(in.Intrinsics, b.grid.TileHeight())
		if err := b.sensor.SetRays(fovs); err != nil {
			return fmt.Errorf("sensor: set rays: %w", err)
		}
		b.raysSet = true
	}
	if !b.raysSet {
		return fmt.Errorf("sensor: intrinsics required before the first render")
	}

	tiledcam.BuildTransforms(b.transforms, in.Pos, in.Orn, tiledcam.LayoutRowMajor, b.pool)

	if err := b.sensor.Render(b.transforms, b.color, b.depth); err != nil {
		return fmt.Errorf("sensor: render step: %w", err)
	}

	if err := b.codec.DecodePacked(b.color, out); err != nil {
		return err
	}
	if b.depth != nil {
		pixels := b.grid.TileWidth() * b.grid.TileHeight()
		b.pool.Run1D(b.grid.Envs(), func(env int) {
			copy(out.Depth(env), b.depth[env*pixels:(env+1)*pixels])
		})
	}
	return nil
}

// AtlasRGBA composes the per-environment planes of out into atlas, one
// tile per environment, for the combined debug view.
func (b *Backend) AtlasRGBA(out *tiledcam.Output, atlas []uint8) error {
	return b.codec.PackRGBA(out, atlas)
}

// Reset is a no-op: the sensor does not accumulate across frames.
func (b *Backend) Reset() error { return nil }

// Close releases the sensor. Idempotent.
func (b *Backend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.pool.Close()
	return b.sensor.Close()
}
