// Package tiledcam renders many camera views in one batch by tiling
// them into a single atlas image.
//
// # Overview
//
// tiledcam drives an external renderer that draws N environments as
// tiles of one large image and hands the result back as per-environment
// color and depth planes. It owns the transform construction, the tile
// grid addressing, the atlas pack/unpack codec, the binding-slot sync
// with the renderer, and the per-frame orchestration; the actual
// drawing happens in the external collaborator behind the driver
// interfaces.
//
// # Quick Start
//
//	import (
//		"github.com/gogpu/tiledcam"
//		"github.com/gogpu/tiledcam/backend"
//		_ "github.com/gogpu/tiledcam/backend/scenegraph"
//	)
//
//	cfg := &backend.Config{
//		Config:   tiledcam.Config{Envs: 16, Width: 64, Height: 64},
//		Renderer: myRenderer,
//	}
//	be, err := backend.Default(cfg)
//	// handle err
//
//	r := tiledcam.New(cfg.Config, tiledcam.WithBackend(be))
//	r.Initialize()
//	r.BindScene(scene)
//	for {
//		r.Render(pos, orn, intrinsics)
//		rgb, _, _ := r.Output(tiledcam.DataTypeRGB)
//		// consume rgb
//	}
//
// # Backends
//
// Two strategies ship in subpackages of backend, registered by blank
// import: sensor drives a renderer that natively understands batched
// cameras, scenegraph drives a generic scene-description renderer by
// synthesizing one camera per environment and a shared tiled render
// product. driver/softdriver is not a strategy but a deterministic
// in-memory renderer used by the tests.
//
// # Architecture
//
// The library is organized into:
//   - Public API: Renderer, Output, Grid, Codec, Transform
//   - driver: narrow interfaces to the external renderer
//   - binding: scoped slot mapping and device-backed slots
//   - physics: pose source filtering and object sync
//   - backend: strategy registry and the two built-in strategies
//
// # Coordinate System
//
// Camera poses are world-space positions with XYZW quaternions. The
// transform layer produces 4x4 float32 matrices in two memory layouts:
// row-major for the sensor strategy, column-major for the scenegraph
// strategy. Translation lives at elements 12..14 in both.
package tiledcam
