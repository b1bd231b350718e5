// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package backend holds the registry of rendering strategies and the
// configuration they are constructed from.
//
// Strategies register a factory in init() and are selected by name or
// by priority; hosts build a backend here and hand it to tiledcam.New
// via tiledcam.WithBackend. The root package never imports this one,
// mirroring the usual registry layering.
package backend

import (
	"errors"
	"fmt"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/tiledcam"
	"github.com/gogpu/tiledcam/driver"
	"github.com/gogpu/tiledcam/internal/parallel"
	"github.com/gogpu/tiledcam/physics"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is
	// not registered or cannot be constructed.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNoDriver is returned when the configuration lacks the external
	// collaborator a strategy needs.
	ErrNoDriver = errors.New("backend: required driver not configured")
)

// Backend names of the built-in strategies.
const (
	// BackendSensor is the native tiled sensor strategy.
	BackendSensor = "sensor"

	// BackendScenegraph is the generic scene-description strategy.
	BackendScenegraph = "scenegraph"
)

// DefaultCameraPathFormat is the per-environment camera path pattern,
// Printf-style with the environment index as the single argument.
const DefaultCameraPathFormat = "/World/envs/env_%d/Camera"

// Config carries everything a strategy factory needs. The embedded
// tiledcam.Config fixes the grid; the driver fields hold the external
// collaborators, and only the ones the chosen strategy uses must be
// set.
type Config struct {
	tiledcam.Config

	// Device is the host's shared GPU device, if any.
	Device tiledcam.DeviceHandle

	// HALDevice and HALQueue give direct hal access for hosts built on
	// wgpu. When nil, they are recovered from Device if the provider
	// exposes them.
	HALDevice hal.Device
	HALQueue  hal.Queue

	// Workers sizes the worker pool for the data-parallel kernels.
	// 0 runs them serially, negative uses GOMAXPROCS.
	Workers int

	// Sensor is the native tiled sensor (BackendSensor).
	Sensor driver.TiledSensor

	// Renderer is the scene-description renderer (BackendScenegraph).
	Renderer driver.Renderer

	// Physics is the pose source for the object sync; optional.
	Physics physics.Provider

	// Filter selects which physics bodies are synced. Zero value means
	// physics.DefaultFilter.
	Filter physics.Filter

	// CameraPathFormat overrides DefaultCameraPathFormat.
	CameraPathFormat string
}

// halProvider is the optional interface a DeviceHandle implements when
// the host can expose its raw hal handles. gpucontext keeps the native
// device opaque, so this is the only bridge.
type halProvider interface {
	HALDevice() hal.Device
	HALQueue() hal.Queue
}

// HAL returns the hal device and queue to allocate binding buffers on,
// or nil when the configuration is host-only.
func (c *Config) HAL() (hal.Device, hal.Queue) {
	if c.HALDevice != nil {
		return c.HALDevice, c.HALQueue
	}
	if p, ok := c.Device.(halProvider); ok {
		return p.HALDevice(), p.HALQueue()
	}
	return nil, nil
}

// NewPool builds the worker pool a strategy runs its kernels on.
// Returns nil (serial) for Workers == 0. The strategy owns the pool
// and closes it with the backend.
func (c *Config) NewPool() *parallel.Pool {
	if c.Workers == 0 {
		return nil
	}
	return parallel.New(c.Workers)
}

// BodyFilter returns the configured physics filter, defaulted.
func (c *Config) BodyFilter() physics.Filter {
	if c.Filter.EnvPrefix == "" {
		return physics.DefaultFilter()
	}
	return c.Filter
}

// CameraPaths returns one camera path per environment, in environment
// order.
func (c *Config) CameraPaths() []string {
	format := c.CameraPathFormat
	if format == "" {
		format = DefaultCameraPathFormat
	}
	paths := make([]string, c.Envs)
	for i := range paths {
		paths[i] = fmt.Sprintf(format, i)
	}
	return paths
}
