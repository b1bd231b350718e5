// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package gpu

import (
	"strings"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice creates a noop device and queue for testing.
// Returns the device, queue, and a cleanup function.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

// testExtractParams is a 2x2 grid of 4x4 tiles holding 3 environments.
func testExtractParams() *ExtractParams {
	return &ExtractParams{
		AtlasWidth:   8,
		AtlasHeight:  8,
		TileWidth:    4,
		TileHeight:   4,
		TilesPerSide: 2,
		EnvCount:     3,
	}
}

func TestExtractParamsBytes(t *testing.T) {
	p := testExtractParams()
	b := p.Bytes()
	if len(b) != extractParamsSize {
		t.Fatalf("Bytes() length = %d, want %d", len(b), extractParamsSize)
	}
	// AtlasWidth at offset 0, EnvCount at offset 20, little-endian.
	if b[0] != 8 || b[1] != 0 || b[2] != 0 || b[3] != 0 {
		t.Error("AtlasWidth not at offset 0")
	}
	if b[20] != 3 || b[21] != 0 || b[22] != 0 || b[23] != 0 {
		t.Error("EnvCount not at offset 20")
	}
}

func TestNewExtractorValidation(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	if _, err := NewExtractor(nil, queue, testExtractParams()); err == nil {
		t.Error("NewExtractor with nil device succeeded, want error")
	}
	if _, err := NewExtractor(device, nil, testExtractParams()); err == nil {
		t.Error("NewExtractor with nil queue succeeded, want error")
	}
	if _, err := NewExtractor(device, queue, nil); err == nil {
		t.Error("NewExtractor with nil params succeeded, want error")
	}
	if _, err := NewExtractor(device, queue, &ExtractParams{}); err == nil {
		t.Error("NewExtractor with zero params succeeded, want error")
	}
}

func TestNewExtractorBuildsPipeline(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	e, err := NewExtractor(device, queue, testExtractParams())
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	defer e.Destroy()

	if !e.Ready() {
		t.Error("Ready() = false after NewExtractor")
	}
	if e.pipeline == nil {
		t.Error("expected non-nil compute pipeline")
	}
	if e.bindLayout == nil {
		t.Error("expected non-nil bind group layout")
	}
	if e.paramsBuffer == nil || e.atlasBuffer == nil || e.planesBuffer == nil {
		t.Error("expected all three buffers allocated")
	}
	if e.Planes() == nil {
		t.Error("Planes() = nil on a ready extractor")
	}
}

func TestExtractorDispatch(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	p := testExtractParams()
	e, err := NewExtractor(device, queue, p)
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	defer e.Destroy()

	atlas := make([]uint8, p.atlasBytes())
	if err := e.Dispatch(atlas); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	// A short atlas cannot fill the device buffer.
	if err := e.Dispatch(atlas[:len(atlas)-1]); err == nil {
		t.Error("Dispatch with short atlas succeeded, want error")
	} else if !strings.Contains(err.Error(), "needs") {
		t.Errorf("Dispatch short atlas error = %v, want byte count mismatch", err)
	}
}

func TestExtractorDispatchAfterDestroy(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	p := testExtractParams()
	e, err := NewExtractor(device, queue, p)
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	e.Destroy()

	if e.Ready() {
		t.Error("Ready() = true after Destroy")
	}
	if e.Planes() != nil {
		t.Error("Planes() non-nil after Destroy")
	}
	if err := e.Dispatch(make([]uint8, p.atlasBytes())); err == nil {
		t.Error("Dispatch after Destroy succeeded, want error")
	}

	// Destroy is safe to repeat.
	e.Destroy()
}

func TestExtractorNilReady(t *testing.T) {
	var e *Extractor
	if e.Ready() {
		t.Error("Ready() on nil extractor = true, want false")
	}
}
