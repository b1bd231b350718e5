// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/gputypes"
	types "github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

//go:embed shaders/tile_extract.wgsl
var tileExtractWGSL string

// ExtractParams is the uniform block of the tile extraction shader.
// Must match the Params struct in tile_extract.wgsl.
type ExtractParams struct {
	AtlasWidth   uint32 // Atlas width in pixels
	AtlasHeight  uint32 // Atlas height in pixels
	TileWidth    uint32 // Tile width in pixels
	TileHeight   uint32 // Tile height in pixels
	TilesPerSide uint32 // Grid side length in tiles
	EnvCount     uint32 // Number of populated tiles
	Pad0         uint32 // Padding for alignment
	Pad1         uint32 // Padding for alignment
}

// extractParamsSize is the byte size of ExtractParams on the GPU.
const extractParamsSize = 32

// Bytes returns the params in the shader's uniform layout,
// little-endian.
func (p *ExtractParams) Bytes() []byte {
	fields := [8]uint32{
		p.AtlasWidth, p.AtlasHeight,
		p.TileWidth, p.TileHeight,
		p.TilesPerSide, p.EnvCount,
		p.Pad0, p.Pad1,
	}
	out := make([]byte, extractParamsSize)
	for i, v := range fields {
		out[i*4+0] = byte(v)
		out[i*4+1] = byte(v >> 8)
		out[i*4+2] = byte(v >> 16)
		out[i*4+3] = byte(v >> 24)
	}
	return out
}

// atlasBytes is the byte size of the packed atlas buffer, one uint32
// per pixel.
func (p *ExtractParams) atlasBytes() uint64 {
	return uint64(p.AtlasWidth) * uint64(p.AtlasHeight) * 4
}

// planeBytes is the byte size of the env-major plane buffer.
func (p *ExtractParams) planeBytes() uint64 {
	return uint64(p.EnvCount) * uint64(p.TileWidth) * uint64(p.TileHeight) * 4
}

// Extractor owns the compute pipeline that scatters an atlas into
// per-environment pixel planes on the device. It is built once per
// grid: the atlas and plane buffers are sized from the construction
// params and reused every dispatch. Device-side consumers read the
// scattered planes via Planes.
type Extractor struct {
	device hal.Device
	queue  hal.Queue

	params ExtractParams

	shaderModule   hal.ShaderModule
	bindLayout     hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
	pipeline       hal.ComputePipeline

	spirvCode []uint32

	paramsBuffer *Buffer
	atlasBuffer  *Buffer
	planesBuffer *Buffer

	initialized bool
}

// NewExtractor compiles the tile extraction shader and builds the
// pipeline and buffers on the given device. Returns an error if the
// device cannot run the compute pipeline; callers treat that as "CPU
// path only".
func NewExtractor(device hal.Device, queue hal.Queue, params *ExtractParams) (*Extractor, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("gpu: extractor requires a device and queue")
	}
	if params == nil || params.atlasBytes() == 0 || params.planeBytes() == 0 {
		return nil, fmt.Errorf("gpu: extractor requires non-empty grid params")
	}

	e := &Extractor{device: device, queue: queue, params: *params}
	if err := e.init(); err != nil {
		e.Destroy()
		return nil, err
	}
	return e, nil
}

func (e *Extractor) init() error {
	spirvBytes, err := naga.Compile(tileExtractWGSL)
	if err != nil {
		return fmt.Errorf("gpu: failed to compile tile extract shader: %w", err)
	}

	// SPIR-V is little-endian 32-bit words.
	e.spirvCode = make([]uint32, len(spirvBytes)/4)
	for i := range e.spirvCode {
		e.spirvCode[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}

	shaderModule, err := e.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: "tile_extract_shader",
		Source: hal.ShaderSource{
			SPIRV: e.spirvCode,
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: failed to create shader module: %w", err)
	}
	e.shaderModule = shaderModule

	bindLayout, err := e.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "tile_extract_layout",
		Entries: []types.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: types.ShaderStageCompute,
				Buffer: &types.BufferBindingLayout{
					Type:           types.BufferBindingTypeUniform,
					MinBindingSize: extractParamsSize,
				},
			},
			{
				Binding:    1,
				Visibility: types.ShaderStageCompute,
				Buffer: &types.BufferBindingLayout{
					Type: types.BufferBindingTypeReadOnlyStorage,
				},
			},
			{
				Binding:    2,
				Visibility: types.ShaderStageCompute,
				Buffer: &types.BufferBindingLayout{
					Type: types.BufferBindingTypeStorage,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: failed to create bind group layout: %w", err)
	}
	e.bindLayout = bindLayout

	pipelineLayout, err := e.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "tile_extract_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{e.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("gpu: failed to create pipeline layout: %w", err)
	}
	e.pipelineLayout = pipelineLayout

	pipeline, err := e.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  "tile_extract_pipeline",
		Layout: e.pipelineLayout,
		Compute: hal.ComputeState{
			Module:     e.shaderModule,
			EntryPoint: "cs_extract",
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: failed to create compute pipeline: %w", err)
	}
	e.pipeline = pipeline

	e.paramsBuffer, err = Create(e.device, e.queue, &Descriptor{
		Label: "tile_extract_params",
		Size:  extractParamsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return err
	}
	e.atlasBuffer, err = Create(e.device, e.queue, &Descriptor{
		Label: "tile_extract_atlas",
		Size:  e.params.atlasBytes(),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return err
	}
	e.planesBuffer, err = Create(e.device, e.queue, &Descriptor{
		Label: "tile_extract_planes",
		Size:  e.params.planeBytes(),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return err
	}

	// The grid never changes after construction, so the uniform block
	// is uploaded once.
	e.queue.WriteBuffer(e.paramsBuffer.Raw(), 0, e.params.Bytes())

	e.initialized = true
	return nil
}

// Ready reports whether the pipeline was built on the device.
func (e *Extractor) Ready() bool {
	return e != nil && e.initialized
}

// Planes returns the device buffer holding the scattered env-major
// pixel planes after a dispatch. Consumers that stay on the device read
// from it; it is also a CopySrc for staged readback.
func (e *Extractor) Planes() hal.Buffer {
	if !e.Ready() {
		return nil
	}
	return e.planesBuffer.Raw()
}

// Dispatch uploads the packed atlas pixels and runs the extraction
// pass, scattering them into the plane buffer on the device. atlas is
// one uint32 per pixel, row-major, little-endian bytes.
func (e *Extractor) Dispatch(atlas []uint8) error {
	if !e.Ready() {
		return fmt.Errorf("gpu: extractor is not initialized")
	}
	if uint64(len(atlas)) < e.params.atlasBytes() {
		return fmt.Errorf("gpu: atlas has %d bytes, extraction needs %d",
			len(atlas), e.params.atlasBytes())
	}

	e.queue.WriteBuffer(e.atlasBuffer.Raw(), 0, atlas[:e.params.atlasBytes()])

	bindGroup, err := e.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "tile_extract_bg",
		Layout: e.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{
				Binding: 0,
				Resource: gputypes.BufferBinding{
					Buffer: e.paramsBuffer.Raw().NativeHandle(),
					Offset: 0,
					Size:   extractParamsSize,
				},
			},
			{
				Binding: 1,
				Resource: gputypes.BufferBinding{
					Buffer: e.atlasBuffer.Raw().NativeHandle(),
					Offset: 0,
					Size:   0, // 0 = entire buffer
				},
			},
			{
				Binding: 2,
				Resource: gputypes.BufferBinding{
					Buffer: e.planesBuffer.Raw().NativeHandle(),
					Offset: 0,
					Size:   0,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: failed to create bind group: %w", err)
	}
	defer e.device.DestroyBindGroup(bindGroup)

	encoder, err := e.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "tile_extract_encoder",
	})
	if err != nil {
		return fmt.Errorf("gpu: failed to create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("tile_extract"); err != nil {
		return fmt.Errorf("gpu: failed to begin encoding: %w", err)
	}

	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{
		Label: "tile_extract",
	})
	pass.SetPipeline(e.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	groupsX := (e.params.AtlasWidth + 7) / 8
	groupsY := (e.params.AtlasHeight + 7) / 8
	pass.Dispatch(groupsX, groupsY, 1)
	pass.End()

	cmdBuffer, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("gpu: failed to end encoding: %w", err)
	}
	defer cmdBuffer.Destroy()

	if _, err := e.queue.Submit([]hal.CommandBuffer{cmdBuffer}); err != nil {
		return fmt.Errorf("gpu: failed to submit extraction pass: %w", err)
	}
	return nil
}

// Destroy releases pipeline resources in reverse creation order.
func (e *Extractor) Destroy() {
	if e.device == nil {
		return
	}
	if e.planesBuffer != nil {
		e.planesBuffer.Destroy()
		e.planesBuffer = nil
	}
	if e.atlasBuffer != nil {
		e.atlasBuffer.Destroy()
		e.atlasBuffer = nil
	}
	if e.paramsBuffer != nil {
		e.paramsBuffer.Destroy()
		e.paramsBuffer = nil
	}
	if e.pipeline != nil {
		e.device.DestroyComputePipeline(e.pipeline)
		e.pipeline = nil
	}
	if e.pipelineLayout != nil {
		e.device.DestroyPipelineLayout(e.pipelineLayout)
		e.pipelineLayout = nil
	}
	if e.bindLayout != nil {
		e.device.DestroyBindGroupLayout(e.bindLayout)
		e.bindLayout = nil
	}
	if e.shaderModule != nil {
		e.device.DestroyShaderModule(e.shaderModule)
		e.shaderModule = nil
	}
	e.initialized = false
}
