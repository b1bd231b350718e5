// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
)

func newHostBuffer(t *testing.T, size uint64, usage gputypes.BufferUsage) *Buffer {
	t.Helper()
	b, err := Create(nil, nil, &Descriptor{Label: "test", Size: size, Usage: usage})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(b.Destroy)
	return b
}

// mapNow drives a full MapAsync/Poll cycle and fails the test on any
// non-success status.
func mapNow(t *testing.T, b *Buffer, mode gputypes.MapMode, offset, size uint64) {
	t.Helper()
	var got MapStatus = -1
	if err := b.MapAsync(mode, offset, size, func(s MapStatus) { got = s }); err != nil {
		t.Fatalf("MapAsync: %v", err)
	}
	if state := b.MapState(); state != MapStatePending {
		t.Fatalf("state after MapAsync = %v, want Pending", state)
	}
	if !b.PollMapAsync() {
		t.Fatal("PollMapAsync returned false")
	}
	if got != MapStatusSuccess {
		t.Fatalf("map status = %v, want Success", got)
	}
}

func TestBuffer_WritesPersistAcrossMapCycles(t *testing.T) {
	b := newHostBuffer(t, 64, gputypes.BufferUsageMapWrite|gputypes.BufferUsageMapRead)

	mapNow(t, b, gputypes.MapModeWrite, 0, 64)
	data, err := b.GetMappedRange(0, 64)
	if err != nil {
		t.Fatalf("GetMappedRange: %v", err)
	}
	for i := range data {
		data[i] = byte(i)
	}
	if err := b.Unmap(); err != nil {
		t.Fatalf("Unmap: %v", err)
	}

	// A later read mapping must still see the committed bytes.
	mapNow(t, b, gputypes.MapModeRead, 0, 64)
	data, err = b.GetMappedRange(0, 64)
	if err != nil {
		t.Fatalf("GetMappedRange after remap: %v", err)
	}
	for i, v := range data {
		if v != byte(i) {
			t.Fatalf("byte %d = %d after remap, want %d", i, v, i)
		}
	}
	if err := b.Unmap(); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
}

func TestBuffer_SizeAlignedUp(t *testing.T) {
	b := newHostBuffer(t, 10, gputypes.BufferUsageMapWrite)
	if b.Size() != 12 {
		t.Errorf("Size() = %d, want 12 (4-byte aligned)", b.Size())
	}
}

func TestBuffer_MapValidation(t *testing.T) {
	tests := []struct {
		name    string
		usage   gputypes.BufferUsage
		mode    gputypes.MapMode
		offset  uint64
		size    uint64
		wantErr error
	}{
		{"read without MapRead usage", gputypes.BufferUsageMapWrite, gputypes.MapModeRead, 0, 64, ErrUsageMismatch},
		{"write without MapWrite usage", gputypes.BufferUsageMapRead, gputypes.MapModeWrite, 0, 64, ErrUsageMismatch},
		{"range past end", gputypes.BufferUsageMapWrite, gputypes.MapModeWrite, 32, 64, ErrInvalidRange},
		{"misaligned offset", gputypes.BufferUsageMapWrite, gputypes.MapModeWrite, 4, 32, ErrInvalidRange},
		{"misaligned interior size", gputypes.BufferUsageMapWrite, gputypes.MapModeWrite, 0, 10, ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newHostBuffer(t, 64, tt.usage)
			statusSeen := false
			err := b.MapAsync(tt.mode, tt.offset, tt.size, func(MapStatus) { statusSeen = true })
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("MapAsync error = %v, want %v", err, tt.wantErr)
			}
			if !statusSeen {
				t.Error("callback not invoked on validation failure")
			}
			if state := b.MapState(); state != MapStateUnmapped {
				t.Errorf("state = %v after failed MapAsync, want Unmapped", state)
			}
		})
	}
}

func TestBuffer_TailMappingNeedsNoSizeAlignment(t *testing.T) {
	b := newHostBuffer(t, 24, gputypes.BufferUsageMapWrite)
	// 24 is not 8-aligned, but the mapping reaches the end of the buffer.
	mapNow(t, b, gputypes.MapModeWrite, 0, 24)
	if err := b.Unmap(); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
}

func TestBuffer_DoubleMapRejected(t *testing.T) {
	b := newHostBuffer(t, 64, gputypes.BufferUsageMapWrite)
	mapNow(t, b, gputypes.MapModeWrite, 0, 64)

	var got MapStatus = -1
	err := b.MapAsync(gputypes.MapModeWrite, 0, 64, func(s MapStatus) { got = s })
	if !errors.Is(err, ErrAlreadyMapped) {
		t.Errorf("second MapAsync error = %v, want ErrAlreadyMapped", err)
	}
	if got != MapStatusAlreadyPending {
		t.Errorf("second map status = %v, want AlreadyPending", got)
	}
}

func TestBuffer_RangeAccessOutsideMappedRegion(t *testing.T) {
	b := newHostBuffer(t, 64, gputypes.BufferUsageMapWrite)
	mapNow(t, b, gputypes.MapModeWrite, 16, 32)

	if _, err := b.GetMappedRange(0, 8); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("range before mapped region: error = %v, want ErrInvalidRange", err)
	}
	if _, err := b.GetMappedRange(40, 16); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("range past mapped region: error = %v, want ErrInvalidRange", err)
	}
	if _, err := b.GetMappedRange(16, 32); err != nil {
		t.Errorf("exact mapped range: %v", err)
	}
}

func TestBuffer_AccessWhilePendingOrUnmapped(t *testing.T) {
	b := newHostBuffer(t, 64, gputypes.BufferUsageMapWrite)

	if _, err := b.GetMappedRange(0, 64); !errors.Is(err, ErrNotMapped) {
		t.Errorf("unmapped access error = %v, want ErrNotMapped", err)
	}

	if err := b.MapAsync(gputypes.MapModeWrite, 0, 64, func(MapStatus) {}); err != nil {
		t.Fatalf("MapAsync: %v", err)
	}
	if _, err := b.GetMappedRange(0, 64); !errors.Is(err, ErrMapPending) {
		t.Errorf("pending access error = %v, want ErrMapPending", err)
	}
}

func TestBuffer_UnmapCancelsPending(t *testing.T) {
	b := newHostBuffer(t, 64, gputypes.BufferUsageMapWrite)

	var got MapStatus = -1
	if err := b.MapAsync(gputypes.MapModeWrite, 0, 64, func(s MapStatus) { got = s }); err != nil {
		t.Fatalf("MapAsync: %v", err)
	}
	if err := b.Unmap(); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	if got != MapStatusUnmappedBeforeCallback {
		t.Errorf("status = %v, want UnmappedBeforeCallback", got)
	}
	if state := b.MapState(); state != MapStateUnmapped {
		t.Errorf("state = %v, want Unmapped", state)
	}
}

func TestBuffer_DestroyCancelsPending(t *testing.T) {
	b := newHostBuffer(t, 64, gputypes.BufferUsageMapWrite)

	var got MapStatus = -1
	if err := b.MapAsync(gputypes.MapModeWrite, 0, 64, func(s MapStatus) { got = s }); err != nil {
		t.Fatalf("MapAsync: %v", err)
	}
	b.Destroy()
	if got != MapStatusDestroyedBeforeCallback {
		t.Errorf("status = %v, want DestroyedBeforeCallback", got)
	}

	if err := b.MapAsync(gputypes.MapModeWrite, 0, 64, func(MapStatus) {}); !errors.Is(err, ErrDestroyed) {
		t.Errorf("MapAsync after Destroy error = %v, want ErrDestroyed", err)
	}
	b.Destroy() // idempotent
}

func TestCreateTransformBuffer(t *testing.T) {
	b, err := CreateTransformBuffer(nil, nil, 3, "cams")
	if err != nil {
		t.Fatalf("CreateTransformBuffer: %v", err)
	}
	defer b.Destroy()

	if b.Size() != 3*16*4 {
		t.Errorf("Size() = %d, want %d", b.Size(), 3*16*4)
	}
	if !b.Usage().Contains(gputypes.BufferUsageMapWrite) {
		t.Error("transform buffer missing MapWrite usage")
	}

	if _, err := CreateTransformBuffer(nil, nil, 0, ""); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("zero entries error = %v, want ErrInvalidSize", err)
	}
}

func TestExtractParams_Bytes(t *testing.T) {
	p := &ExtractParams{
		AtlasWidth:   0x01020304,
		AtlasHeight:  2,
		TileWidth:    3,
		TileHeight:   4,
		TilesPerSide: 5,
		EnvCount:     6,
	}
	raw := p.Bytes()
	if len(raw) != extractParamsSize {
		t.Fatalf("len = %d, want %d", len(raw), extractParamsSize)
	}
	// Little-endian first field.
	if raw[0] != 0x04 || raw[1] != 0x03 || raw[2] != 0x02 || raw[3] != 0x01 {
		t.Errorf("first word = % x, want 04 03 02 01", raw[:4])
	}
	if raw[20] != 6 {
		t.Errorf("env count byte = %d, want 6", raw[20])
	}
}
