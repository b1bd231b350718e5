// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package binding

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/tiledcam"
	"github.com/gogpu/tiledcam/driver"
)

// fakeSlot records the map/unmap lifecycle and keeps the committed
// values, mimicking a renderer-owned device buffer.
type fakeSlot struct {
	entries   int
	staging   []float32
	committed []float32

	mapped     bool
	mapCount   int
	unmapCount int

	mapErr   error
	unmapErr error
	unbound  bool
}

func newFakeSlot(entries int) *fakeSlot {
	return &fakeSlot{
		entries: entries,
		staging: make([]float32, entries*16),
	}
}

func (s *fakeSlot) Entries() int { return s.entries }

func (s *fakeSlot) Map() (driver.SlotMapping, error) {
	if s.unbound {
		return nil, driver.ErrSlotUnbound
	}
	if s.mapErr != nil {
		return nil, s.mapErr
	}
	if s.mapped {
		panic("fakeSlot: second concurrent mapping")
	}
	s.mapped = true
	s.mapCount++
	return &fakeMapping{slot: s}, nil
}

func (s *fakeSlot) Unbind() error {
	s.unbound = true
	return nil
}

type fakeMapping struct {
	slot *fakeSlot
}

func (m *fakeMapping) Floats() []float32 { return m.slot.staging }

func (m *fakeMapping) Unmap() error {
	m.slot.mapped = false
	m.slot.unmapCount++
	if m.slot.unmapErr != nil {
		return m.slot.unmapErr
	}
	m.slot.committed = append([]float32(nil), m.slot.staging...)
	return nil
}

func TestWith_CommitsOnSuccess(t *testing.T) {
	slot := newFakeSlot(2)

	err := With(slot, 2, func(dst []float32) error {
		if len(dst) != 32 {
			t.Fatalf("writer view has %d floats, want 32", len(dst))
		}
		for i := range dst {
			dst[i] = float32(i)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("With: %v", err)
	}

	if slot.mapCount != 1 || slot.unmapCount != 1 {
		t.Errorf("map/unmap = %d/%d, want 1/1", slot.mapCount, slot.unmapCount)
	}
	if slot.committed[31] != 31 {
		t.Errorf("committed[31] = %v, want 31", slot.committed[31])
	}
}

func TestWith_CommitsOnWriterError(t *testing.T) {
	slot := newFakeSlot(1)
	writerErr := errors.New("writer failed")

	err := With(slot, 1, func(dst []float32) error {
		dst[0] = 9
		return writerErr
	})
	if !errors.Is(err, writerErr) {
		t.Fatalf("error = %v, want writer error", err)
	}

	// The unmap (commit) must have run even though the writer failed.
	if slot.unmapCount != 1 {
		t.Errorf("unmapCount = %d, want 1 (commit on error path)", slot.unmapCount)
	}
	if slot.mapped {
		t.Error("slot left mapped after writer error")
	}
}

func TestWith_NilSlot(t *testing.T) {
	err := With(nil, 4, func([]float32) error {
		t.Fatal("writer must not run for a nil slot")
		return nil
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestWith_MapError(t *testing.T) {
	slot := newFakeSlot(1)
	slot.mapErr = errors.New("device lost")

	err := With(slot, 1, func([]float32) error {
		t.Fatal("writer must not run when map fails")
		return nil
	})
	if err == nil || !errors.Is(err, slot.mapErr) {
		t.Errorf("error = %v, want wrapped map error", err)
	}
	if slot.unmapCount != 0 {
		t.Error("unmap ran without a successful map")
	}
}

func TestWith_ShortSlot(t *testing.T) {
	slot := newFakeSlot(1)

	err := With(slot, 3, func([]float32) error {
		t.Fatal("writer must not run on a short slot")
		return nil
	})
	if !errors.Is(err, ErrShortSlot) {
		t.Errorf("error = %v, want ErrShortSlot", err)
	}
	// The mapping was opened, so it must still have been released.
	if slot.unmapCount != 1 {
		t.Errorf("unmapCount = %d, want 1", slot.unmapCount)
	}
}

func TestWith_UnmapErrorSurfaces(t *testing.T) {
	slot := newFakeSlot(1)
	slot.unmapErr = errors.New("commit rejected")

	err := With(slot, 1, func(dst []float32) error { return nil })
	if err == nil || !errors.Is(err, slot.unmapErr) {
		t.Errorf("error = %v, want wrapped unmap error", err)
	}
}

func TestWith_UnboundSlot(t *testing.T) {
	slot := newFakeSlot(1)
	if err := slot.Unbind(); err != nil {
		t.Fatalf("Unbind: %v", err)
	}
	err := With(slot, 1, func([]float32) error { return nil })
	if !errors.Is(err, driver.ErrSlotUnbound) {
		t.Errorf("error = %v, want ErrSlotUnbound", err)
	}
}

func TestWriteTransforms(t *testing.T) {
	slot := newFakeSlot(2)

	tr0 := tiledcam.Compose(
		mgl32.Vec3{1, 2, 3},
		tiledcam.QuatXYZW(0, 0, 0, 1),
		tiledcam.LayoutColumnMajor,
	)
	tr1 := tiledcam.Compose(
		mgl32.Vec3{-4, 5, -6},
		tiledcam.QuatXYZW(0, 0, 1, 0),
		tiledcam.LayoutColumnMajor,
	)

	if err := WriteTransforms(slot, []tiledcam.Transform{tr0, tr1}); err != nil {
		t.Fatalf("WriteTransforms: %v", err)
	}

	for i := 0; i < 16; i++ {
		if slot.committed[i] != tr0[i] {
			t.Fatalf("entry 0 float %d = %v, want %v", i, slot.committed[i], tr0[i])
		}
		if slot.committed[16+i] != tr1[i] {
			t.Fatalf("entry 1 float %d = %v, want %v", i, slot.committed[16+i], tr1[i])
		}
	}
}
