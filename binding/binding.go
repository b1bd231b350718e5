// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package binding implements the scoped write discipline for renderer
// binding slots.
//
// A slot's mapped pointer is only valid between one map/unmap pair, and
// the renderer must not be stepped while a mapping is open. With makes
// that structurally hard to get wrong: the mapped view exists only inside
// the writer callback, and the commit (unmap) runs on every exit path,
// including a writer error or panic. Callers never see the mapping.
package binding

import (
	"errors"
	"fmt"

	"github.com/gogpu/tiledcam"
	"github.com/gogpu/tiledcam/driver"
)

// ErrUnavailable reports that a binding slot was never successfully
// created (for example, the prim paths did not exist when the binding was
// requested). Callers skip the sync that needed the slot rather than
// failing the frame.
var ErrUnavailable = errors.New("binding: slot unavailable")

// ErrShortSlot reports that a slot's mapped buffer holds fewer entries
// than the writer requires.
var ErrShortSlot = errors.New("binding: slot smaller than entry count")

// transformFloats is the number of float32 values in one slot entry.
const transformFloats = 16

// WriterFunc writes transform entries into a mapped slot view. dst holds
// exactly entries*16 float32 values and aliases device memory: it must
// not be retained after the writer returns.
type WriterFunc func(dst []float32) error

// With maps slot, hands the writer a view of exactly entries transform
// entries, and commits the write by unmapping on every exit path. The
// writer's error, if any, is returned after the commit; an unmap error is
// returned only when the writer succeeded.
//
// A nil slot returns ErrUnavailable without side effects.
func With(slot driver.Slot, entries int, fn WriterFunc) (err error) {
	if slot == nil {
		return ErrUnavailable
	}

	m, err := slot.Map()
	if err != nil {
		return fmt.Errorf("binding: map failed: %w", err)
	}
	defer func() {
		// Commit happens regardless of how the writer exited. The write
		// may be partial after a writer error; the renderer still sees a
		// consistent (if stale) buffer because entries are independent.
		unmapErr := m.Unmap()
		if err == nil && unmapErr != nil {
			err = fmt.Errorf("binding: commit failed: %w", unmapErr)
		}
	}()

	view := m.Floats()
	need := entries * transformFloats
	if len(view) < need {
		return fmt.Errorf("%w: have %d floats, need %d", ErrShortSlot, len(view), need)
	}
	return fn(view[:need])
}

// WriteTransforms writes one transform per slot entry through With. This
// is the common writer for both the camera and the object sync paths.
func WriteTransforms(slot driver.Slot, transforms []tiledcam.Transform) error {
	return With(slot, len(transforms), func(dst []float32) error {
		for i, tr := range transforms {
			copy(dst[i*transformFloats:(i+1)*transformFloats], tr[:])
		}
		return nil
	})
}
