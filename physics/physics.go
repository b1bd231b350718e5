// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package physics mirrors simulated body poses into renderer binding
// slots.
//
// The physics engine is a collaborator, not part of this module: it is
// consumed through the Provider interface. At bind time the body list is
// classified once into a BodyTable (which simulated bodies have a visual
// counterpart worth syncing); per frame, Sync builds one transform per
// table row and commits them through the binding discipline.
package physics

import (
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/tiledcam"
	"github.com/gogpu/tiledcam/binding"
	"github.com/gogpu/tiledcam/driver"
	"github.com/gogpu/tiledcam/internal/parallel"
)

// BodyPose is one rigid body's world pose.
type BodyPose struct {
	Pos mgl32.Vec3
	Rot mgl32.Quat
}

// State is a snapshot of all simulated body poses, indexed like the
// provider's BodyPaths.
type State struct {
	Bodies []BodyPose
}

// Provider is the physics engine surface the sync consumes.
type Provider interface {
	// State returns the current pose snapshot. ok is false before the
	// first simulation step; the caller skips the sync for that frame.
	State() (*State, bool)

	// BodyPaths returns the scene path of every simulated body, in body
	// index order. Stable for the lifetime of the provider.
	BodyPaths() []string
}

// Filter selects which simulated bodies get a render transform. A body
// path must contain the environment namespace and none of the exclusion
// markers.
type Filter struct {
	// EnvPrefix is the environment namespace substring.
	EnvPrefix string

	// ExcludeMarkers are substrings that disqualify a path. Cameras are
	// posed by the render loop, static geometry never moves.
	ExcludeMarkers []string
}

// DefaultFilter returns the stock environment filter.
func DefaultFilter() Filter {
	return Filter{
		EnvPrefix:      "/World/envs/",
		ExcludeMarkers: []string{"Camera", "GroundPlane"},
	}
}

// Match reports whether path names a body the sync should track.
func (f Filter) Match(path string) bool {
	if !strings.Contains(path, f.EnvPrefix) {
		return false
	}
	for _, marker := range f.ExcludeMarkers {
		if strings.Contains(path, marker) {
			return false
		}
	}
	return true
}

// BodyTable maps binding slot rows to physics body indices. Built once
// at bind time, immutable afterwards; the row order is the order the
// matching paths appear in the provider's body list, which is also the
// order the paths must be bound in.
type BodyTable struct {
	bodies []int
	paths  []string
}

// BuildBodyTable classifies paths with the filter and returns the table.
func BuildBodyTable(paths []string, filter Filter) BodyTable {
	var t BodyTable
	for i, path := range paths {
		if filter.Match(path) {
			t.bodies = append(t.bodies, i)
			t.paths = append(t.paths, path)
		}
	}
	return t
}

// Len returns the number of tracked bodies (slot rows).
func (t BodyTable) Len() int { return len(t.bodies) }

// Body returns the physics body index for a slot row.
func (t BodyTable) Body(row int) int { return t.bodies[row] }

// Paths returns the tracked body paths in row order. The caller binds
// these, in this order, to get a slot whose rows line up with the table.
func (t BodyTable) Paths() []string { return t.paths }

// Sync mirrors the provider's current poses into the slot, one
// transform per table row, in the given memory layout. Returns nil and
// logs at Debug when the provider has no state yet (nothing simulated,
// nothing to mirror). Binding errors pass through, including
// binding.ErrUnavailable for a slot that was never established.
func Sync(provider Provider, table BodyTable, slot driver.Slot, layout tiledcam.Layout, pool *parallel.Pool) error {
	if table.Len() == 0 {
		return nil
	}

	state, ok := provider.State()
	if !ok {
		tiledcam.Logger().Debug("physics sync skipped: no state yet")
		return nil
	}

	return binding.With(slot, table.Len(), func(dst []float32) error {
		pool.Run1D(table.Len(), func(row int) {
			body := table.Body(row)
			if body >= len(state.Bodies) {
				return
			}
			pose := state.Bodies[body]
			tr := tiledcam.Compose(pose.Pos, pose.Rot, layout)
			copy(dst[row*16:(row+1)*16], tr[:])
		})
		return nil
	})
}
