package tiledcam

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/tiledcam/internal/parallel"
)

// Transform is a 4x4 homogeneous camera or object transform, stored as 16
// float32 values in memory order. This is exactly the wire format written
// into a renderer binding slot; see Layout for how the rotation block and
// translation are arranged within it.
//
// Transforms are derived values: recomputed every frame from position and
// orientation, never persisted.
type Transform [16]float32

// At returns the element at memory row r, column c.
func (t Transform) At(r, c int) float32 { return t[r*4+c] }

// Translation returns the translation component. Both layouts keep the
// translation in the final row, so this is layout-independent.
func (t Transform) Translation() mgl32.Vec3 {
	return mgl32.Vec3{t[12], t[13], t[14]}
}

// Layout selects how a Transform's rotation block is arranged in memory.
//
// The layout is a property of the binding contract with the rendering
// backend, not a free choice: a transform written in the wrong layout is
// still a mathematically valid matrix, so nothing fails — the geometry is
// just silently rotated and positioned wrong. Each backend states the
// layout it requires and every write to its slots uses that layout.
type Layout int

const (
	// LayoutRowMajor stores the rotation rows in memory rows 0-2 and the
	// translation in row 3 (right-multiply convention). Required by the
	// native tiled sensor backend.
	LayoutRowMajor Layout = iota

	// LayoutColumnMajor stores the transposed rotation (columns become
	// memory rows) with the translation still in the final row. Required
	// by the scene-description backend.
	LayoutColumnMajor
)

// String returns the layout name for diagnostics.
func (l Layout) String() string {
	switch l {
	case LayoutRowMajor:
		return "row-major"
	case LayoutColumnMajor:
		return "column-major"
	default:
		return "unknown"
	}
}

// QuatXYZW builds a quaternion from components in (x, y, z, w) order, the
// order used by the simulation side for camera and body orientations.
func QuatXYZW(x, y, z, w float32) mgl32.Quat {
	return mgl32.Quat{W: w, V: mgl32.Vec3{x, y, z}}
}

// Compose builds one transform from a position and a unit quaternion.
//
// The quaternion is assumed to be unit length and is not renormalized; a
// non-unit input produces a sheared matrix rather than an error.
func Compose(pos mgl32.Vec3, orn mgl32.Quat, layout Layout) Transform {
	qx, qy, qz, qw := orn.V[0], orn.V[1], orn.V[2], orn.W

	// Standard normalized-quaternion rotation matrix, rows r0..r2.
	r00 := 1 - 2*(qy*qy+qz*qz)
	r01 := 2 * (qx*qy - qw*qz)
	r02 := 2 * (qx*qz + qw*qy)

	r10 := 2 * (qx*qy + qw*qz)
	r11 := 1 - 2*(qx*qx+qz*qz)
	r12 := 2 * (qy*qz - qw*qx)

	r20 := 2 * (qx*qz - qw*qy)
	r21 := 2 * (qy*qz + qw*qx)
	r22 := 1 - 2*(qx*qx+qy*qy)

	if layout == LayoutColumnMajor {
		// Columns become memory rows.
		return Transform{
			r00, r10, r20, 0,
			r01, r11, r21, 0,
			r02, r12, r22, 0,
			pos[0], pos[1], pos[2], 1,
		}
	}
	return Transform{
		r00, r01, r02, 0,
		r10, r11, r12, 0,
		r20, r21, r22, 0,
		pos[0], pos[1], pos[2], 1,
	}
}

// BuildTransforms fills dst[i] = Compose(pos[i], orn[i], layout) for every
// environment, one kernel task per environment. The call returns after all
// transforms are written (launch + join); entries are independent and no
// ordering holds between them. dst, pos and orn must have equal length.
func BuildTransforms(dst []Transform, pos []mgl32.Vec3, orn []mgl32.Quat, layout Layout, pool *parallel.Pool) {
	pool.Run1D(len(dst), func(i int) {
		dst[i] = Compose(pos[i], orn[i], layout)
	})
}

// VerticalFOV derives the vertical field of view in radians from a pinhole
// intrinsics matrix and the image height in pixels: 2*atan(h / (2*fy)).
// fy is intrinsics[1][1].
func VerticalFOV(intrinsics mgl32.Mat3, height int) float32 {
	fy := intrinsics.At(1, 1)
	return 2 * float32(math.Atan(float64(height)/(2*float64(fy))))
}

// VerticalFOVs derives per-camera vertical FOVs for a batch of intrinsics.
func VerticalFOVs(intrinsics []mgl32.Mat3, height int) []float32 {
	out := make([]float32, len(intrinsics))
	for i, m := range intrinsics {
		out[i] = VerticalFOV(m, height)
	}
	return out
}
