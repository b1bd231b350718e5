package tiledcam

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/tiledcam/internal/parallel"
)

const transformEps = 1e-5

func transformsEqual(a, b Transform, eps float32) bool {
	for i := range a {
		d := a[i] - b[i]
		if d < -eps || d > eps {
			return false
		}
	}
	return true
}

func TestCompose_IdentityOrientation(t *testing.T) {
	pos := mgl32.Vec3{1.5, -2, 7.25}
	identity := QuatXYZW(0, 0, 0, 1)

	for _, layout := range []Layout{LayoutRowMajor, LayoutColumnMajor} {
		t.Run(layout.String(), func(t *testing.T) {
			tr := Compose(pos, identity, layout)

			// Rotation block is the identity.
			for r := 0; r < 3; r++ {
				for c := 0; c < 3; c++ {
					want := float32(0)
					if r == c {
						want = 1
					}
					if got := tr.At(r, c); got != want {
						t.Errorf("At(%d,%d) = %v, want %v", r, c, got, want)
					}
				}
			}

			// Translation equals the position, homogeneous row is (.., 1).
			if tr.Translation() != pos {
				t.Errorf("Translation() = %v, want %v", tr.Translation(), pos)
			}
			if tr.At(3, 3) != 1 {
				t.Errorf("At(3,3) = %v, want 1", tr.At(3, 3))
			}
			for r := 0; r < 3; r++ {
				if tr.At(r, 3) != 0 {
					t.Errorf("At(%d,3) = %v, want 0", r, tr.At(r, 3))
				}
			}
		})
	}
}

func TestCompose_HalfTurnAboutZ(t *testing.T) {
	// Quaternion (0,0,1,0) is a 180-degree rotation about z: the rotation
	// block must be diag(-1,-1,1). The diagonal is unchanged by transposition,
	// so both layouts see the same values.
	q := QuatXYZW(0, 0, 1, 0)

	for _, layout := range []Layout{LayoutRowMajor, LayoutColumnMajor} {
		tr := Compose(mgl32.Vec3{}, q, layout)
		diag := [3]float32{tr.At(0, 0), tr.At(1, 1), tr.At(2, 2)}
		want := [3]float32{-1, -1, 1}
		if diag != want {
			t.Errorf("layout %v: rotation diagonal = %v, want %v", layout, diag, want)
		}
		// Off-diagonal rotation terms vanish for this rotation.
		for _, rc := range [][2]int{{0, 1}, {0, 2}, {1, 0}, {1, 2}, {2, 0}, {2, 1}} {
			if got := tr.At(rc[0], rc[1]); got != 0 {
				t.Errorf("layout %v: At(%d,%d) = %v, want 0", layout, rc[0], rc[1], got)
			}
		}
	}
}

func TestCompose_LayoutsAreTransposes(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		q := randomUnitQuat(rng)
		pos := mgl32.Vec3{rng.Float32(), rng.Float32(), rng.Float32()}

		a := Compose(pos, q, LayoutRowMajor)
		b := Compose(pos, q, LayoutColumnMajor)

		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				if a.At(r, c) != b.At(c, r) {
					t.Fatalf("rotation blocks are not transposes at (%d,%d): %v vs %v", r, c, a.At(r, c), b.At(c, r))
				}
			}
		}
		if a.Translation() != b.Translation() {
			t.Fatalf("translations differ: %v vs %v", a.Translation(), b.Translation())
		}
	}
}

func TestCompose_MatchesMathgl(t *testing.T) {
	// Cross-check the explicit quaternion formula against mathgl's
	// rotation matrix for arbitrary axis-angle rotations.
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 50; i++ {
		axis := mgl32.Vec3{rng.Float32() - 0.5, rng.Float32() - 0.5, rng.Float32() - 0.5}.Normalize()
		angle := rng.Float32() * 2 * math.Pi
		q := mgl32.QuatRotate(angle, axis)

		tr := Compose(mgl32.Vec3{}, q, LayoutRowMajor)
		want := q.Mat4() // column-major storage: element (r,c) = want[c*4+r]

		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				got := tr.At(r, c)
				ref := want[c*4+r]
				if d := got - ref; d < -transformEps || d > transformEps {
					t.Fatalf("rotation (%d,%d) = %v, mathgl reference %v", r, c, got, ref)
				}
			}
		}
	}
}

func TestBuildTransforms_MatchesSerial(t *testing.T) {
	const n = 257
	rng := rand.New(rand.NewSource(3))

	pos := make([]mgl32.Vec3, n)
	orn := make([]mgl32.Quat, n)
	for i := range pos {
		pos[i] = mgl32.Vec3{rng.Float32() * 10, rng.Float32() * 10, rng.Float32() * 10}
		orn[i] = randomUnitQuat(rng)
	}

	want := make([]Transform, n)
	for i := range want {
		want[i] = Compose(pos[i], orn[i], LayoutColumnMajor)
	}

	pool := parallel.New(8)
	defer pool.Close()

	got := make([]Transform, n)
	BuildTransforms(got, pos, orn, LayoutColumnMajor, pool)

	for i := range got {
		if !transformsEqual(got[i], want[i], 0) {
			t.Fatalf("transform %d differs between parallel and serial builds", i)
		}
	}
}

func TestVerticalFOV(t *testing.T) {
	// fy chosen so that h/(2*fy) = 1 and the FOV is exactly pi/2.
	intr := mgl32.Mat3FromRows(
		mgl32.Vec3{240, 0, 120},
		mgl32.Vec3{0, 120, 120},
		mgl32.Vec3{0, 0, 1},
	)
	got := VerticalFOV(intr, 240)
	want := float32(math.Pi / 2)
	if d := got - want; d < -transformEps || d > transformEps {
		t.Errorf("VerticalFOV = %v, want %v", got, want)
	}

	fovs := VerticalFOVs([]mgl32.Mat3{intr, intr}, 240)
	if len(fovs) != 2 || fovs[0] != got || fovs[1] != got {
		t.Errorf("VerticalFOVs = %v, want two copies of %v", fovs, got)
	}
}

func randomUnitQuat(rng *rand.Rand) mgl32.Quat {
	axis := mgl32.Vec3{rng.Float32() - 0.5, rng.Float32() - 0.5, rng.Float32() - 0.5}
	if axis.Len() == 0 {
		axis = mgl32.Vec3{0, 0, 1}
	}
	return mgl32.QuatRotate(rng.Float32()*2*math.Pi, axis.Normalize())
}
