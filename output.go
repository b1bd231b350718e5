package tiledcam

// DataType identifies one of the per-environment output planes.
type DataType string

const (
	// DataTypeRGBA is the 4-channel color plane, 1 byte per channel.
	DataTypeRGBA DataType = "rgba"

	// DataTypeRGB is a 3-channel view over the first three channels of
	// the RGBA plane. It shares storage with DataTypeRGBA.
	DataTypeRGB DataType = "rgb"

	// DataTypeDepth is the single-channel float32 depth plane.
	DataTypeDepth DataType = "depth"
)

// Output holds the per-environment render results.
//
// Both planes are allocated once and overwritten in place every frame;
// they are never reallocated. The renderer only writes into them after a
// successful external render step, so after a failed frame they still
// hold the previous frame's valid data.
//
// Output is single-writer: reading while a render call is in flight is
// undefined. Callers must not read until Render has returned.
type Output struct {
	envs   int
	width  int
	height int

	// rgba is envs*height*width*4 bytes, env-major then row-major.
	rgba []uint8

	// depth is envs*height*width float32 values.
	depth []float32
}

// NewOutput allocates output buffers for the given environment count and
// per-environment image dimensions.
func NewOutput(envs, width, height int) *Output {
	return &Output{
		envs:   envs,
		width:  width,
		height: height,
		rgba:   make([]uint8, envs*height*width*4),
		depth:  make([]float32, envs*height*width),
	}
}

// Envs returns the number of environments.
func (o *Output) Envs() int { return o.envs }

// Width returns the per-environment image width in pixels.
func (o *Output) Width() int { return o.width }

// Height returns the per-environment image height in pixels.
func (o *Output) Height() int { return o.height }

// RGBA returns the RGBA pixels of one environment as a height*width*4
// byte slice, row-major. The slice aliases the shared plane.
func (o *Output) RGBA(env int) []uint8 {
	n := o.height * o.width * 4
	return o.rgba[env*n : (env+1)*n : (env+1)*n]
}

// Depth returns the depth values of one environment as a height*width
// float32 slice, row-major. The slice aliases the shared plane.
func (o *Output) Depth(env int) []float32 {
	n := o.height * o.width
	return o.depth[env*n : (env+1)*n : (env+1)*n]
}

// RGB returns a 3-channel view over one environment's RGBA pixels.
// The view owns no storage: it reads through to the RGBA plane, so a
// write to RGBA is immediately visible through it. It exists so consumers
// wanting RGB never allocate a separate buffer that would desync from
// RGBA writes.
func (o *Output) RGB(env int) RGBView {
	return RGBView{
		rgba:   o.RGBA(env),
		width:  o.width,
		height: o.height,
	}
}

// RGBView is a non-owning 3-channel view over an RGBA pixel buffer.
type RGBView struct {
	rgba   []uint8
	width  int
	height int
}

// Width returns the view width in pixels.
func (v RGBView) Width() int { return v.width }

// Height returns the view height in pixels.
func (v RGBView) Height() int { return v.height }

// At returns channel c (0=R, 1=G, 2=B) of pixel (x, y).
func (v RGBView) At(x, y, c int) uint8 {
	return v.rgba[(y*v.width+x)*4+c]
}

// AppendTo appends the view's pixels to dst as packed 3-byte RGB,
// row-major, and returns the extended slice. This is the copy-out path
// for consumers that need a dense RGB buffer.
func (v RGBView) AppendTo(dst []uint8) []uint8 {
	for i := 0; i < v.width*v.height; i++ {
		dst = append(dst, v.rgba[i*4], v.rgba[i*4+1], v.rgba[i*4+2])
	}
	return dst
}
