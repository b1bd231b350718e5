package tiledcam

import (
	"fmt"
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// AtlasImage composes the per-environment color planes of out back into
// a single atlas image, one tile per environment in grid order. Padding
// tiles stay opaque black. Debug path; it allocates a fresh image every
// call.
func AtlasImage(out *Output, grid Grid) (*image.RGBA, error) {
	if out.Envs() != grid.Envs() {
		return nil, fmt.Errorf("%w: %d output environments, grid has %d",
			ErrEnvCount, out.Envs(), grid.Envs())
	}

	img := image.NewRGBA(image.Rect(0, 0, grid.AtlasWidth(), grid.AtlasHeight()))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xFF
	}

	codec := NewCodec(grid, nil)
	if err := codec.PackRGBA(out, img.Pix); err != nil {
		return nil, err
	}
	return img, nil
}

// Preview returns the atlas scaled to fit within maxWidth x maxHeight,
// preserving aspect ratio. An atlas already within the bounds is
// returned unscaled.
func Preview(out *Output, grid Grid, maxWidth, maxHeight int) (*image.RGBA, error) {
	if maxWidth <= 0 || maxHeight <= 0 {
		return nil, fmt.Errorf("tiledcam: invalid preview bounds %dx%d", maxWidth, maxHeight)
	}
	atlas, err := AtlasImage(out, grid)
	if err != nil {
		return nil, err
	}

	aw, ah := grid.AtlasWidth(), grid.AtlasHeight()
	if aw <= maxWidth && ah <= maxHeight {
		return atlas, nil
	}

	w, h := fitWithin(aw, ah, maxWidth, maxHeight)
	scaled := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), atlas, atlas.Bounds(), xdraw.Src, nil)
	return scaled, nil
}

// DepthImage renders the depth planes of out as a grayscale atlas,
// linearly mapping [min, max] over the finite values to [black, white].
// A constant depth field comes out black.
func DepthImage(out *Output, grid Grid) (*image.Gray, error) {
	if out.Envs() != grid.Envs() {
		return nil, fmt.Errorf("%w: %d output environments, grid has %d",
			ErrEnvCount, out.Envs(), grid.Envs())
	}

	min, max := depthRange(out)
	scale := float32(0)
	if max > min {
		scale = 255 / (max - min)
	}

	img := image.NewGray(image.Rect(0, 0, grid.AtlasWidth(), grid.AtlasHeight()))
	for env := 0; env < grid.Envs(); env++ {
		depth := out.Depth(env)
		for ly := 0; ly < grid.TileHeight(); ly++ {
			for lx := 0; lx < grid.TileWidth(); lx++ {
				x, y := grid.PixelOffset(env, lx, ly)
				v := (depth[ly*grid.TileWidth()+lx] - min) * scale
				img.SetGray(x, y, color.Gray{Y: uint8(clamp255(v))})
			}
		}
	}
	return img, nil
}

func depthRange(out *Output) (min, max float32) {
	first := true
	for env := 0; env < out.Envs(); env++ {
		for _, v := range out.Depth(env) {
			if v != v { // NaN
				continue
			}
			if first {
				min, max = v, v
				first = false
				continue
			}
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
	}
	return min, max
}

func clamp255(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// fitWithin shrinks (w, h) to fit inside (maxW, maxH), preserving
// aspect ratio. Never returns a zero dimension.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	sw := float64(maxW) / float64(w)
	sh := float64(maxH) / float64(h)
	s := sw
	if sh < s {
		s = sh
	}
	w = int(float64(w) * s)
	h = int(float64(h) * s)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}
