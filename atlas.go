package tiledcam

import (
	"fmt"

	"github.com/gogpu/tiledcam/internal/parallel"
)

// Codec packs per-environment images into a single atlas buffer and
// unpacks an atlas back into per-environment output buffers, using the
// addressing of its Grid. The packer and unpacker of one atlas must share
// the same Codec (or at least the same Grid); see Grid for why.
//
// All operations run as 2D kernels, environment by tile row, and return
// only after every destination pixel has been written.
type Codec struct {
	grid Grid
	pool *parallel.Pool
}

// NewCodec creates a codec over the given grid. pool may be nil, in which
// case all operations run serially.
func NewCodec(grid Grid, pool *parallel.Pool) *Codec {
	return &Codec{grid: grid, pool: pool}
}

// Grid returns the tile grid the codec addresses with.
func (c *Codec) Grid() Grid { return c.grid }

// CheckAtlas validates externally produced atlas dimensions against the
// grid. Renderers occasionally round the requested resolution; unpacking
// such a buffer with grid addressing would read the wrong tiles without
// any out-of-bounds access, so this fails loudly instead. Callers that
// unpack several planes of one frame validate all of them with CheckAtlas
// before unpacking any, so a bad plane cannot leave the output partially
// overwritten.
func (c *Codec) CheckAtlas(w, h int) error {
	if w != c.grid.AtlasWidth() || h != c.grid.AtlasHeight() {
		return fmt.Errorf("%w: got %dx%d, grid requires %dx%d",
			ErrAtlasSize, w, h, c.grid.AtlasWidth(), c.grid.AtlasHeight())
	}
	return nil
}

// UnpackRGBA distributes an RGBA atlas (w x h pixels, 4 bytes per pixel,
// row-major) into the per-environment RGBA planes of out. Pixels in the
// padding region are ignored.
//
// Returns ErrAtlasSize if w x h does not match the grid's atlas
// dimensions, or if the buffer is shorter than w*h*4 bytes; out is not
// touched in that case.
func (c *Codec) UnpackRGBA(atlas []uint8, w, h int, out *Output) error {
	if err := c.CheckAtlas(w, h); err != nil {
		return err
	}
	if len(atlas) < w*h*4 {
		return fmt.Errorf("%w: RGBA atlas has %d bytes, need %d", ErrAtlasSize, len(atlas), w*h*4)
	}

	tw, th := c.grid.TileWidth(), c.grid.TileHeight()
	c.pool.Run2D(c.grid.Envs(), th, func(env, ly int) {
		x, y := c.grid.PixelOffset(env, 0, ly)
		src := atlas[(y*w+x)*4 : (y*w+x+tw)*4]
		dst := out.RGBA(env)[ly*tw*4 : (ly+1)*tw*4]
		copy(dst, src)
	})
	return nil
}

// UnpackDepth distributes a single-channel float32 atlas into the
// per-environment depth planes of out, with the same dimension contract
// as UnpackRGBA.
func (c *Codec) UnpackDepth(atlas []float32, w, h int, out *Output) error {
	if err := c.CheckAtlas(w, h); err != nil {
		return err
	}
	if len(atlas) < w*h {
		return fmt.Errorf("%w: depth atlas has %d values, need %d", ErrAtlasSize, len(atlas), w*h)
	}

	tw, th := c.grid.TileWidth(), c.grid.TileHeight()
	c.pool.Run2D(c.grid.Envs(), th, func(env, ly int) {
		x, y := c.grid.PixelOffset(env, 0, ly)
		copy(out.Depth(env)[ly*tw:(ly+1)*tw], atlas[y*w+x:y*w+x+tw])
	})
	return nil
}

// PackRGBA composes the per-environment RGBA planes of out into an atlas
// buffer (grid atlas dimensions, 4 bytes per pixel, row-major). Padding
// tiles are left untouched. Used for the combined debug/visualization
// tile and for backends that render into one shared framebuffer.
//
// Returns ErrAtlasSize if atlas is shorter than the grid requires.
func (c *Codec) PackRGBA(out *Output, atlas []uint8) error {
	w, h := c.grid.AtlasWidth(), c.grid.AtlasHeight()
	if len(atlas) < w*h*4 {
		return fmt.Errorf("%w: RGBA atlas has %d bytes, need %d", ErrAtlasSize, len(atlas), w*h*4)
	}

	tw, th := c.grid.TileWidth(), c.grid.TileHeight()
	c.pool.Run2D(c.grid.Envs(), th, func(env, ly int) {
		x, y := c.grid.PixelOffset(env, 0, ly)
		copy(atlas[(y*w+x)*4:(y*w+x+tw)*4], out.RGBA(env)[ly*tw*4:(ly+1)*tw*4])
	})
	return nil
}

// DecodePacked expands a raw packed color buffer into the per-environment
// RGBA planes of out. The producer packs one pixel into one uint32 with a
// fixed byte order: low byte = channel 0 (R), then G, then B, then A in
// the high byte. This order is a contract with the producing sensor, not
// a per-call choice.
//
// raw is laid out env-major, each environment holding width*height pixels
// row-major. Returns ErrAtlasSize if raw is shorter than the grid's
// environments require.
func (c *Codec) DecodePacked(raw []uint32, out *Output) error {
	tw, th := c.grid.TileWidth(), c.grid.TileHeight()
	need := c.grid.Envs() * tw * th
	if len(raw) < need {
		return fmt.Errorf("%w: packed buffer has %d pixels, need %d", ErrAtlasSize, len(raw), need)
	}

	c.pool.Run2D(c.grid.Envs(), th, func(env, ly int) {
		src := raw[env*tw*th+ly*tw:]
		dst := out.RGBA(env)[ly*tw*4:]
		for i := 0; i < tw; i++ {
			px := src[i]
			dst[i*4+0] = uint8(px)
			dst[i*4+1] = uint8(px >> 8)
			dst[i*4+2] = uint8(px >> 16)
			dst[i*4+3] = uint8(px >> 24)
		}
	})
	return nil
}
