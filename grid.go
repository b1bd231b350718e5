package tiledcam

import "math"

// Grid maps environment ids onto tiles of a packed atlas image.
//
// Every environment owns one tile of tileWidth x tileHeight pixels. Tiles
// are arranged row-major in a square grid of ceil(sqrt(envs)) tiles per
// side, so env 0 is the top-left tile, env 1 its right neighbor, and so
// on. Tiles past the last environment are padding: their content is
// undefined and they never map back to an environment.
//
// The same Grid value must be shared by whatever packs the atlas and
// whatever unpacks it. The addressing is pure index math; a packer and
// unpacker that disagree on it corrupt every environment image without
// any error surfacing, which is why Codec takes the Grid rather than
// recomputing it.
type Grid struct {
	envs         int
	tileWidth    int
	tileHeight   int
	tilesPerSide int
}

// NewGrid creates a grid for the given environment count and per-tile
// (per-camera) image dimensions. envs must be >= 1.
func NewGrid(envs, tileWidth, tileHeight int) Grid {
	return Grid{
		envs:         envs,
		tileWidth:    tileWidth,
		tileHeight:   tileHeight,
		tilesPerSide: int(math.Ceil(math.Sqrt(float64(envs)))),
	}
}

// Envs returns the number of environments the grid addresses.
func (g Grid) Envs() int { return g.envs }

// TileWidth returns the width of one tile in pixels.
func (g Grid) TileWidth() int { return g.tileWidth }

// TileHeight returns the height of one tile in pixels.
func (g Grid) TileHeight() int { return g.tileHeight }

// TilesPerSide returns the number of tiles along each side of the atlas,
// ceil(sqrt(envs)). TilesPerSide squared is always >= envs.
func (g Grid) TilesPerSide() int { return g.tilesPerSide }

// AtlasWidth returns the atlas width in pixels.
func (g Grid) AtlasWidth() int { return g.tilesPerSide * g.tileWidth }

// AtlasHeight returns the atlas height in pixels.
func (g Grid) AtlasHeight() int { return g.tilesPerSide * g.tileHeight }

// Coord returns the tile coordinate of an environment:
// tx = env % tilesPerSide, ty = env / tilesPerSide.
func (g Grid) Coord(env int) (tx, ty int) {
	return env % g.tilesPerSide, env / g.tilesPerSide
}

// PixelOffset returns the atlas pixel holding local pixel (lx, ly) of the
// given environment's tile.
func (g Grid) PixelOffset(env, lx, ly int) (x, y int) {
	tx, ty := g.Coord(env)
	return tx*g.tileWidth + lx, ty*g.tileHeight + ly
}

// EnvAt is the inverse lookup: the environment owning atlas pixel (x, y).
// ok is false for pixels in the padding region (a tile past the last
// environment) or outside the atlas entirely.
func (g Grid) EnvAt(x, y int) (env int, ok bool) {
	if x < 0 || y < 0 {
		return 0, false
	}
	tx := x / g.tileWidth
	ty := y / g.tileHeight
	if tx >= g.tilesPerSide || ty >= g.tilesPerSide {
		return 0, false
	}
	env = ty*g.tilesPerSide + tx
	if env >= g.envs {
		return 0, false
	}
	return env, true
}
