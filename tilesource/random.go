// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package tilesource

import (
	"fmt"

	"rescribe.xyz/tilemerge/integral"
	"rescribe.xyz/tilemerge/raster"
	"rescribe.xyz/tilemerge/window"
)

// RandomAccess serves the tiles of an in-memory raster by index.
// Windows whose samples sum to exactly zero are treated as having no
// data and are skipped, so Len depends on the content of the raster
// as well as its size. For signed data this includes windows where
// positive and negative samples cancel out.
type RandomAccess[T, U raster.Numeric] struct {
	img       *raster.Planar[T]
	windows   []window.Window
	transform Transform[T, U]
}

// NewRandomAccess sets up a RandomAccess source over img, using the
// windows of grid, with each tile passed through transform before it
// is returned
func NewRandomAccess[T, U raster.Numeric](img *raster.Planar[T], grid window.Grid, transform Transform[T, U]) (*RandomAccess[T, U], error) {
	if grid.Height != img.Height || grid.Width != img.Width {
		return nil, fmt.Errorf("Grid for %dx%d does not match raster of %dx%d", grid.Height, grid.Width, img.Height, img.Width)
	}

	nonzero := integral.NonZero(img)
	var windows []window.Window
	for _, w := range grid.Windows {
		if nonzero.SumWindow(w) == 0 {
			continue
		}
		blk, err := img.Crop(w.Y1, w.X1, w.Height(), w.Width())
		if err != nil {
			return nil, err
		}
		if blk.Sum() == 0 {
			continue
		}
		windows = append(windows, w)
	}

	return &RandomAccess[T, U]{img: img, windows: windows, transform: transform}, nil
}

// Len returns the number of tiles which have data
func (r *RandomAccess[T, U]) Len() int {
	return len(r.windows)
}

// Windows returns the windows of the tiles which have data
func (r *RandomAccess[T, U]) Windows() []window.Window {
	return r.windows
}

// Get returns tile i, transformed
func (r *RandomAccess[T, U]) Get(i int) (Tile[U], error) {
	if i < 0 || i >= len(r.windows) {
		return Tile[U]{}, fmt.Errorf("%w: %d of %d", ErrIndex, i, len(r.windows))
	}
	w := r.windows[i]
	blk, err := r.img.Crop(w.Y1, w.X1, w.Height(), w.Width())
	if err != nil {
		return Tile[U]{}, err
	}
	return Tile[U]{Index: i, Window: w, Data: r.transform(blk)}, nil
}
