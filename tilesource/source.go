// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// tilesource provides tiles of a raster, one per window of a
// window.Grid, for a model to make predictions on. Streaming reads
// windows one after another from a raster reader and writes the
// centre of each prediction straight to an output raster, while
// RandomAccess serves the non-empty windows of an in-memory raster
// in any order, leaving the merging of predictions to the caller.
package tilesource

import (
	"errors"

	"rescribe.xyz/tilemerge/raster"
	"rescribe.xyz/tilemerge/window"
)

var (
	// ErrEnd is returned by Next once every window has been read
	ErrEnd = errors.New("no more windows")

	// ErrState is returned when a result is fitted for a window
	// which was never read, or which already has a result
	ErrState = errors.New("window is not awaiting a result")

	// ErrValueRange is returned when a pixel is larger than the bit
	// depth of the raster allows
	ErrValueRange = errors.New("pixel value out of range")

	// ErrIndex is returned when a tile is requested which doesn't
	// exist
	ErrIndex = errors.New("tile index out of range")
)

// Tile is the pixels of one window of a raster
type Tile[T raster.Numeric] struct {
	Index  int
	Window window.Window
	Data   *raster.Planar[T]
}

// Source is a set of tiles which can be fetched by index
type Source[T raster.Numeric] interface {
	Len() int
	Get(i int) (Tile[T], error)
}

// Transform converts a tile before it is handed out, for example to
// normalise it
type Transform[T, U raster.Numeric] func(*raster.Planar[T]) *raster.Planar[U]

// Identity is a Transform which returns the tile unchanged
func Identity[T raster.Numeric](p *raster.Planar[T]) *raster.Planar[T] {
	return p
}

// Normalize returns a Transform which divides every sample by max,
// so that a tile of 0..max becomes one of 0..1
func Normalize[T raster.Numeric, U raster.Float](max float64) Transform[T, U] {
	return func(p *raster.Planar[T]) *raster.Planar[U] {
		out := raster.New[U](p.Channels, p.Height, p.Width)
		for i, v := range p.Pix {
			out.Pix[i] = U(float64(v) / max)
		}
		return out
	}
}
