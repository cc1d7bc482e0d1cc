// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// integral provides summed area tables ("integral images") over all
// bands of a raster, so that the total of any rectangle can be found
// with four lookups.
package integral

import (
	"rescribe.xyz/tilemerge/raster"
	"rescribe.xyz/tilemerge/window"
)

// I is an integral image. It has one more row and column than the
// raster it was made from, the first of each being zero, so that
// I[y][x] is the total of everything above and to the left of y, x.
type I [][]uint64

// Rect holds the corners of a part of an Integral Image
type Rect struct {
	topleft     uint64
	topright    uint64
	bottomleft  uint64
	bottomright uint64
	width       int
	height      int
}

// New creates an integral image of a raster, with each sample first
// passed through value, and the values of all bands at a pixel added
// together
func New[T raster.Numeric](p *raster.Planar[T], value func(T) uint64) I {
	integral := make(I, p.Height+1)
	for y := range integral {
		integral[y] = make([]uint64, p.Width+1)
	}
	for y := 0; y < p.Height; y++ {
		var rowsum uint64
		for x := 0; x < p.Width; x++ {
			for c := 0; c < p.Channels; c++ {
				rowsum += value(p.At(c, y, x))
			}
			integral[y+1][x+1] = integral[y][x+1] + rowsum
		}
	}
	return integral
}

// NonZero returns an integral image counting the samples which are
// not zero
func NonZero[T raster.Numeric](p *raster.Planar[T]) I {
	return New(p, func(v T) uint64 {
		if v != 0 {
			return 1
		}
		return 0
	})
}

// GetRect gets the values of the corners of a window of an Integral
// Image, which can be used to quickly calculate its total
func (i I) GetRect(w window.Window) Rect {
	return Rect{
		topleft:     i[w.Y1][w.X1],
		topright:    i[w.Y1][w.X2],
		bottomleft:  i[w.Y2][w.X1],
		bottomright: i[w.Y2][w.X2],
		width:       w.Width(),
		height:      w.Height(),
	}
}

// Sum returns the total of all pixels in a Rect
func (r Rect) Sum() uint64 {
	return r.bottomright + r.topleft - r.topright - r.bottomleft
}

// Size returns the number of pixels in a Rect
func (r Rect) Size() int {
	return r.width * r.height
}

// SumWindow returns the total of a window of an Integral Image
func (i I) SumWindow(w window.Window) uint64 {
	return i.GetRect(w).Sum()
}
