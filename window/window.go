// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// window splits a raster extent into a grid of equally sized,
// overlapping square windows. The last row and column of windows
// are pulled back so that they end exactly on the edge of the
// extent, so every window is the full tile size and no window
// reaches outside the raster, at the cost of the final windows
// overlapping their neighbours by more than was asked for.
package window

import (
	"errors"
	"fmt"
)

// ErrConfig is returned when a tile size and overlap can't be used
// to partition an extent.
var ErrConfig = errors.New("invalid window configuration")

// Window is a rectangle of a raster, from Y1 up to but not including
// Y2, and from X1 up to but not including X2.
type Window struct {
	Y1, Y2, X1, X2 int
}

// Height returns the number of rows covered by the window
func (w Window) Height() int {
	return w.Y2 - w.Y1
}

// Width returns the number of columns covered by the window
func (w Window) Width() int {
	return w.X2 - w.X1
}

func (w Window) String() string {
	return fmt.Sprintf("[%d:%d, %d:%d]", w.Y1, w.Y2, w.X1, w.X2)
}

// Grid is the full set of windows covering an extent, in row-major
// order, along with the parameters used to create it.
type Grid struct {
	Height, Width int
	Size, Overlap int
	Windows       []Window
}

// Partition computes the windows of size x size covering an extent
// of h x w, with consecutive windows overlapping by overlap pixels.
// The tile size must fit in both dimensions of the extent, not just
// the larger one, as otherwise a window would start before 0; so
// Partition(10, 4, 6, 2) fails with ErrConfig.
func Partition(h, w, size, overlap int) (Grid, error) {
	switch {
	case h <= 0 || w <= 0:
		return Grid{}, fmt.Errorf("%w: extent %dx%d is empty", ErrConfig, h, w)
	case size <= 0:
		return Grid{}, fmt.Errorf("%w: tile size %d must be positive", ErrConfig, size)
	case overlap < 0:
		return Grid{}, fmt.Errorf("%w: overlap %d must not be negative", ErrConfig, overlap)
	case overlap >= size:
		return Grid{}, fmt.Errorf("%w: overlap %d must be less than tile size %d (extent %dx%d)", ErrConfig, overlap, size, h, w)
	case size > h || size > w:
		return Grid{}, fmt.Errorf("%w: tile size %d does not fit in extent %dx%d", ErrConfig, size, h, w)
	}

	stride := size - overlap
	rows := starts(h, size, stride)
	cols := starts(w, size, stride)

	g := Grid{Height: h, Width: w, Size: size, Overlap: overlap}
	g.Windows = make([]Window, 0, len(rows)*len(cols))
	for _, y := range rows {
		for _, x := range cols {
			g.Windows = append(g.Windows, Window{y, y + size, x, x + size})
		}
	}
	return g, nil
}

// starts returns the window origins along one axis of length n
func starts(n, size, stride int) []int {
	var s []int
	last := n - size
	for i := 0; ; i++ {
		o := min(i*stride, last)
		s = append(s, o)
		if o == last {
			return s
		}
	}
}

// Len returns the number of windows in the grid
func (g Grid) Len() int {
	return len(g.Windows)
}

// Stride returns the distance between the origins of neighbouring
// windows, before clamping at the edge
func (g Grid) Stride() int {
	return g.Size - g.Overlap
}

// Trim returns how many pixels should be cut from each side of
// window i so that only its centre is kept when the windows are
// written back to back. Sides which lie on the edge of the extent
// are never trimmed.
func (g Grid) Trim(i int) (top, bottom, left, right int) {
	w := g.Windows[i]
	half := g.Overlap / 2
	if w.Y1 != 0 {
		top = half
	}
	if w.Y2 != g.Height {
		bottom = half
	}
	if w.X1 != 0 {
		left = half
	}
	if w.X2 != g.Width {
		right = half
	}
	return top, bottom, left, right
}
