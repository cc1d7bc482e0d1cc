// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package accum

import (
	"fmt"

	"rescribe.xyz/tilemerge/raster"
	"rescribe.xyz/tilemerge/window"
)

// maxClasses is the most classes a mask of uint8 can index
const maxClasses = 256

// Weighted blends batches of class probability patches into a
// probability map for a whole raster, and decodes it into a class
// mask.
type Weighted[T raster.Float] struct {
	buffer[T]
}

// NewWeighted creates a Weighted accumulator for a raster of h x w
// pixels, with c classes, for patches of ph x pw
func NewWeighted[T raster.Float](h, w, c, ph, pw int) (*Weighted[T], error) {
	if c > maxClasses {
		return nil, fmt.Errorf("Too many classes for a mask: %d, maximum is %d", c, maxClasses)
	}
	b, err := newBuffer[T](h, w, c, ph, pw)
	if err != nil {
		return nil, err
	}
	return &Weighted[T]{b}, nil
}

// Update adds each prediction in preds for the window at the same
// position in windows. If a window is rejected, the predictions
// before it in the batch will already have been added.
func (a *Weighted[T]) Update(preds []*raster.Planar[T], windows []window.Window) error {
	if len(preds) != len(windows) {
		return fmt.Errorf("%w: %d predictions for %d windows", ErrShape, len(preds), len(windows))
	}
	for i, p := range preds {
		err := a.add(p, windows[i].Y1, windows[i].X1)
		if err != nil {
			return fmt.Errorf("Error adding prediction %d for window %v: %w", i, windows[i], err)
		}
	}
	return nil
}

// Result returns the class mask and the blended probability map. It
// doesn't change the accumulator, so can be called repeatedly.
func (a *Weighted[T]) Result() (*raster.Planar[uint8], *raster.Planar[T]) {
	prob := a.normalised()
	return Argmax(prob), prob
}

// Argmax returns a one band mask holding the index of the most
// probable class of each pixel. Ties go to the lowest class, and a
// pixel which is NaN in every class is given class 0.
func Argmax[T raster.Float](p *raster.Planar[T]) *raster.Planar[uint8] {
	mask := raster.New[uint8](1, p.Height, p.Width)
	best := make([]T, p.Height*p.Width)
	copy(best, p.Band(0))
	for c := 1; c < p.Channels; c++ {
		for i, v := range p.Band(c) {
			// a NaN best is replaced by anything which isn't NaN
			if v > best[i] || (best[i] != best[i] && v == v) {
				best[i] = v
				mask.Pix[i] = uint8(c)
			}
		}
	}
	return mask
}
