// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package accum

import (
	"rescribe.xyz/tilemerge/raster"
)

// CenterClip blends class probability patches one at a time into a
// probability map for a whole raster. It weights patches the same way
// as Weighted, but leaves deciding on classes to the caller.
type CenterClip[T raster.Float] struct {
	buffer[T]
}

// NewCenterClip creates a CenterClip accumulator for a raster of
// h x w pixels, with c classes, for patches of ph x pw
func NewCenterClip[T raster.Float](h, w, c, ph, pw int) (*CenterClip[T], error) {
	b, err := newBuffer[T](h, w, c, ph, pw)
	if err != nil {
		return nil, err
	}
	return &CenterClip[T]{b}, nil
}

// Update adds pred for the patch whose top left corner is at
// yoff, xoff
func (a *CenterClip[T]) Update(pred *raster.Planar[T], yoff, xoff int) error {
	return a.add(pred, yoff, xoff)
}

// Result returns the blended probability map
func (a *CenterClip[T]) Result() *raster.Planar[T] {
	return a.normalised()
}
