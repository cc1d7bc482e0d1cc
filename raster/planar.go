// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// raster contains a simple multi-band raster type, stored band after
// band, along with functions to read and write rasters as image
// files.
package raster

import (
	"fmt"
)

// Numeric covers the sample types used for pixels and predictions
type Numeric interface {
	~uint8 | ~uint16 | ~float32 | ~float64
}

// Float covers the sample types which accumulation can be done in
type Float interface {
	~float32 | ~float64
}

// Planar is a raster of Channels bands, each Height x Width, stored
// one band after another in Pix.
type Planar[T Numeric] struct {
	Channels, Height, Width int
	Pix                     []T
}

// New creates a zeroed raster
func New[T Numeric](c, h, w int) *Planar[T] {
	return &Planar[T]{Channels: c, Height: h, Width: w, Pix: make([]T, c*h*w)}
}

// FromSlice wraps pix as a raster, which must be exactly c*h*w long
func FromSlice[T Numeric](c, h, w int, pix []T) (*Planar[T], error) {
	if len(pix) != c*h*w {
		return nil, fmt.Errorf("Pixel slice of length %d can't be shaped as %dx%dx%d", len(pix), c, h, w)
	}
	return &Planar[T]{Channels: c, Height: h, Width: w, Pix: pix}, nil
}

// Index returns the position in Pix of a sample
func (p *Planar[T]) Index(c, y, x int) int {
	return (c*p.Height+y)*p.Width + x
}

// At returns the sample at band c, row y, column x
func (p *Planar[T]) At(c, y, x int) T {
	return p.Pix[p.Index(c, y, x)]
}

// Set sets the sample at band c, row y, column x
func (p *Planar[T]) Set(c, y, x int, v T) {
	p.Pix[p.Index(c, y, x)] = v
}

// Band returns the samples of band c. The slice shares memory with
// the raster.
func (p *Planar[T]) Band(c int) []T {
	n := p.Height * p.Width
	return p.Pix[c*n : (c+1)*n]
}

// Row returns row y of band c. The slice shares memory with the
// raster.
func (p *Planar[T]) Row(c, y int) []T {
	i := p.Index(c, y, 0)
	return p.Pix[i : i+p.Width]
}

// Crop returns a copy of the h x w region starting at y, x, across
// all bands
func (p *Planar[T]) Crop(y, x, h, w int) (*Planar[T], error) {
	if y < 0 || x < 0 || h < 0 || w < 0 || y+h > p.Height || x+w > p.Width {
		return nil, fmt.Errorf("Region %dx%d at %d,%d is outside raster of %dx%d", h, w, y, x, p.Height, p.Width)
	}
	out := New[T](p.Channels, h, w)
	for c := 0; c < p.Channels; c++ {
		for r := 0; r < h; r++ {
			copy(out.Row(c, r), p.Row(c, y+r)[x:x+w])
		}
	}
	return out, nil
}

// Channel returns a copy of a single band as a one band raster
func (p *Planar[T]) Channel(c int) *Planar[T] {
	out := New[T](1, p.Height, p.Width)
	copy(out.Pix, p.Band(c))
	return out
}

// Max returns the largest sample in the raster
func (p *Planar[T]) Max() T {
	var m T
	for i, v := range p.Pix {
		if i == 0 || v > m {
			m = v
		}
	}
	return m
}

// Sum returns the sum of all samples in the raster
func (p *Planar[T]) Sum() float64 {
	var s float64
	for _, v := range p.Pix {
		s += float64(v)
	}
	return s
}

// Convert returns a copy of p with each sample converted to U
func Convert[U, T Numeric](p *Planar[T]) *Planar[U] {
	out := New[U](p.Channels, p.Height, p.Width)
	for i, v := range p.Pix {
		out.Pix[i] = U(v)
	}
	return out
}

// Stretch maps class indices 0..classes-1 onto the full 8 bit range,
// so that a class mask can be viewed as an image
func Stretch(p *Planar[uint8], classes int) *Planar[uint8] {
	out := New[uint8](p.Channels, p.Height, p.Width)
	if classes < 2 {
		return out
	}
	step := 255 / (classes - 1)
	for i, v := range p.Pix {
		out.Pix[i] = uint8(min(int(v)*step, 255))
	}
	return out
}
