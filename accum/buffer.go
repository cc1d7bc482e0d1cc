// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// accum merges overlapping patch predictions into a single
// probability map for a whole raster. Each prediction is multiplied
// by a weight kernel which favours the centre of the patch and added
// into an accumulation buffer, while the kernel itself is added into
// a weight buffer; dividing one by the other gives the blended
// result. As this is a plain sum, the order in which patches are
// added makes no difference.
//
// Accumulators are not safe for concurrent use; callers which make
// predictions in parallel must serialise their calls to Update.
package accum

import (
	"errors"
	"fmt"
	"image"

	"rescribe.xyz/tilemerge/raster"
	"rescribe.xyz/tilemerge/weightkernel"
)

var (
	// ErrOutOfBounds is returned when a patch doesn't fit inside the
	// buffer at the offset given
	ErrOutOfBounds = errors.New("patch outside buffer")

	// ErrShape is returned when a prediction isn't the shape of a
	// patch
	ErrShape = errors.New("prediction has wrong shape")

	// ErrDegenerate is returned by Degenerate if any pixel has no
	// weight, so can't be normalised
	ErrDegenerate = errors.New("pixels with zero weight")
)

// buffer holds the accumulated predictions and weights for a raster
type buffer[T raster.Float] struct {
	ph, pw int
	acc    *raster.Planar[T]
	wt     *raster.Planar[T]
	kernel []T
}

func newBuffer[T raster.Float](h, w, c, ph, pw int) (buffer[T], error) {
	if h <= 0 || w <= 0 || c <= 0 {
		return buffer[T]{}, fmt.Errorf("Invalid buffer size %dx%dx%d", c, h, w)
	}
	k, err := weightkernel.New(ph, pw)
	if err != nil {
		return buffer[T]{}, err
	}

	kernel := make([]T, 0, ph*pw)
	for y := 0; y < ph; y++ {
		for x := 0; x < pw; x++ {
			kernel = append(kernel, T(k.At(y, x)))
		}
	}

	return buffer[T]{
		ph:     ph,
		pw:     pw,
		acc:    raster.New[T](c, h, w),
		wt:     raster.New[T](1, h, w),
		kernel: kernel,
	}, nil
}

// add accumulates a weighted prediction for the patch at y, x
func (b *buffer[T]) add(pred *raster.Planar[T], y, x int) error {
	if pred == nil {
		return fmt.Errorf("%w: missing prediction for patch at %d,%d", ErrShape, y, x)
	}
	if y < 0 || x < 0 || y+b.ph > b.acc.Height || x+b.pw > b.acc.Width {
		return fmt.Errorf("%w: patch of %dx%d at %d,%d does not fit in buffer of %dx%d", ErrOutOfBounds, b.ph, b.pw, y, x, b.acc.Height, b.acc.Width)
	}
	if pred.Channels != b.acc.Channels || pred.Height != b.ph || pred.Width != b.pw {
		return fmt.Errorf("%w: got %dx%dx%d, expected %dx%dx%d", ErrShape, pred.Channels, pred.Height, pred.Width, b.acc.Channels, b.ph, b.pw)
	}

	for py := 0; py < b.ph; py++ {
		k := b.kernel[py*b.pw : (py+1)*b.pw]
		wrow := b.wt.Row(0, y+py)[x : x+b.pw]
		for px, kv := range k {
			wrow[px] += kv
		}
		for c := 0; c < b.acc.Channels; c++ {
			arow := b.acc.Row(c, y+py)[x : x+b.pw]
			prow := pred.Row(c, py)
			for px, kv := range k {
				arow[px] += kv * prow[px]
			}
		}
	}
	return nil
}

// normalised returns the accumulated predictions divided by their
// weights. Pixels with no weight come out as NaN.
func (b *buffer[T]) normalised() *raster.Planar[T] {
	out := raster.New[T](b.acc.Channels, b.acc.Height, b.acc.Width)
	wt := b.wt.Band(0)
	for c := 0; c < b.acc.Channels; c++ {
		acc := b.acc.Band(c)
		dst := out.Band(c)
		for i, w := range wt {
			dst[i] = acc[i] / w
		}
	}
	return out
}

// Reset zeroes the buffers, so they can be reused for another raster
// of the same size
func (b *buffer[T]) Reset() {
	clear(b.acc.Pix)
	clear(b.wt.Pix)
}

// Size returns the height, width and number of classes of the buffer
func (b *buffer[T]) Size() (h, w, c int) {
	return b.acc.Height, b.acc.Width, b.acc.Channels
}

// Weights returns the accumulated weight of each pixel. It shares
// memory with the buffer.
func (b *buffer[T]) Weights() *raster.Planar[T] {
	return b.wt
}

// Degenerate returns an error wrapping ErrDegenerate if any pixel has
// not been covered by a patch, and so has no result
func (b *buffer[T]) Degenerate() error {
	var n int
	var first image.Point
	for i, w := range b.wt.Pix {
		if w != 0 {
			continue
		}
		if n == 0 {
			first = image.Pt(i%b.wt.Width, i/b.wt.Width)
		}
		n++
	}
	if n == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d of %dx%d pixels were never covered, the first at x %d y %d", ErrDegenerate, n, b.wt.Height, b.wt.Width, first.X, first.Y)
}
