// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// weightkernel builds the per-patch weights used to blend
// overlapping predictions back together. Pixels near the edge of a
// patch were predicted with little context, so they are trusted less
// than pixels near its centre; the weight of each pixel is its
// distance from the patch edge.
package weightkernel

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// New returns the ph x pw weight kernel for a patch. It is computed
// by surrounding the patch with a ring of zeros, taking the distance
// transform, and cutting the ring away again, so the outermost ring
// of the kernel is 1 and each ring further in is 1 more.
func New(ph, pw int) (*mat.Dense, error) {
	if ph <= 0 || pw <= 0 {
		return nil, fmt.Errorf("Invalid patch size %dx%d", ph, pw)
	}

	padded := mat.NewDense(ph+2, pw+2, nil)
	for y := 1; y <= ph; y++ {
		for x := 1; x <= pw; x++ {
			padded.Set(y, x, 1)
		}
	}

	d := EDT(padded)
	return mat.DenseCopyOf(d.Slice(1, ph+1, 1, pw+1)), nil
}

// Peak returns the largest weight in a kernel
func Peak(k *mat.Dense) float64 {
	r, c := k.Dims()
	row := make([]float64, c)
	peak := 0.0
	for y := 0; y < r; y++ {
		mat.Row(row, y, k)
		peak = max(peak, floats.Max(row))
	}
	return peak
}
