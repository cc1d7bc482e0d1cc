// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package weightkernel

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// far stands in for infinity in the squared distance arithmetic, as
// in the original paper; true infinities would turn into NaNs.
const far = 1e20

// EDT computes the exact Euclidean distance transform of m: every
// cell of the result holds the distance from that cell to the nearest
// cell of m which is zero. If m has no zero cells every result cell
// is +Inf.
//
// Implements the separable algorithm from Felzenszwalb and
// Huttenlocher, "Distance Transforms of Sampled Functions" (2012).
func EDT(m mat.Matrix) *mat.Dense {
	rows, cols := m.Dims()
	d := mat.NewDense(rows, cols, nil)

	n := max(rows, cols)
	f := make([]float64, n)
	out := make([]float64, n)
	v := make([]int, n)
	z := make([]float64, n+1)

	anyzero := false
	for x := 0; x < cols; x++ {
		for y := 0; y < rows; y++ {
			if m.At(y, x) == 0 {
				f[y] = 0
				anyzero = true
			} else {
				f[y] = far
			}
		}
		dt1d(f[:rows], out[:rows], v, z)
		for y := 0; y < rows; y++ {
			d.Set(y, x, out[y])
		}
	}

	for y := 0; y < rows; y++ {
		mat.Row(f[:cols], y, d)
		dt1d(f[:cols], out[:cols], v, z)
		for x := 0; x < cols; x++ {
			if anyzero {
				d.Set(y, x, math.Sqrt(out[x]))
			} else {
				d.Set(y, x, math.Inf(1))
			}
		}
	}

	return d
}

// dt1d computes the squared distance transform of a sampled function
// f into d, using the lower envelope of the parabolas rooted at each
// sample. v and z are scratch space of at least len(f) and len(f)+1.
func dt1d(f, d []float64, v []int, z []float64) {
	n := len(f)
	if n == 0 {
		return
	}
	k := 0
	v[0] = 0
	z[0] = -far
	z[1] = far
	for q := 1; q < n; q++ {
		s := intersect(f, q, v[k])
		for s <= z[k] {
			k--
			s = intersect(f, q, v[k])
		}
		k++
		v[k] = q
		z[k] = s
		z[k+1] = far
	}

	k = 0
	for q := 0; q < n; q++ {
		for z[k+1] < float64(q) {
			k++
		}
		dq := float64(q - v[k])
		d[q] = dq*dq + f[v[k]]
	}
}

// intersect returns the position at which the parabolas rooted at q
// and p cross
func intersect(f []float64, q, p int) float64 {
	fq, fp := float64(q), float64(p)
	return ((f[q] + fq*fq) - (f[p] + fp*fp)) / (2*fq - 2*fp)
}
