// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package weightkernel

import (
	"fmt"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestEDT(t *testing.T) {
	m := mat.NewDense(3, 4, []float64{
		1, 1, 1, 1,
		1, 0, 1, 1,
		1, 1, 1, 1,
	})
	expected := mat.NewDense(3, 4, []float64{
		math.Sqrt2, 1, math.Sqrt2, math.Sqrt(5),
		1, 0, 1, 2,
		math.Sqrt2, 1, math.Sqrt2, math.Sqrt(5),
	})
	d := EDT(m)
	if !mat.EqualApprox(d, expected, 1e-9) {
		t.Fatalf("Distance transform differs, expected\n%v\ngot\n%v", mat.Formatted(expected), mat.Formatted(d))
	}
}

func TestEDTBruteForce(t *testing.T) {
	m := mat.NewDense(7, 9, nil)
	zeros := [][2]int{{0, 3}, {4, 8}, {6, 0}, {3, 3}}
	for y := 0; y < 7; y++ {
		for x := 0; x < 9; x++ {
			m.Set(y, x, 1)
		}
	}
	for _, z := range zeros {
		m.Set(z[0], z[1], 0)
	}

	d := EDT(m)
	for y := 0; y < 7; y++ {
		for x := 0; x < 9; x++ {
			best := math.Inf(1)
			for _, z := range zeros {
				dy, dx := float64(y-z[0]), float64(x-z[1])
				best = math.Min(best, math.Hypot(dy, dx))
			}
			if math.Abs(d.At(y, x)-best) > 1e-9 {
				t.Errorf("Distance at %d,%d: expected %f, got %f", y, x, best, d.At(y, x))
			}
		}
	}
}

func TestEDTNoZeros(t *testing.T) {
	d := EDT(mat.NewDense(2, 2, []float64{1, 1, 1, 1}))
	if !math.IsInf(d.At(1, 1), 1) {
		t.Fatalf("Expected +Inf with no zero cells, got %f", d.At(1, 1))
	}
}

func TestNew(t *testing.T) {
	cases := []struct {
		ph, pw int
	}{
		{1, 1},
		{5, 5},
		{6, 6},
		{4, 7},
		{16, 9},
	}

	for _, c := range cases {
		t.Run(fmt.Sprintf("%dx%d", c.ph, c.pw), func(t *testing.T) {
			k, err := New(c.ph, c.pw)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			r, cols := k.Dims()
			if r != c.ph || cols != c.pw {
				t.Fatalf("Expected kernel of %dx%d, got %dx%d", c.ph, c.pw, r, cols)
			}
			for y := 0; y < c.ph; y++ {
				for x := 0; x < c.pw; x++ {
					expected := float64(min(y+1, x+1, c.ph-y, c.pw-x))
					if k.At(y, x) != expected {
						t.Errorf("Weight at %d,%d: expected %f, got %f", y, x, expected, k.At(y, x))
					}
				}
			}
		})
	}
}

func TestNewSymmetric(t *testing.T) {
	k, err := New(11, 8)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	r, c := k.Dims()
	for y := 0; y < r; y++ {
		for x := 0; x < c; x++ {
			if k.At(y, x) != k.At(r-1-y, x) {
				t.Errorf("Not symmetric under vertical flip at %d,%d", y, x)
			}
			if k.At(y, x) != k.At(y, c-1-x) {
				t.Errorf("Not symmetric under horizontal flip at %d,%d", y, x)
			}
		}
	}
}

func TestNewIncreasesToCentre(t *testing.T) {
	k, err := New(9, 13)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	r, c := k.Dims()
	cy, cx := r/2, c/2
	for y := 0; y < r; y++ {
		if k.At(y, 0) != 1 || k.At(y, c-1) != 1 {
			t.Errorf("Outer ring at row %d is not 1", y)
		}
	}
	for x := 0; x < c; x++ {
		if k.At(0, x) != 1 || k.At(r-1, x) != 1 {
			t.Errorf("Outer ring at column %d is not 1", x)
		}
	}
	for y := 1; y <= cy; y++ {
		if k.At(y, cx) < k.At(y-1, cx) {
			t.Errorf("Weight decreases towards centre at row %d", y)
		}
	}
	for x := 1; x <= cx; x++ {
		if k.At(cy, x) < k.At(cy, x-1) {
			t.Errorf("Weight decreases towards centre at column %d", x)
		}
	}
	if Peak(k) != 5 {
		t.Errorf("Expected peak of 5, got %f", Peak(k))
	}
}

func TestNewInvalid(t *testing.T) {
	_, err := New(0, 4)
	if err == nil {
		t.Fatalf("Expected an error for an empty patch")
	}
}
