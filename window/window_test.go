// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package window

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func TestPartition(t *testing.T) {
	cases := []struct {
		h, w, size, overlap int
		expected            []Window
	}{
		{10, 10, 6, 2, []Window{{0, 6, 0, 6}, {0, 6, 4, 10}, {4, 10, 0, 6}, {4, 10, 4, 10}}},
		{4, 4, 4, 0, []Window{{0, 4, 0, 4}}},
		{4, 8, 4, 0, []Window{{0, 4, 0, 4}, {0, 4, 4, 8}}},
		{5, 9, 5, 1, []Window{{0, 5, 0, 5}, {0, 5, 4, 9}}},
		{6, 7, 4, 1, []Window{{0, 4, 0, 4}, {0, 4, 3, 7}, {2, 6, 0, 4}, {2, 6, 3, 7}}},
	}

	for _, c := range cases {
		t.Run(fmt.Sprintf("%dx%d_%d_%d", c.h, c.w, c.size, c.overlap), func(t *testing.T) {
			g, err := Partition(c.h, c.w, c.size, c.overlap)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !reflect.DeepEqual(g.Windows, c.expected) {
				t.Fatalf("Windows differ, expected %v, got %v", c.expected, g.Windows)
			}
		})
	}
}

func TestPartitionCoverage(t *testing.T) {
	for h := 1; h <= 23; h += 2 {
		for w := 1; w <= 23; w += 3 {
			for size := 1; size <= min(h, w); size++ {
				for overlap := 0; overlap < size; overlap++ {
					g, err := Partition(h, w, size, overlap)
					if err != nil {
						t.Fatalf("%dx%d size %d overlap %d: unexpected error: %v", h, w, size, overlap, err)
					}
					covered := make([]bool, h*w)
					for _, win := range g.Windows {
						if win.Height() != size || win.Width() != size {
							t.Fatalf("%dx%d size %d overlap %d: window %v is not %dx%d", h, w, size, overlap, win, size, size)
						}
						if win.Y1 < 0 || win.X1 < 0 || win.Y2 > h || win.X2 > w {
							t.Fatalf("%dx%d size %d overlap %d: window %v outside extent", h, w, size, overlap, win)
						}
						for y := win.Y1; y < win.Y2; y++ {
							for x := win.X1; x < win.X2; x++ {
								covered[y*w+x] = true
							}
						}
					}
					for i, c := range covered {
						if !c {
							t.Fatalf("%dx%d size %d overlap %d: pixel %d,%d not covered", h, w, size, overlap, i/w, i%w)
						}
					}
				}
			}
		}
	}
}

func TestPartitionRowMajor(t *testing.T) {
	g, err := Partition(30, 50, 8, 3)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for i := 1; i < g.Len(); i++ {
		a, b := g.Windows[i-1], g.Windows[i]
		if b.Y1 < a.Y1 || (b.Y1 == a.Y1 && b.X1 <= a.X1) {
			t.Fatalf("Window %d %v is not after window %d %v", i, b, i-1, a)
		}
		if b.Y1 == a.Y1 && b.X1-a.X1 > g.Stride() {
			t.Fatalf("Gap between windows %v and %v is larger than stride %d", a, b, g.Stride())
		}
	}
}

func TestPartitionErrors(t *testing.T) {
	cases := []struct {
		name                string
		h, w, size, overlap int
	}{
		{"overlapequal", 10, 10, 6, 6},
		{"overlaplarger", 10, 10, 6, 7},
		{"negativeoverlap", 10, 10, 6, -1},
		{"zerosize", 10, 10, 0, 0},
		{"toobig", 10, 4, 6, 2},
		{"empty", 0, 10, 6, 2},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Partition(c.h, c.w, c.size, c.overlap)
			if !errors.Is(err, ErrConfig) {
				t.Fatalf("Expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestTrim(t *testing.T) {
	g, err := Partition(10, 10, 6, 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	expected := [][4]int{
		{0, 1, 0, 1},
		{0, 1, 1, 0},
		{1, 0, 0, 1},
		{1, 0, 1, 0},
	}
	for i, e := range expected {
		top, bottom, left, right := g.Trim(i)
		got := [4]int{top, bottom, left, right}
		if got != e {
			t.Errorf("Trim of window %d %v: expected %v, got %v", i, g.Windows[i], e, got)
		}
	}
}
