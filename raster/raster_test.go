// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package raster

import (
	"image"
	"image/color"
	"path/filepath"
	"reflect"
	"testing"
)

func ramp(c, h, w int) *Planar[uint16] {
	p := New[uint16](c, h, w)
	for i := range p.Pix {
		p.Pix[i] = uint16(i % 251)
	}
	return p
}

func TestCrop(t *testing.T) {
	p := ramp(2, 5, 6)
	c, err := p.Crop(1, 2, 3, 4)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for b := 0; b < 2; b++ {
		for y := 0; y < 3; y++ {
			for x := 0; x < 4; x++ {
				if c.At(b, y, x) != p.At(b, y+1, x+2) {
					t.Fatalf("Cropped sample %d,%d,%d differs", b, y, x)
				}
			}
		}
	}

	_, err = p.Crop(3, 0, 3, 2)
	if err == nil {
		t.Fatalf("Expected an error cropping outside the raster")
	}
}

func TestStretch(t *testing.T) {
	p, err := FromSlice(1, 1, 3, []uint8{0, 1, 2})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	s := Stretch(p, 3)
	if !reflect.DeepEqual(s.Pix, []uint8{0, 127, 254}) {
		t.Fatalf("Unexpected stretched values %v", s.Pix)
	}
}

func TestFromImage(t *testing.T) {
	g := image.NewGray16(image.Rect(0, 0, 3, 2))
	g.SetGray16(2, 1, color.Gray16{Y: 4000})
	p, depth := FromImage(g)
	if depth != 16 || p.Channels != 1 || p.Height != 2 || p.Width != 3 {
		t.Fatalf("Unexpected raster of %dx%dx%d at depth %d", p.Channels, p.Height, p.Width, depth)
	}
	if p.At(0, 1, 2) != 4000 {
		t.Fatalf("Expected 4000, got %d", p.At(0, 1, 2))
	}

	rgb := image.NewRGBA(image.Rect(0, 0, 2, 2))
	rgb.SetRGBA(1, 0, color.RGBA{10, 20, 30, 255})
	p, depth = FromImage(rgb)
	if depth != 8 || p.Channels != 3 {
		t.Fatalf("Unexpected raster of %d bands at depth %d", p.Channels, depth)
	}
	if p.At(0, 0, 1) != 10 || p.At(1, 0, 1) != 20 || p.At(2, 0, 1) != 30 {
		t.Fatalf("Colour samples differ: %d %d %d", p.At(0, 0, 1), p.At(1, 0, 1), p.At(2, 0, 1))
	}
}

func TestOutput(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"out.png", "out.tif"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			o, err := Create(path, 4, 5, 1)
			if err != nil {
				t.Fatalf("Could not create output: %v", err)
			}
			blk, _ := FromSlice(1, 2, 2, []uint8{1, 2, 3, 4})
			err = o.WriteBand(0, blk, 2, 3)
			if err != nil {
				t.Fatalf("Could not write band: %v", err)
			}
			err = o.WriteBand(0, blk, 3, 3)
			if err == nil {
				t.Fatalf("Expected an error writing outside the output")
			}
			err = o.WriteBand(1, blk, 0, 0)
			if err == nil {
				t.Fatalf("Expected an error writing to a missing band")
			}
			err = o.Close()
			if err != nil {
				t.Fatalf("Could not save output: %v", err)
			}

			f, err := Open(path)
			if err != nil {
				t.Fatalf("Could not open saved output: %v", err)
			}
			h, w, c := f.Size()
			if h != 4 || w != 5 || c != 1 {
				t.Fatalf("Saved output is %dx%dx%d, expected 4x5x1", h, w, c)
			}
			blk2, err := f.ReadWindow(2, 3, 2, 2)
			if err != nil {
				t.Fatalf("Could not read window: %v", err)
			}
			if !reflect.DeepEqual(blk2.Pix, []uint16{1, 2, 3, 4}) {
				t.Fatalf("Read back %v, expected [1 2 3 4]", blk2.Pix)
			}
		})
	}
}

func TestCreateBands(t *testing.T) {
	_, err := Create("x.png", 2, 2, 2)
	if err == nil {
		t.Fatalf("Expected an error creating a 2 band output")
	}
}
