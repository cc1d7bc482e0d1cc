// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// File is a raster which has been read from an image file, which
// windows can be read from
type File struct {
	Path     string
	BitDepth int
	pix      *Planar[uint16]
}

// Open decodes the image file at path. PNG, JPEG, TIFF and BMP files
// are supported.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("Could not open raster %s: %w", path, err)
	}
	defer f.Close()

	pix, depth, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("Could not decode raster %s: %v", path, err)
	}
	return &File{Path: path, BitDepth: depth, pix: pix}, nil
}

// Decode reads an image into a planar raster, returning it along
// with the bit depth of its samples
func Decode(r io.Reader) (*Planar[uint16], int, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, 0, err
	}
	pix, depth := FromImage(img)
	return pix, depth, nil
}

// FromImage converts an image into a planar raster. Gray images
// become a single band, everything else three bands of red, green
// and blue. 16 bit images keep their full range, everything else is
// 8 bit.
func FromImage(img image.Image) (*Planar[uint16], int) {
	b := img.Bounds()
	h, w := b.Dy(), b.Dx()

	switch i := img.(type) {
	case *image.Gray:
		p := New[uint16](1, h, w)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				p.Set(0, y, x, uint16(i.GrayAt(b.Min.X+x, b.Min.Y+y).Y))
			}
		}
		return p, 8
	case *image.Gray16:
		p := New[uint16](1, h, w)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				p.Set(0, y, x, i.Gray16At(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
		return p, 16
	case *image.RGBA64, *image.NRGBA64:
		p := New[uint16](3, h, w)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := color.NRGBA64Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
				p.Set(0, y, x, c.R)
				p.Set(1, y, x, c.G)
				p.Set(2, y, x, c.B)
			}
		}
		return p, 16
	}

	p := New[uint16](3, h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			p.Set(0, y, x, uint16(c.R))
			p.Set(1, y, x, uint16(c.G))
			p.Set(2, y, x, uint16(c.B))
		}
	}
	return p, 8
}

// FromPlanar wraps an in-memory raster so that windows can be read
// from it
func FromPlanar(p *Planar[uint16], bitDepth int) *File {
	return &File{BitDepth: bitDepth, pix: p}
}

// Size returns the height, width and number of bands of the raster
func (f *File) Size() (h, w, c int) {
	return f.pix.Height, f.pix.Width, f.pix.Channels
}

// ReadWindow returns a copy of the h x w block at y, x
func (f *File) ReadWindow(y, x, h, w int) (*Planar[uint16], error) {
	return f.pix.Crop(y, x, h, w)
}

// Pixels returns the whole raster. It shares memory with the File.
func (f *File) Pixels() *Planar[uint16] {
	return f.pix
}

// Output is an 8 bit raster which is built up band by band and
// block by block, and then saved as an image file
type Output struct {
	Path string
	pix  *Planar[uint8]
}

// Create sets up an output raster of c bands of h x w, to be saved
// to path when Close is called. The format is chosen by the file
// extension; .tif and .tiff files are saved as TIFF, anything else as
// PNG.
func Create(path string, h, w, c int) (*Output, error) {
	if c != 1 && c != 3 {
		return nil, fmt.Errorf("Can't save a raster of %d bands to %s, only 1 or 3 are supported", c, path)
	}
	if h <= 0 || w <= 0 {
		return nil, fmt.Errorf("Can't create an empty raster of %dx%d", h, w)
	}
	return &Output{Path: path, pix: New[uint8](c, h, w)}, nil
}

// WriteBand writes a single band block into band of the output at
// yoff, xoff
func (o *Output) WriteBand(band int, blk *Planar[uint8], yoff, xoff int) error {
	if band < 0 || band >= o.pix.Channels {
		return fmt.Errorf("Band %d is outside output of %d bands", band, o.pix.Channels)
	}
	if blk.Channels != 1 {
		return fmt.Errorf("Block to write to band %d has %d bands, expected 1", band, blk.Channels)
	}
	if yoff < 0 || xoff < 0 || yoff+blk.Height > o.pix.Height || xoff+blk.Width > o.pix.Width {
		return fmt.Errorf("Block of %dx%d at %d,%d is outside output of %dx%d", blk.Height, blk.Width, yoff, xoff, o.pix.Height, o.pix.Width)
	}
	for y := 0; y < blk.Height; y++ {
		copy(o.pix.Row(band, yoff+y)[xoff:], blk.Row(0, y))
	}
	return nil
}

// Pixels returns the output raster as written so far. It shares
// memory with the Output.
func (o *Output) Pixels() *Planar[uint8] {
	return o.pix
}

// Close encodes the output raster and saves it to its path
func (o *Output) Close() error {
	img, err := ToImage(o.pix)
	if err != nil {
		return err
	}

	f, err := os.Create(o.Path)
	if err != nil {
		return fmt.Errorf("Could not create %s: %v", o.Path, err)
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(o.Path))
	if ext == ".tif" || ext == ".tiff" {
		err = tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	} else {
		err = png.Encode(f, img)
	}
	if err != nil {
		return fmt.Errorf("Could not encode %s: %v", o.Path, err)
	}
	return f.Close()
}

// ToImage converts a one or three band raster into an image
func ToImage(p *Planar[uint8]) (image.Image, error) {
	r := image.Rect(0, 0, p.Width, p.Height)
	switch p.Channels {
	case 1:
		img := image.NewGray(r)
		for y := 0; y < p.Height; y++ {
			copy(img.Pix[y*img.Stride:], p.Row(0, y))
		}
		return img, nil
	case 3:
		img := image.NewRGBA(r)
		for y := 0; y < p.Height; y++ {
			for x := 0; x < p.Width; x++ {
				img.SetRGBA(x, y, color.RGBA{p.At(0, y, x), p.At(1, y, x), p.At(2, y, x), 255})
			}
		}
		return img, nil
	}
	return nil, errors.New(fmt.Sprintf("Unsupported number of bands for an image: %d", p.Channels))
}
