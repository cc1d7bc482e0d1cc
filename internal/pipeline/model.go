// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package pipeline

import (
	"fmt"
	"image"

	"rescribe.xyz/preproc"
	"rescribe.xyz/tilemerge/raster"
)

// Model makes class probability predictions for tiles. Each
// prediction must have Classes() bands and the same height and width
// as its tile.
type Model[T raster.Float] interface {
	Classes() int
	Predict(tiles []*raster.Planar[T]) ([]*raster.Planar[T], error)
}

// Class indices used by Sauvola
const (
	ClassInk = iota
	ClassBackground
)

// Sauvola is a Model which binarises tiles with Sauvola's adaptive
// thresholding, predicting ClassInk with certainty for pixels below
// the threshold and ClassBackground for the rest. Tiles are expected
// to be normalised to 0..1; multiple bands are averaged to grey.
type Sauvola[T raster.Float] struct {
	K      float64
	Window int
}

func (s Sauvola[T]) Classes() int {
	return 2
}

func (s Sauvola[T]) Predict(tiles []*raster.Planar[T]) ([]*raster.Planar[T], error) {
	var preds []*raster.Planar[T]
	for i, t := range tiles {
		if t.Channels < 1 {
			return nil, fmt.Errorf("Tile %d has no bands", i)
		}
		bin := preproc.IntegralSauvola(toGray(t), s.K, s.Window)

		p := raster.New[T](2, t.Height, t.Width)
		for y := 0; y < t.Height; y++ {
			row := bin.Pix[y*bin.Stride : y*bin.Stride+t.Width]
			ink := p.Row(ClassInk, y)
			bg := p.Row(ClassBackground, y)
			for x, v := range row {
				if v == 0 {
					ink[x] = 1
				} else {
					bg[x] = 1
				}
			}
		}
		preds = append(preds, p)
	}
	return preds, nil
}

// toGray averages the bands of a normalised tile into a gray image
func toGray[T raster.Float](t *raster.Planar[T]) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, t.Width, t.Height))
	n := t.Height * t.Width
	for i := 0; i < n; i++ {
		var sum T
		for c := 0; c < t.Channels; c++ {
			sum += t.Pix[c*n+i]
		}
		v := float64(sum) / float64(t.Channels) * 255
		img.Pix[(i/t.Width)*img.Stride+i%t.Width] = uint8(min(max(v+0.5, 0), 255))
	}
	return img
}
