// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package tilesource

import (
	"fmt"
	"io"
	"log"

	"rescribe.xyz/tilemerge/raster"
	"rescribe.xyz/tilemerge/window"
)

// Reader is a raster which windows can be read from
type Reader interface {
	Size() (h, w, c int)
	ReadWindow(y, x, h, w int) (*raster.Planar[uint16], error)
}

// Writer is an output raster which single band blocks can be
// written into
type Writer interface {
	WriteBand(band int, blk *raster.Planar[uint8], yoff, xoff int) error
}

// Token identifies a window handed out by Streaming.Next, and must be
// given back with the result for that window
type Token struct {
	src   *Streaming
	index int
}

// Index returns the position in the grid of the window the token is
// for
func (t Token) Index() int {
	return t.index
}

// Streaming reads the windows of a raster one at a time, in grid
// order, and writes the result for each window into an output
// raster, keeping only the centre of each result. Sides of a window
// which are on the edge of the raster are kept whole, so the centres
// join up to cover the whole output.
type Streaming struct {
	Logger *log.Logger

	r        Reader
	w        Writer
	grid     window.Grid
	bands    int
	maxValue uint16
	cursor   int
	fitted   []bool
}

// NewStreaming sets up a Streaming source over r, writing bands
// bands of results to w. Windows are size x size, overlapping by
// overlap, and any pixel which doesn't fit in bitDepth bits is
// rejected.
func NewStreaming(r Reader, w Writer, bands, size, overlap, bitDepth int) (*Streaming, error) {
	if bitDepth < 1 || bitDepth > 16 {
		return nil, fmt.Errorf("Unsupported bit depth %d", bitDepth)
	}
	if bands < 1 {
		return nil, fmt.Errorf("Invalid number of output bands %d", bands)
	}
	h, wd, _ := r.Size()
	grid, err := window.Partition(h, wd, size, overlap)
	if err != nil {
		return nil, err
	}
	return &Streaming{
		Logger:   log.New(io.Discard, "", 0),
		r:        r,
		w:        w,
		grid:     grid,
		bands:    bands,
		maxValue: uint16(uint32(1)<<bitDepth - 1),
		fitted:   make([]bool, grid.Len()),
	}, nil
}

// Len returns the number of windows
func (s *Streaming) Len() int {
	return s.grid.Len()
}

// Grid returns the windows being read
func (s *Streaming) Grid() window.Grid {
	return s.grid
}

// Next reads the next window, returning its tile and the token to
// fit its result with. Once all windows have been read it returns
// ErrEnd.
func (s *Streaming) Next() (Tile[uint16], Token, error) {
	if s.cursor == s.grid.Len() {
		return Tile[uint16]{}, Token{}, ErrEnd
	}
	t, err := s.read(s.cursor)
	if err != nil {
		return Tile[uint16]{}, Token{}, err
	}
	tok := Token{src: s, index: s.cursor}
	s.cursor++
	return t, tok, nil
}

// Get reads window i, without affecting the sequence read by Next
func (s *Streaming) Get(i int) (Tile[uint16], error) {
	if i < 0 || i >= s.grid.Len() {
		return Tile[uint16]{}, fmt.Errorf("%w: %d of %d", ErrIndex, i, s.grid.Len())
	}
	return s.read(i)
}

func (s *Streaming) read(i int) (Tile[uint16], error) {
	w := s.grid.Windows[i]
	s.Logger.Println("Reading window", i, w)
	blk, err := s.r.ReadWindow(w.Y1, w.X1, w.Height(), w.Width())
	if err != nil {
		return Tile[uint16]{}, fmt.Errorf("Error reading window %d %v: %w", i, w, err)
	}
	if blk.Height != w.Height() || blk.Width != w.Width() {
		return Tile[uint16]{}, fmt.Errorf("Reader returned a block of %dx%d for window %v", blk.Height, blk.Width, w)
	}
	if m := blk.Max(); m > s.maxValue {
		return Tile[uint16]{}, fmt.Errorf("%w: %d is above %d in window %d %v", ErrValueRange, m, s.maxValue, i, w)
	}
	return Tile[uint16]{Index: i, Window: w, Data: blk}, nil
}

// Fit writes the centre of result, the prediction for the window of
// tok, into the output. Each window can only be fitted once.
func (s *Streaming) Fit(tok Token, result *raster.Planar[uint8]) error {
	if tok.src != s {
		return fmt.Errorf("%w: token was not issued by this source", ErrState)
	}
	if tok.index >= s.cursor || s.fitted[tok.index] {
		return fmt.Errorf("%w: window %d %v has already been fitted", ErrState, tok.index, s.grid.Windows[tok.index])
	}

	w := s.grid.Windows[tok.index]
	if result.Channels < s.bands || result.Height != w.Height() || result.Width != w.Width() {
		return fmt.Errorf("Result of %dx%dx%d does not match window %v with %d bands", result.Channels, result.Height, result.Width, w, s.bands)
	}

	top, bottom, left, right := s.grid.Trim(tok.index)
	h := w.Height() - top - bottom
	wd := w.Width() - left - right
	for b := 0; b < s.bands; b++ {
		blk, err := result.Channel(b).Crop(top, left, h, wd)
		if err != nil {
			return err
		}
		err = s.w.WriteBand(b, blk, w.Y1+top, w.X1+left)
		if err != nil {
			return fmt.Errorf("Error writing band %d of window %d %v: %w", b, tok.index, w, err)
		}
	}
	s.fitted[tok.index] = true
	s.Logger.Println("Fitted window", tok.index, w)
	return nil
}
