// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package pipeline

import (
	"fmt"

	"rescribe.xyz/tilemerge/window"
)

// Mode selects how tile predictions are merged
type Mode string

const (
	// ModeBlend blends batches of predictions, made in parallel,
	// with accum.Weighted
	ModeBlend Mode = "blend"
	// ModeCenter blends predictions one at a time with
	// accum.CenterClip
	ModeCenter Mode = "center"
	// ModeClip writes the trimmed centre of each prediction straight
	// to the output with tilesource.Streaming
	ModeClip Mode = "clip"
)

// Config holds the settings for merging a raster
type Config struct {
	TileSize  int
	Overlap   int
	BitDepth  int // samples above (1<<BitDepth)-1 are rejected
	Precision int // 32 or 64 bit floats for predictions and buffers
	Mode      Mode
	Workers   int // goroutines making predictions in blend mode
	BatchSize int // tiles per prediction in blend mode

	SauvolaK      float64
	SauvolaWindow int
}

// DefaultConfig returns the settings used by the tilemerge command
// unless they are overridden
func DefaultConfig() Config {
	return Config{
		TileSize:      256,
		Overlap:       64,
		BitDepth:      8,
		Precision:     32,
		Mode:          ModeBlend,
		Workers:       4,
		BatchSize:     8,
		SauvolaK:      0.3,
		SauvolaWindow: 19,
	}
}

// Validate checks that the settings make sense, without regard to
// the size of any raster
func (c Config) Validate() error {
	if c.TileSize <= 0 || c.Overlap < 0 || c.Overlap >= c.TileSize {
		return fmt.Errorf("%w: tile size %d with overlap %d", window.ErrConfig, c.TileSize, c.Overlap)
	}
	if c.BitDepth < 1 || c.BitDepth > 16 {
		return fmt.Errorf("Unsupported bit depth %d", c.BitDepth)
	}
	if c.Precision != 32 && c.Precision != 64 {
		return fmt.Errorf("Unsupported precision %d, must be 32 or 64", c.Precision)
	}
	switch c.Mode {
	case ModeBlend, ModeCenter, ModeClip:
	default:
		return fmt.Errorf("Unknown mode %q", c.Mode)
	}
	if c.Workers < 1 || c.BatchSize < 1 {
		return fmt.Errorf("Need at least one worker and a batch size of at least one, got %d and %d", c.Workers, c.BatchSize)
	}
	if c.SauvolaWindow < 1 {
		return fmt.Errorf("Invalid Sauvola window size %d", c.SauvolaWindow)
	}
	return nil
}

// maxValue is the largest sample allowed by the bit depth
func (c Config) maxValue() uint16 {
	return uint16(uint32(1)<<c.BitDepth - 1)
}
