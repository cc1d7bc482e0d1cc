// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"gonum.org/v1/gonum/stat"
	"rescribe.xyz/tilemerge"
	"rescribe.xyz/tilemerge/accum"
	"rescribe.xyz/tilemerge/raster"
	"rescribe.xyz/tilemerge/tilesource"
	"rescribe.xyz/tilemerge/window"
)

// Run binarises the raster at inpath tile by tile with the Sauvola
// model, merging the tiles as set by cfg.Mode, and saves the result
// to outpath. The share of each tile which is ink is returned, for
// graphing.
func Run(ctx context.Context, inpath, outpath string, cfg Config, logger *log.Logger) ([]tilemerge.TileStat, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	logger.Println("Opening", inpath)
	f, err := raster.Open(inpath)
	if err != nil {
		return nil, err
	}

	if cfg.Precision == 64 {
		return run[float64](ctx, f, outpath, cfg, Sauvola[float64]{K: cfg.SauvolaK, Window: cfg.SauvolaWindow}, logger)
	}
	return run[float32](ctx, f, outpath, cfg, Sauvola[float32]{K: cfg.SauvolaK, Window: cfg.SauvolaWindow}, logger)
}

func run[T raster.Float](ctx context.Context, f *raster.File, outpath string, cfg Config, model Model[T], logger *log.Logger) ([]tilemerge.TileStat, error) {
	if cfg.Mode == ModeClip {
		return clip(ctx, f, outpath, cfg, model, logger)
	}

	img := f.Pixels()
	if m := img.Max(); m > cfg.maxValue() {
		return nil, fmt.Errorf("%w: %d is above %d for %d bits", tilesource.ErrValueRange, m, cfg.maxValue(), cfg.BitDepth)
	}
	h, w, _ := f.Size()
	grid, err := window.Partition(h, w, cfg.TileSize, cfg.Overlap)
	if err != nil {
		return nil, err
	}
	src, err := tilesource.NewRandomAccess(img, grid, tilesource.Normalize[uint16, T](float64(cfg.maxValue())))
	if err != nil {
		return nil, err
	}
	logger.Printf("%d of %d tiles of %s have data\n", src.Len(), grid.Len(), f.Path)

	var mask *raster.Planar[uint8]
	var prob *raster.Planar[T]
	var degenerate error
	switch cfg.Mode {
	case ModeBlend:
		acc, err := accum.NewWeighted[T](h, w, model.Classes(), cfg.TileSize, cfg.TileSize)
		if err != nil {
			return nil, err
		}
		err = blend(ctx, src, model, acc, cfg, logger)
		if err != nil {
			return nil, err
		}
		mask, prob = acc.Result()
		degenerate = acc.Degenerate()
	case ModeCenter:
		acc, err := accum.NewCenterClip[T](h, w, model.Classes(), cfg.TileSize, cfg.TileSize)
		if err != nil {
			return nil, err
		}
		err = center(ctx, src, model, acc, logger)
		if err != nil {
			return nil, err
		}
		prob = acc.Result()
		mask = accum.Argmax(prob)
		degenerate = acc.Degenerate()
	}
	if degenerate != nil {
		// empty tiles are skipped, and come out as class 0
		logger.Println("Tiles without data were not merged:", degenerate)
	}

	var stats []tilemerge.TileStat
	for i, w := range src.Windows() {
		stats = append(stats, tileStat(i, w, prob))
	}

	logger.Println("Saving", outpath)
	return stats, save(outpath, mask, model.Classes())
}

// prediction is a batch of predictions along with the windows they
// are for
type prediction[T raster.Float] struct {
	windows []window.Window
	preds   []*raster.Planar[T]
}

// blend makes predictions for batches of tiles in cfg.Workers
// goroutines, adding each batch to acc as it is done. acc is only
// updated from the calling goroutine.
func blend[T raster.Float](ctx context.Context, src tilesource.Source[T], model Model[T], acc *accum.Weighted[T], cfg Config, logger *log.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan []int)
	results := make(chan prediction[T])
	errc := make(chan error, cfg.Workers+1)

	go func() {
		defer close(jobs)
		for start := 0; start < src.Len(); start += cfg.BatchSize {
			var batch []int
			for i := start; i < min(start+cfg.BatchSize, src.Len()); i++ {
				batch = append(batch, i)
			}
			select {
			case jobs <- batch:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := predictBatches(ctx, src, model, jobs, results)
			if err != nil {
				errc <- err
				cancel()
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	n := 0
	for p := range results {
		if ctx.Err() != nil {
			continue // consume the rest of the results so no worker is blocked
		}
		err := acc.Update(p.preds, p.windows)
		if err != nil {
			errc <- err
			cancel()
			continue
		}
		n += len(p.preds)
		logger.Printf("Merged %d of %d tiles\n", n, src.Len())
	}

	select {
	case err := <-errc:
		return err
	default:
	}
	return ctx.Err()
}

// predictBatches reads batches of tile indices from jobs, sending
// the predictions for each to results
func predictBatches[T raster.Float](ctx context.Context, src tilesource.Source[T], model Model[T], jobs <-chan []int, results chan<- prediction[T]) error {
	for batch := range jobs {
		var p prediction[T]
		var tiles []*raster.Planar[T]
		for _, i := range batch {
			t, err := src.Get(i)
			if err != nil {
				return err
			}
			tiles = append(tiles, t.Data)
			p.windows = append(p.windows, t.Window)
		}
		preds, err := model.Predict(tiles)
		if err != nil {
			return fmt.Errorf("Error predicting tiles %d to %d: %w", batch[0], batch[len(batch)-1], err)
		}
		if len(preds) != len(tiles) {
			return fmt.Errorf("Model returned %d predictions for %d tiles", len(preds), len(tiles))
		}
		p.preds = preds
		select {
		case results <- p:
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

// center makes a prediction for each tile in turn, adding it to acc
func center[T raster.Float](ctx context.Context, src tilesource.Source[T], model Model[T], acc *accum.CenterClip[T], logger *log.Logger) error {
	for i := 0; i < src.Len(); i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		t, err := src.Get(i)
		if err != nil {
			return err
		}
		preds, err := model.Predict([]*raster.Planar[T]{t.Data})
		if err != nil {
			return fmt.Errorf("Error predicting tile %d: %w", i, err)
		}
		if len(preds) != 1 {
			return fmt.Errorf("Model returned %d predictions for 1 tile", len(preds))
		}
		err = acc.Update(preds[0], t.Window.Y1, t.Window.X1)
		if err != nil {
			return err
		}
		logger.Printf("Merged %d of %d tiles\n", i+1, src.Len())
	}
	return nil
}

// clip streams tiles from f, writing the class mask of the centre of
// each straight to the output
func clip[T raster.Float](ctx context.Context, f *raster.File, outpath string, cfg Config, model Model[T], logger *log.Logger) ([]tilemerge.TileStat, error) {
	h, w, _ := f.Size()
	out, err := raster.Create(outpath, h, w, 1)
	if err != nil {
		return nil, err
	}
	src, err := tilesource.NewStreaming(f, out, 1, cfg.TileSize, cfg.Overlap, cfg.BitDepth)
	if err != nil {
		return nil, err
	}
	src.Logger = logger
	normalize := tilesource.Normalize[uint16, T](float64(cfg.maxValue()))

	var stats []tilemerge.TileStat
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		tile, tok, err := src.Next()
		if errors.Is(err, tilesource.ErrEnd) {
			break
		}
		if err != nil {
			return nil, err
		}
		preds, err := model.Predict([]*raster.Planar[T]{normalize(tile.Data)})
		if err != nil {
			return nil, fmt.Errorf("Error predicting tile %d: %w", tile.Index, err)
		}
		if len(preds) != 1 {
			return nil, fmt.Errorf("Model returned %d predictions for 1 tile", len(preds))
		}
		stats = append(stats, tilemerge.TileStat{
			Index: tile.Index,
			Y:     tile.Window.Y1,
			X:     tile.Window.X1,
			Mean:  stat.Mean(toFloat64(preds[0].Band(ClassInk)), nil),
		})
		err = src.Fit(tok, raster.Stretch(accum.Argmax(preds[0]), model.Classes()))
		if err != nil {
			return nil, err
		}
	}

	logger.Println("Saving", outpath)
	return stats, out.Close()
}

// tileStat finds the mean ink probability of a window of a merged
// probability map
func tileStat[T raster.Float](i int, w window.Window, prob *raster.Planar[T]) tilemerge.TileStat {
	var vals []float64
	for y := w.Y1; y < w.Y2; y++ {
		vals = append(vals, toFloat64(prob.Row(ClassInk, y)[w.X1:w.X2])...)
	}
	return tilemerge.TileStat{Index: i, Y: w.Y1, X: w.X1, Mean: stat.Mean(vals, nil)}
}

func toFloat64[T raster.Float](s []T) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		out[i] = float64(v)
	}
	return out
}

// save writes a class mask to path as an image, with the classes
// spread across the full range of grey
func save(path string, mask *raster.Planar[uint8], classes int) error {
	out, err := raster.Create(path, mask.Height, mask.Width, 1)
	if err != nil {
		return err
	}
	err = out.WriteBand(0, raster.Stretch(mask, classes), 0, 0)
	if err != nil {
		return err
	}
	return out.Close()
}
