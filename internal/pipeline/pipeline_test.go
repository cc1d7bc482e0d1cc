// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"rescribe.xyz/tilemerge"
	"rescribe.xyz/tilemerge/raster"
	"rescribe.xyz/tilemerge/window"
)

// StrLog is a simple logger that saves to a string,
// so it can be printed out only when needed.
type StrLog struct {
	log string
}

func (t *StrLog) Write(p []byte) (n int, err error) {
	t.log += string(p)
	return len(p), nil
}

// threshModel predicts ink wherever the first band is below a half,
// so its predictions don't depend on where a tile is
type threshModel[T raster.Float] struct{}

func (m threshModel[T]) Classes() int {
	return 2
}

func (m threshModel[T]) Predict(tiles []*raster.Planar[T]) ([]*raster.Planar[T], error) {
	var preds []*raster.Planar[T]
	for _, t := range tiles {
		p := raster.New[T](2, t.Height, t.Width)
		for i, v := range t.Band(0) {
			if v < 0.5 {
				p.Band(ClassInk)[i] = 1
			} else {
				p.Band(ClassBackground)[i] = 1
			}
		}
		preds = append(preds, p)
	}
	return preds, nil
}

var errPredict = errors.New("prediction failed")

type errModel[T raster.Float] struct{}

func (m errModel[T]) Classes() int {
	return 2
}

func (m errModel[T]) Predict(tiles []*raster.Planar[T]) ([]*raster.Planar[T], error) {
	return nil, errPredict
}

// page creates a grey test image with some dark strokes on a light
// background, and a black top left corner of zero
func page(h, w, zero int) *raster.Planar[uint8] {
	p := raster.New[uint8](1, h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(200 + (x*y)%40)
			if y%9 < 2 || (x+y)%13 == 0 {
				v = uint8(20 + (x+y)%60)
			}
			if y < zero && x < zero {
				v = 0
			}
			p.Set(0, y, x, v)
		}
	}
	return p
}

func writePage(t *testing.T, path string, p *raster.Planar[uint8]) {
	out, err := raster.Create(path, p.Height, p.Width, 1)
	if err != nil {
		t.Fatalf("Could not create test image: %v", err)
	}
	err = out.WriteBand(0, p, 0, 0)
	if err != nil {
		t.Fatalf("Could not write test image: %v", err)
	}
	err = out.Close()
	if err != nil {
		t.Fatalf("Could not save test image: %v", err)
	}
}

func testConfig(mode Mode, precision int) Config {
	cfg := DefaultConfig()
	cfg.TileSize = 16
	cfg.Overlap = 4
	cfg.Mode = mode
	cfg.Precision = precision
	cfg.Workers = 3
	cfg.BatchSize = 2
	cfg.SauvolaWindow = 7
	return cfg
}

func runThresh(ctx context.Context, in, out string, cfg Config, logger *log.Logger) ([]tilemerge.TileStat, error) {
	f, err := raster.Open(in)
	if err != nil {
		return nil, err
	}
	if cfg.Precision == 64 {
		return run[float64](ctx, f, out, cfg, threshModel[float64]{}, logger)
	}
	return run[float32](ctx, f, out, cfg, threshModel[float32]{}, logger)
}

func TestRunModes(t *testing.T) {
	var slog StrLog
	vlog := log.New(&slog, "", 0)
	dir := t.TempDir()

	const h, w, zero = 40, 50, 16
	in := filepath.Join(dir, "page.png")
	orig := page(h, w, zero)
	writePage(t, in, orig)

	grid, err := window.Partition(h, w, 16, 4)
	if err != nil {
		t.Fatalf("Could not partition: %v", err)
	}

	for _, mode := range []Mode{ModeBlend, ModeCenter, ModeClip} {
		for _, precision := range []int{32, 64} {
			t.Run(fmt.Sprintf("%s/%d", mode, precision), func(t *testing.T) {
				slog.log = ""
				out := filepath.Join(dir, fmt.Sprintf("%s_%d.png", mode, precision))
				stats, err := runThresh(context.Background(), in, out, testConfig(mode, precision), vlog)
				if err != nil {
					t.Fatalf("Error running: %v\nLog: %s", err, slog.log)
				}

				expectedStats := grid.Len() - 1
				if mode == ModeClip {
					expectedStats = grid.Len()
				}
				if len(stats) != expectedStats {
					t.Fatalf("Expected %d tile stats, got %d\nLog: %s", expectedStats, len(stats), slog.log)
				}

				f, err := raster.Open(out)
				if err != nil {
					t.Fatalf("Could not open output: %v", err)
				}
				res := f.Pixels()
				if res.Channels != 1 || res.Height != h || res.Width != w {
					t.Fatalf("Output is %dx%dx%d, expected 1x%dx%d", res.Channels, res.Height, res.Width, h, w)
				}
				for y := 0; y < h; y++ {
					for x := 0; x < w; x++ {
						expected := uint16(255)
						if float64(orig.At(0, y, x))/255 < 0.5 {
							expected = 0
						}
						if res.At(0, y, x) != expected {
							t.Fatalf("Pixel %d,%d is %d, expected %d", y, x, res.At(0, y, x), expected)
						}
					}
				}
			})
		}
	}
}

func TestRunSauvola(t *testing.T) {
	var n NullWriter
	dir := t.TempDir()
	in := filepath.Join(dir, "page.png")
	writePage(t, in, page(40, 50, 0))

	for _, mode := range []Mode{ModeBlend, ModeCenter, ModeClip} {
		t.Run(string(mode), func(t *testing.T) {
			out := filepath.Join(dir, string(mode)+".png")
			stats, err := Run(context.Background(), in, out, testConfig(mode, 32), log.New(n, "", 0))
			if err != nil {
				t.Fatalf("Error running: %v", err)
			}
			if len(stats) == 0 {
				t.Fatalf("No tile stats returned")
			}
			for _, s := range stats {
				if s.Mean < 0 || s.Mean > 1 {
					t.Fatalf("Tile %d has an ink share of %f", s.Index, s.Mean)
				}
			}
			f, err := raster.Open(out)
			if err != nil {
				t.Fatalf("Could not open output: %v", err)
			}
			oh, ow, _ := f.Size()
			if oh != 40 || ow != 50 {
				t.Fatalf("Output is %dx%d, expected 40x50", oh, ow)
			}
		})
	}
}

func TestRunErrors(t *testing.T) {
	var n NullWriter
	quiet := log.New(n, "", 0)
	dir := t.TempDir()
	in := filepath.Join(dir, "page.png")
	writePage(t, in, page(40, 50, 0))
	out := filepath.Join(dir, "out.png")

	cfg := testConfig(ModeBlend, 32)
	cfg.TileSize = 41
	_, err := Run(context.Background(), in, out, cfg, quiet)
	if !errors.Is(err, window.ErrConfig) {
		t.Fatalf("Expected window.ErrConfig for a tile larger than the raster, got %v", err)
	}

	_, err = Run(context.Background(), filepath.Join(dir, "notpresent.png"), out, testConfig(ModeBlend, 32), quiet)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Expected a not exist error, got %v", err)
	}

	for _, mode := range []Mode{ModeBlend, ModeCenter, ModeClip} {
		t.Run(string(mode), func(t *testing.T) {
			f, err := raster.Open(in)
			if err != nil {
				t.Fatalf("Could not open test image: %v", err)
			}
			_, err = run[float32](context.Background(), f, out, testConfig(mode, 32), errModel[float32]{}, quiet)
			if !errors.Is(err, errPredict) {
				t.Fatalf("Expected prediction error, got %v", err)
			}
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = runThresh(ctx, in, out, testConfig(ModeBlend, 32), quiet)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		change func(*Config)
		valid  bool
	}{
		{"default", func(c *Config) {}, true},
		{"nooverlap", func(c *Config) { c.Overlap = 0 }, true},
		{"overlaptoobig", func(c *Config) { c.Overlap = c.TileSize }, false},
		{"negativeoverlap", func(c *Config) { c.Overlap = -1 }, false},
		{"notile", func(c *Config) { c.TileSize = 0 }, false},
		{"bitdepth", func(c *Config) { c.BitDepth = 17 }, false},
		{"precision", func(c *Config) { c.Precision = 16 }, false},
		{"mode", func(c *Config) { c.Mode = "average" }, false},
		{"workers", func(c *Config) { c.Workers = 0 }, false},
		{"batch", func(c *Config) { c.BatchSize = 0 }, false},
		{"sauvola", func(c *Config) { c.SauvolaWindow = 0 }, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := DefaultConfig()
			c.change(&cfg)
			err := cfg.Validate()
			if c.valid && err != nil {
				t.Fatalf("Expected valid config, got error %v", err)
			}
			if !c.valid && err == nil {
				t.Fatalf("Expected an error, got none")
			}
		})
	}
}

func Test_ProcessRaster(t *testing.T) {
	var slog StrLog
	vlog := log.New(&slog, "", 0)
	dir := t.TempDir()

	conn := &tilemerge.LocalConn{TempDir: filepath.Join(dir, "conn"), Logger: vlog}
	err := conn.Init()
	if err != nil {
		t.Fatalf("Could not initialise connection: %v", err)
	}

	in := filepath.Join(dir, "page.png")
	writePage(t, in, page(40, 50, 0))

	ctx := context.Background()
	keys, err := QueueRasters(ctx, []string{in}, "scans", conn)
	if err != nil {
		t.Fatalf("Could not queue raster: %v\nLog: %s", err, slog.log)
	}
	if !reflect.DeepEqual(keys, []string{"scans/page.png"}) {
		t.Fatalf("Unexpected keys %v", keys)
	}

	msg, err := conn.CheckQueue(conn.MergeQueueId(), HeartbeatSeconds)
	if err != nil {
		t.Fatalf("Could not check queue: %v", err)
	}
	if msg.Body != "scans/page.png" {
		t.Fatalf("Unexpected message %s", msg.Body)
	}

	err = ProcessRaster(ctx, msg, conn, testConfig(ModeBlend, 32), conn.MergeQueueId())
	if err != nil {
		t.Fatalf("Error processing raster: %v\nLog: %s", err, slog.log)
	}

	objs, err := conn.ListObjects(conn.WIPStorageId(), "scans/")
	if err != nil {
		t.Fatalf("Could not list objects: %v", err)
	}
	sort.Strings(objs)
	expected := []string{"scans/page.png", "scans/page_graph.png", "scans/page_merged.png"}
	if !reflect.DeepEqual(objs, expected) {
		t.Fatalf("Expected objects %v, got %v\nLog: %s", expected, objs, slog.log)
	}

	msg, err = conn.CheckQueue(conn.MergeQueueId(), HeartbeatSeconds)
	if err != nil {
		t.Fatalf("Could not check queue: %v", err)
	}
	if msg.Body != "" {
		t.Fatalf("Message was not removed from queue, found %s", msg.Body)
	}

	dl := filepath.Join(dir, "dl")
	err = os.Mkdir(dl, 0700)
	if err != nil {
		t.Fatalf("Could not create download directory: %v", err)
	}
	got, err := DownloadResults(dl, "scans/page.png", conn)
	if err != nil {
		t.Fatalf("Could not download results: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 results downloaded, got %v", got)
	}
	_, err = raster.Open(got[0])
	if err != nil {
		t.Fatalf("Downloaded merged raster can't be read: %v", err)
	}

	err = ProcessRaster(ctx, tilemerge.Qmsg{}, conn, testConfig(ModeBlend, 32), conn.MergeQueueId())
	if err == nil {
		t.Fatalf("Expected an error processing an empty message")
	}
}

func TestQueueRastersChecks(t *testing.T) {
	var n NullWriter
	dir := t.TempDir()
	conn := &tilemerge.LocalConn{TempDir: filepath.Join(dir, "conn"), Logger: log.New(n, "", 0)}
	err := conn.Init()
	if err != nil {
		t.Fatalf("Could not initialise connection: %v", err)
	}

	bad := filepath.Join(dir, "bad.png")
	err = os.WriteFile(bad, []byte("not a png"), 0600)
	if err != nil {
		t.Fatalf("Could not write test file: %v", err)
	}
	txt := filepath.Join(dir, "notes.txt")
	err = os.WriteFile(txt, []byte("notes"), 0600)
	if err != nil {
		t.Fatalf("Could not write test file: %v", err)
	}

	cases := []struct {
		name  string
		paths []string
	}{
		{"none", nil},
		{"undecodable", []string{bad}},
		{"notraster", []string{txt}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := QueueRasters(context.Background(), c.paths, "scans", conn)
			if err == nil {
				t.Fatalf("Expected an error")
			}
			avail, _, _ := conn.GetQueueDetails(conn.MergeQueueId())
			if avail != "" && avail != "0" {
				t.Fatalf("Nothing should have been queued, found %s", avail)
			}
		})
	}
}
