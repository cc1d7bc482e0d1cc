// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"rescribe.xyz/tilemerge"
	"rescribe.xyz/tilemerge/internal/pipeline"
)

const usage = `Usage: tilemerge [-v] [-mode blend|center|clip] [-size n] [-overlap n] [-bits n] [-precision 32|64]
                 [-workers n] [-batch n] [-k n] [-w n] [-graph] in out
       tilemerge -q [-local dir] [-v] [...]

Binarises a raster tile by tile, merging the tiles back into a whole,
and saves the result to out.

The raster is split into overlapping square tiles of -size pixels,
which are each binarised with Sauvola's algorithm. The tiles are then
merged in one of three ways, set with -mode:

blend:  Tiles are weighted towards their centres and blended, using
        several goroutines to binarise tiles in parallel.
center: Tiles are weighted and blended as with blend, one at a time.
clip:   The edges of each tile which overlap another are trimmed
        off, and the remainder written straight to the output.

With -q, rasters are instead taken from the merge queue, and processed
like this:

- The raster key is hidden from the queue, and a 'heartbeat' is
  started which keeps it hidden (this will time out after 2 minutes
  if the program is terminated)
- The raster is downloaded
- The raster is merged
- The merged raster and a graph of the ink in each tile are uploaded
  next to the original
- The heartbeat is stopped
- The raster key is removed from the queue

`

const PauseBetweenChecks = 3 * time.Minute

func main() {
	cfg := pipeline.DefaultConfig()
	verbose := flag.Bool("v", false, "verbose")
	mode := flag.String("mode", string(cfg.Mode), "merge mode: blend, center or clip")
	flag.IntVar(&cfg.TileSize, "size", cfg.TileSize, "tile size")
	flag.IntVar(&cfg.Overlap, "overlap", cfg.Overlap, "overlap between neighbouring tiles")
	flag.IntVar(&cfg.BitDepth, "bits", cfg.BitDepth, "bit depth of the raster; larger samples are rejected")
	flag.IntVar(&cfg.Precision, "precision", cfg.Precision, "float precision used for merging: 32 or 64")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "number of tiles to binarise in parallel in blend mode")
	flag.IntVar(&cfg.BatchSize, "batch", cfg.BatchSize, "number of tiles in each batch in blend mode")
	flag.Float64Var(&cfg.SauvolaK, "k", cfg.SauvolaK, "sauvola k value")
	flag.IntVar(&cfg.SauvolaWindow, "w", cfg.SauvolaWindow, "sauvola window size")
	graph := flag.Bool("graph", false, "also save a graph of the ink in each tile, next to out")
	queue := flag.Bool("q", false, "take rasters to merge from the queue")
	local := flag.String("local", "", "use a local directory rather than the cloud for the queue and storage")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	cfg.Mode = pipeline.Mode(*mode)

	var n pipeline.NullWriter
	verboselog := log.New(n, "", 0)
	if *verbose {
		verboselog = log.New(os.Stdout, "", 0)
	}

	err := cfg.Validate()
	if err != nil {
		log.Fatalln("Invalid settings:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if !*queue {
		if flag.NArg() != 2 {
			flag.Usage()
			os.Exit(1)
		}
		stats, err := pipeline.Run(ctx, flag.Arg(0), flag.Arg(1), cfg, verboselog)
		if err != nil {
			log.Fatalln("Error merging", flag.Arg(0), ":", err)
		}
		if *graph {
			err = saveGraph(stats, flag.Arg(0), flag.Arg(1))
			if err != nil {
				log.Fatalln("Error saving graph:", err)
			}
		}
		return
	}

	var conn pipeline.Pipeliner
	if *local != "" {
		conn = &tilemerge.LocalConn{TempDir: *local, Logger: verboselog}
	} else {
		conn = &tilemerge.AwsConn{Logger: verboselog}
	}

	verboselog.Println("Setting up cloud connection")
	err = conn.Init()
	if err != nil {
		log.Fatalln("Error setting up cloud connection:", err)
	}
	verboselog.Println("Finished setting up cloud connection")

	for {
		select {
		case <-ctx.Done():
			log.Println("Stopping")
			return
		default:
		}

		msg, err := conn.CheckQueue(conn.MergeQueueId(), pipeline.HeartbeatSeconds*2)
		if err != nil {
			log.Println("Error checking merge queue", err)
		} else if msg.Handle != "" {
			verboselog.Println("Merge job found:", msg.Body)
			err = pipeline.ProcessRaster(ctx, msg, conn, cfg, conn.MergeQueueId())
			if err == nil {
				continue
			}
			log.Println("Error during merge", err)
		} else {
			verboselog.Println("No message found on merge queue")
		}

		verboselog.Println("Sleeping")
		select {
		case <-ctx.Done():
		case <-time.After(PauseBetweenChecks):
		}
	}
}

// saveGraph saves a graph of stats next to out, named after in
func saveGraph(stats []tilemerge.TileStat, in string, out string) error {
	base := strings.TrimSuffix(out, filepath.Ext(out))
	f, err := os.Create(base + "_graph.png")
	if err != nil {
		return err
	}
	defer f.Close()
	return tilemerge.GraphTiles(stats, filepath.Base(in), f)
}
