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
	"path/filepath"
	"sort"

	"rescribe.xyz/tilemerge"
	"rescribe.xyz/tilemerge/internal/pipeline"
)

const usage = `Usage: addtoqueue [-v] [-local dir] prefix raster|dir...

addtoqueue uploads rasters to storage under prefix/, and adds them to
the merge queue. Any directory given is searched (not recursively) for
rasters. Every raster is checked before anything is uploaded.

Supported raster formats are PNG, JPEG, TIFF and BMP.
`

type QueuePipeliner interface {
	pipeline.UploadQueuer
	Init() error
}

// rasters returns the paths of all rasters in args, with the contents
// of any directory expanded
func rasters(args []string) ([]string, error) {
	var paths []string
	for _, a := range args {
		info, err := os.Stat(a)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, a)
			continue
		}
		entries, err := os.ReadDir(a)
		if err != nil {
			return nil, fmt.Errorf("Failed to read directory %s: %v", a, err)
		}
		var found []string
		for _, e := range entries {
			if e.IsDir() || !pipeline.IsRaster(e.Name()) || e.Name()[0] == '.' {
				continue
			}
			found = append(found, filepath.Join(a, e.Name()))
		}
		sort.Strings(found)
		paths = append(paths, found...)
	}
	return paths, nil
}

func main() {
	verbose := flag.Bool("v", false, "verbose")
	local := flag.String("local", "", "use a local directory rather than the cloud for the queue and storage")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 2 {
		flag.Usage()
		return
	}

	var n pipeline.NullWriter
	verboselog := log.New(n, "", 0)
	if *verbose {
		verboselog = log.New(os.Stdout, "", 0)
	}

	var conn QueuePipeliner
	if *local != "" {
		conn = &tilemerge.LocalConn{TempDir: *local, Logger: verboselog}
	} else {
		conn = &tilemerge.AwsConn{Logger: verboselog}
	}

	err := conn.Init()
	if err != nil {
		log.Fatalln("Error setting up cloud connection:", err)
	}

	paths, err := rasters(flag.Args()[1:])
	if err != nil {
		log.Fatalln("Error finding rasters:", err)
	}

	keys, err := pipeline.QueueRasters(context.Background(), paths, flag.Arg(0), conn)
	if err != nil {
		log.Fatalln("Error queueing rasters:", err)
	}
	fmt.Printf("Added %d rasters to the merge queue.\n", len(keys))
}
