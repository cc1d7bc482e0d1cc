// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"rescribe.xyz/tilemerge"
	"rescribe.xyz/tilemerge/internal/pipeline"
)

const usage = `Usage: getmerged [-v] [-local dir] [-d dir] [-rm] key|prefix/...

Downloads the merged raster and tile graph for each raster key given.
A key ending in / is treated as a prefix, and the results for every
raster under it are downloaded.

With -rm, each raster and its results are removed from storage once
they have been downloaded.
`

type Getter interface {
	pipeline.Downloader
	Init() error
	ListObjects(bucket string, prefix string) ([]string, error)
	DeleteObjects(bucket string, keys []string) error
}

func main() {
	verbose := flag.Bool("v", false, "verbose")
	local := flag.String("local", "", "use a local directory rather than the cloud for storage")
	dir := flag.String("d", ".", "directory to save results to")
	rm := flag.Bool("rm", false, "remove rasters and their results from storage once downloaded")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		return
	}

	var n pipeline.NullWriter
	verboselog := log.New(n, "", 0)
	if *verbose {
		verboselog = log.New(os.Stdout, "", 0)
	}

	var conn Getter
	if *local != "" {
		conn = &tilemerge.LocalConn{TempDir: *local, Logger: verboselog}
	} else {
		conn = &tilemerge.AwsConn{Logger: verboselog}
	}

	verboselog.Println("Setting up cloud connection")
	err := conn.Init()
	if err != nil {
		log.Fatalln("Error setting up cloud connection:", err)
	}

	err = os.MkdirAll(*dir, 0755)
	if err != nil {
		log.Fatalln("Failed to create directory", *dir, err)
	}

	var keys []string
	for _, a := range flag.Args() {
		if !strings.HasSuffix(a, "/") {
			keys = append(keys, a)
			continue
		}
		objs, err := conn.ListObjects(conn.WIPStorageId(), a)
		if err != nil {
			log.Fatalln("Failed to list rasters under", a, err)
		}
		for _, o := range objs {
			if !pipeline.IsRaster(o) || pipeline.IsResult(o) {
				continue
			}
			keys = append(keys, o)
		}
	}

	for _, k := range keys {
		done, err := pipeline.DownloadResults(*dir, k, conn)
		if err != nil {
			log.Fatalln("Failed to download results for", k, err)
		}
		for _, d := range done {
			fmt.Println(d)
		}
		if !*rm {
			continue
		}
		mergedkey, graphkey := pipeline.ResultKeys(k)
		todel := []string{k, mergedkey}
		if len(done) > 1 {
			todel = append(todel, graphkey)
		}
		verboselog.Println("Removing", todel)
		err = conn.DeleteObjects(conn.WIPStorageId(), todel)
		if err != nil {
			log.Fatalln("Failed to remove", k, err)
		}
	}
}
