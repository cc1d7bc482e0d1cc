// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// lsmerge lists useful things related to the merge pipeline.
package main

import (
	"flag"
	"fmt"
	"log"

	"rescribe.xyz/tilemerge"
	"rescribe.xyz/tilemerge/internal/pipeline"
)

const usage = `Usage: lsmerge [-local dir] [-p prefix] [-norasters]

Lists useful things related to the merge pipeline.

- Messages in the merge queue
- Rasters not yet merged
- Rasters merged
`

type LsPipeliner interface {
	pipeline.Lister
	Init() error
	MergeQueueId() string
	GetQueueDetails(url string) (string, string, error)
}

type queueDetails struct {
	name, numAvailable, numInProgress string
}

func getQueueDetails(conn LsPipeliner, qdetails chan queueDetails) {
	avail, inprog, err := conn.GetQueueDetails(conn.MergeQueueId())
	if err != nil {
		log.Println("Error getting queue details:", err)
	}
	qdetails <- queueDetails{"merge", avail, inprog}
	close(qdetails)
}

// getRasterStatusChan runs pipeline.RasterStatus and sends its results
// to channels for the in progress and done lists.
func getRasterStatusChan(conn LsPipeliner, prefix string, inprogressc chan string, donec chan string) {
	inprogress, done, err := pipeline.RasterStatus(conn, prefix)
	if err != nil {
		log.Println("Error getting raster status:", err)
	}
	for _, i := range inprogress {
		inprogressc <- i
	}
	close(inprogressc)
	for _, i := range done {
		donec <- i
	}
	close(donec)
}

func main() {
	local := flag.String("local", "", "use a local directory rather than the cloud for the queue and storage")
	prefix := flag.String("p", "", "only list rasters with this prefix")
	norasters := flag.Bool("norasters", false, "disable listing rasters merged and not merged (which takes some time)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	var n pipeline.NullWriter
	verboselog := log.New(n, "", 0)

	var conn LsPipeliner
	if *local != "" {
		conn = &tilemerge.LocalConn{TempDir: *local, Logger: verboselog}
	} else {
		conn = &tilemerge.AwsConn{Logger: verboselog}
	}
	err := conn.Init()
	if err != nil {
		log.Fatalln("Failed to set up cloud connection:", err)
	}

	queues := make(chan queueDetails)
	inprogress := make(chan string, 100)
	done := make(chan string, 100)

	go getQueueDetails(conn, queues)
	if !*norasters {
		go getRasterStatusChan(conn, *prefix, inprogress, done)
	}

	fmt.Println("# Queues")
	for i := range queues {
		fmt.Printf("%s: %s available, %s in progress\n", i.name, i.numAvailable, i.numInProgress)
	}

	if !*norasters {
		fmt.Println("\n# Rasters not merged")
		for i := range inprogress {
			fmt.Println(i)
		}

		fmt.Println("\n# Rasters merged")
		for i := range done {
			fmt.Println(i)
		}
	}
}
