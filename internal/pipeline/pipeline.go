// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// pipeline is a package used by the tilemerge command, which handles
// the core functionality of merging a raster tile by tile, and of
// taking jobs to do so from a queue. Note that it is considered an
// "internal" package, not intended for external use, and no guarantee
// is made of the stability of any interfaces provided.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"rescribe.xyz/tilemerge"
)

const HeartbeatSeconds = 60

type Downloader interface {
	Download(bucket string, key string, fn string) error
	Log(v ...interface{})
	WIPStorageId() string
}

type Uploader interface {
	Log(v ...interface{})
	Upload(bucket string, key string, path string) error
	WIPStorageId() string
}

type Queuer interface {
	AddToQueue(url string, msg string) error
	CheckQueue(url string, timeout int64) (tilemerge.Qmsg, error)
	DelFromQueue(url string, handle string) error
	Log(v ...interface{})
	MergeQueueId() string
	QueueHeartbeat(msg tilemerge.Qmsg, qurl string, duration int64) (tilemerge.Qmsg, error)
}

type UploadQueuer interface {
	AddToQueue(url string, msg string) error
	Log(v ...interface{})
	MergeQueueId() string
	Upload(bucket string, key string, path string) error
	WIPStorageId() string
}

type Pipeliner interface {
	AddToQueue(url string, msg string) error
	CheckQueue(url string, timeout int64) (tilemerge.Qmsg, error)
	DelFromQueue(url string, handle string) error
	Download(bucket string, key string, fn string) error
	GetLogger() *log.Logger
	Init() error
	Log(v ...interface{})
	MergeQueueId() string
	QueueHeartbeat(msg tilemerge.Qmsg, qurl string, duration int64) (tilemerge.Qmsg, error)
	Upload(bucket string, key string, path string) error
	WIPStorageId() string
}

// NullWriter enables non-verbose logging to be discarded
type NullWriter bool

func (w NullWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

// ResultKeys returns the storage keys that the merged raster and the
// graph of its tiles are saved to, for a raster stored at key
func ResultKeys(key string) (merged, graph string) {
	base := strings.TrimSuffix(key, path.Ext(key))
	return base + "_merged.png", base + "_graph.png"
}

// heartbeat keeps msg hidden on queue until ctx is done, sending any
// replacement message to msgc. If the heartbeat fails the error is
// sent to errc and heartbeat returns.
func heartbeat(ctx context.Context, conn Queuer, t *time.Ticker, msg tilemerge.Qmsg, queue string, msgc chan tilemerge.Qmsg, errc chan error) {
	currentmsg := msg
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		m, err := conn.QueueHeartbeat(currentmsg, queue, HeartbeatSeconds*2)
		if err != nil {
			conn.Log("Error with heartbeat", err)
			errc <- err
			return
		}
		if m.Id != "" {
			conn.Log("Replaced message handle as visibilitytimeout limit was reached")
			currentmsg = m
			select {
			case <-msgc:
			default:
			} // throw away any old msgc
			msgc <- m
		}
	}
}

// merge downloads the raster at key into dir, merges it, and uploads
// the merged raster and graph
func merge(ctx context.Context, conn Pipeliner, key string, dir string, cfg Config) error {
	in := filepath.Join(dir, path.Base(key))
	conn.Log("Downloading", key)
	err := conn.Download(conn.WIPStorageId(), key, in)
	if err != nil {
		return fmt.Errorf("Failed to download %s: %v", key, err)
	}

	mergedkey, graphkey := ResultKeys(key)
	out := filepath.Join(dir, path.Base(mergedkey))
	stats, err := Run(ctx, in, out, cfg, conn.GetLogger())
	if err != nil {
		return fmt.Errorf("Failed to merge %s: %w", key, err)
	}

	toup := map[string]string{mergedkey: out}

	conn.Log("Creating graph")
	graph := filepath.Join(dir, path.Base(graphkey))
	f, err := os.Create(graph)
	if err != nil {
		return fmt.Errorf("Error creating file %s: %v", graph, err)
	}
	defer f.Close()
	err = tilemerge.GraphTiles(stats, path.Base(key), f)
	if err != nil && !errors.Is(err, tilemerge.ErrTooFewTiles) {
		return fmt.Errorf("Error rendering graph: %v", err)
	}
	if err == nil {
		toup[graphkey] = graph
	}
	f.Close()

	for k, p := range toup {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		conn.Log("Uploading", k)
		err = conn.Upload(conn.WIPStorageId(), k, p)
		if err != nil {
			return fmt.Errorf("Failed to upload %s: %v", k, err)
		}
	}
	return nil
}

// ProcessRaster merges the raster whose storage key is the body of
// msg, uploading the results alongside it. While this is happening a
// heartbeat keeps the message hidden on fromQueue; once it is done
// the message is deleted.
func ProcessRaster(ctx context.Context, msg tilemerge.Qmsg, conn Pipeliner, cfg Config, fromQueue string) error {
	key := msg.Body
	if key == "" {
		return errors.New("Message has no raster to merge")
	}

	d, err := os.MkdirTemp("", "tilemerge")
	if err != nil {
		return fmt.Errorf("Failed to create temporary directory: %v", err)
	}
	defer os.RemoveAll(d)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	msgc := make(chan tilemerge.Qmsg, 1)
	errc := make(chan error, 1)
	t := time.NewTicker(HeartbeatSeconds * time.Second)
	defer t.Stop()
	go heartbeat(ctx, conn, t, msg, fromQueue, msgc, errc)

	done := make(chan error, 1)
	go func() {
		done <- merge(ctx, conn, key, d, cfg)
	}()

	// wait for either the done or errc channel to be sent to
	select {
	case err = <-errc:
		cancel()
		<-done
		return err
	case err = <-done:
		if err != nil {
			return err
		}
	}

	t.Stop()

	// check whether we're using a newer msg handle
	select {
	case m := <-msgc:
		msg = m
		conn.Log("Using new message handle to delete message from queue")
	default:
		conn.Log("Using original message handle to delete message from queue")
	}

	conn.Log("Deleting original message from queue", fromQueue)
	err = conn.DelFromQueue(fromQueue, msg.Handle)
	if err != nil {
		return fmt.Errorf("Error deleting message from queue: %v", err)
	}

	return nil
}
