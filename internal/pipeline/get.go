// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package pipeline

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
)

// DownloadResults downloads the merged raster and graph for the
// raster stored at key into dir, returning the paths downloaded to.
// A missing graph is not an error, as there isn't one for a raster
// with a single tile.
func DownloadResults(dir string, key string, conn Downloader) ([]string, error) {
	mergedkey, graphkey := ResultKeys(key)
	var done []string
	for _, k := range []string{mergedkey, graphkey} {
		fn := filepath.Join(dir, path.Base(k))
		conn.Log("Downloading", k)
		err := conn.Download(conn.WIPStorageId(), k, fn)
		if err != nil && k == graphkey {
			_ = os.Remove(fn)
			continue
		}
		if err != nil {
			return done, fmt.Errorf("Failed to download %s: %v", k, err)
		}
		done = append(done, fn)
	}
	return done, nil
}
