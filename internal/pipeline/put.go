// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"rescribe.xyz/tilemerge/raster"
)

var rasterExts = []string{".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp"}

// IsRaster reports whether a file name has the extension of a raster
// format which can be read
func IsRaster(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range rasterExts {
		if ext == e {
			return true
		}
	}
	return false
}

// CheckRasters checks that all paths are rasters which can be decoded
func CheckRasters(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("No rasters found")
	}
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !IsRaster(p) {
			return fmt.Errorf("%s is not a supported raster format", p)
		}
		_, err := raster.Open(p)
		if err != nil {
			return err
		}
	}
	return nil
}

// QueueRasters checks each raster in paths, then uploads them into
// conn.WIPStorageId() under prefix and adds them to the merge queue.
// The storage keys of the rasters are returned.
func QueueRasters(ctx context.Context, paths []string, prefix string, conn UploadQueuer) ([]string, error) {
	err := CheckRasters(ctx, paths)
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return keys, ctx.Err()
		default:
		}
		key := path.Join(prefix, filepath.Base(p))
		conn.Log("Uploading", p, "to", key)
		err = conn.Upload(conn.WIPStorageId(), key, p)
		if err != nil {
			return keys, fmt.Errorf("Failed to upload %s: %v", p, err)
		}
		err = conn.AddToQueue(conn.MergeQueueId(), key)
		if err != nil {
			return keys, fmt.Errorf("Failed to add %s to queue: %v", key, err)
		}
		keys = append(keys, key)
	}

	return keys, nil
}
