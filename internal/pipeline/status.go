// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package pipeline

import (
	"sort"
	"strings"

	"rescribe.xyz/tilemerge"
)

type Lister interface {
	ListObjectsWithMeta(bucket string, prefix string) ([]tilemerge.ObjMeta, error)
	WIPStorageId() string
}

// IsResult reports whether key is one of the results saved by a merge,
// rather than a raster to be merged
func IsResult(key string) bool {
	if !strings.HasSuffix(key, ".png") {
		return false
	}
	base := strings.TrimSuffix(key, ".png")
	return strings.HasSuffix(base, "_merged") || strings.HasSuffix(base, "_graph")
}

type objMetas []tilemerge.ObjMeta

func (o objMetas) Len() int           { return len(o) }
func (o objMetas) Swap(i, j int)      { o[i], o[j] = o[j], o[i] }
func (o objMetas) Less(i, j int) bool { return o[i].Date.Before(o[j].Date) }

// RasterStatus returns the rasters stored under prefix which have not
// been merged yet, and those which have. A raster counts as done once
// its merged result is found in storage. Both lists are sorted by
// date, of the raster itself for those in progress and of the merged
// result for those done.
func RasterStatus(conn Lister, prefix string) (inprogress []string, done []string, err error) {
	objs, err := conn.ListObjectsWithMeta(conn.WIPStorageId(), prefix)
	if err != nil {
		return nil, nil, err
	}

	merged := make(map[string]tilemerge.ObjMeta)
	for _, o := range objs {
		merged[o.Name] = o
	}

	var inprogressmeta, donemeta objMetas
	for _, o := range objs {
		if !IsRaster(o.Name) || IsResult(o.Name) {
			continue
		}
		mergedkey, _ := ResultKeys(o.Name)
		m, ok := merged[mergedkey]
		if !ok {
			inprogressmeta = append(inprogressmeta, o)
			continue
		}
		donemeta = append(donemeta, tilemerge.ObjMeta{Name: o.Name, Date: m.Date})
	}

	sort.Stable(inprogressmeta)
	for _, o := range inprogressmeta {
		inprogress = append(inprogress, o.Name)
	}
	sort.Stable(donemeta)
	for _, o := range donemeta {
		done = append(done, o.Name)
	}
	return inprogress, done, nil
}
