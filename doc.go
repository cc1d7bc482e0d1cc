// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

/*
The tilemerge package contains tools and functions to classify rasters
which are too large to process in one pass, by splitting them into
overlapping tiles, running a model over each tile, and merging the
results back into a seamless whole.

Introduction

A raster is first partitioned into a grid of overlapping square windows
(see the window package). Each window is read as a tile and passed to a
model, which returns a probability for each class for every pixel of the
tile. The predictions are then merged in one of three ways:

  blend   Each prediction is weighted by a kernel which favours the
          centre of a tile (see the weightkernel package) and summed,
          then divided by the summed weights. A class mask is made from
          the most probable class of each pixel. Tiles can be predicted
          in any order, and in parallel.
  center  As blend, but predictions are added one at a time and the
          blended probabilities are decided on afterwards.
  clip    Each prediction is trimmed by half the overlap on each side
          which isn't on the edge of the raster, and the remainder is
          written straight into the output. This needs no buffer for
          the whole raster.

The accum and tilesource packages implement these; the tilemerge command
ties them together with a simple Sauvola binarisation model, so that
images of text can be binarised tile by tile.

Running in the cloud

As with the rest of our tools, merging can be run from short-lived
servers, which watch a queue for jobs. A job is the storage key of a
raster. The tilemerge command, run with -q, takes a job from the queue,
downloads the raster, merges it, and uploads the result alongside it,
named with a "_merged.png" suffix, together with a graph of the
foreground percentage of each tile. While a job is in progress a
'heartbeat' keeps it hidden from other servers; if the server is
destroyed the job becomes visible again and another server will take
it.

The bucket and queue needed can be created with the mkpipeline command,
and rasters can be uploaded and queued with the addtoqueue command. To
get the cloud tools to work for you, you'll need to change the settings
in cloudsettings.go, and set up your ~/.aws/credentials appropriately.

All of the tools will give information on what they do and how they work
with the '-h' flag.
*/
package tilemerge
