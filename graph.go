// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package tilemerge

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"gonum.org/v1/gonum/stat"
)

const maxticks = 40
const yticknum = 20

// ErrTooFewTiles is returned by GraphTiles if there aren't enough
// tiles to draw a line
var ErrTooFewTiles = errors.New("Not enough tiles to graph")

// TileStat records how much of a tile was assigned to the foreground
// class once the tiles were merged. Mean is between 0 and 1.
type TileStat struct {
	Index, Y, X int
	Mean        float64
}

// createLine creates a horizontal line with a particular y value for
// a graph
func createLine(xvalues []float64, y float64, c drawing.Color) chart.ContinuousSeries {
	var yvalues []float64
	for range xvalues {
		yvalues = append(yvalues, y)
	}
	return chart.ContinuousSeries{
		XValues: xvalues,
		YValues: yvalues,
		Style: chart.Style{
			StrokeColor:     c,
			StrokeDashArray: []float64{5.0, 5.0},
		},
	}
}

// GraphTiles draws a graph of the foreground percentage of each tile
// of a raster, in grid order, as a PNG. Tiles in the top or bottom
// tenth are labelled with their position, to make it easy to find
// unusual parts of the raster.
func GraphTiles(stats []TileStat, title string, w io.Writer) error {
	if len(stats) < 2 {
		return ErrTooFewTiles
	}

	sorted := make([]TileStat, len(stats))
	copy(sorted, stats)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	var xvalues, yvalues []float64
	var ticks, yticks []chart.Tick
	tickevery := len(sorted) / maxticks
	if tickevery < 1 {
		tickevery = 1
	}
	for i, s := range sorted {
		x := float64(s.Index)
		xvalues = append(xvalues, x)
		yvalues = append(yvalues, s.Mean*100)
		if i%tickevery == 0 {
			ticks = append(ticks, chart.Tick{Value: x, Label: fmt.Sprintf("%d", s.Index)})
		}
	}
	// Make last tick the final tile
	final := sorted[len(sorted)-1]
	ticks[len(ticks)-1] = chart.Tick{Value: float64(final.Index), Label: fmt.Sprintf("%d", final.Index)}
	for i := 0; i <= yticknum; i++ {
		n := float64(i*100) / yticknum
		yticks = append(yticks, chart.Tick{Value: n, Label: fmt.Sprintf("%.0f", n)})
	}

	mainSeries := chart.ContinuousSeries{
		Style: chart.Style{
			StrokeColor: chart.ColorBlue,
			FillColor:   chart.ColorAlternateBlue,
		},
		XValues: xvalues,
		YValues: yvalues,
	}

	byMean := make([]float64, len(yvalues))
	copy(byMean, yvalues)
	sort.Float64s(byMean)
	low := stat.Quantile(0.1, stat.Empirical, byMean, nil)
	high := stat.Quantile(0.9, stat.Empirical, byMean, nil)
	mean := stat.Mean(yvalues, nil)

	var annotations []chart.Value2
	for _, s := range sorted {
		v := s.Mean * 100
		if v < low || v > high {
			annotations = append(annotations, chart.Value2{Label: fmt.Sprintf("%d,%d", s.Y, s.X), XValue: float64(s.Index), YValue: v})
		}
	}
	annotations = append(annotations, chart.Value2{Label: fmt.Sprintf("mean %.1f", mean), XValue: xvalues[len(xvalues)-1], YValue: mean})

	graph := chart.Chart{
		Title:  title,
		Width:  3840,
		Height: 2160,
		XAxis: chart.XAxis{
			Name: "Tile",
			Range: &chart.ContinuousRange{
				Min: 0.0,
			},
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			Name: "Foreground %",
			Range: &chart.ContinuousRange{
				Min: 0.0,
				Max: 100.0,
			},
			Ticks: yticks,
		},
		Series: []chart.Series{
			mainSeries,
			createLine(xvalues, low, chart.ColorAlternateGray),
			createLine(xvalues, high, chart.ColorAlternateGray),
			createLine(xvalues, mean, chart.ColorOrange),
			chart.AnnotationSeries{
				Annotations: annotations,
			},
		},
	}
	return graph.Render(chart.PNG, w)
}
