package export

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// PlotCsv plots two columns of a CSV table against each other as a scatter
// chart and saves it to pngPath.
func PlotCsv(filePath string, xColumn, yColumn int, pngPath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	if !scanner.Scan() {
		return fmt.Errorf("%w: %s is empty", ErrTable, filePath)
	}
	header := splitRow(scanner.Text())
	if xColumn < 0 || xColumn >= len(header) || yColumn < 0 || yColumn >= len(header) {
		return fmt.Errorf("%w: columns %d and %d not in %d-column table", ErrTable, xColumn, yColumn, len(header))
	}

	var pts plotter.XYs
	for scanner.Scan() {
		row := strings.Split(scanner.Text(), ",")
		if len(row) != len(header) {
			continue
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(row[xColumn]), 64)
		if err != nil {
			return err
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(row[yColumn]), 64)
		if err != nil {
			return err
		}
		pts = append(pts, plotter.XY{X: x, Y: y})
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	p := plot.New()
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	p.Add(s)

	p.X.Label.Text = header[xColumn]
	p.Y.Label.Text = header[yColumn]

	return p.Save(4*vg.Inch, 4*vg.Inch, pngPath)
}

// PlotJointTrajectory plots the x, y and z coordinates of one joint over time.
func PlotJointTrajectory(positions map[string][]r3.Vec, joint string, frameTime float64, pngPath string) error {
	stream, ok := positions[joint]
	if !ok {
		return fmt.Errorf("export: no positions for %q", joint)
	}

	xs := make(plotter.XYs, len(stream))
	ys := make(plotter.XYs, len(stream))
	zs := make(plotter.XYs, len(stream))
	for f, v := range stream {
		t := float64(f) * frameTime
		xs[f] = plotter.XY{X: t, Y: v.X}
		ys[f] = plotter.XY{X: t, Y: v.Y}
		zs[f] = plotter.XY{X: t, Y: v.Z}
	}

	p := plot.New()
	p.Title.Text = joint
	p.X.Label.Text = "time"
	p.Y.Label.Text = "position"
	if err := plotutil.AddLines(p, "x", xs, "y", ys, "z", zs); err != nil {
		return err
	}
	p.Legend.Top = true

	return p.Save(6*vg.Inch, 4*vg.Inch, pngPath)
}
