// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package benchmark

import (
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Plot renders the report as a scatter of (parallelism, seconds), one
// point per strategy, writing basename+".png". Failed strategies are
// drawn at zero seconds with a distinct glyph rather than silently
// omitted.
func (r Report) Plot(basename string) error {
	p, err := plot.New()
	if err != nil {
		return err
	}
	p.Title.Text = "peak detection strategies"
	p.X.Label.Text = "parallelism"
	p.Y.Label.Text = "elapsed (s)"
	var ok, failed plotter.XYs
	for _, s := range r.Samples {
		if s.Failed() {
			failed = append(failed, plotter.XY{X: float64(s.Parallelism)})
			continue
		}
		ok = append(ok, plotter.XY{X: float64(s.Parallelism), Y: s.Seconds()})
	}
	scatter, err := plotter.NewScatter(ok)
	if err != nil {
		return err
	}
	scatter.GlyphStyle.Radius = vg.Points(4)
	p.Add(scatter)
	if len(failed) > 0 {
		sentinel, err := plotter.NewScatter(failed)
		if err != nil {
			return err
		}
		sentinel.GlyphStyle.Shape = draw.CrossGlyph{}
		sentinel.GlyphStyle.Color = color.RGBA{R: 196, A: 255}
		sentinel.GlyphStyle.Radius = vg.Points(4)
		p.Add(sentinel)
	}
	return p.Save(6*vg.Inch, 4*vg.Inch, basename+".png")
}
