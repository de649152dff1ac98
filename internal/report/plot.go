package report

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var (
	rawColor      = color.RGBA{R: 160, G: 160, B: 160, A: 255}
	smoothedColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	passColor     = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	rejectColor   = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// Plot draws raw and smoothed depth against frame index, with threshold
// lines and peak markers.
func (c Chart) Plot() (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - %s", c.Title, c.subtitle())
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Depth ratio"

	legendDone := map[string]bool{}
	addLines := func(name string, segs [][][2]float64, col color.Color, width vg.Length) error {
		for _, seg := range segs {
			pts := make(plotter.XYs, len(seg))
			for i, pt := range seg {
				pts[i] = plotter.XY{X: pt[0], Y: pt[1]}
			}
			line, err := plotter.NewLine(pts)
			if err != nil {
				return err
			}
			line.Color = col
			line.Width = width
			p.Add(line)
			if !legendDone[name] {
				p.Legend.Add(name, line)
				legendDone[name] = true
			}
		}
		return nil
	}
	if err := addLines("raw", segments(c.Raw), rawColor, vg.Points(1)); err != nil {
		return nil, err
	}
	if err := addLines("smoothed", segments(c.Smoothed), smoothedColor, vg.Points(2)); err != nil {
		return nil, err
	}

	n := float64(max(len(c.Raw), len(c.Smoothed)))
	for _, th := range []struct {
		name string
		y    float64
	}{{"TH_HIGH", c.ThresholdHigh}, {"TH_LOW", c.ThresholdLow}} {
		line, err := plotter.NewLine(plotter.XYs{{X: 0, Y: th.y}, {X: n, Y: th.y}})
		if err != nil {
			return nil, err
		}
		line.Color = color.Black
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("%s %.2f", th.name, th.y), line)
	}

	var counted, rejected plotter.XYs
	for _, pk := range c.Peaks {
		pt := plotter.XY{X: float64(pk.Index), Y: pk.Value}
		if pk.Counted {
			counted = append(counted, pt)
		} else {
			rejected = append(rejected, pt)
		}
	}
	for _, set := range []struct {
		name  string
		pts   plotter.XYs
		col   color.Color
		glyph draw.GlyphDrawer
	}{{"rep", counted, passColor, draw.CircleGlyph{}}, {"rejected", rejected, rejectColor, draw.CrossGlyph{}}} {
		if len(set.pts) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(set.pts)
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle.Color = set.col
		sc.GlyphStyle.Shape = set.glyph
		sc.GlyphStyle.Radius = vg.Points(4)
		p.Add(sc)
		p.Legend.Add(set.name, sc)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// SavePNG writes the plot to path; the format follows the file extension.
func (c Chart) SavePNG(path string) error {
	p, err := c.Plot()
	if err != nil {
		return fmt.Errorf("failed to build plot: %w", err)
	}
	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", path, err)
	}
	return nil
}

// WritePNG streams the plot as PNG.
func (c Chart) WritePNG(w io.Writer) error {
	p, err := c.Plot()
	if err != nil {
		return fmt.Errorf("failed to build plot: %w", err)
	}
	wt, err := p.WriterTo(14*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to create png writer: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
