package trace

import (
	"fmt"
	"image"

	"github.com/fogleman/gg"
)

type Diagram struct {
	Width     int
	RowHeight int
	Margin    int
	Labels    map[int]string
}

var DefaultDiagram = Diagram{
	Width:     1200,
	RowHeight: 40,
	Margin:    60,
}

// Render draws one row per pin, HIGH levels as the upper line of the row.
func (d Diagram) Render(r *Recorder, pins []int) image.Image {
	end := r.Duration()
	if end == 0 {
		end = 1
	}
	height := d.RowHeight*len(pins) + 2*d.Margin
	c := gg.NewContext(d.Width, height)
	c.SetRGB(1, 1, 1)
	c.Clear()

	plotWidth := float64(d.Width - 2*d.Margin)
	x := func(t uint64) float64 {
		return float64(d.Margin) + plotWidth*float64(t)/float64(end)
	}
	for row, pin := range pins {
		top := float64(d.Margin + row*d.RowHeight)
		high := top + float64(d.RowHeight)*0.2
		low := top + float64(d.RowHeight)*0.8
		y := func(s Segment) float64 {
			if s.Level {
				return high
			}
			return low
		}

		c.SetRGB(0, 0, 0)
		label, ok := d.Labels[pin]
		if !ok {
			label = fmt.Sprintf("pin %v", pin)
		}
		c.DrawString(label, 5, low)

		c.SetRGB(0, 0, 1)
		c.SetLineWidth(2)
		segments := r.Waveform(pin)
		for i, s := range segments {
			segEnd := s.End
			if i == len(segments)-1 {
				segEnd = end
			}
			if i > 0 {
				c.LineTo(x(s.Start), y(s))
			} else {
				c.MoveTo(x(s.Start), y(s))
			}
			c.LineTo(x(segEnd), y(s))
		}
		c.Stroke()
	}

	c.SetRGB(0.5, 0.5, 0.5)
	c.DrawString(fmt.Sprintf("0 - %vus", end), float64(d.Margin), float64(height-d.Margin/3))
	return c.Image()
}

func (d Diagram) SavePNG(r *Recorder, pins []int, path string) error {
	return gg.SavePNG(path, d.Render(r, pins))
}
