// Package charts renders the dashboard's timeline and proportion charts
// as PNG images.
package charts

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dalemusser/stratacovid/internal/app/system/presenter"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// EmptyMessage is drawn in place of a chart with nothing to plot.
const EmptyMessage = "No data available. Please select a valid date range."

// Every chart is drawn on an 800x400 canvas; the donut centers in it.
const (
	Width  = 800
	Height = 400

	LineWidth        = Width
	LineHeight       = Height
	ProportionWidth  = Width
	ProportionHeight = Height
)

// RenderLine writes the timeline chart as a PNG. A chart with no points
// renders the EmptyMessage placeholder.
func RenderLine(w io.Writer, vm presenter.LineChartVM) error {
	var series []chart.Series
	for _, s := range vm.Series {
		if len(s.Dates) == 0 {
			continue
		}
		xs := make([]time.Time, len(s.Dates))
		for i, d := range s.Dates {
			xs[i] = dateTime(d)
		}
		ys := append([]float64(nil), s.Raw...)
		// go-chart needs a non-zero X range.
		if len(xs) == 1 {
			xs = append(xs, xs[0].Add(24*time.Hour))
			ys = append(ys, ys[0])
		}
		series = append(series, chart.TimeSeries{
			Name:    s.Label,
			XValues: xs,
			YValues: ys,
			Style:   lineStyle(s.Color),
		})
	}
	if len(series) == 0 {
		return placeholder(w, LineWidth, LineHeight, vm.Title)
	}

	ch := chart.Chart{
		Title:      vm.Title,
		Width:      LineWidth,
		Height:     LineHeight,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:           vm.XAxis,
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis:  chart.YAxis{Name: vm.YAxis},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return fmt.Errorf("render timeline chart: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// RenderProportion writes the doughnut chart as a PNG. All-zero totals
// render the EmptyMessage placeholder.
func RenderProportion(w io.Writer, vm presenter.ProportionVM) error {
	if vm.Empty() {
		return placeholder(w, ProportionWidth, ProportionHeight, vm.Title)
	}

	values := make([]chart.Value, 0, len(vm.Values))
	for i, v := range vm.Values {
		if v <= 0 {
			continue
		}
		col := drawing.ColorFromHex(trimHash(vm.Colors[i]))
		values = append(values, chart.Value{
			Label: vm.Labels[i],
			Value: float64(v),
			Style: chart.Style{FillColor: col, StrokeColor: drawing.ColorWhite, StrokeWidth: 1},
		})
	}

	donut := chart.DonutChart{
		Title:  vm.Title,
		Width:  ProportionWidth,
		Height: ProportionHeight,
		Values: values,
	}

	var buf bytes.Buffer
	if err := donut.Render(chart.PNG, &buf); err != nil {
		return fmt.Errorf("render proportion chart: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}

func lineStyle(hex string) chart.Style {
	col := drawing.ColorFromHex(trimHash(hex))
	return chart.Style{
		StrokeColor: col,
		StrokeWidth: 2,
		DotWidth:    2,
		DotColor:    col,
	}
}

func trimHash(hex string) string {
	if len(hex) > 0 && hex[0] == '#' {
		return hex[1:]
	}
	return hex
}

func dateTime(d civil.Date) time.Time {
	return d.In(time.UTC)
}

// placeholder draws title and EmptyMessage on a plain background.
func placeholder(w io.Writer, width, height int, title string) error {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 249, G: 250, B: 251, A: 255}), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	drawCentered(img, face, title, height/2-12, color.RGBA{R: 31, G: 41, B: 55, A: 255})
	drawCentered(img, face, EmptyMessage, height/2+12, color.RGBA{R: 107, G: 114, B: 128, A: 255})

	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode placeholder: %w", err)
	}
	return nil
}

func drawCentered(img *image.RGBA, face font.Face, s string, y int, col color.Color) {
	if s == "" {
		return
	}
	dr := &font.Drawer{Dst: img, Src: image.NewUniform(col), Face: face}
	x := (img.Bounds().Dx() - dr.MeasureString(s).Ceil()) / 2
	if x < 4 {
		x = 4
	}
	dr.Dot = fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)}
	dr.DrawString(s)
}
