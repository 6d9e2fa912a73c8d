// Package render draws reading series as PNG charts.
//
// Render is a pure function of the series and the render configuration. The
// y axis always spans [unit floor, upper bound] so consecutive refreshes of
// an overlay keep the same scale; readings outside it are pinned to the edge.
package render

import (
	"bytes"
	"fmt"
	"image/color"
	"time"

	"github.com/ruteri/dexcom-browser-source/interfaces"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	// BandAlpha is the fixed opacity of the threshold bands.
	BandAlpha = 0x40

	pointWidth = 4

	// go-chart skips strokes with a negative width
	noStroke = -1

	tickLabelFormat = "15:04"
)

// Render draws series (oldest first) into a PNG image.
func Render(series interfaces.ReadingSeries, cfg interfaces.RenderConfig) ([]byte, error) {
	floor := cfg.Unit.Floor()
	margin := cfg.Unit.BandMargin()

	xRange, xTicks := timeAxis(series, cfg.Window())

	seriesList := []chart.Series{
		band{name: "hypo", low: floor, high: cfg.HypoThreshold, color: bandColor(cfg.Colors.Hypo)},
		band{name: "normal", low: cfg.HypoThreshold + margin, high: cfg.HyperThreshold - margin, color: bandColor(cfg.Colors.Normal)},
		band{name: "hyper", low: cfg.HyperThreshold, high: cfg.UpperBound, color: bandColor(cfg.Colors.Hyper)},
	}
	if points := pointSeries(series, cfg); points != nil {
		seriesList = append(seriesList, *points)
	}

	ch := chart.Chart{
		Width:      cfg.Width,
		Height:     cfg.Height,
		Background: chart.Style{Padding: chart.Box{Top: 16, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			Range: xRange,
			Ticks: xTicks,
		},
		YAxis: chart.YAxis{
			Name:  cfg.Unit.String(),
			Range: &chart.ContinuousRange{Min: floor, Max: cfg.UpperBound},
			Ticks: valueTicks(cfg),
		},
		Series: seriesList,
	}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("could not render chart: %w", err)
	}
	return buf.Bytes(), nil
}

// timeAxis spans the first to the last reading with ticks every window/4.
// Empty and single-instant series get a synthetic span so the axis is never
// degenerate.
func timeAxis(series interfaces.ReadingSeries, window time.Duration) (*chart.ContinuousRange, []chart.Tick) {
	step := window / 4
	if step <= 0 {
		step = 15 * time.Minute
	}

	first, last, ok := series.Span()
	label := func(t time.Time) string { return t.Format(tickLabelFormat) }
	if !ok {
		first = time.Unix(0, 0).UTC()
		last = first.Add(window)
		label = func(time.Time) string { return "" }
	}
	if !last.After(first) {
		last = first.Add(step)
	}

	var ticks []chart.Tick
	for t := first; t.Before(last); t = t.Add(step) {
		ticks = append(ticks, chart.Tick{Value: timeValue(t), Label: label(t)})
	}
	// keep the closing tick readable
	if len(ticks) > 1 && last.Sub(first.Add(time.Duration(len(ticks)-1)*step)) < step/3 {
		ticks = ticks[:len(ticks)-1]
	}
	ticks = append(ticks, chart.Tick{Value: timeValue(last), Label: label(last)})

	return &chart.ContinuousRange{Min: timeValue(first), Max: timeValue(last)}, ticks
}

func timeValue(t time.Time) float64 {
	return float64(chart.TimeToFloat64(t))
}

func valueTicks(cfg interfaces.RenderConfig) []chart.Tick {
	values := []float64{cfg.Unit.Floor(), cfg.HypoThreshold, cfg.HyperThreshold, cfg.UpperBound}
	ticks := make([]chart.Tick, 0, len(values))
	for _, v := range values {
		ticks = append(ticks, chart.Tick{Value: v, Label: formatValue(v, cfg.Unit)})
	}
	return ticks
}

func formatValue(v float64, u interfaces.Unit) string {
	if u == interfaces.UnitMmolL {
		return fmt.Sprintf("%.1f", v)
	}
	return fmt.Sprintf("%.0f", v)
}

// pointSeries plots readings as unconnected markers, or returns nil when
// there is nothing to plot.
func pointSeries(series interfaces.ReadingSeries, cfg interfaces.RenderConfig) *chart.TimeSeries {
	if len(series) == 0 {
		return nil
	}

	xs := make([]time.Time, len(series))
	ys := make([]float64, len(series))
	for i, r := range series {
		xs[i] = r.Timestamp()
		ys[i] = min(max(r.Value(cfg.Unit), cfg.Unit.Floor()), cfg.UpperBound)
	}

	return &chart.TimeSeries{
		Name:    "readings",
		XValues: xs,
		YValues: ys,
		Style: chart.Style{
			StrokeWidth: noStroke,
			DotWidth:    pointWidth,
			DotColor:    toDrawingColor(cfg.Colors.Points),
		},
	}
}

func bandColor(c color.RGBA) drawing.Color {
	return drawing.Color{R: c.R, G: c.G, B: c.B, A: BandAlpha}
}

func toDrawingColor(c color.RGBA) drawing.Color {
	return drawing.Color{R: c.R, G: c.G, B: c.B, A: c.A}
}

// band is a horizontal strip between two values spanning the whole x range.
type band struct {
	name      string
	low, high float64
	color     drawing.Color
}

func (b band) GetName() string           { return b.name }
func (b band) GetYAxis() chart.YAxisType { return chart.YAxisPrimary }
func (b band) GetStyle() chart.Style     { return chart.Style{} }

func (b band) Render(r chart.Renderer, canvasBox chart.Box, _, yrange chart.Range, _ chart.Style) {
	top := canvasBox.Bottom - yrange.Translate(b.high)
	bottom := canvasBox.Bottom - yrange.Translate(b.low)

	r.SetFillColor(b.color)
	r.MoveTo(canvasBox.Left, top)
	r.LineTo(canvasBox.Right, top)
	r.LineTo(canvasBox.Right, bottom)
	r.LineTo(canvasBox.Left, bottom)
	r.Close()
	r.Fill()
}
