package chart

import (
	"bytes"
	"sync"
	"time"

	"crypto-alerts-bot/internal/provider"

	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	Width  = 1200
	Height = 600
)

var ErrNotEnoughData = errors.New("not enough data points to draw a chart")

var (
	backgroundColor = drawing.Color{R: 55, G: 55, B: 55, A: 255}
	textColor       = drawing.Color{R: 200, G: 200, B: 200, A: 255}
	gridColor       = drawing.Color{R: 100, G: 100, B: 100, A: 128}
	seriesColor     = drawing.Color{R: 0, G: 122, B: 255, A: 255}
)

var (
	fontOnce sync.Once
	font     *truetype.Font
	fontErr  error
)

func defaultFont() (*truetype.Font, error) {
	fontOnce.Do(func() {
		font, fontErr = chart.GetDefaultFont()
	})
	return font, fontErr
}

// Render draws a price series as a PNG. format renders the y axis labels.
func Render(title string, points []provider.Point, format func(float64) string) ([]byte, error) {
	if len(points) < 2 {
		return nil, ErrNotEnoughData
	}

	f, err := defaultFont()
	if err != nil {
		return nil, errors.Wrap(err, "load chart font")
	}

	xs := make([]time.Time, 0, len(points))
	ys := make([]float64, 0, len(points))
	for _, p := range points {
		xs = append(xs, p.Time)
		ys = append(ys, p.Price.InexactFloat64())
	}

	minPrice, maxPrice := minMax(ys)
	padding := (maxPrice - minPrice) * 0.1
	if padding == 0 {
		padding = maxPrice * 0.01
	}

	timeFormat := "02-Jan"
	if xs[len(xs)-1].Sub(xs[0]) <= 48*time.Hour {
		timeFormat = "15:04"
	}

	graph := chart.Chart{
		Title:      title,
		TitleStyle: chart.Style{FontColor: textColor, FontSize: 14},
		Width:      Width,
		Height:     Height,
		Font:       f,
		Background: chart.Style{
			FillColor: backgroundColor,
			Padding:   chart.Box{Top: 60, Left: 20, Right: 20, Bottom: 20},
		},
		Canvas: chart.Style{FillColor: backgroundColor},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat(timeFormat),
			Style:          chart.Style{FontColor: textColor, StrokeColor: textColor, FontSize: 12},
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: minPrice - padding, Max: maxPrice + padding},
			ValueFormatter: func(v interface{}) string {
				if value, ok := v.(float64); ok {
					return format(value)
				}
				return ""
			},
			Style:          chart.Style{FontColor: textColor, StrokeColor: textColor, FontSize: 12},
			GridMajorStyle: chart.Style{StrokeColor: gridColor, StrokeWidth: 1},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: seriesColor,
					StrokeWidth: 2,
					FillColor:   seriesColor.WithAlpha(35),
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, errors.Wrap(err, "render chart")
	}
	return buf.Bytes(), nil
}

func minMax(values []float64) (min, max float64) {
	min, max = values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}
