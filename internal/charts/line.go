// Package charts turns aggregated series into drawable SVG geometry. All
// transforms are pure: same series in, same coordinates out.
package charts

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInsufficientData is returned when a series is too short to chart.
// Fewer than two points would degenerate into a dot, so the caller gets an
// explicit signal instead of a broken path.
var ErrInsufficientData = errors.New("not enough data points for a line chart")

// Point is one (label, value) sample of an ordered series.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// PlottedPoint is a sample mapped into pixel space.
type PlottedPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// AxisLabel is one tick label with its pixel position.
type AxisLabel struct {
	Value float64 `json:"value,omitempty"`
	Label string  `json:"label,omitempty"`
	X     float64 `json:"x,omitempty"`
	Y     float64 `json:"y,omitempty"`
}

// LineChart is the full geometry for a rating-over-time chart: the polyline
// path, the filled area beneath it, plotted points and axis ticks.
type LineChart struct {
	Width    int            `json:"width"`
	Height   int            `json:"height"`
	YMin     float64        `json:"yMin"`
	YMax     float64        `json:"yMax"`
	Path     string         `json:"path"`
	AreaPath string         `json:"areaPath"`
	Points   []PlottedPoint `json:"points"`
	YLabels  []AxisLabel    `json:"yLabels"`
	XLabels  []AxisLabel    `json:"xLabels"`
	Trend    string         `json:"trend"`
	Start    float64        `json:"start"`
	End      float64        `json:"end"`
}

const (
	lineWidth     = 580
	lineHeight    = 220
	padTop        = 20
	padRight      = 50
	padBottom     = 35
	padLeft       = 50
	yDomainRound  = 50
	yLabelStepBig = 100
)

// Line maps an ordered series into chart geometry. The y-axis domain is
// padded 10% beyond the observed min/max and rounded outward to the nearest
// 50; x positions are evenly spaced by index.
func Line(points []Point) (*LineChart, error) {
	if len(points) < 2 {
		return nil, ErrInsufficientData
	}

	chartWidth := float64(lineWidth - padLeft - padRight)
	chartHeight := float64(lineHeight - padTop - padBottom)

	minV, maxV := points[0].Value, points[0].Value
	for _, p := range points[1:] {
		minV = math.Min(minV, p.Value)
		maxV = math.Max(maxV, p.Value)
	}
	valueRange := maxV - minV
	if valueRange == 0 {
		valueRange = 100
	}
	pad := valueRange * 0.1
	yMin := math.Floor((minV-pad)/yDomainRound) * yDomainRound
	yMax := math.Ceil((maxV+pad)/yDomainRound) * yDomainRound

	xScale := func(i int) float64 {
		return padLeft + float64(i)/float64(len(points)-1)*chartWidth
	}
	yScale := func(v float64) float64 {
		return padTop + chartHeight - (v-yMin)/(yMax-yMin)*chartHeight
	}

	var path strings.Builder
	plotted := make([]PlottedPoint, 0, len(points))
	for i, p := range points {
		x, y := xScale(i), yScale(p.Value)
		cmd := "L"
		if i == 0 {
			cmd = "M"
		}
		fmt.Fprintf(&path, "%s %.1f %.1f ", cmd, x, y)
		plotted = append(plotted, PlottedPoint{X: x, Y: y, Label: p.Label, Value: p.Value})
	}

	baseline := padTop + chartHeight
	var area strings.Builder
	fmt.Fprintf(&area, "M %.1f %.1f ", plotted[0].X, plotted[0].Y)
	for _, p := range plotted[1:] {
		fmt.Fprintf(&area, "L %.1f %.1f ", p.X, p.Y)
	}
	fmt.Fprintf(&area, "L %.1f %.1f L %.1f %.1f Z",
		plotted[len(plotted)-1].X, baseline, plotted[0].X, baseline)

	yStep := float64(yDomainRound)
	if yMax-yMin > 200 {
		yStep = yLabelStepBig
	}
	var yLabels []AxisLabel
	for v := yMin; v <= yMax; v += yStep {
		yLabels = append(yLabels, AxisLabel{Value: v, Y: yScale(v)})
	}

	xLabels := []AxisLabel{
		{Label: points[0].Label, X: plotted[0].X},
		{Label: points[len(points)-1].Label, X: plotted[len(plotted)-1].X},
	}

	trend := "up"
	if points[len(points)-1].Value < points[0].Value {
		trend = "down"
	}

	return &LineChart{
		Width:    lineWidth,
		Height:   lineHeight,
		YMin:     yMin,
		YMax:     yMax,
		Path:     strings.TrimSpace(path.String()),
		AreaPath: area.String(),
		Points:   plotted,
		YLabels:  yLabels,
		XLabels:  xLabels,
		Trend:    trend,
		Start:    points[0].Value,
		End:      points[len(points)-1].Value,
	}, nil
}
