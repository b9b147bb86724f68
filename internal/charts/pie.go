package charts

import (
	"fmt"
	"math"
)

// Category is one named bucket with its occurrence count.
type Category struct {
	Name  string
	Count int
}

// DonutSlice is one wedge of a donut chart, already mapped to an SVG path.
type DonutSlice struct {
	Name    string `json:"name"`
	Count   int    `json:"count"`
	Percent int    `json:"percent"`
	Path    string `json:"path,omitempty"`
}

// DonutChart is the geometry for a share-breakdown donut. When a single
// category holds every sample the arc math degenerates (start and end angle
// coincide), so that case renders as a full ring instead of a wedge.
type DonutChart struct {
	Size        int          `json:"size"`
	Radius      float64      `json:"radius"`
	InnerRadius float64      `json:"innerRadius"`
	FullRing    bool         `json:"fullRing"`
	Slices      []DonutSlice `json:"slices"`
}

const (
	donutSize   = 200
	donutRadius = 85.0
	donutInner  = 50.0
)

// Donut maps category counts into donut geometry. Slices start at 12
// o'clock and proceed clockwise in the order given; percentages are rounded
// per slice. Empty input yields an empty chart.
func Donut(categories []Category) DonutChart {
	chart := DonutChart{
		Size:        donutSize,
		Radius:      donutRadius,
		InnerRadius: donutInner,
	}

	total := 0
	for _, c := range categories {
		total += c.Count
	}
	if total == 0 {
		return chart
	}

	if len(categories) == 1 {
		chart.FullRing = true
		chart.Slices = []DonutSlice{{
			Name:    categories[0].Name,
			Count:   categories[0].Count,
			Percent: 100,
		}}
		return chart
	}

	center := float64(donutSize) / 2
	angle := -90.0
	for _, c := range categories {
		share := float64(c.Count) / float64(total)
		sweep := share * 360

		startX, startY := arcPoint(center, donutRadius, angle)
		endX, endY := arcPoint(center, donutRadius, angle+sweep)
		innerEndX, innerEndY := arcPoint(center, donutInner, angle+sweep)
		innerStartX, innerStartY := arcPoint(center, donutInner, angle)

		largeArc := 0
		if sweep > 180 {
			largeArc = 1
		}

		path := fmt.Sprintf(
			"M %.2f %.2f A %.2f %.2f 0 %d 1 %.2f %.2f L %.2f %.2f A %.2f %.2f 0 %d 0 %.2f %.2f Z",
			startX, startY,
			donutRadius, donutRadius, largeArc, endX, endY,
			innerEndX, innerEndY,
			donutInner, donutInner, largeArc, innerStartX, innerStartY,
		)

		chart.Slices = append(chart.Slices, DonutSlice{
			Name:    c.Name,
			Count:   c.Count,
			Percent: int(math.Round(share * 100)),
			Path:    path,
		})
		angle += sweep
	}

	return chart
}

func arcPoint(center, radius, degrees float64) (float64, float64) {
	rad := degrees * math.Pi / 180
	return center + radius*math.Cos(rad), center + radius*math.Sin(rad)
}
