package services

import (
	"context"
	"sort"

	"github.com/37715/retrocycles-leaderboard/internal/charts"
	"github.com/37715/retrocycles-leaderboard/internal/models"
)

// PlayerCharts is the chart payload for one profile: the rating-over-time
// line (nil when the player has fewer than two rated matches) and the
// region share donut.
type PlayerCharts struct {
	Elo     *charts.LineChart `json:"elo"`
	Regions charts.DonutChart `json:"regions"`
}

// ChartService derives chart geometry from profile aggregates.
type ChartService struct {
	profiles *ProfileService
}

func NewChartService(ps *ProfileService) *ChartService {
	return &ChartService{profiles: ps}
}

// Charts builds the profile charts for one player and season.
func (s *ChartService) Charts(ctx context.Context, username string, season models.Season) (PlayerCharts, error) {
	view, err := s.profiles.ProfileView(ctx, username, season)
	if err != nil {
		return PlayerCharts{}, err
	}
	return buildPlayerCharts(view), nil
}

func buildPlayerCharts(view models.ProfileView) PlayerCharts {
	// Rating series: rows that carry an exit rating, oldest first.
	var series []charts.Point
	rows := make([]models.ProfileRow, len(view.Rows))
	copy(rows, view.Rows)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].DateRaw < rows[j].DateRaw })
	for _, row := range rows {
		if row.ExitRating == "—" {
			continue
		}
		series = append(series, charts.Point{Label: row.Date, Value: row.ExitValue})
	}

	result := PlayerCharts{}
	if line, err := charts.Line(series); err == nil {
		result.Elo = line
	}

	categories := make([]charts.Category, 0, len(view.Regions))
	for _, region := range view.Regions {
		categories = append(categories, charts.Category{Name: region.Name, Count: region.Count})
	}
	result.Regions = charts.Donut(categories)
	return result
}
