package services

import (
	"context"
	"strings"

	"github.com/37715/retrocycles-leaderboard/internal/coordinator"
	"github.com/37715/retrocycles-leaderboard/internal/models"
	"github.com/37715/retrocycles-leaderboard/internal/sorting"
)

// LeaderboardService serves leaderboard views through the request
// coordinator, which owns caching and in-flight supersession.
type LeaderboardService struct {
	coord *coordinator.Coordinator
}

func NewLeaderboardService(c *coordinator.Coordinator) *LeaderboardService {
	return &LeaderboardService{coord: c}
}

// State reports the coordinator's most recent fetch lifecycle state.
func (s *LeaderboardService) State() coordinator.State {
	return s.coord.State()
}

// Rows returns the raw board for a scope in upstream rank order.
func (s *LeaderboardService) Rows(ctx context.Context, scope models.Scope) ([]models.LeaderboardRow, error) {
	// The oldest archived season predates regional boards; region
	// selection collapses to combined there.
	if scope.Season == models.Season2023 {
		scope.Region = models.RegionCombined
	}
	return s.coord.Rows(ctx, scope)
}

// View returns the board for a scope with an optional substring filter and
// column sort applied. Rank is recomputed after both, so the first visible
// row is always #1.
func (s *LeaderboardService) View(ctx context.Context, scope models.Scope, search string, col sorting.Column, dir sorting.Direction) ([]models.LeaderboardRow, error) {
	rows, err := s.Rows(ctx, scope)
	if err != nil {
		return nil, err
	}

	if search != "" {
		needle := strings.ToLower(search)
		filtered := make([]models.LeaderboardRow, 0, len(rows))
		for _, row := range rows {
			if strings.Contains(strings.ToLower(row.Name), needle) {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	return sorting.Sort(rows, col, dir), nil
}
