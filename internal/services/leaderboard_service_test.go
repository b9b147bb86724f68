package services

import (
	"context"
	"testing"

	"github.com/37715/retrocycles-leaderboard/internal/coordinator"
	"github.com/37715/retrocycles-leaderboard/internal/models"
	"github.com/37715/retrocycles-leaderboard/internal/sorting"
)

// fakeSource serves canned rows and records the scopes it was asked for.
type fakeSource struct {
	rows   []models.LeaderboardRow
	scopes []models.Scope
}

func (f *fakeSource) FetchDocument(ctx context.Context, scope models.Scope) ([]byte, error) {
	f.scopes = append(f.scopes, scope)
	return nil, nil
}

func (f *fakeSource) ParseDocument(scope models.Scope, body []byte) ([]models.LeaderboardRow, error) {
	return f.rows, nil
}

func boardFixture() []models.LeaderboardRow {
	return []models.LeaderboardRow{
		{Rank: 1, Name: "Apple", Elo: 1800},
		{Rank: 2, Name: "Pineapple", Elo: 1700},
		{Rank: 3, Name: "Plum", Elo: 1600},
	}
}

func TestViewSearchFilterRecomputesRank(t *testing.T) {
	source := &fakeSource{rows: boardFixture()}
	svc := NewLeaderboardService(coordinator.New(source))

	scope := models.Scope{Season: models.Season2026, Region: models.RegionCombined, Mode: models.ModeTST}
	rows, err := svc.View(context.Background(), scope, "apple", sorting.ColumnRank, sorting.Ascending)
	if err != nil {
		t.Fatalf("View returned error: %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (case-insensitive substring match)", len(rows))
	}
	if rows[0].Name != "Apple" || rows[1].Name != "Pineapple" {
		t.Errorf("filtered rows = %v", rows)
	}
	if rows[0].Rank != 1 || rows[1].Rank != 2 {
		t.Errorf("ranks after filter = %d, %d; want 1, 2", rows[0].Rank, rows[1].Rank)
	}
}

func TestViewSortByElo(t *testing.T) {
	source := &fakeSource{rows: boardFixture()}
	svc := NewLeaderboardService(coordinator.New(source))

	scope := models.Scope{Season: models.Season2026, Region: models.RegionCombined, Mode: models.ModeTST}
	rows, err := svc.View(context.Background(), scope, "", sorting.ColumnElo, sorting.Ascending)
	if err != nil {
		t.Fatalf("View returned error: %v", err)
	}
	if rows[0].Name != "Plum" || rows[2].Name != "Apple" {
		t.Errorf("ascending elo order = %v", rows)
	}
}

func TestOldestSeasonCollapsesRegion(t *testing.T) {
	source := &fakeSource{rows: boardFixture()}
	svc := NewLeaderboardService(coordinator.New(source))

	scope := models.Scope{Season: models.Season2023, Region: models.RegionEU, Mode: models.ModeTST}
	if _, err := svc.Rows(context.Background(), scope); err != nil {
		t.Fatalf("Rows returned error: %v", err)
	}

	if len(source.scopes) != 1 {
		t.Fatalf("got %d fetches, want 1", len(source.scopes))
	}
	if source.scopes[0].Region != models.RegionCombined {
		t.Errorf("2023 fetch used region %q, want combined", source.scopes[0].Region)
	}
}
