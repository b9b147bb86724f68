package rankings

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/37715/retrocycles-leaderboard/internal/models"
)

func TestRankingsURL(t *testing.T) {
	client := NewClient("https://ratings.example.com")
	client.now = func() time.Time {
		return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	}

	tests := []struct {
		name  string
		scope models.Scope
		want  string
	}{
		{
			name:  "current season combined",
			scope: models.Scope{Season: models.Season2026, Region: models.RegionCombined, Mode: models.ModeTST},
			want:  "https://ratings.example.com/daterange.php?date=2026-12-31&datel=2026-01-01&id=tst",
		},
		{
			name:  "archived season eu",
			scope: models.Scope{Season: models.Season2024, Region: models.RegionEU, Mode: models.ModeTST},
			want:  "https://ratings.example.com/daterange.php?date=2024-12-31&datel=2024-01-01&id=tst24-eu",
		},
		{
			name:  "weekly window is rolling, end exclusive",
			scope: models.Scope{Season: models.SeasonWeekly, Region: models.RegionUS, Mode: models.ModeTST},
			want:  "https://ratings.example.com/daterange.php?date=2026-08-30&datel=2026-08-23&id=tst-us",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := client.RankingsURL(tt.scope)
			if err != nil {
				t.Fatalf("RankingsURL returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("RankingsURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRankingsURLUnknownSeason(t *testing.T) {
	client := NewClient("https://ratings.example.com")
	var unknown *UnknownSeasonError
	if _, err := client.RankingsURL(models.Scope{Season: "1999"}); !errors.As(err, &unknown) {
		t.Errorf("expected UnknownSeasonError, got %v", err)
	}
}

func TestHistoryURL(t *testing.T) {
	client := NewClient("https://ratings.example.com")

	current, err := client.historyURL("the player", models.Season2026)
	if err != nil {
		t.Fatalf("current season: %v", err)
	}
	if current != "https://ratings.example.com/?id=tst&type=history&mp=the+player" {
		t.Errorf("current-season URL = %q", current)
	}

	archived, err := client.historyURL("apple", models.Season2024)
	if err != nil {
		t.Fatalf("archived season: %v", err)
	}
	want := "https://ratings.example.com/?id=tst24&type=history&daterange=1&datel=2024-01-01&date=2024-12-31&mp=apple"
	if archived != want {
		t.Errorf("archived-season URL = %q, want %q", archived, want)
	}

	var unknown *UnknownSeasonError
	if _, err := client.historyURL("apple", models.SeasonWeekly); !errors.As(err, &unknown) {
		t.Errorf("weekly history should be rejected, got %v", err)
	}
}

func TestParseDocumentEmptyTable(t *testing.T) {
	client := NewClient("https://ratings.example.com")
	scope := models.Scope{Season: models.Season2026, Region: models.RegionCombined, Mode: models.ModeTST}

	var empty *EmptyTableError
	if _, err := client.ParseDocument(scope, []byte("<table><tr><th>#</th></tr></table>")); !errors.As(err, &empty) {
		t.Fatalf("expected EmptyTableError, got %v", err)
	}
	if !strings.Contains(empty.Error(), scope.Key()) {
		t.Errorf("error should name the scope, got %q", empty.Error())
	}
}

func TestFetchPlayerHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("mp") != "apple" {
			w.Write([]byte(`{"error": "no such player"}`))
			return
		}
		w.Write([]byte(`[
			{"id": "m1", "name": "2026-02-01 18:00:00", "region": "eu",
			 "players": [{"player": "apple", "kd": [3, 1], "score": 120, "place": 1}]}
		]`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	matches, err := client.FetchPlayerHistory(context.Background(), "apple", models.Season2026)
	if err != nil {
		t.Fatalf("FetchPlayerHistory returned error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	entry := matches[0].Players[0]
	if entry.KD == nil || !entry.KD.Present || entry.KD.Kills != 3 || entry.KD.Deaths != 1 {
		t.Errorf("kd = %+v", entry.KD)
	}

	// The feed answers with an object for unknown players; that is a valid
	// empty history, not an error.
	none, err := client.FetchPlayerHistory(context.Background(), "nobody", models.Season2026)
	if err != nil {
		t.Fatalf("unknown player: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("got %d matches for an unknown player, want 0", len(none))
	}
}

func TestFetchDocumentStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	scope := models.Scope{Season: models.Season2026, Region: models.RegionCombined, Mode: models.ModeTST}

	var fetchErr *FetchError
	if _, err := client.FetchDocument(context.Background(), scope); !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.Status != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", fetchErr.Status)
	}
}
