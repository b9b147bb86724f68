package sumobar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/37715/retrocycles-leaderboard/internal/models"
)

func TestLeaderboardNormalizesRows(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{
			"rows": [{
				"rank": 1,
				"player_auth": "apple@forums",
				"region": "EU",
				"elo": 1742,
				"matches_played": 40,
				"kills": 120,
				"deaths": 60,
				"avg_score": "312.5",
				"avg_position": null,
				"place_1_rate": 0.5,
				"place_2_rate": 0.5,
				"updated_at": "2026-08-20 17:30:00+00"
			}],
			"pagination": {"limit": 25, "offset": 0, "returned": 1}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	resp, err := client.Leaderboard(context.Background(), LeaderboardQuery{Limit: 25, Region: models.RegionEU})
	if err != nil {
		t.Fatalf("Leaderboard returned error: %v", err)
	}

	if gotQuery != "limit=25&min_matches=1&offset=0&region=eu" {
		t.Errorf("query = %q", gotQuery)
	}

	if len(resp.Rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(resp.Rows))
	}
	row := resp.Rows[0]
	if row.PlayerAuth != "apple@forums" || row.Elo != 1742 || row.MatchesPlayed != 40 {
		t.Errorf("row = %+v", row)
	}
	if row.Region != "eu" {
		t.Errorf("region = %q, want lowercased eu", row.Region)
	}
	if row.AvgScore == nil || *row.AvgScore != 312.5 {
		t.Errorf("avg score should parse from a quoted number, got %v", row.AvgScore)
	}
	if row.AvgPosition != nil {
		t.Errorf("null avg position should stay nil, got %v", *row.AvgPosition)
	}
	if len(row.PlacementRates) != 8 || row.PlacementRates[0] != 50 || row.PlacementRates[1] != 50 {
		t.Errorf("placement rates = %v", row.PlacementRates)
	}
	if row.UpdatedAt != "2026-08-20T17:30:00Z" {
		t.Errorf("updated at = %q, want normalized RFC 3339 UTC", row.UpdatedAt)
	}
	if resp.Pagination != (Pagination{Limit: 25, Offset: 0, Returned: 1}) {
		t.Errorf("pagination = %+v", resp.Pagination)
	}
}

func TestCombinedRegionOmitsParam(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"rows": []}`))
	}))
	defer server.Close()

	if _, err := NewClient(server.URL, "").Leaderboard(context.Background(), LeaderboardQuery{Region: models.RegionCombined}); err != nil {
		t.Fatalf("Leaderboard returned error: %v", err)
	}
	if gotQuery != "limit=50&min_matches=1&offset=0" {
		t.Errorf("combined region should not send a region param, query = %q", gotQuery)
	}
}

func TestAuthFallbackChain(t *testing.T) {
	var headerSequence []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Header.Get("Authorization") != "":
			headerSequence = append(headerSequence, "bearer")
			w.Write([]byte(`{"rows": []}`))
		case r.Header.Get("X-RCL-Sumobar-Token") != "":
			headerSequence = append(headerSequence, "token")
			w.WriteHeader(http.StatusForbidden)
		default:
			headerSequence = append(headerSequence, "anonymous")
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret")
	if _, err := client.Matches(context.Background(), MatchesQuery{}); err != nil {
		t.Fatalf("Matches returned error: %v", err)
	}

	want := []string{"anonymous", "token", "bearer"}
	if len(headerSequence) != len(want) {
		t.Fatalf("attempt sequence = %v, want %v", headerSequence, want)
	}
	for i := range want {
		if headerSequence[i] != want[i] {
			t.Fatalf("attempt sequence = %v, want %v", headerSequence, want)
		}
	}
}

func TestAuthFallbackWithoutToken(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "").Matches(context.Background(), MatchesQuery{})
	if err == nil {
		t.Fatal("expected an error when anonymous access is rejected and no token is set")
	}
	if attempts != 1 {
		t.Errorf("made %d attempts, want 1", attempts)
	}
}

func TestMatchesNormalizesRows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"rows": [
				{"match_id": "abc", "rounds_played": 7, "winner_team": "gold",
				 "winner_players": ["apple", "pear"], "ended_at": "2026-08-21T10:00:00Z"},
				{"match_id": "def", "rounds_played": 5, "winner_team": null}
			]
		}`))
	}))
	defer server.Close()

	resp, err := NewClient(server.URL, "").Matches(context.Background(), MatchesQuery{Limit: 2})
	if err != nil {
		t.Fatalf("Matches returned error: %v", err)
	}
	if len(resp.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(resp.Rows))
	}
	if resp.Rows[0].WinnerTeam != "gold" || len(resp.Rows[0].WinnerPlayers) != 2 {
		t.Errorf("first row = %+v", resp.Rows[0])
	}
	if resp.Rows[1].WinnerTeam != "" || resp.Rows[1].WinnerPlayers == nil {
		t.Errorf("null winner fields should normalize, got %+v", resp.Rows[1])
	}
	if resp.Pagination.Returned != 2 {
		t.Errorf("returned = %d, want fallback to row count", resp.Pagination.Returned)
	}
}
