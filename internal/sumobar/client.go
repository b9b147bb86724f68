// Package sumobar talks to the league's sumobar JSON API. The API is only
// semi-stable: column names for placement rates drift between deployments
// and the endpoints flip between open and token-gated, so the client
// carries normalization heuristics and an auth fallback chain.
package sumobar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/37715/retrocycles-leaderboard/internal/models"
)

// FetchError wraps a network failure or non-2xx response from the sumobar
// API after the auth fallback chain is exhausted.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sumobar request failed (%s): %v", e.URL, e.Err)
	}
	return fmt.Sprintf("sumobar request failed (%s): status %d", e.URL, e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Pagination echoes the window the API actually served.
type Pagination struct {
	Limit    int `json:"limit"`
	Offset   int `json:"offset"`
	Returned int `json:"returned"`
}

// LeaderboardRow is one normalized sumobar standings row. PlacementRates,
// when present, is an 8-entry percentage vector for finish positions 1-8.
type LeaderboardRow struct {
	Rank           int       `json:"rank"`
	PlayerAuth     string    `json:"playerAuth"`
	Region         string    `json:"region,omitempty"`
	Elo            int       `json:"elo"`
	MatchesPlayed  int       `json:"matchesPlayed"`
	Kills          int       `json:"kills"`
	Deaths         int       `json:"deaths"`
	AvgScore       *float64  `json:"avgScore"`
	AvgPosition    *float64  `json:"avgPosition"`
	PlacementRates []float64 `json:"placementRates,omitempty"`
	UpdatedAt      string    `json:"updatedAt,omitempty"`
}

// MatchRow is one completed sumobar match.
type MatchRow struct {
	MatchID       string   `json:"matchId"`
	RoundsPlayed  int      `json:"roundsPlayed"`
	WinnerTeam    string   `json:"winnerTeam,omitempty"`
	WinnerPlayers []string `json:"winnerPlayers"`
	EndedAt       string   `json:"endedAt,omitempty"`
}

type LeaderboardResponse struct {
	Rows       []LeaderboardRow `json:"rows"`
	Pagination Pagination       `json:"pagination"`
}

type MatchesResponse struct {
	Rows       []MatchRow `json:"rows"`
	Pagination Pagination `json:"pagination"`
}

// LeaderboardQuery selects a standings window. Zero values fall back to
// limit 50, offset 0, minMatches 1, combined regions.
type LeaderboardQuery struct {
	Limit      int
	Offset     int
	MinMatches int
	Region     models.Region
}

// MatchesQuery selects a recent-matches window. Zero limit falls back to 10.
type MatchesQuery struct {
	Limit  int
	Offset int
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient builds a sumobar client. The token may be empty; it is only
// consulted when the API starts rejecting anonymous requests.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Leaderboard fetches and normalizes one standings page.
func (c *Client) Leaderboard(ctx context.Context, q LeaderboardQuery) (LeaderboardResponse, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.MinMatches <= 0 {
		q.MinMatches = 1
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("offset", strconv.Itoa(q.Offset))
	params.Set("min_matches", strconv.Itoa(q.MinMatches))
	if q.Region != "" && q.Region != models.RegionCombined {
		params.Set("region", string(q.Region))
	}

	var payload struct {
		Rows       []map[string]json.RawMessage `json:"rows"`
		Pagination *Pagination                  `json:"pagination"`
	}
	if err := c.getJSON(ctx, "/leaderboard", params, &payload); err != nil {
		return LeaderboardResponse{}, err
	}

	rows := make([]LeaderboardRow, 0, len(payload.Rows))
	for _, raw := range payload.Rows {
		matchesPlayed := intField(raw, "matches_played")
		rows = append(rows, LeaderboardRow{
			Rank:           intField(raw, "rank"),
			PlayerAuth:     stringField(raw, "player_auth"),
			Region:         strings.ToLower(stringField(raw, "region")),
			Elo:            intField(raw, "elo"),
			MatchesPlayed:  matchesPlayed,
			Kills:          intField(raw, "kills"),
			Deaths:         intField(raw, "deaths"),
			AvgScore:       floatField(raw, "avg_score"),
			AvgPosition:    floatField(raw, "avg_position"),
			PlacementRates: extractPlacementRates(raw, matchesPlayed),
			UpdatedAt:      normalizeDateTime(stringField(raw, "updated_at")),
		})
	}

	return LeaderboardResponse{
		Rows:       rows,
		Pagination: resolvePagination(payload.Pagination, q.Limit, q.Offset, len(rows)),
	}, nil
}

// Matches fetches and normalizes one recent-matches page.
func (c *Client) Matches(ctx context.Context, q MatchesQuery) (MatchesResponse, error) {
	if q.Limit <= 0 {
		q.Limit = 10
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("offset", strconv.Itoa(q.Offset))

	var payload struct {
		Rows []struct {
			MatchID       string   `json:"match_id"`
			RoundsPlayed  int      `json:"rounds_played"`
			WinnerTeam    *string  `json:"winner_team"`
			WinnerPlayers []string `json:"winner_players"`
			EndedAt       string   `json:"ended_at"`
		} `json:"rows"`
		Pagination *Pagination `json:"pagination"`
	}
	if err := c.getJSON(ctx, "/matches", params, &payload); err != nil {
		return MatchesResponse{}, err
	}

	rows := make([]MatchRow, 0, len(payload.Rows))
	for _, raw := range payload.Rows {
		row := MatchRow{
			MatchID:       raw.MatchID,
			RoundsPlayed:  raw.RoundsPlayed,
			WinnerPlayers: raw.WinnerPlayers,
			EndedAt:       normalizeDateTime(raw.EndedAt),
		}
		if raw.WinnerTeam != nil {
			row.WinnerTeam = *raw.WinnerTeam
		}
		if row.WinnerPlayers == nil {
			row.WinnerPlayers = []string{}
		}
		rows = append(rows, row)
	}

	return MatchesResponse{
		Rows:       rows,
		Pagination: resolvePagination(payload.Pagination, q.Limit, q.Offset, len(rows)),
	}, nil
}

// getJSON performs a GET with the auth fallback chain: anonymous first, then
// the custom token header, then a bearer token. Only 401/403 trigger the
// next rung; any other failure is final.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	requestURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	attempt := func(header, value string) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, err
		}
		if header != "" {
			req.Header.Set(header, value)
		}
		return c.httpClient.Do(req)
	}

	resp, err := attempt("", "")
	if err != nil {
		return &FetchError{URL: requestURL, Err: err}
	}
	if authRejected(resp.StatusCode) && c.token != "" {
		resp.Body.Close()
		resp, err = attempt("X-RCL-Sumobar-Token", c.token)
		if err != nil {
			return &FetchError{URL: requestURL, Err: err}
		}
		if authRejected(resp.StatusCode) {
			resp.Body.Close()
			resp, err = attempt("Authorization", "Bearer "+c.token)
			if err != nil {
				return &FetchError{URL: requestURL, Err: err}
			}
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &FetchError{URL: requestURL, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &FetchError{URL: requestURL, Err: err}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &FetchError{URL: requestURL, Err: err}
	}
	return nil
}

func authRejected(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

func resolvePagination(p *Pagination, limit, offset, returned int) Pagination {
	resolved := Pagination{Limit: limit, Offset: offset, Returned: returned}
	if p == nil {
		return resolved
	}
	if p.Limit > 0 {
		resolved.Limit = p.Limit
	}
	if p.Offset > 0 {
		resolved.Offset = p.Offset
	}
	if p.Returned > 0 {
		resolved.Returned = p.Returned
	}
	return resolved
}

// stringField reads a field that may arrive as a string, number or null.
func stringField(row map[string]json.RawMessage, key string) string {
	raw, ok := row[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

// floatField reads a numeric field that may arrive as a number, a quoted
// number or null. Null and unparsable values stay nil.
func floatField(row map[string]json.RawMessage, key string) *float64 {
	raw, ok := row[key]
	if !ok {
		return nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		if parsed, err := strconv.ParseFloat(s, 64); err == nil {
			return &parsed
		}
	}
	return nil
}

func intField(row map[string]json.RawMessage, key string) int {
	if f := floatField(row, key); f != nil {
		return int(*f)
	}
	return 0
}

// normalizeDateTime coerces the API's assorted timestamp spellings
// ("2026-01-05 17:00:00+00", fractional seconds beyond millis, bare offsets)
// into RFC 3339 UTC. Unparsable input passes through untouched.
func normalizeDateTime(raw string) string {
	if raw == "" {
		return ""
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05-07",
		"2006-01-02 15:04:05.999999999-07",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return raw
}
