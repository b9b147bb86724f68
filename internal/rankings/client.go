package rankings

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/37715/retrocycles-leaderboard/internal/models"
)

// UnknownSeasonError indicates a scope referenced a season the season table
// does not know about.
type UnknownSeasonError struct {
	Season models.Season
}

func (e *UnknownSeasonError) Error() string {
	return fmt.Sprintf("unknown season %q", e.Season)
}

// FetchError wraps a network failure or a non-2xx response from the
// rankings source.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rankings request failed (%s): %v", e.URL, e.Err)
	}
	return fmt.Sprintf("rankings request failed (%s): status %d", e.URL, e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client talks to the third-party rankings source. The source exposes only
// human-oriented HTML for the leaderboard and a JSON feed for per-player
// match history.
type Client struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
}

// RankingsURL builds the daterange endpoint URL for a scope. Yearly seasons
// use the season table's window and upstream id; the weekly scope uses a
// rolling today-6d .. today+1d window (end exclusive). Regions qualify the
// id with an "-eu"/"-us" suffix.
func (c *Client) RankingsURL(scope models.Scope) (string, error) {
	params := url.Values{}
	apiID := string(models.ModeTST)

	if scope.Season == models.SeasonWeekly {
		today := c.now()
		start := today.AddDate(0, 0, -6)
		endExclusive := today.AddDate(0, 0, 1)
		params.Set("datel", start.Format("2006-01-02"))
		params.Set("date", endExclusive.Format("2006-01-02"))
	} else {
		info, ok := models.Seasons[scope.Season]
		if !ok {
			return "", &UnknownSeasonError{Season: scope.Season}
		}
		params.Set("datel", info.Start)
		params.Set("date", info.End)
		apiID = info.APIID
	}

	switch scope.Region {
	case models.RegionEU:
		apiID += "-eu"
	case models.RegionUS:
		apiID += "-us"
	}
	params.Set("id", apiID)

	return fmt.Sprintf("%s/daterange.php?%s", c.baseURL, params.Encode()), nil
}

// historyURL builds the per-player match-history feed URL. The current
// season lives under the "tst" id without a date range; archived seasons go
// through the "tst24" id with explicit season bounds.
func (c *Client) historyURL(username string, season models.Season) (string, error) {
	if season == models.Season2026 {
		return fmt.Sprintf("%s/?id=tst&type=history&mp=%s", c.baseURL, url.QueryEscape(username)), nil
	}
	info, ok := models.Seasons[season]
	if !ok {
		return "", &UnknownSeasonError{Season: season}
	}
	return fmt.Sprintf("%s/?id=tst24&type=history&daterange=1&datel=%s&date=%s&mp=%s",
		c.baseURL, info.Start, info.End, url.QueryEscape(username)), nil
}

// FetchDocument downloads the raw leaderboard HTML for a scope.
func (c *Client) FetchDocument(ctx context.Context, scope models.Scope) ([]byte, error) {
	rankingsURL, err := c.RankingsURL(scope)
	if err != nil {
		return nil, err
	}
	return c.get(ctx, rankingsURL)
}

// ParseDocument normalizes a leaderboard document into rows. Zero parsed
// rows is a failure, not an empty result.
func (c *Client) ParseDocument(scope models.Scope, body []byte) ([]models.LeaderboardRow, error) {
	players, err := ParseLeaderboard(string(body))
	if err != nil {
		return nil, err
	}
	if len(players) == 0 {
		return nil, &EmptyTableError{Scope: scope.Key()}
	}
	return players, nil
}

// FetchLeaderboard downloads and parses one leaderboard document in a
// single step, for callers that do not go through the request coordinator.
func (c *Client) FetchLeaderboard(ctx context.Context, scope models.Scope) ([]models.LeaderboardRow, error) {
	body, err := c.FetchDocument(ctx, scope)
	if err != nil {
		return nil, err
	}
	return c.ParseDocument(scope, body)
}

// FetchPlayerHistory downloads the raw match list for one player and season.
// An empty or non-array payload is a valid "no matches" result.
func (c *Client) FetchPlayerHistory(ctx context.Context, username string, season models.Season) ([]models.MatchRecord, error) {
	historyURL, err := c.historyURL(username, season)
	if err != nil {
		return nil, err
	}

	body, err := c.get(ctx, historyURL)
	if err != nil {
		return nil, err
	}

	var matches []models.MatchRecord
	if err := json.Unmarshal(body, &matches); err != nil {
		// The feed occasionally answers with an object instead of the
		// usual array when a player has no history.
		return nil, nil
	}
	return matches, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: rawURL, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	return body, nil
}
