// Package history talks to the completed-match backend, which serves JSON
// list and detail payloads per game mode.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/37715/retrocycles-leaderboard/internal/models"
)

// MatchNotFoundError indicates the backend had no match under the given id.
type MatchNotFoundError struct {
	ID string
}

func (e *MatchNotFoundError) Error() string {
	return fmt.Sprintf("match %q not found", e.ID)
}

// FetchError wraps a network failure or non-2xx response from the history
// backend.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("match history request failed (%s): %v", e.URL, e.Err)
	}
	return fmt.Sprintf("match history request failed (%s): status %d", e.URL, e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// listItem tolerates the backend's two id spellings and two duration keys.
type listItem struct {
	ID               string   `json:"id"`
	MatchID          string   `json:"matchId"`
	Date             string   `json:"date"`
	RoundCount       int      `json:"roundCount"`
	TotalTime        *float64 `json:"totalTime"`
	TotalTimeSeconds *float64 `json:"totalTimeSeconds"`
	Winner           string   `json:"winner"`
}

// Matches lists completed matches for a mode, newest first as served by the
// backend. A non-array payload is treated as an empty page.
func (c *Client) Matches(ctx context.Context, mode models.Mode, page int) ([]models.MatchHistoryListItem, error) {
	listURL := fmt.Sprintf("%s/%s", c.baseURL, mode)
	if page > 0 {
		listURL += fmt.Sprintf("?page=%d", page)
	}

	body, err := c.get(ctx, listURL)
	if err != nil {
		return nil, err
	}

	var raw []listItem
	if err := json.Unmarshal(body, &raw); err != nil {
		return []models.MatchHistoryListItem{}, nil
	}

	items := make([]models.MatchHistoryListItem, 0, len(raw))
	for _, r := range raw {
		id := r.ID
		if id == "" {
			id = r.MatchID
		}
		item := models.MatchHistoryListItem{
			ID:         id,
			Date:       r.Date,
			RoundCount: r.RoundCount,
			Winner:     r.Winner,
		}
		switch {
		case r.TotalTime != nil:
			item.TotalTimeSeconds = *r.TotalTime
		case r.TotalTimeSeconds != nil:
			item.TotalTimeSeconds = *r.TotalTimeSeconds
		}
		items = append(items, item)
	}
	return items, nil
}

// MatchDetail fetches one match's team/player/round breakdown. An empty or
// non-object payload maps to MatchNotFoundError.
func (c *Client) MatchDetail(ctx context.Context, mode models.Mode, id string) (models.MatchDetail, error) {
	detailURL := fmt.Sprintf("%s/%s?id=%s", c.baseURL, mode, url.QueryEscape(id))

	body, err := c.get(ctx, detailURL)
	if err != nil {
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) && fetchErr.Status == http.StatusNotFound {
			return models.MatchDetail{}, &MatchNotFoundError{ID: id}
		}
		return models.MatchDetail{}, err
	}

	var detail models.MatchDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return models.MatchDetail{}, &MatchNotFoundError{ID: id}
	}
	if len(detail.Teams) == 0 {
		return models.MatchDetail{}, &MatchNotFoundError{ID: id}
	}
	if detail.ID == "" {
		detail.ID = id
	}
	return detail, nil
}

// PlayerTotals is a player's match-wide aggregate over their per-round
// positions.
type PlayerTotals struct {
	Kills  int    `json:"kills"`
	Deaths int    `json:"deaths"`
	Score  int    `json:"score"`
	KD     string `json:"kd"`
}

// Totals sums a player's rounds. Score weights a kill at 30 points and adds
// hole points on top, matching how the game itself scores a round.
func Totals(player models.MatchDetailPlayer) PlayerTotals {
	var t PlayerTotals
	for _, pos := range player.Positions {
		t.Kills += pos.Kills
		t.Deaths += pos.Deaths
		t.Score += pos.Kills*30 + pos.HolePoints
	}
	t.KD = models.FormatKD(t.Kills, t.Deaths)
	return t
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
