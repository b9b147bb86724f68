package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type Season string

const (
	Season2023   Season = "2023"
	Season2024   Season = "2024"
	Season2025   Season = "2025"
	Season2026   Season = "2026"
	SeasonWeekly Season = "weekly"
)

type Region string

const (
	RegionCombined Region = "combined"
	RegionUS       Region = "us"
	RegionEU       Region = "eu"
)

type Mode string

const (
	ModeTST Mode = "tst"
	ModeSBT Mode = "sbt"
)

// SeasonInfo describes one yearly season window and the upstream id it maps to.
type SeasonInfo struct {
	Start string `json:"start"`
	End   string `json:"end"`
	APIID string `json:"apiId"`
	Label string `json:"label"`
}

// Seasons is the canonical season table. The upstream source split its data
// set between two ids: current-season rankings live under "tst", archived
// seasons under "tst24".
var Seasons = map[Season]SeasonInfo{
	Season2026: {Start: "2026-01-01", End: "2026-12-31", APIID: "tst", Label: "Season 4 (2026)"},
	Season2025: {Start: "2025-01-01", End: "2025-12-31", APIID: "tst24", Label: "Season 3 (2025)"},
	Season2024: {Start: "2024-01-01", End: "2024-12-31", APIID: "tst24", Label: "Season 2 (2024)"},
	Season2023: {Start: "2023-01-01", End: "2023-12-31", APIID: "tst24", Label: "Season 1 (2023)"},
}

// Scope identifies one leaderboard view: a season (or the rolling weekly
// window), a region and a game mode.
type Scope struct {
	Season Season `json:"season"`
	Region Region `json:"region"`
	Mode   Mode   `json:"mode"`
}

// Key is the cache key for this scope.
func (s Scope) Key() string {
	return fmt.Sprintf("%s-%s-%s", s.Season, s.Region, s.Mode)
}

// LeaderboardRow is one player's standing for a given scope. Rank is a view
// artifact recomputed after every sort/filter; Name is the stable key and is
// compared case-insensitively for lookups.
type LeaderboardRow struct {
	Rank         int     `json:"rank"`
	Name         string  `json:"name"`
	Elo          int     `json:"elo"`
	LatestChange int     `json:"latestChange"`
	LastActive   string  `json:"lastActive"`
	Matches      int     `json:"matches"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	Winrate      float64 `json:"winrate"`
	AvgPlace     float64 `json:"avgPlace"`
	AvgScore     int     `json:"avgScore"`
	HighScore    int     `json:"highScore"`
	KD           float64 `json:"kd"`
	Pos1Rate     float64 `json:"pos1Rate"`
	Pos2Rate     float64 `json:"pos2Rate"`
	Pos3Rate     float64 `json:"pos3Rate"`
	Pos4Rate     float64 `json:"pos4Rate"`
}

// KDPair is the upstream "[kills, deaths]" array. A match entry without kd
// data must be excluded from ratio math, so absence is tracked explicitly
// instead of decoding to 0/0.
type KDPair struct {
	Kills   int
	Deaths  int
	Present bool
}

func (k *KDPair) UnmarshalJSON(data []byte) error {
	var values []float64
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	if len(values) < 2 {
		*k = KDPair{}
		return nil
	}
	*k = KDPair{Kills: int(values[0]), Deaths: int(values[1]), Present: true}
	return nil
}

// PlayerEntry is one player's line inside a raw MatchRecord. Optional
// upstream fields stay pointers so "missing" never collapses into zero.
type PlayerEntry struct {
	Player      string   `json:"player"`
	Team        *int     `json:"team"`
	Place       *int     `json:"place"`
	Score       *float64 `json:"score"`
	Alive       *float64 `json:"alive"`
	Played      *float64 `json:"played"`
	EntryRating *float64 `json:"entryRating"`
	ExitRating  *float64 `json:"exitRating"`
	KD          *KDPair  `json:"kd"`
}

// MatchRecord is one raw match from the rankings history feed. The upstream
// source stores the match timestamp in Name on newer payloads and Date on
// older ones.
type MatchRecord struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Date    string        `json:"date"`
	Region  string        `json:"region"`
	Players []PlayerEntry `json:"players"`
}

// Timestamp parses the match time from whichever field carries it.
func (m MatchRecord) Timestamp() (time.Time, bool) {
	for _, raw := range []string{m.Name, m.Date} {
		if raw == "" {
			continue
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// ProfileSummary is the derived aggregate over a player's matches for one
// season. String fields keep the display conventions of the source site:
// "kills.00" when deaths is zero, em dash when there is no data at all.
type ProfileSummary struct {
	Matches      int    `json:"matches"`
	AvgKD        string `json:"avgKd"`
	AvgScore     int    `json:"avgScore"`
	AvgAlive     string `json:"avgAlive"`
	WinRate      int    `json:"winRate"`
	RageQuit     string `json:"rageQuit"`
	RageLevel    string `json:"rageLevel"`
	LatestElo    *int   `json:"latestElo"`
	LatestOnline string `json:"latestOnline"`
}

// ProfileRow is one row of a player's match-history table. Display strings
// carry the placeholders; the *Value fields are the numeric sort keys and
// stay out of the JSON payload.
type ProfileRow struct {
	ID              string `json:"id"`
	DateRaw         int64  `json:"dateRaw"`
	Date            string `json:"date"`
	Teammates       string `json:"teammates"`
	ExitRating      string `json:"exitRating"`
	Change          string `json:"change"`
	TeamPlace       string `json:"teamPlace"`
	IndividualPlace string `json:"individualPlace"`
	Played          string `json:"played"`
	Alive           string `json:"alive"`
	Score           int    `json:"score"`
	KD              string `json:"kd"`

	ExitValue      float64 `json:"-"`
	ChangeValue    float64 `json:"-"`
	TeamPlaceValue float64 `json:"-"`
	IndvPlaceValue float64 `json:"-"`
	PlayedValue    float64 `json:"-"`
	AliveValue     float64 `json:"-"`
	KDValue        float64 `json:"-"`
}

// CategoryCount is one entry of a categorical breakdown (teammates, regions).
type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ProfileView is the full per-player payload: sortable rows, the summary
// cards, the player's combined-leaderboard rank (nil when unranked) and the
// breakdowns that feed the charts.
type ProfileView struct {
	Rows            []ProfileRow    `json:"rows"`
	Summary         ProfileSummary  `json:"summary"`
	LeaderboardRank *int            `json:"leaderboardRank"`
	Teammates       []CategoryCount `json:"teammates"`
	Regions         []CategoryCount `json:"regions"`
}

// MatchHistoryListItem is one completed match from the history backend.
type MatchHistoryListItem struct {
	ID               string  `json:"id"`
	Date             string  `json:"date,omitempty"`
	RoundCount       int     `json:"roundCount,omitempty"`
	TotalTimeSeconds float64 `json:"totalTimeSeconds,omitempty"`
	Winner           string  `json:"winner,omitempty"`
}

type MatchPosition struct {
	Kills      int `json:"kills"`
	Deaths     int `json:"deaths"`
	HolePoints int `json:"holePoints"`
}

type MatchDetailPlayer struct {
	Nickname  string          `json:"nickname,omitempty"`
	Username  string          `json:"username,omitempty"`
	Positions []MatchPosition `json:"positions,omitempty"`
}

type MatchDetailTeam struct {
	TeamName string              `json:"teamName,omitempty"`
	Score    int                 `json:"score,omitempty"`
	Players  []MatchDetailPlayer `json:"players,omitempty"`
}

// MatchDetail is the per-match breakdown from the history backend.
type MatchDetail struct {
	ID    string            `json:"id,omitempty"`
	Teams []MatchDetailTeam `json:"teams"`
}

// FormatKD renders a kill/death ratio for display. With zero deaths the
// ratio is undefined, so the convention is "kills.00" when any kills exist
// and "0.00" otherwise.
func FormatKD(kills, deaths int) string {
	if deaths == 0 {
		if kills > 0 {
			return fmt.Sprintf("%d.00", kills)
		}
		return "0.00"
	}
	return fmt.Sprintf("%.2f", float64(kills)/float64(deaths))
}

// RankTier is the display tier a rating maps to.
type RankTier struct {
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Class string `json:"class"`
}

// TierForElo maps a rating to its display tier.
func TierForElo(elo int) RankTier {
	switch {
	case elo < 1400:
		return RankTier{Name: "bronze", Icon: "/images/ranks/bronze.svg", Class: "rank-bronze"}
	case elo < 1600:
		return RankTier{Name: "silver", Icon: "/images/ranks/silver.svg", Class: "rank-silver"}
	case elo < 1900:
		return RankTier{Name: "gold", Icon: "/images/ranks/gold.svg", Class: "rank-gold"}
	case elo < 2100:
		return RankTier{Name: "platinum", Icon: "/images/ranks/platinum.svg", Class: "rank-platinum"}
	case elo < 2200:
		return RankTier{Name: "diamond", Icon: "/images/ranks/diamond-amethyst-9.svg", Class: "rank-diamond"}
	case elo < 2300:
		return RankTier{Name: "master", Icon: "/images/ranks/master.svg", Class: "rank-master"}
	case elo < 2400:
		return RankTier{Name: "grandmaster", Icon: "/images/ranks/grandmaster.svg", Class: "rank-grandmaster"}
	default:
		return RankTier{Name: "legend", Icon: "/images/ranks/legend.png", Class: "rank-legend"}
	}
}
