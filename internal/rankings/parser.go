package rankings

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/37715/retrocycles-leaderboard/internal/models"
)

// Domain defaults used when a numeric cell fails to parse. The source is
// known to contain formatting noise; a best-effort value beats a dropped row.
const (
	defaultElo       = 1500
	defaultAvgPlace  = 2.5
	defaultAvgScore  = 400
	defaultHighScore = 600
	defaultKD        = 1.0
)

// EmptyTableError indicates an ostensibly successful response yielded zero
// rows. A silently empty table is indistinguishable from a broken one, so it
// is treated like a fetch failure.
type EmptyTableError struct {
	Scope string
}

func (e *EmptyTableError) Error() string {
	return fmt.Sprintf("no players found in rankings table (%s)", e.Scope)
}

var (
	outOfRe      = regexp.MustCompile(`(?i)out of (\d+)`)
	lastActiveRe = regexp.MustCompile(`\d+\s+(.+)`)
)

// ParseLeaderboard extracts normalized player rows from one rankings HTML
// document. Row 0 is the header; rows with fewer than 3 cells are ad/filler
// rows. The table ships in two shapes: 11 columns with an explicit "played"
// column, and 10 without. The shape is detected by cell count, never assumed.
func ParseLeaderboard(html string) ([]models.LeaderboardRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rankings document: %w", err)
	}

	var players []models.LeaderboardRow
	doc.Find("table tr").Each(func(index int, row *goquery.Selection) {
		if index == 0 {
			return
		}
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}

		text := func(i int) string { return strings.TrimSpace(cells.Eq(i).Text()) }

		name := text(1)
		if name == "" {
			return
		}

		rank := parseIntDefault(text(0), index)
		elo := parseIntDefault(text(2), defaultElo)
		latestChange := parseIntDefault(text(3), 0)
		lastActive := parseLastActive(text(4))

		// Columns: # | Username | Rating | Latest change | Change date |
		// Matches W/L | [Played] | Avg place | Avg score | High score | K/D
		hasPlayedColumn := cells.Length() >= 11

		dist := extractPlacement(cells.Eq(5))
		matches := dist.Matches
		winrate := dist.Pos1 / 100

		var wins, losses int
		if matches > 0 && winrate > 0 {
			wins = int(math.Round(float64(matches) * winrate))
			losses = matches - wins
		}

		var avgPlace, kd float64
		var avgScore, highScore int
		if hasPlayedColumn {
			if matches == 0 {
				matches = parseIntDefault(text(6), 0)
			}
			avgPlace = parseFloatDefault(text(7), defaultAvgPlace)
			avgScore = parseIntDefault(text(8), defaultAvgScore)
			highScore = parseIntDefault(text(9), defaultHighScore)
			kd = parseFloatDefault(text(10), defaultKD)
		} else {
			avgPlace = parseFloatDefault(text(6), defaultAvgPlace)
			avgScore = parseIntDefault(text(7), defaultAvgScore)
			highScore = parseIntDefault(text(8), defaultHighScore)
			kd = parseFloatDefault(text(9), defaultKD)
		}

		players = append(players, models.LeaderboardRow{
			Rank:         rank,
			Name:         name,
			Elo:          elo,
			LatestChange: latestChange,
			LastActive:   lastActive,
			Matches:      matches,
			Wins:         wins,
			Losses:       losses,
			Winrate:      winrate,
			AvgPlace:     avgPlace,
			AvgScore:     avgScore,
			HighScore:    highScore,
			KD:           kd,
			Pos1Rate:     dist.Pos1,
			Pos2Rate:     dist.Pos2,
			Pos3Rate:     dist.Pos3,
			Pos4Rate:     dist.Pos4,
		})
	})

	return players, nil
}

// Placement is the per-finish-position distribution recovered from the
// progress-bar widgets of a "Matches W/L" cell.
type Placement struct {
	Pos1    float64
	Pos2    float64
	Pos3    float64
	Pos4    float64
	Matches int
}

// extractPlacement reads the labeled progress bars. The first bar's
// aria-valuenow is always the 1st-place rate; later bars carry titles like
// "2nd: 8 out of 47" whose ordinal selects the slot and whose total seeds
// the match count. 4th place is never read directly; it is the remainder,
// so measurement noise in the first three bars lands in the 4th bucket.
func extractPlacement(cell *goquery.Selection) Placement {
	var p Placement
	cell.Find(".progress-bar").Each(func(i int, bar *goquery.Selection) {
		value := parseFloatDefault(bar.AttrOr("aria-valuenow", ""), 0)
		if i == 0 {
			p.Pos1 = value
		}

		title := bar.AttrOr("title", "")
		if m := outOfRe.FindStringSubmatch(title); m != nil && p.Matches == 0 {
			p.Matches = parseIntDefault(m[1], 0)
		}

		lower := strings.ToLower(title)
		switch {
		case strings.HasPrefix(lower, "2nd"):
			p.Pos2 = value
		case strings.HasPrefix(lower, "3rd"):
			p.Pos3 = value
		}
	})

	p.Pos4 = math.Max(0, 100-p.Pos1-p.Pos2-p.Pos3)
	return p
}

// parseLastActive strips the leading counter from a change-date cell, e.g.
// "54265 15 hours ago" -> "15 hours ago".
func parseLastActive(text string) string {
	if text == "" {
		return "Unknown"
	}
	if m := lastActiveRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}

func parseIntDefault(s string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return v
}

func parseFloatDefault(s string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fallback
	}
	return v
}
