package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/37715/retrocycles-leaderboard/internal/models"
	"github.com/37715/retrocycles-leaderboard/internal/rankings"
)

// ProfileService aggregates one player's raw match records into the profile
// view: summary cards, the sortable match table and the chart breakdowns.
type ProfileService struct {
	rankings    *rankings.Client
	leaderboard *LeaderboardService
}

func NewProfileService(rc *rankings.Client, ls *LeaderboardService) *ProfileService {
	return &ProfileService{rankings: rc, leaderboard: ls}
}

// ProfileView builds the full profile payload for one player and season.
// The leaderboard-rank lookup runs best effort: a failed combined-board
// fetch degrades to an unranked profile instead of failing the whole view.
func (s *ProfileService) ProfileView(ctx context.Context, username string, season models.Season) (models.ProfileView, error) {
	matches, err := s.rankings.FetchPlayerHistory(ctx, username, season)
	if err != nil {
		return models.ProfileView{}, fmt.Errorf("failed to load profile for %q: %w", username, err)
	}

	view := aggregateProfile(username, matches)
	view.LeaderboardRank = s.leaderboardRank(ctx, username, season)
	return view, nil
}

// aggregateProfile folds raw match records into rows, summary and
// breakdowns. Matches where the player has no entry line contribute nothing.
func aggregateProfile(username string, matches []models.MatchRecord) models.ProfileView {
	view := models.ProfileView{
		Rows: []models.ProfileRow{},
		Summary: models.ProfileSummary{
			AvgKD:        "0.00",
			AvgAlive:     "—",
			RageQuit:     "—",
			RageLevel:    "unknown",
			LatestOnline: "—",
		},
		Teammates: []models.CategoryCount{},
		Regions:   []models.CategoryCount{},
	}
	if len(matches) == 0 {
		return view
	}

	var (
		totalKills, totalDeaths      int
		totalScore                   float64
		totalAlive, totalPlayed      float64
		aliveCount, playedCount      int
		matchCount, wins             int
		teammateCounts, regionCounts = map[string]int{}, map[string]int{}
	)

	for index, match := range matches {
		entry := findEntry(match.Players, username)
		if entry == nil {
			continue
		}

		var kills, deaths int
		if entry.KD != nil && entry.KD.Present {
			kills, deaths = entry.KD.Kills, entry.KD.Deaths
		}
		score := 0.0
		if entry.Score != nil {
			score = *entry.Score
		}

		// K/D accumulates raw kills and deaths and divides once at the
		// end. Averaging per-match ratios would blow up on zero-death
		// matches and over-weight them.
		totalKills += kills
		totalDeaths += deaths
		totalScore += score
		if entry.Alive != nil {
			totalAlive += *entry.Alive
			aliveCount++
		}
		if entry.Played != nil {
			totalPlayed += *entry.Played
			playedCount++
		}
		matchCount++
		if entry.Place != nil && *entry.Place == 1 {
			wins++
		}

		var mates []string
		for _, p := range match.Players {
			if p.Player == username {
				continue
			}
			if entry.Team != nil && p.Team != nil && *p.Team == *entry.Team {
				mates = append(mates, p.Player)
				teammateCounts[p.Player]++
			}
		}
		teammates := strings.Join(mates, ", ")
		if teammates == "" {
			teammates = "—"
		}

		region := match.Region
		if region == "" {
			region = "unknown"
		}
		regionCounts[strings.ToLower(region)]++

		view.Rows = append(view.Rows, buildProfileRow(match, entry, index, kills, deaths, score, teammates))
	}

	if matchCount == 0 {
		return view
	}

	// Default order: most recent first.
	sort.SliceStable(view.Rows, func(i, j int) bool {
		return view.Rows[i].DateRaw > view.Rows[j].DateRaw
	})

	summary := &view.Summary
	summary.Matches = matchCount
	summary.AvgKD = models.FormatKD(totalKills, totalDeaths)
	summary.AvgScore = int(math.Round(totalScore / float64(matchCount)))
	if aliveCount > 0 {
		summary.AvgAlive = formatPercent(totalAlive / float64(aliveCount))
	}
	summary.WinRate = int(math.Round(float64(wins) / float64(matchCount) * 100))

	// The rage-quit rate deliberately conflates leaving early with
	// disconnecting: it is 100 minus the mean played ratio, clamped at 0.
	if playedCount > 0 {
		avgPlayed := totalPlayed / float64(playedCount)
		rage := math.Max(0, 100-avgPlayed*100)
		summary.RageQuit = fmt.Sprintf("%.1f%%", rage)
		summary.RageLevel = rageLevel(rage)
	}

	if latest := latestMatch(matches); latest != nil {
		if entry := findEntry(latest.Players, username); entry != nil {
			rating := entry.ExitRating
			if rating == nil {
				rating = entry.EntryRating
			}
			if rating != nil {
				elo := int(math.Round(*rating))
				summary.LatestElo = &elo
			}
		}
		if ts, ok := latest.Timestamp(); ok {
			summary.LatestOnline = formatMatchTimestamp(ts)
		}
	}

	view.Teammates = sortedCounts(teammateCounts)
	view.Regions = sortedCounts(regionCounts)
	return view
}

func buildProfileRow(match models.MatchRecord, entry *models.PlayerEntry, index, kills, deaths int, score float64, teammates string) models.ProfileRow {
	row := models.ProfileRow{
		ID:              match.ID,
		Teammates:       teammates,
		ExitRating:      "—",
		Change:          "—",
		TeamPlace:       "—",
		IndividualPlace: "—",
		Played:          formatOptionalPercent(entry.Played),
		Alive:           formatOptionalPercent(entry.Alive),
		Score:           int(math.Round(score)),
		KD:              models.FormatKD(kills, deaths),
		KDValue:         kdValue(kills, deaths),
	}
	if row.ID == "" {
		label := match.Name
		if label == "" {
			label = match.Date
		}
		if label == "" {
			label = "match"
		}
		row.ID = fmt.Sprintf("%s-%d", label, index)
	}

	if ts, ok := match.Timestamp(); ok {
		row.DateRaw = ts.UnixMilli()
		row.Date = formatMatchTimestamp(ts)
	} else {
		row.Date = "unknown time"
	}

	if entry.ExitRating != nil {
		row.ExitRating = fmt.Sprintf("%d", int(math.Round(*entry.ExitRating)))
		row.ExitValue = *entry.ExitRating
	}
	if entry.EntryRating != nil && entry.ExitRating != nil {
		delta := int(math.Round(*entry.ExitRating - *entry.EntryRating))
		if delta > 0 {
			row.Change = fmt.Sprintf("+%d", delta)
		} else {
			row.Change = fmt.Sprintf("%d", delta)
		}
		row.ChangeValue = float64(delta)
	}
	if entry.Place != nil {
		row.TeamPlace = fmt.Sprintf("%d", *entry.Place)
		row.TeamPlaceValue = float64(*entry.Place)
	}
	if place := individualPlace(match.Players, entry.Player); place > 0 {
		row.IndividualPlace = fmt.Sprintf("%d", place)
		row.IndvPlaceValue = float64(place)
	}
	if entry.Played != nil {
		row.PlayedValue = *entry.Played
	}
	if entry.Alive != nil {
		row.AliveValue = *entry.Alive
	}
	return row
}

// individualPlace ranks every player in the match by score, highest first,
// and returns this player's 1-based position. Zero means not found.
func individualPlace(players []models.PlayerEntry, name string) int {
	sorted := make([]models.PlayerEntry, len(players))
	copy(sorted, players)
	sort.SliceStable(sorted, func(i, j int) bool {
		return scoreOf(sorted[i]) > scoreOf(sorted[j])
	})
	for i, p := range sorted {
		if p.Player == name {
			return i + 1
		}
	}
	return 0
}

func scoreOf(p models.PlayerEntry) float64 {
	if p.Score == nil {
		return 0
	}
	return *p.Score
}

func findEntry(players []models.PlayerEntry, username string) *models.PlayerEntry {
	for i := range players {
		if players[i].Player == username {
			return &players[i]
		}
	}
	return nil
}

func latestMatch(matches []models.MatchRecord) *models.MatchRecord {
	var latest *models.MatchRecord
	var latestTime time.Time
	for i := range matches {
		ts, ok := matches[i].Timestamp()
		if !ok {
			continue
		}
		if latest == nil || ts.After(latestTime) {
			latest = &matches[i]
			latestTime = ts
		}
	}
	if latest == nil && len(matches) > 0 {
		return &matches[0]
	}
	return latest
}

func rageLevel(rage float64) string {
	switch {
	case rage > 7:
		return "high"
	case rage > 2:
		return "mid"
	default:
		return "low"
	}
}

// leaderboardRank scans the combined board for the player, case-insensitive.
// Any failure degrades to nil: an unranked badge, never an error page.
func (s *ProfileService) leaderboardRank(ctx context.Context, username string, season models.Season) *int {
	scope := models.Scope{Season: season, Region: models.RegionCombined, Mode: models.ModeTST}
	rows, err := s.leaderboard.Rows(ctx, scope)
	if err != nil {
		log.Printf("[DEBUG] leaderboard rank lookup failed for %s: %v", username, err)
		return nil
	}
	lower := strings.ToLower(username)
	for _, row := range rows {
		if strings.ToLower(row.Name) == lower {
			rank := row.Rank
			return &rank
		}
	}
	return nil
}

// formatPercent renders a ratio or percentage with one decimal. Values at or
// below 1 are treated as fractions.
func formatPercent(value float64) string {
	percent := value
	if percent <= 1 {
		percent *= 100
	}
	return fmt.Sprintf("%.1f%%", percent)
}

func formatOptionalPercent(value *float64) string {
	if value == nil {
		return "—"
	}
	return formatPercent(*value)
}

func formatMatchTimestamp(ts time.Time) string {
	return strings.ToLower(ts.Format("Jan 02, 2006, 03:04 pm"))
}

func kdValue(kills, deaths int) float64 {
	if deaths == 0 {
		return float64(kills)
	}
	return float64(kills) / float64(deaths)
}

func sortedCounts(counts map[string]int) []models.CategoryCount {
	entries := make([]models.CategoryCount, 0, len(counts))
	for name, count := range counts {
		entries = append(entries, models.CategoryCount{Name: name, Count: count})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Name < entries[j].Name
	})
	return entries
}
