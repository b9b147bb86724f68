package sorting

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/37715/retrocycles-leaderboard/internal/models"
)

// Column identifies a sortable leaderboard column.
type Column string

const (
	ColumnRank         Column = "rank"
	ColumnName         Column = "name"
	ColumnElo          Column = "elo"
	ColumnLatestChange Column = "latestChange"
	ColumnLastActive   Column = "lastActive"
	ColumnMatches      Column = "matches"
	ColumnWinrate      Column = "winrate"
	ColumnAvgPlace     Column = "avgPlace"
	ColumnAvgScore     Column = "avgScore"
	ColumnHighScore    Column = "highScore"
	ColumnKD           Column = "kd"
)

type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// DefaultDirection is the direction a freshly selected column starts in:
// rank keeps the board's natural top-down order, names read alphabetically,
// every stat column leads with the best.
func DefaultDirection(col Column) Direction {
	if col == ColumnRank || col == ColumnName {
		return Ascending
	}
	return Descending
}

// Toggle implements repeated-click column sorting: the same column flips
// direction, a new column resets to its default direction.
func Toggle(current Column, dir Direction, next Column) (Column, Direction) {
	if current == next {
		if dir == Ascending {
			return next, Descending
		}
		return next, Ascending
	}
	return next, DefaultDirection(next)
}

// ParseColumn validates a column identifier, falling back to rank order.
func ParseColumn(s string) Column {
	switch Column(s) {
	case ColumnRank, ColumnName, ColumnElo, ColumnLatestChange, ColumnLastActive,
		ColumnMatches, ColumnWinrate, ColumnAvgPlace, ColumnAvgScore, ColumnHighScore, ColumnKD:
		return Column(s)
	}
	return ColumnRank
}

var relativeTimeRe = regexp.MustCompile(`(\d+)\s+(minute|hour|day)`)

// RelativeMinutes parses a relative-time label ("15 hours ago") into a
// monotonic minutes-ago value. Labels that do not parse sort as least
// recent.
func RelativeMinutes(label string) int {
	m := relativeTimeRe.FindStringSubmatch(strings.ToLower(label))
	if m == nil {
		return math.MaxInt
	}
	amount, err := strconv.Atoi(m[1])
	if err != nil {
		return math.MaxInt
	}
	switch m[2] {
	case "minute":
		return amount
	case "hour":
		return amount * 60
	default:
		return amount * 24 * 60
	}
}

// Sort orders rows by the given column and direction and recomputes the
// 1-based rank afterwards. The input is not mutated; ties keep their array
// order. The last-active column compares minutes-ago with the sense
// inverted so that "descending" means most recent first, consistent with
// every other stat column leading with the best value.
func Sort(rows []models.LeaderboardRow, col Column, dir Direction) []models.LeaderboardRow {
	sorted := make([]models.LeaderboardRow, len(rows))
	copy(sorted, rows)

	asc := dir == Ascending
	switch col {
	case ColumnName:
		sort.SliceStable(sorted, func(i, j int) bool {
			a, b := strings.ToLower(sorted[i].Name), strings.ToLower(sorted[j].Name)
			if asc {
				return a < b
			}
			return a > b
		})
	case ColumnLastActive:
		sort.SliceStable(sorted, func(i, j int) bool {
			a, b := RelativeMinutes(sorted[i].LastActive), RelativeMinutes(sorted[j].LastActive)
			if asc {
				return a > b
			}
			return a < b
		})
	default:
		key := numericKey(col)
		sort.SliceStable(sorted, func(i, j int) bool {
			a, b := key(sorted[i]), key(sorted[j])
			if asc {
				return a < b
			}
			return a > b
		})
	}

	for i := range sorted {
		sorted[i].Rank = i + 1
	}
	return sorted
}

func numericKey(col Column) func(models.LeaderboardRow) float64 {
	switch col {
	case ColumnElo:
		return func(r models.LeaderboardRow) float64 { return float64(r.Elo) }
	case ColumnLatestChange:
		return func(r models.LeaderboardRow) float64 { return float64(r.LatestChange) }
	case ColumnMatches:
		return func(r models.LeaderboardRow) float64 { return float64(r.Matches) }
	case ColumnWinrate:
		return func(r models.LeaderboardRow) float64 { return r.Winrate }
	case ColumnAvgPlace:
		return func(r models.LeaderboardRow) float64 { return r.AvgPlace }
	case ColumnAvgScore:
		return func(r models.LeaderboardRow) float64 { return float64(r.AvgScore) }
	case ColumnHighScore:
		return func(r models.LeaderboardRow) float64 { return float64(r.HighScore) }
	case ColumnKD:
		return func(r models.LeaderboardRow) float64 { return r.KD }
	default:
		return func(r models.LeaderboardRow) float64 { return float64(r.Rank) }
	}
}
