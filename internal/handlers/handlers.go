package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/37715/retrocycles-leaderboard/internal/coordinator"
	"github.com/37715/retrocycles-leaderboard/internal/history"
	"github.com/37715/retrocycles-leaderboard/internal/models"
	"github.com/37715/retrocycles-leaderboard/internal/rankings"
	"github.com/37715/retrocycles-leaderboard/internal/services"
	"github.com/37715/retrocycles-leaderboard/internal/sorting"
	"github.com/37715/retrocycles-leaderboard/internal/sumobar"
	"github.com/37715/retrocycles-leaderboard/pkg/cache"
)

type Handler struct {
	leaderboard *services.LeaderboardService
	profiles    *services.ProfileService
	charts      *services.ChartService
	history     *history.Client
	sumobar     *sumobar.Client
	edgeCache   *cache.RedisClient // nil when REDIS_URL is not configured
}

func NewHandler(
	lb *services.LeaderboardService,
	ps *services.ProfileService,
	cs *services.ChartService,
	hc *history.Client,
	sc *sumobar.Client,
	edge *cache.RedisClient,
) *Handler {
	return &Handler{
		leaderboard: lb,
		profiles:    ps,
		charts:      cs,
		history:     hc,
		sumobar:     sc,
		edgeCache:   edge,
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload := gin.H{
		"status":    "ok",
		"fetch":     h.leaderboard.State(),
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if h.edgeCache != nil {
		payload["redis"] = h.edgeCache.HealthCheck(ctx)
	}
	c.JSON(http.StatusOK, payload)
}

// GetLeaderboard serves one board view. Scope is season/region/mode; sort,
// dir and search shape the view without refetching.
func (h *Handler) GetLeaderboard(c *gin.Context) {
	start := time.Now()

	scope, ok := parseScope(c)
	if !ok {
		return
	}
	col := sorting.ParseColumn(c.DefaultQuery("sort", "rank"))
	dir := sorting.Direction(c.DefaultQuery("dir", string(sorting.DefaultDirection(col))))
	if dir != sorting.Ascending && dir != sorting.Descending {
		dir = sorting.DefaultDirection(col)
	}
	search := c.Query("search")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 45*time.Second)
	defer cancel()

	cacheKey := fmt.Sprintf("leaderboard:%s:%s:%s:%s", scope.Key(), col, dir, search)
	var cached gin.H
	if h.cacheGet(ctx, cacheKey, &cached) {
		log.Printf("[CACHE HIT] GetLeaderboard took %v", time.Since(start))
		c.JSON(http.StatusOK, cached)
		return
	}

	rows, err := h.leaderboard.View(ctx, scope, search, col, dir)
	if err != nil {
		h.renderFetchError(c, err)
		return
	}

	payload := gin.H{
		"scope": scope,
		"sort":  col,
		"dir":   dir,
		"rows":  rows,
		"count": len(rows),
	}
	h.cacheSet(ctx, cacheKey, payload, 5*time.Minute)

	log.Printf("[CACHE MISS] GetLeaderboard took %v", time.Since(start))
	c.JSON(http.StatusOK, payload)
}

// GetProfile serves one player's aggregated profile for a season.
func (h *Handler) GetProfile(c *gin.Context) {
	username := c.Param("username")
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}
	season, ok := parseSeason(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 45*time.Second)
	defer cancel()

	view, err := h.profiles.ProfileView(ctx, username, season)
	if err != nil {
		h.renderFetchError(c, err)
		return
	}

	elo := 0
	if view.Summary.LatestElo != nil {
		elo = *view.Summary.LatestElo
	}
	c.JSON(http.StatusOK, gin.H{
		"username": username,
		"season":   season,
		"profile":  view,
		"tier":     models.TierForElo(elo),
	})
}

// GetProfileCharts serves the rating line and region donut for one player.
func (h *Handler) GetProfileCharts(c *gin.Context) {
	username := c.Param("username")
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}
	season, ok := parseSeason(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 45*time.Second)
	defer cancel()

	playerCharts, err := h.charts.Charts(ctx, username, season)
	if err != nil {
		h.renderFetchError(c, err)
		return
	}
	c.JSON(http.StatusOK, playerCharts)
}

// GetMatches lists completed matches from the history backend.
func (h *Handler) GetMatches(c *gin.Context) {
	mode, ok := parseMode(c)
	if !ok {
		return
	}
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	items, err := h.history.Matches(ctx, mode, page)
	if err != nil {
		h.renderFetchError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"mode":    mode,
		"page":    page,
		"matches": items,
		"count":   len(items),
	})
}

// GetMatchDetail serves one match's team/player breakdown with per-player
// totals attached.
func (h *Handler) GetMatchDetail(c *gin.Context) {
	id := c.Param("id")
	mode, ok := parseMode(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	detail, err := h.history.MatchDetail(ctx, mode, id)
	if err != nil {
		h.renderFetchError(c, err)
		return
	}

	type playerLine struct {
		models.MatchDetailPlayer
		Totals history.PlayerTotals `json:"totals"`
	}
	type teamLine struct {
		TeamName string       `json:"teamName,omitempty"`
		Score    int          `json:"score"`
		Players  []playerLine `json:"players"`
	}

	teams := make([]teamLine, 0, len(detail.Teams))
	for _, team := range detail.Teams {
		line := teamLine{TeamName: team.TeamName, Score: team.Score}
		for _, player := range team.Players {
			line.Players = append(line.Players, playerLine{
				MatchDetailPlayer: player,
				Totals:            history.Totals(player),
			})
		}
		teams = append(teams, line)
	}

	c.JSON(http.StatusOK, gin.H{"id": detail.ID, "teams": teams})
}

// GetSumobarLeaderboard proxies the sumobar standings with placement-rate
// normalization applied.
func (h *Handler) GetSumobarLeaderboard(c *gin.Context) {
	q := sumobar.LeaderboardQuery{
		Limit:      intQuery(c, "limit", 50),
		Offset:     intQuery(c, "offset", 0),
		MinMatches: intQuery(c, "min_matches", 1),
		Region:     models.Region(c.DefaultQuery("region", string(models.RegionCombined))),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	resp, err := h.sumobar.Leaderboard(ctx, q)
	if err != nil {
		h.renderFetchError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetSumobarMatches proxies the sumobar recent-matches feed.
func (h *Handler) GetSumobarMatches(c *gin.Context) {
	q := sumobar.MatchesQuery{
		Limit:  intQuery(c, "limit", 10),
		Offset: intQuery(c, "offset", 0),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	resp, err := h.sumobar.Matches(ctx, q)
	if err != nil {
		h.renderFetchError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetSeasons lists the selectable seasons, newest first, plus the rolling
// weekly board.
func (h *Handler) GetSeasons(c *gin.Context) {
	ordered := []models.Season{models.Season2026, models.Season2025, models.Season2024, models.Season2023}

	seasons := make([]gin.H, 0, len(ordered)+1)
	for _, season := range ordered {
		info := models.Seasons[season]
		seasons = append(seasons, gin.H{
			"id":    season,
			"label": info.Label,
			"start": info.Start,
			"end":   info.End,
		})
	}
	seasons = append(seasons, gin.H{
		"id":    models.SeasonWeekly,
		"label": "This Week",
	})

	c.JSON(http.StatusOK, gin.H{"seasons": seasons, "count": len(seasons)})
}

// renderFetchError maps service errors onto HTTP statuses: typed not-found
// to 404, timeouts to 504, upstream fetch failures to 502, bad scopes to
// 400, everything else to 500.
func (h *Handler) renderFetchError(c *gin.Context, err error) {
	log.Printf("[ERROR] %s failed: %v", c.FullPath(), err)

	var notFound *history.MatchNotFoundError
	if errors.As(err, &notFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error(), "id": notFound.ID})
		return
	}

	var unknownSeason *rankings.UnknownSeasonError
	if errors.As(err, &unknownSeason) {
		c.JSON(http.StatusBadRequest, gin.H{"error": unknownSeason.Error()})
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"error":   "Request timeout",
			"message": "The upstream source took too long to answer. Try again shortly.",
		})
		return
	}

	if errors.Is(err, coordinator.ErrSuperseded) {
		// A newer request for the same board won; this response would
		// carry stale data anyway.
		c.JSON(http.StatusConflict, gin.H{"error": "superseded by a newer request"})
		return
	}

	var emptyTable *rankings.EmptyTableError
	var rankingsErr *rankings.FetchError
	var historyErr *history.FetchError
	var sumobarErr *sumobar.FetchError
	if errors.As(err, &emptyTable) || errors.As(err, &rankingsErr) ||
		errors.As(err, &historyErr) || errors.As(err, &sumobarErr) {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "failed to load data from the upstream source",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func parseScope(c *gin.Context) (models.Scope, bool) {
	season, ok := parseSeason(c)
	if !ok {
		return models.Scope{}, false
	}

	region := models.Region(c.DefaultQuery("region", string(models.RegionCombined)))
	switch region {
	case models.RegionCombined, models.RegionUS, models.RegionEU:
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    "invalid region",
			"provided": region,
			"valid":    []models.Region{models.RegionCombined, models.RegionUS, models.RegionEU},
		})
		return models.Scope{}, false
	}

	mode, ok := parseMode(c)
	if !ok {
		return models.Scope{}, false
	}

	return models.Scope{Season: season, Region: region, Mode: mode}, true
}

func parseSeason(c *gin.Context) (models.Season, bool) {
	season := models.Season(c.DefaultQuery("season", string(models.Season2026)))
	if season == models.SeasonWeekly {
		return season, true
	}
	if _, ok := models.Seasons[season]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    "invalid season",
			"provided": season,
		})
		return "", false
	}
	return season, true
}

func parseMode(c *gin.Context) (models.Mode, bool) {
	mode := models.Mode(c.DefaultQuery("mode", string(models.ModeTST)))
	switch mode {
	case models.ModeTST, models.ModeSBT:
		return mode, true
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"error":    "invalid mode",
		"provided": mode,
		"valid":    []models.Mode{models.ModeTST, models.ModeSBT},
	})
	return "", false
}

func intQuery(c *gin.Context, key string, fallback int) int {
	value, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(fallback)))
	if err != nil {
		return fallback
	}
	return value
}

// cacheGet reads through the optional edge cache; a nil cache is a miss.
func (h *Handler) cacheGet(ctx context.Context, key string, dest any) bool {
	if h.edgeCache == nil {
		return false
	}
	return h.edgeCache.Get(ctx, key, dest) == nil
}

func (h *Handler) cacheSet(ctx context.Context, key string, value any, ttl time.Duration) {
	if h.edgeCache == nil {
		return
	}
	if err := h.edgeCache.Set(ctx, key, value, ttl); err != nil {
		log.Printf("Warning: Failed to cache %s: %v", key, err)
	}
}
