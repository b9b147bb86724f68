package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/37715/retrocycles-leaderboard/internal/config"
	"github.com/37715/retrocycles-leaderboard/internal/coordinator"
	"github.com/37715/retrocycles-leaderboard/internal/handlers"
	"github.com/37715/retrocycles-leaderboard/internal/history"
	"github.com/37715/retrocycles-leaderboard/internal/rankings"
	"github.com/37715/retrocycles-leaderboard/internal/services"
	"github.com/37715/retrocycles-leaderboard/internal/sumobar"
	"github.com/37715/retrocycles-leaderboard/pkg/cache"
)

// ============================================================================
// RATE LIMITER
// ============================================================================
type IPRateLimiter struct {
	ips map[string]*rate.Limiter
	mu  *sync.RWMutex
	r   rate.Limit
	b   int
}

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		ips: make(map[string]*rate.Limiter),
		mu:  &sync.RWMutex{},
		r:   r,
		b:   b,
	}
}

func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	limiter, exists := i.ips[ip]
	if !exists {
		limiter = rate.NewLimiter(i.r, i.b)
		i.ips[ip] = limiter
	}
	return limiter
}

func rateLimitMiddleware(limiter *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		l := limiter.GetLimiter(ip)

		if !l.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded. Please try again later.",
				"retry_after": "60s",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// ============================================================================
// SECURITY HEADERS
// ============================================================================
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// ============================================================================
// CORS MIDDLEWARE
// ============================================================================
func corsMiddleware(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if allowedOrigin == "*" || origin == allowedOrigin {
			c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			c.Writer.Header().Set("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Optional Redis edge cache
	var redisCache *cache.RedisClient
	if cfg.RedisURL != "" {
		redisCache, err = cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Printf("Warning: Redis unavailable, continuing without edge cache: %v", err)
			redisCache = nil
		}
	}

	// 3. Upstream clients
	rankingsClient := rankings.NewClient(cfg.RankingsBaseURL)
	historyClient := history.NewClient(cfg.HistoryBaseURL)
	sumobarClient := sumobar.NewClient(cfg.SumobarBaseURL, cfg.SumobarAPIToken)

	// 4. Engine: coordinator and services
	coord := coordinator.New(rankingsClient)
	leaderboardService := services.NewLeaderboardService(coord)
	profileService := services.NewProfileService(rankingsClient, leaderboardService)
	chartService := services.NewChartService(profileService)

	// 5. Setup Gin
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	if proxies := cfg.TrustedProxyList(); proxies != nil {
		if err := router.SetTrustedProxies(proxies); err != nil {
			log.Fatalf("Failed to set trusted proxies: %v", err)
		}
	}

	router.Use(corsMiddleware(cfg.AllowedOrigin))
	router.Use(securityHeadersMiddleware())

	limiter := NewIPRateLimiter(10, 20)
	router.Use(rateLimitMiddleware(limiter))

	// 6. Initialize handlers
	handler := handlers.NewHandler(
		leaderboardService,
		profileService,
		chartService,
		historyClient,
		sumobarClient,
		redisCache,
	)

	// 7. Routes
	router.GET("/health", handler.HealthCheck)

	api := router.Group("/api/v1")
	{
		api.GET("/leaderboard", handler.GetLeaderboard)
		api.GET("/seasons", handler.GetSeasons)

		api.GET("/profile/:username", handler.GetProfile)
		api.GET("/profile/:username/charts", handler.GetProfileCharts)

		api.GET("/matches", handler.GetMatches)
		api.GET("/matches/:id", handler.GetMatchDetail)

		api.GET("/sumobar/leaderboard", handler.GetSumobarLeaderboard)
		api.GET("/sumobar/matches", handler.GetSumobarMatches)
	}

	// 8. Start server with graceful shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("🚀 Server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if redisCache != nil {
		redisCache.Close()
	}
	log.Println("Server stopped")
}
