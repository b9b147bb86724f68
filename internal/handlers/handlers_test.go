package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/37715/retrocycles-leaderboard/internal/coordinator"
	"github.com/37715/retrocycles-leaderboard/internal/history"
	"github.com/37715/retrocycles-leaderboard/internal/rankings"
	"github.com/37715/retrocycles-leaderboard/internal/services"
	"github.com/37715/retrocycles-leaderboard/internal/sumobar"
)

const leaderboardHTML = `<table>
  <tr><th>#</th></tr>
  <tr>
    <td>1</td><td>apple</td><td>1820</td><td>12</td><td>54265 15 hours ago</td>
    <td><div class="progress-bar" aria-valuenow="60" title="1st: 28 out of 47"></div></td>
    <td>47</td><td>1.8</td><td>455</td><td>612</td><td>1.45</td>
  </tr>
</table>`

const leaderboardHTMLTwoRows = `<table>
  <tr><th>#</th></tr>
  <tr>
    <td>1</td><td>apple</td><td>1820</td><td>12</td><td>54265 15 hours ago</td>
    <td><div class="progress-bar" aria-valuenow="60" title="1st: 28 out of 47"></div></td>
    <td>47</td><td>1.8</td><td>455</td><td>612</td><td>1.45</td>
  </tr>
  <tr>
    <td>2</td><td>banana</td><td>1710</td><td>-4</td><td>54266 2 days ago</td>
    <td><div class="progress-bar" aria-valuenow="40" title="1st: 12 out of 30"></div></td>
    <td>30</td><td>2.1</td><td>390</td><td>540</td><td>1.10</td>
  </tr>
</table>`

func newTestRouter(upstream string) *gin.Engine {
	gin.SetMode(gin.TestMode)

	rankingsClient := rankings.NewClient(upstream)
	historyClient := history.NewClient(upstream + "/history")
	sumobarClient := sumobar.NewClient(upstream+"/sumobar", "")

	lb := services.NewLeaderboardService(coordinator.New(rankingsClient))
	ps := services.NewProfileService(rankingsClient, lb)
	cs := services.NewChartService(ps)
	h := NewHandler(lb, ps, cs, historyClient, sumobarClient, nil)

	router := gin.New()
	router.GET("/health", h.HealthCheck)
	api := router.Group("/api/v1")
	{
		api.GET("/leaderboard", h.GetLeaderboard)
		api.GET("/seasons", h.GetSeasons)
		api.GET("/matches", h.GetMatches)
		api.GET("/matches/:id", h.GetMatchDetail)
	}
	return router
}

func upstreamStub() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/daterange.php", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(leaderboardHTML))
	})
	mux.HandleFunc("/history/tst", func(w http.ResponseWriter, r *http.Request) {
		if id := r.URL.Query().Get("id"); id != "" {
			if id != "m1" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write([]byte(`{"teams": [{"teamName": "gold", "score": 3, "players": [
				{"nickname": "apple", "positions": [{"kills": 2, "deaths": 1, "holePoints": 5}]}
			]}]}`))
			return
		}
		w.Write([]byte(`[{"id": "m1", "roundCount": 7}]`))
	})
	return httptest.NewServer(mux)
}

func doRequest(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetLeaderboard(t *testing.T) {
	upstream := upstreamStub()
	defer upstream.Close()
	router := newTestRouter(upstream.URL)

	rec := doRequest(t, router, "/api/v1/leaderboard?season=2026&region=combined&mode=tst")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Count int `json:"count"`
		Rows  []struct {
			Name string `json:"name"`
			Elo  int    `json:"elo"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if payload.Count != 1 || payload.Rows[0].Name != "apple" || payload.Rows[0].Elo != 1820 {
		t.Errorf("payload = %+v", payload)
	}
}

func TestGetLeaderboardDefaultOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(leaderboardHTMLTwoRows))
	}))
	defer server.Close()
	router := newTestRouter(server.URL)

	// No sort params: the board comes back in its published order.
	rec := doRequest(t, router, "/api/v1/leaderboard")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Rows []struct {
			Rank int    `json:"rank"`
			Name string `json:"name"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if len(payload.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(payload.Rows))
	}
	if payload.Rows[0].Name != "apple" || payload.Rows[0].Rank != 1 {
		t.Errorf("first row = %+v, want apple at rank 1", payload.Rows[0])
	}
	if payload.Rows[1].Name != "banana" || payload.Rows[1].Rank != 2 {
		t.Errorf("second row = %+v, want banana at rank 2", payload.Rows[1])
	}
}

func TestGetLeaderboardValidation(t *testing.T) {
	upstream := upstreamStub()
	defer upstream.Close()
	router := newTestRouter(upstream.URL)

	for _, path := range []string{
		"/api/v1/leaderboard?season=1999",
		"/api/v1/leaderboard?region=asia",
		"/api/v1/leaderboard?mode=ctf",
	} {
		if rec := doRequest(t, router, path); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
	}
}

func TestGetMatchDetailNotFound(t *testing.T) {
	upstream := upstreamStub()
	defer upstream.Close()
	router := newTestRouter(upstream.URL)

	if rec := doRequest(t, router, "/api/v1/matches/ghost?mode=tst"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetMatchDetailTotals(t *testing.T) {
	upstream := upstreamStub()
	defer upstream.Close()
	router := newTestRouter(upstream.URL)

	rec := doRequest(t, router, "/api/v1/matches/m1?mode=tst")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Teams []struct {
			Players []struct {
				Totals history.PlayerTotals `json:"totals"`
			} `json:"players"`
		} `json:"teams"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	totals := payload.Teams[0].Players[0].Totals
	if totals.Score != 65 || totals.KD != "2.00" {
		t.Errorf("totals = %+v, want score 65 kd 2.00", totals)
	}
}

func TestGetSeasons(t *testing.T) {
	upstream := upstreamStub()
	defer upstream.Close()
	router := newTestRouter(upstream.URL)

	rec := doRequest(t, router, "/api/v1/seasons")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var payload struct {
		Count   int `json:"count"`
		Seasons []struct {
			ID string `json:"id"`
		} `json:"seasons"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if payload.Count != 5 {
		t.Fatalf("count = %d, want 4 yearly seasons plus weekly", payload.Count)
	}
	if payload.Seasons[0].ID != "2026" || payload.Seasons[4].ID != "weekly" {
		t.Errorf("season order = %+v", payload.Seasons)
	}
}

func TestHealthCheck(t *testing.T) {
	upstream := upstreamStub()
	defer upstream.Close()
	router := newTestRouter(upstream.URL)

	rec := doRequest(t, router, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if payload["status"] != "ok" {
		t.Errorf("health = %v", payload)
	}
	if _, hasRedis := payload["redis"]; hasRedis {
		t.Error("redis key should be absent without an edge cache")
	}
}
