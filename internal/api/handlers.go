package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmylchreest/matchscrape/internal/job"
	"github.com/jmylchreest/matchscrape/internal/results"
	"github.com/jmylchreest/matchscrape/internal/version"
	"github.com/jmylchreest/matchscrape/pkg/extract"
)

var endpoints = []string{
	"GET /health",
	"GET /api/status",
	"GET /api/matches",
	"GET /api/matches/date/:date",
	"GET /api/competitions",
	"GET /api/tiers",
	"GET /api/teams",
	"POST /api/refresh",
	"GET /metrics",
}

type handler struct {
	deps    Deps
	started time.Time
}

// NewRouter returns a gin engine with every route registered.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	h := &handler{deps: deps, started: time.Now()}

	router := gin.New()
	router.Use(recoveryMiddleware(), loggerMiddleware(), corsMiddleware())

	router.GET("/health", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	api.GET("/status", h.status)
	api.GET("/matches", h.matchesToday)
	api.GET("/matches/date/:date", h.matchesByDate)
	api.GET("/competitions", h.competitions)
	api.GET("/tiers", h.tiers)
	api.GET("/teams", h.teams)
	api.POST("/refresh", h.refresh)
	return router
}

func errorBody(msg string) gin.H {
	return gin.H{"error": msg, "timestamp": time.Now().UTC()}
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.started).Round(time.Second).String(),
	})
}

func (h *handler) status(c *gin.Context) {
	body := gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"version":   version.Get(),
		"uptime":    time.Since(h.started).Round(time.Second).String(),
		"endpoints": endpoints,
		"filters":   []string{"competition", "tier", "team", "status"},
	}
	if h.deps.Refresher != nil {
		body["refresh"] = h.deps.Refresher.State()
	}
	if h.deps.Schedule != nil {
		sch := h.deps.Schedule.Schedule()
		cronNext, intervalNext := h.deps.Schedule.Next()
		sched := gin.H{
			"cron":     sch.Cron,
			"interval": sch.Interval.String(),
		}
		if sch.Location != nil {
			sched["timezone"] = sch.Location.String()
		}
		if !cronNext.IsZero() {
			sched["next_cron"] = cronNext
		}
		if !intervalNext.IsZero() {
			sched["next_interval"] = intervalNext
		}
		body["schedule"] = sched
	}
	c.JSON(http.StatusOK, body)
}

// day loads the results for date and writes the error response itself
// when it cannot.
func (h *handler) day(c *gin.Context, date string) (*results.Day, bool) {
	if _, err := results.ParseDate(date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    "invalid date format",
			"expected": results.DateLayout,
			"example":  "2026-10-19",
		})
		return nil, false
	}
	day, err := h.deps.Store.Load(date)
	if errors.Is(err, results.ErrNotFound) {
		c.JSON(http.StatusNotFound, errorBody("no matches stored for "+date))
		return nil, false
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, errorBody(err.Error()))
		return nil, false
	}
	return day, true
}

func (h *handler) respondMatches(c *gin.Context, date string) {
	day, ok := h.day(c, date)
	if !ok {
		return
	}
	var f results.Filter
	if err := c.ShouldBindQuery(&f); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if f.Empty() {
		c.JSON(http.StatusOK, day)
		return
	}
	matches := f.Apply(day.Matches)
	c.JSON(http.StatusOK, gin.H{
		"date":       day.Date,
		"scraped_at": day.ScrapedAt,
		"total":      len(matches),
		"matches":    matches,
		"filters":    f,
	})
}

func (h *handler) matchesToday(c *gin.Context) {
	h.respondMatches(c, h.deps.Store.Today())
}

func (h *handler) matchesByDate(c *gin.Context) {
	h.respondMatches(c, c.Param("date"))
}

func (h *handler) listing(key string, fn func([]extract.Record) []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		date := c.DefaultQuery("date", h.deps.Store.Today())
		day, ok := h.day(c, date)
		if !ok {
			return
		}
		items := fn(day.Matches)
		c.JSON(http.StatusOK, gin.H{
			"date":  day.Date,
			"total": len(items),
			key:     items,
		})
	}
}

func (h *handler) competitions(c *gin.Context) {
	h.listing("competitions", results.Competitions)(c)
}

func (h *handler) tiers(c *gin.Context) {
	h.listing("tiers", results.Tiers)(c)
}

func (h *handler) teams(c *gin.Context) {
	h.listing("teams", results.Teams)(c)
}

func (h *handler) refresh(c *gin.Context) {
	if h.deps.Refresher == nil {
		c.JSON(http.StatusServiceUnavailable, errorBody("refresh is not configured"))
		return
	}
	// The scrape finishes even if the client goes away.
	ctx := context.WithoutCancel(c.Request.Context())
	out, err := h.deps.Refresher.Run(ctx, "api")
	switch {
	case errors.Is(err, job.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{
			"status": "running",
			"error":  err.Error(),
			"state":  h.deps.Refresher.State(),
		})
	case err != nil:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  err.Error(),
			"state":  h.deps.Refresher.State(),
		})
	default:
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"outcome": out,
			"state":   h.deps.Refresher.State(),
		})
	}
}
