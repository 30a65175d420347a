package handler

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"reflect-journal/internal/logger"
	"reflect-journal/internal/model"
	"reflect-journal/internal/service"

	"github.com/gin-gonic/gin"
)

type AnalysisHandler struct {
	orch     *service.Orchestrator
	insights *service.InsightService
	weekly   *service.WeeklySynthesizer
	store    service.Store
}

func NewAnalysisHandler(orch *service.Orchestrator, insights *service.InsightService, weekly *service.WeeklySynthesizer, store service.Store) *AnalysisHandler {
	return &AnalysisHandler{orch: orch, insights: insights, weekly: weekly, store: store}
}

// POST /api/analysis/run
// Runs the full batch synchronously; progress is polled on a parallel
// request. A second run while one is active is a 409, never a silent no-op.
func (h *AnalysisHandler) Run(c *gin.Context) {
	result, err := h.orch.Run(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrBatchRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		logger.Error("batch run failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// POST /api/analysis/stop
func (h *AnalysisHandler) Stop(c *gin.Context) {
	h.orch.Stop()
	c.JSON(http.StatusOK, gin.H{"stopping": h.orch.Running()})
}

// GET /api/analysis/progress
func (h *AnalysisHandler) Progress(c *gin.Context) {
	if progress, ok := h.orch.Progress(); ok {
		c.JSON(http.StatusOK, gin.H{"running": true, "progress": progress})
		return
	}
	c.JSON(http.StatusOK, gin.H{"running": false})
}

// GET /api/analysis/statistics
func (h *AnalysisHandler) Statistics(c *gin.Context) {
	stats, err := h.orch.Statistics(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// POST /api/analysis/reanalyze  body: {"entry_ids":[1,2]}
func (h *AnalysisHandler) Reanalyze(c *gin.Context) {
	var req struct {
		EntryIDs []int `json:"entry_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	result, err := h.orch.ReanalyzeEntries(c.Request.Context(), req.EntryIDs)
	if err != nil {
		if errors.Is(err, service.ErrBatchRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// POST /api/weekly/generate  body: {"week_start":"2026-08-24"}
// Generates one week on demand and exposes the narrative as a markdown
// download. Export files are cleaned up after 5 minutes.
func (h *AnalysisHandler) GenerateWeekly(c *gin.Context) {
	var req struct {
		WeekStart string `json:"week_start" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	day, err := time.ParseInLocation("2006-01-02", req.WeekStart, time.Local)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid week_start"})
		return
	}
	span := model.BoundsForDate(day).Span

	ctx := c.Request.Context()
	entries, err := h.store.EntriesByDateRange(ctx, span.Start, span.End)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result := h.weekly.Synthesize(ctx, span, entries)
	if !result.Success {
		c.JSON(http.StatusOK, result)
		return
	}

	filename := fmt.Sprintf("weekly_%s.md", span.Start)
	dir := filepath.Join(".", "exports")
	os.MkdirAll(dir, 0755)
	fpath := filepath.Join(dir, filename)
	os.WriteFile(fpath, []byte(result.Summary.Narrative), 0644)
	time.AfterFunc(5*time.Minute, func() { os.Remove(fpath) })

	c.JSON(http.StatusOK, gin.H{
		"result":       result,
		"download_url": "/api/files/" + filename,
	})
}

// GET /api/dashboard?start=2026-08-01&end=2026-08-28
func (h *AnalysisHandler) Dashboard(c *gin.Context) {
	tr, ok := parseRange(c)
	if !ok {
		return
	}
	data, err := h.insights.Dashboard(c.Request.Context(), tr)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, data)
}

// GET /api/insights?start=...&end=...
func (h *AnalysisHandler) Insights(c *gin.Context) {
	tr, ok := parseRange(c)
	if !ok {
		return
	}
	data, err := h.insights.Dashboard(c.Request.Context(), tr)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, service.BuildInsights(*data))
}

// GET /api/files/:name
func (h *AnalysisHandler) DownloadFile(c *gin.Context) {
	name := filepath.Base(c.Param("name"))
	path := filepath.Join(".", "exports", name)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	c.File(path)
	defer os.Remove(path)
}

// parseRange reads start/end date keys, defaulting to the last 30 days.
func parseRange(c *gin.Context) (model.TimeRange, bool) {
	now := time.Now()
	tr := model.TimeRange{
		Start: model.DateKey(now.AddDate(0, 0, -30)),
		End:   model.DateKey(now),
	}
	if s := c.Query("start"); s != "" {
		if _, err := time.ParseInLocation("2006-01-02", s, time.Local); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start date"})
			return tr, false
		}
		tr.Start = s
	}
	if e := c.Query("end"); e != "" {
		if _, err := time.ParseInLocation("2006-01-02", e, time.Local); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end date"})
			return tr, false
		}
		tr.End = e
	}
	return tr, true
}
