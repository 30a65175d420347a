package handler

import (
	"net/http"
	"strings"
	"time"

	"reflect-journal/internal/model"
	"reflect-journal/internal/service"

	"github.com/gin-gonic/gin"
)

// EntryHandler is the minimal write path into the store. The rich editor
// lives elsewhere; this only accepts entries for the analysis core.
type EntryHandler struct {
	store *service.DBStore
}

func NewEntryHandler(store *service.DBStore) *EntryHandler {
	return &EntryHandler{store: store}
}

// POST /api/entries  body: {"title":"...","content":"...","plain_text":"...","target_date":"2026-08-28"}
func (h *EntryHandler) Create(c *gin.Context) {
	var req struct {
		Title      string `json:"title"`
		Content    string `json:"content"`
		PlainText  string `json:"plain_text"`
		TargetDate string `json:"target_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.PlainText == "" {
		req.PlainText = req.Content
	}
	if strings.TrimSpace(req.PlainText) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entry text required"})
		return
	}
	if req.TargetDate == "" {
		req.TargetDate = model.DateKey(time.Now())
	} else if _, err := time.ParseInLocation("2006-01-02", req.TargetDate, time.Local); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target_date"})
		return
	}

	entry := &model.Entry{
		Title:      req.Title,
		Content:    req.Content,
		PlainText:  req.PlainText,
		TargetDate: req.TargetDate,
		WordCount:  len(strings.Fields(req.PlainText)),
		CreatedAt:  time.Now(),
	}
	if err := h.store.CreateEntry(c.Request.Context(), entry); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entry)
}

// GET /api/entries
func (h *EntryHandler) List(c *gin.Context) {
	entries, err := h.store.AllEntries(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if entries == nil {
		entries = []model.Entry{}
	}
	c.JSON(http.StatusOK, entries)
}
