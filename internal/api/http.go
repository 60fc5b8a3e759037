package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/miradorstack/fieldops/internal/models"
	"github.com/miradorstack/fieldops/internal/repo"
	"github.com/miradorstack/fieldops/internal/services"
	"github.com/miradorstack/fieldops/internal/utils"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"

	defaultAssignedLimit = 10
)

// TriageAPI is the triage surface the HTTP layer needs.
type TriageAPI interface {
	Dashboard(ctx context.Context, filter models.FaultFilter) (models.Dashboard, error)
	Assigned(ctx context.Context, limit int) ([]models.AssignedFault, []string, error)
	Fault(ctx context.Context, id string) (models.EnrichedFault, error)
}

// AssistantAPI is the assistant surface the HTTP layer needs.
type AssistantAPI interface {
	Procedure(ctx context.Context, faultID string) (services.FaultProcedure, error)
	Procedures(ctx context.Context) ([]models.ProcedureDocument, []string, error)
	Search(ctx context.Context, q repo.SearchQuery) []models.SearchResult
	Ask(ctx context.Context, sessionID, question string) (services.Conversation, error)
	History(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
}

// Invalidator drops the cached dataset.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Handlers serves the JSON API consumed by the dashboards.
type Handlers struct {
	triage    TriageAPI
	assistant AssistantAPI
	cache     Invalidator
	logger    *slog.Logger
	validate  *validator.Validate
}

// NewHandlers wires the services into HTTP handlers.
func NewHandlers(logger *slog.Logger, triage TriageAPI, assistant AssistantAPI, cache Invalidator) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		triage:    triage,
		assistant: assistant,
		cache:     cache,
		logger:    logger,
		validate:  validator.New(),
	}
}

// NewRouter builds the gin engine with request ids, access logs and recovery.
func NewRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(requestID(), accessLog(h.logger), gin.Recovery())
	h.SetRouter(engine)
	return engine
}

// SetRouter registers every route on app.
func (h *Handlers) SetRouter(app *gin.Engine) {
	app.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	group := app.Group("/api/v1")
	group.GET("/dashboard", h.Dashboard)
	group.GET("/faults/assigned", h.Assigned)
	group.GET("/faults/:id", h.Fault)
	group.GET("/faults/:id/procedure", h.Procedure)
	group.GET("/procedures", h.Procedures)
	group.GET("/search", h.Search)
	group.POST("/assistant/ask", h.Ask)
	group.GET("/assistant/sessions/:id", h.History)
	group.POST("/cache/invalidate", h.Invalidate)
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
			slog.String(requestIDKey, c.GetString(requestIDKey)),
		)
	}
}

type dashboardQuery struct {
	Start    string `form:"start" validate:"omitempty,datetime=2006-01-02"`
	End      string `form:"end" validate:"omitempty,datetime=2006-01-02"`
	Location string `form:"location"`
	Category string `form:"category"`
	Risk     string `form:"risk" validate:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL low medium high critical All all"`
	All      bool   `form:"all"`
}

func (q dashboardQuery) filter() (models.FaultFilter, error) {
	filter := models.FaultFilter{AllTime: q.All}
	if q.Start != "" {
		start, err := utils.ParseDate(q.Start, time.UTC)
		if err != nil {
			return filter, err
		}
		filter.Start = start
	}
	if q.End != "" {
		end, err := utils.ParseDate(q.End, time.UTC)
		if err != nil {
			return filter, err
		}
		filter.End = end
	}
	if !filter.Start.IsZero() && !filter.End.IsZero() && filter.End.Before(filter.Start) {
		return filter, errors.New("end is before start")
	}
	if loc := strings.TrimSpace(q.Location); loc != "" && !isAll(loc) {
		filter.Location = loc
	}
	if cat := strings.TrimSpace(q.Category); cat != "" && !isAll(cat) {
		filter.Category = models.ParseCategory(cat)
	}
	if q.Risk != "" && !isAll(q.Risk) {
		filter.Risk, _ = models.ParseRiskLevel(q.Risk)
	}
	return filter, nil
}

func isAll(v string) bool {
	return strings.EqualFold(v, "all")
}

// Dashboard returns every manager dashboard panel.
func (h *Handlers) Dashboard(c *gin.Context) {
	var q dashboardQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, "invalid query: "+err.Error())
		return
	}
	if err := h.validate.Struct(&q); err != nil {
		h.badRequest(c, "invalid query: "+err.Error())
		return
	}
	filter, err := q.filter()
	if err != nil {
		h.badRequest(c, "invalid date range: "+err.Error())
		return
	}
	dashboard, err := h.triage.Dashboard(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

type assignedQuery struct {
	Limit int `form:"limit" validate:"gte=0,lte=100"`
}

// Assigned returns the field engineer's work list.
func (h *Handlers) Assigned(c *gin.Context) {
	q := assignedQuery{Limit: defaultAssignedLimit}
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, "invalid query: "+err.Error())
		return
	}
	if err := h.validate.Struct(&q); err != nil {
		h.badRequest(c, "invalid query: "+err.Error())
		return
	}
	faults, warnings, err := h.triage.Assigned(c.Request.Context(), q.Limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"faults": faults, "warnings": warnings})
}

// Fault returns one enriched fault.
func (h *Handlers) Fault(c *gin.Context) {
	f, err := h.triage.Fault(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// Procedure returns the repair procedure for one fault.
func (h *Handlers) Procedure(c *gin.Context) {
	result, err := h.assistant.Procedure(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Procedures lists the loaded procedure documents.
func (h *Handlers) Procedures(c *gin.Context) {
	docs, warnings, err := h.assistant.Procedures(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"procedures": docs, "warnings": warnings})
}

type searchQuery struct {
	Query         string `form:"q" validate:"required,max=500"`
	FaultCode     string `form:"fault_code" validate:"max=32"`
	EquipmentType string `form:"equipment_type" validate:"max=128"`
}

// Search runs a procedure search. Backend failures return the fallback
// result with status 200.
func (h *Handlers) Search(c *gin.Context) {
	var q searchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, "invalid query: "+err.Error())
		return
	}
	q.Query = strings.TrimSpace(q.Query)
	if err := h.validate.Struct(&q); err != nil {
		h.badRequest(c, "q is required")
		return
	}
	results := h.assistant.Search(c.Request.Context(), repo.SearchQuery{
		Text:          q.Query,
		FaultCode:     strings.TrimSpace(q.FaultCode),
		EquipmentType: strings.TrimSpace(q.EquipmentType),
	})
	c.JSON(http.StatusOK, gin.H{"query": q.Query, "results": results})
}

type askRequest struct {
	SessionID string `json:"session_id" validate:"omitempty,max=64"`
	Question  string `json:"question" validate:"required,max=2000"`
}

// Ask answers one assistant question.
func (h *Handlers) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid body: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.badRequest(c, "question is required")
		return
	}
	conv, err := h.assistant.Ask(c.Request.Context(), req.SessionID, req.Question)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// History returns the stored messages of a chat session. Unknown sessions are
// empty rather than missing.
func (h *Handlers) History(c *gin.Context) {
	id := c.Param("id")
	messages, err := h.assistant.History(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "history": messages})
}

// Invalidate drops the cached dataset.
func (h *Handlers) Invalidate(c *gin.Context) {
	if err := h.cache.Invalidate(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invalidated": true})
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg, requestIDKey: c.GetString(requestIDKey)})
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrFaultNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrEmptyQuestion):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrDataUnavailable),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", slog.String("path", c.FullPath()), slog.String(requestIDKey, c.GetString(requestIDKey)), slog.Any("error", err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": utils.UserMessage(err), requestIDKey: c.GetString(requestIDKey)})
}
