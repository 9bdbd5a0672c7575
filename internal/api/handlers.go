package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ragchat/internal/models"
	"ragchat/internal/observability"
	"ragchat/internal/service/assistant"
	"ragchat/internal/worker"
)

const (
	sessionCookieName     = "session_id"
	sessionCookieMaxAge   = 7 * 24 * 3600
	maxSessionIDLength    = 128
	defaultRequestTimeout = 120 * time.Second
)

// Assistant is the part of the answer service used by the HTTP layer.
type Assistant interface {
	Answer(ctx context.Context, sessionID, question string) (string, error)
	History(ctx context.Context, sessionID string) ([]models.Turn, error)
	Reset(ctx context.Context, sessionID string) error
}

type Options struct {
	RequestTimeout time.Duration
	AllowedOrigins []string
	Metrics        *observability.Metrics
	Logger         *slog.Logger
}

// Handler wires HTTP routes to the assistant service.
type Handler struct {
	assistant Assistant
	timeout   time.Duration
	origins   []string
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(asst Assistant, opts Options) *Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.Logger == nil {
		opts.Logger = observability.Discard()
	}
	return &Handler{
		assistant: asst,
		timeout:   opts.RequestTimeout,
		origins:   opts.AllowedOrigins,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(h.corsMiddleware())
	if h.metrics != nil {
		router.Use(h.metricsMiddleware())
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}
	router.GET("/", h.root)
	router.POST("/chat", h.chat)
	router.GET("/sessions/:session_id/history", h.history)
	router.DELETE("/sessions/:session_id/history", h.resetHistory)
}

func (h *Handler) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ragchat API running"})
}

type chatRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	SessionID string `json:"session_id"`
}

func (h *Handler) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}
	sessionID, ok := h.resolveSessionID(c, req.SessionID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}
	setSessionCookie(c, sessionID)

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	answer, err := h.assistant.Answer(ctx, sessionID, req.Question)
	if err != nil {
		h.writeError(c, sessionID, err)
		return
	}
	c.JSON(http.StatusOK, chatResponse{
		Question:  req.Question,
		Answer:    answer,
		SessionID: sessionID,
	})
}

func (h *Handler) history(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("session_id"))
	if !validSessionID(sessionID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}
	turns, err := h.assistant.History(c.Request.Context(), sessionID)
	if err != nil {
		h.writeError(c, sessionID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"history":    turns,
	})
}

func (h *Handler) resetHistory(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("session_id"))
	if !validSessionID(sessionID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	if err := h.assistant.Reset(ctx, sessionID); err != nil {
		h.writeError(c, sessionID, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// resolveSessionID prefers the body, then the session cookie, then a new id.
func (h *Handler) resolveSessionID(c *gin.Context, fromBody string) (string, bool) {
	if id := strings.TrimSpace(fromBody); id != "" {
		return id, validSessionID(id)
	}
	if id, err := c.Cookie(sessionCookieName); err == nil && validSessionID(id) {
		return id, true
	}
	return uuid.NewString(), true
}

func validSessionID(id string) bool {
	return id != "" && len(id) <= maxSessionIDLength
}

func setSessionCookie(c *gin.Context, sessionID string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		MaxAge:   sessionCookieMaxAge,
		Path:     "/",
		Secure:   gin.Mode() == gin.ReleaseMode,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) writeError(c *gin.Context, sessionID string, err error) {
	status := http.StatusBadGateway
	msg := "upstream service failed"
	switch {
	case errors.Is(err, assistant.ErrEmptyQuestion), errors.Is(err, assistant.ErrEmptySession):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		status, msg = http.StatusGatewayTimeout, "answer timed out"
	case errors.Is(err, worker.ErrQueueFull):
		status, msg = http.StatusTooManyRequests, "server is busy, please retry"
	case errors.Is(err, worker.ErrStopped):
		status, msg = http.StatusServiceUnavailable, "server is shutting down"
	}
	h.logger.Error("request failed",
		"path", c.FullPath(),
		"session_id", sessionID,
		"status", status,
		"error", err,
	)
	c.JSON(status, gin.H{"error": msg})
}
