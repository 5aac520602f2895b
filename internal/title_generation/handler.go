package title_generation

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eternisai/enchanted-chat/internal/chat"
	apierrors "github.com/eternisai/enchanted-chat/internal/errors"
	"github.com/eternisai/enchanted-chat/internal/logger"
)

// TitleGenerator is what the handler needs from Generator.
type TitleGenerator interface {
	ResolveModel(model string) string
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

type Handler struct {
	generator TitleGenerator
	metrics   *Metrics
	logger    *logger.Logger
}

func NewHandler(generator TitleGenerator, metrics *Metrics, logger *logger.Logger) *Handler {
	return &Handler{
		generator: generator,
		metrics:   metrics,
		logger:    logger,
	}
}

// GenerateTitle handles POST /generate-title.
func (h *Handler) GenerateTitle(c *gin.Context) {
	start := time.Now()

	var req chat.TitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithContext(c.Request.Context()).WithComponent("title-handler").
			Warn("failed to bind request", slog.String("error", err.Error()))
		h.metrics.Observe(OutcomeBadRequest, "", 0)
		apierrors.AbortWithBadRequest(c, "invalid request body", map[string]interface{}{"reason": err.Error()})
		return
	}

	model := h.generator.ResolveModel(req.Model)
	ctx := logger.WithModel(c.Request.Context(), model)
	log := h.logger.WithContext(ctx).WithComponent("title-handler")

	if len(req.History) == 0 {
		h.metrics.Observe(OutcomeBadRequest, "", 0)
		apierrors.AbortWithBadRequest(c, "history is required", nil)
		return
	}

	log.Debug("generating title", slog.Int("history_length", len(req.History)))

	title, err := h.generator.Generate(ctx, GenerateRequest{History: req.History, Model: req.Model})
	if err != nil {
		h.logger.WithComponent("title-handler").LogError(ctx, err, "failed to generate title")

		switch {
		case errors.Is(err, ErrNoModel):
			h.metrics.Observe(OutcomeBadRequest, "", 0)
			apierrors.AbortWithBadRequest(c, "model is required", nil)
			return
		case errors.Is(err, ErrEmptyHistory):
			h.metrics.Observe(OutcomeBadRequest, "", 0)
			apierrors.AbortWithBadRequest(c, "history is required", nil)
			return
		}

		h.metrics.Observe(OutcomeError, model, time.Since(start))
		apierrors.AbortWithInternal(c, "failed to generate title", nil)
		return
	}

	h.metrics.Observe(OutcomeSuccess, model, time.Since(start))
	log.Info("title generated", slog.String("title", title))

	c.JSON(http.StatusOK, chat.TitleResponse{Title: title})
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RegisterRoutes mounts the title generation endpoints on router.
func (h *Handler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	router.POST("/generate-title", h.GenerateTitle)
}
