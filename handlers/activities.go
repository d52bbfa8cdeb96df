package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"academy-svc/ai"
	"academy-svc/circuitbreaker"
	"academy-svc/middleware"
)

type StoryRequest struct {
	Topic    string `json:"topic" binding:"required"`
	AgeRange string `json:"ageRange"`
}

type ActivitiesHandler struct {
	gateway ai.StoryGenerator
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewActivitiesHandler(gateway ai.StoryGenerator, logger *zap.Logger) *ActivitiesHandler {
	return &ActivitiesHandler{
		gateway: gateway,
		breaker: circuitbreaker.NewCircuitBreaker(5, 30*time.Second),
		logger:  logger,
	}
}

// GenerateStory proxies a story request to the AI gateway. Rate-limit and
// quota responses keep their own status codes so the client can show the
// right message instead of a generic failure.
func (h *ActivitiesHandler) GenerateStory(c *gin.Context) {
	ctx, span := otel.Tracer("academy-svc").Start(c.Request.Context(), "GenerateStory")
	defer span.End()

	var req StoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(attribute.String("story.topic", req.Topic))

	var story string
	err := h.breaker.Execute(ctx, func() error {
		var genErr error
		story, genErr = h.gateway.GenerateStory(ctx, req.Topic, req.AgeRange)
		return genErr
	})
	if err != nil {
		span.RecordError(err)
		traceID := middleware.GetTraceID(ctx)
		switch {
		case errors.Is(err, circuitbreaker.ErrCircuitOpen):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Story generation is temporarily unavailable"})
		case errors.Is(err, ai.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, please try again in a moment"})
		case errors.Is(err, ai.ErrQuotaExceeded):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "AI credits exhausted, please try again later"})
		default:
			h.logger.Error("Story generation failed", zap.String("trace_id", traceID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate story"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"story": story})
}
