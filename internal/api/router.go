// Package api exposes health checks, manual run triggers and stored results
// over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spigell/jobradar/internal/logger"
	"github.com/spigell/jobradar/internal/model"
	"github.com/spigell/jobradar/internal/scheduler"
)

// Trigger queues a run for a user.
type Trigger interface {
	Trigger(userID string, manual bool) (bool, error)
}

// Results reads a user's latest scored result set.
type Results interface {
	Results(ctx context.Context, userID string) ([]model.ScoredJob, error)
}

type Deps struct {
	Trigger Trigger
	Results Results
	Version string
	Logger  *zap.Logger
}

func NewRouter(deps Deps) *gin.Engine {
	log := logger.OrNop(deps.Logger)

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": deps.Version})
	})

	v1 := router.Group("/v1")
	{
		v1.POST("/users/:id/runs", triggerHandler(deps.Trigger, log))
		v1.GET("/users/:id/results", resultsHandler(deps.Results, log))
	}

	return router
}

func triggerHandler(trigger Trigger, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.Param("id"))
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user id is required"})
			return
		}

		queued, err := trigger.Trigger(userID, true)
		switch {
		case errors.Is(err, scheduler.ErrQueueFull):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
			return
		case errors.Is(err, scheduler.ErrNotRunning):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		case err != nil:
			log.Error("failed to queue run", zap.String(logger.FieldUserID, userID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue run"})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"user_id": userID, "queued": queued})
	}
}

func resultsHandler(results Results, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("id")
		jobs, err := results.Results(c.Request.Context(), userID)
		if err != nil {
			log.Error("failed to load results", zap.String(logger.FieldUserID, userID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load results"})
			return
		}

		summaries := make([]model.JobSummary, 0, len(jobs))
		for _, j := range jobs {
			summaries = append(summaries, model.SummaryOf(j))
		}
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "results": summaries})
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
