package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Rehydrator mirrors cache.Rehydrator.
type Rehydrator interface {
	RehydrateGroup(ctx context.Context, chatID int64, limit int, clear bool) error
	RehydrateAll(ctx context.Context, limit int, clear, flushAll bool) error
}

// ReputationReader mirrors service.Moderator's read path.
type ReputationReader interface {
	GetReputation(ctx context.Context, userID, groupID int64) (int, error)
}

// RateLimiter is the per-group token bucket guarding expensive triggers.
type RateLimiter interface {
	ConsumeGroupToken(ctx context.Context, groupID int64) (int64, error)
}

type AdminHandler struct {
	rehydrator     Rehydrator
	reputation     ReputationReader
	limiter        RateLimiter
	rehydrateLimit int
}

func NewAdminHandler(rehydrator Rehydrator, reputation ReputationReader, limiter RateLimiter, rehydrateLimit int) *AdminHandler {
	return &AdminHandler{
		rehydrator:     rehydrator,
		reputation:     reputation,
		limiter:        limiter,
		rehydrateLimit: rehydrateLimit,
	}
}

type rehydrateRequest struct {
	Limit    int  `json:"limit"`
	Clear    bool `json:"clear"`
	FlushAll bool `json:"flush_all"`
}

func (h *AdminHandler) RehydrateAll(c *gin.Context) {
	ctx := c.Request.Context()

	req := rehydrateRequest{Limit: h.rehydrateLimit, Clear: true}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.Limit <= 0 {
		req.Limit = h.rehydrateLimit
	}

	if err := h.rehydrator.RehydrateAll(ctx, req.Limit, req.Clear, req.FlushAll); err != nil {
		slog.ErrorContext(ctx, "full rehydration failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "rehydration failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *AdminHandler) RehydrateGroup(c *gin.Context) {
	ctx := c.Request.Context()

	chatID, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat_id"})
		return
	}

	remaining, err := h.limiter.ConsumeGroupToken(ctx, chatID)
	if err != nil {
		slog.WarnContext(ctx, "rate limit check failed, allowing request", "error", err)
	} else if remaining <= 0 {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded for group"})
		return
	}

	req := rehydrateRequest{Limit: h.rehydrateLimit, Clear: true}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.Limit <= 0 {
		req.Limit = h.rehydrateLimit
	}

	if err := h.rehydrator.RehydrateGroup(ctx, chatID, req.Limit, req.Clear); err != nil {
		slog.ErrorContext(ctx, "group rehydration failed", "chat_id", chatID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "rehydration failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "chat_id": chatID})
}

func (h *AdminHandler) GetReputation(c *gin.Context) {
	ctx := c.Request.Context()

	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}
	groupID, err := strconv.ParseInt(c.Param("group_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group_id"})
		return
	}

	score, err := h.reputation.GetReputation(ctx, userID, groupID)
	if err != nil {
		slog.ErrorContext(ctx, "reputation lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reputation lookup failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":  userID,
		"group_id": groupID,
		"score":    score,
	})
}
