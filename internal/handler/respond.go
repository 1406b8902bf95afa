package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trackit/internal/apperr"
	"trackit/pkg/logger"
)

// Context keys set by the auth middleware.
const (
	CtxUserID   = "user_id"
	CtxUsername = "username"
)

// getUserID 统一的 userID 读取工具
func getUserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(CtxUserID)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return 0, false
	}
	id, ok := v.(int64)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return 0, false
	}
	return id, true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// respondError writes the mapped status. Internal errors are logged and
// hidden from the client.
func respondError(c *gin.Context, l *zap.Logger, op string, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logger.WithTrace(c.Request.Context(), l).Error(op+": failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	logger.WithTrace(c.Request.Context(), l).Info(op+": rejected",
		zap.Int("status", status),
		zap.Error(err),
	)
	c.JSON(status, gin.H{"error": err.Error()})
}
