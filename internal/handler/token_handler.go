package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailtoys/internal/service/tokenstore"
)

type TokenHandler struct {
	tokens *tokenstore.Store
	logger *zap.Logger
}

func NewTokenHandler(tokens *tokenstore.Store, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{tokens: tokens, logger: logger}
}

// Update serves POST /api/update-token. The token is stored as-is in a single
// process-global slot shared by every dashboard user.
func (h *TokenHandler) Update(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	h.tokens.Set(req.Token)
	h.logger.Info("Graph token updated")

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Token updated successfully"})
}

// Info serves GET /api/token: a masked view with the JWT expiry, for display.
func (h *TokenHandler) Info(c *gin.Context) {
	if h.tokens.Get() == "" {
		c.JSON(http.StatusOK, gin.H{"configured": false})
		return
	}

	resp := gin.H{
		"configured": true,
		"token":      h.tokens.Masked(),
	}
	if exp, err := h.tokens.Expiry(); err == nil {
		resp["expires_at"] = exp.UTC().Format(time.RFC3339)
		resp["expired"] = time.Now().After(exp)
	}
	c.JSON(http.StatusOK, resp)
}
