package handler

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/henrymedina447/sbs-suptech-etl-v2/config"
	"github.com/henrymedina447/sbs-suptech-etl-v2/middleware"
	"github.com/henrymedina447/sbs-suptech-etl-v2/pkg/logger"
)

type AuthHandler struct {
	config *config.Config
}

func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{config: cfg}
}

// TokenRequest is a client-credentials grant
type TokenRequest struct {
	ClientID     string `json:"client_id" binding:"required"`
	ClientSecret string `json:"client_secret" binding:"required"`
}

type TokenResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	ExpiresAt   string   `json:"expires_at"`
	Scopes      []string `json:"scopes"`
}

// Token issues a JWT to a configured client
func (h *AuthHandler) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	client := h.config.FindClient(req.ClientID)
	if client == nil || subtle.ConstantTimeCompare([]byte(client.Secret), []byte(req.ClientSecret)) != 1 {
		logger.Warn(c.Request.Context(), "token request rejected", "client_id", req.ClientID)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid client credentials"})
		return
	}

	token, expiresAt, err := middleware.GenerateToken(client.ID, client.Scopes, &h.config.Auth)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt.Format(time.RFC3339),
		Scopes:      client.Scopes,
	})
}

// GetCurrentClient returns the authenticated client
func (h *AuthHandler) GetCurrentClient(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"client_id": middleware.GetClientID(c),
		"scopes":    middleware.GetScopes(c),
	})
}
