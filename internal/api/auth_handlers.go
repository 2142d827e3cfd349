package api

import (
	"context"
	"net/http"
	"time"

	"storefront/internal/identity"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// login handles credential-table sign in
func (h *Handler) login(c *gin.Context) {
	local, ok := h.auth.(*identity.LocalProvider)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Password login is not enabled"})
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	token, id, err := local.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, "Login failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": id})
}

const oauthStateTTL = 10 * time.Minute

// StateStore keeps OAuth state values issued by googleURL until the
// matching exchange consumes them. *redisclient.Client implements it.
type StateStore interface {
	SaveOAuthState(ctx context.Context, state string, ttl time.Duration) error
	ConsumeOAuthState(ctx context.Context, state string) (bool, error)
}

// SetStateStore enables Google sign in state verification
func (h *Handler) SetStateStore(states StateStore) {
	h.states = states
}

// googleURL returns the Google consent page URL with a fresh state value
func (h *Handler) googleURL(c *gin.Context) {
	google, ok := h.auth.(*identity.GoogleProvider)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Google login is not enabled"})
		return
	}
	if h.states == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google login is unavailable"})
		return
	}

	state := uuid.New().String()
	if err := h.states.SaveOAuthState(c.Request.Context(), state, oauthStateTTL); err != nil {
		h.respondError(c, "Failed to start Google login", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": google.AuthCodeURL(state), "state": state})
}

type exchangeRequest struct {
	Code  string `json:"code" binding:"required"`
	State string `json:"state" binding:"required"`
}

// googleExchange trades an authorization code for an access token and the
// identity it resolves to
func (h *Handler) googleExchange(c *gin.Context) {
	google, ok := h.auth.(*identity.GoogleProvider)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Google login is not enabled"})
		return
	}

	if h.states == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google login is unavailable"})
		return
	}

	var req exchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	valid, err := h.states.ConsumeOAuthState(c.Request.Context(), req.State)
	if err != nil {
		h.respondError(c, "Failed to verify login state", err)
		return
	}
	if !valid {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unknown or expired login state"})
		return
	}

	token, err := google.Exchange(c.Request.Context(), req.Code)
	if err != nil {
		h.respondError(c, "Code exchange failed", err)
		return
	}

	id, err := google.Resolve(c.Request.Context(), token.AccessToken)
	if err != nil {
		h.respondError(c, "Failed to resolve Google user", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token.AccessToken, "expiry": token.Expiry, "user": id})
}
