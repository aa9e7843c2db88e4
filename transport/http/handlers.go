package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/bazaar/core"
	"github.com/layer-3/bazaar/service"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

// Signup registers a password account
func (h *AuthHandlers) Signup(c *gin.Context) {
	var req service.PasswordSignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	account, err := h.authService.SignupPassword(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully",
		"userId":  account.ID,
		"role":    account.Role,
	})
}

// Login handles password login
func (h *AuthHandlers) Login(c *gin.Context) {
	var req service.PasswordLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := h.authService.LoginPassword(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "")
		return
	}

	respondSession(c, result)
}

// Nonce issues a signing challenge for a wallet address
func (h *AuthHandlers) Nonce(c *gin.Context) {
	nonce, err := h.authService.RequestNonce(c.Request.Context(), c.Param("address"))
	if err != nil {
		respondError(c, err, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

// VerifyWallet handles wallet login
func (h *AuthHandlers) VerifyWallet(c *gin.Context) {
	var req service.WalletLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := h.authService.VerifyWallet(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "No account found for this wallet address and email")
		return
	}

	respondSession(c, result)
}

// SignupWallet completes a wallet registration
func (h *AuthHandlers) SignupWallet(c *gin.Context) {
	var req service.WalletSignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := h.authService.SignupWallet(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "No nonce found for this address")
		return
	}

	respondSession(c, result)
}

// Logout revokes the bearer token
func (h *AuthHandlers) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), c.GetString(ctxToken)); err != nil {
		respondError(c, err, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns information about the authenticated account
func (h *AuthHandlers) Me(c *gin.Context) {
	session, ok := sessionFrom(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session not found in context"})
		return
	}

	account, err := h.authService.Account(c.Request.Context(), session.AccountID)
	if err != nil {
		respondError(c, err, "Account not found")
		return
	}

	resp := gin.H{
		"userId":    account.ID,
		"username":  account.Username,
		"email":     account.Email,
		"role":      session.Role,
		"expiresAt": session.ExpiresAt.UTC().Format(time.RFC3339),
	}
	if account.WalletAddress != "" {
		resp["walletAddress"] = account.WalletAddress
	}
	c.JSON(http.StatusOK, resp)
}

// Authorize checks if the caller is authorized, optionally for a given role
func (h *AuthHandlers) Authorize(c *gin.Context) {
	session, ok := sessionFrom(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session not found in context"})
		return
	}

	if want := c.Query("role"); want != "" {
		role, valid := core.ParseRole(want)
		if !valid {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
			return
		}
		if role != session.Role {
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied for role " + session.Role.String()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"authorized": true,
		"userId":     session.AccountID,
		"role":       session.Role,
	})
}

// Health reports liveness
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func respondSession(c *gin.Context, result *core.AuthResult) {
	c.JSON(http.StatusOK, gin.H{
		"token":     result.Token,
		"userId":    result.Session.AccountID,
		"role":      result.Session.Role,
		"expiresAt": result.Session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// respondError maps service errors to status codes. Messages stay vague so
// they do not reveal which accounts exist.
func respondError(c *gin.Context, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, core.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": strings.TrimPrefix(err.Error(), core.ErrValidation.Error()+": "),
		})
	case errors.Is(err, core.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
	case errors.Is(err, core.ErrSignatureInvalid):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
	case errors.Is(err, core.ErrTokenExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token expired"})
	case errors.Is(err, core.ErrTokenRevoked), errors.Is(err, core.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
	case errors.Is(err, core.ErrNotFound):
		if notFoundMsg == "" {
			notFoundMsg = "Not found"
		}
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundMsg})
	case errors.Is(err, core.ErrDuplicateRegistration):
		c.JSON(http.StatusConflict, gin.H{"error": "Account already registered"})
	case errors.Is(err, core.ErrStorage):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
	}
}
