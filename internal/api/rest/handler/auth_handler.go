package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tabletide/pos/internal/api/rest/middleware"
	"github.com/tabletide/pos/internal/authn"
	"github.com/tabletide/pos/internal/keyfetcher"
)

// AuthConfig holds token minting configuration.
type AuthConfig struct {
	KeyFetcher keyfetcher.PrivateKeyFetcher
	Issuer     string
	Audience   string
	TokenTTL   time.Duration
}

// AuthHandler signs staff in and mints the bearer token the other endpoints
// require.
type AuthHandler struct {
	auth   authn.Authenticator
	config *AuthConfig
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler instance.
func NewAuthHandler(auth authn.Authenticator, config *AuthConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		config: config,
		logger: logger,
	}
}

// SignInRequest is the payload for POST /auth/signin.
type SignInRequest struct {
	Username string `json:"username"`
	PIN      string `json:"pin"`
}

// SignInResponse carries the minted bearer token.
type SignInResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	Role      string `json:"role"`
}

// SignIn handles POST /auth/signin.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request format")
		return
	}
	if req.Username == "" || req.PIN == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "invalid_request", "Username and PIN are required")
		return
	}

	staff, err := h.auth.Authenticate(req.Username, req.PIN)
	if err != nil {
		h.logger.Warn("sign in failed", "username", req.Username)
		WriteErrorResponse(w, http.StatusUnauthorized, "authentication_failed", "Authentication failed")
		return
	}

	token, err := h.mintToken(staff)
	if err != nil {
		h.logger.Error("failed to mint token", "username", staff.Username, "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "authentication_failed", "Authentication failed")
		return
	}

	h.logger.Info("staff_signed_in", "username", staff.Username, "role", staff.Role)
	WriteJSONResponse(w, http.StatusOK, SignInResponse{
		Token:     token,
		TokenType: "Bearer",
		Role:      staff.Role,
	})
}

func (h *AuthHandler) mintToken(staff *authn.Staff) (string, error) {
	privateKey, err := h.config.KeyFetcher.FetchPrivateKey()
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := middleware.StaffClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    h.config.Issuer,
			Subject:   staff.Username,
			Audience:  []string{h.config.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(h.config.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		Role: staff.Role,
	}

	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(privateKey)
}
