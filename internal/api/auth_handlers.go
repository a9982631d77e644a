package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/pickup-orders/internal/auth"
	"github.com/example/pickup-orders/internal/store"
)

type AuthHandlers struct {
	store store.Store
	jwt   *auth.JWTService
	log   *logrus.Entry
}

func NewAuthHandlers(st store.Store, jwtService *auth.JWTService) *AuthHandlers {
	return &AuthHandlers{
		store: st,
		jwt:   jwtService,
		log:   logrus.WithField("component", "auth"),
	}
}

// Login authenticates a staff account and issues an access token, both
// as JSON and as a cookie so the SSE stream can authenticate.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	acc, err := h.store.GetStaffByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrStaffNotFound) {
			respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		h.log.WithError(err).Error("staff lookup failed")
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	if !auth.CheckPassword(req.Password, acc.PasswordHash) {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	token, expiresAt, err := h.jwt.GenerateToken(acc.ID, acc.Email, acc.Role)
	if err != nil {
		h.log.WithError(err).Error("token generation failed")
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	respondJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": expiresAt.Format(time.RFC3339),
		"role":       acc.Role,
	})
}
