package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/recipe-costing/pkg/audit"
	"github.com/ekaya-inc/recipe-costing/pkg/auth"
	"github.com/ekaya-inc/recipe-costing/pkg/config"
)

// SessionResponse is returned after the browser session changes.
type SessionResponse struct {
	Success     bool   `json:"success"`
	RedirectURL string `json:"redirect_url"`
}

// GetMeResponse describes the authenticated tenant.
type GetMeResponse struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
}

// AuthHandler turns a verified bearer token into a browser session so the UI
// can stop sending the token on every request. Sessions are optional: with
// no session store only /api/auth/me is served.
type AuthHandler struct {
	sessions *auth.SessionStore
	auditor  *audit.Auditor
	config   *config.Config
	logger   *zap.Logger
}

// NewAuthHandler creates a new auth handler. sessions and auditor may be nil.
func NewAuthHandler(sessions *auth.SessionStore, auditor *audit.Auditor, cfg *config.Config, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		auditor:  auditor,
		config:   cfg,
		logger:   logger,
	}
}

// RegisterRoutes registers the auth handler's routes on the given mux.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/auth/me", authMiddleware.RequireAuth(h.GetMe))
	if h.sessions == nil {
		return
	}
	mux.HandleFunc("POST /api/auth/session", authMiddleware.RequireAuth(h.StartSession))
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
}

// StartSession handles POST /api/auth/session
// The caller has already passed RequireAuth, so the tenant id is trusted.
func (h *AuthHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.sessions.SignIn(w, r, userID); err != nil {
		h.logger.Error("Failed to save session", zap.Int64("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "session_failed", "Failed to start session", h.logger)
		return
	}

	h.auditor.LogSession(audit.EventSessionStarted, userID, r.RemoteAddr)
	if err := WriteJSON(w, http.StatusOK, SessionResponse{Success: true, RedirectURL: "/"}); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// Logout handles POST /api/auth/logout
// Expires the session and clears any JWT cookie. Safe to call when signed out.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, _ := h.sessions.UserID(r)
	cookieSettings := auth.DeriveCookieSettings(h.config.BaseURL, h.config.CookieDomain)

	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   cookieSettings.Secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
		Path:     "/",
		Domain:   cookieSettings.Domain,
	})

	if err := h.sessions.SignOut(w, r); err != nil {
		h.logger.Error("Failed to clear session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "session_failed", "Failed to end session", h.logger)
		return
	}
	h.auditor.LogSession(audit.EventSessionEnded, userID, r.RemoteAddr)

	if err := WriteJSON(w, http.StatusOK, SessionResponse{Success: true, RedirectURL: "/"}); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// GetMe handles GET /api/auth/me
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok || claims == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Not authenticated", h.logger)
		return
	}
	userID, err := claims.TenantID()
	if err != nil {
		writeError(w, http.StatusForbidden, "forbidden", "Token does not identify a user account", h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, GetMeResponse{
		UserID: userID,
		Email:  claims.Email,
		Name:   claims.Name,
	}); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
