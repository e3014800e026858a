package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cloudpanel/authcore/internal/logging"
	"github.com/cloudpanel/authcore/internal/services"
	"github.com/cloudpanel/authcore/types"
)

// DefaultCookieName is the cookie that carries the token when no
// Authorization header is sent.
const DefaultCookieName = "auth_token"

// AuthHandler translates HTTP requests into AuthService calls.
type AuthHandler struct {
	auth       *services.AuthService
	users      *services.UserService
	cookieName string
	logger     *slog.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(auth *services.AuthService, users *services.UserService, cookieName string, logger *slog.Logger) *AuthHandler {
	if strings.TrimSpace(cookieName) == "" {
		cookieName = DefaultCookieName
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		auth:       auth,
		users:      users,
		cookieName: cookieName,
		logger:     logger.With("component", "auth_handler"),
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/logout", handler.Logout)
	r.Group(func(r chi.Router) {
		r.Use(handler.RequireAuth)
		r.Get("/me", handler.Me)
		r.Patch("/me", handler.UpdateMe)
	})
}

// RequireAuth authenticates the request token and injects the user into
// the request context. Every token failure answers 401 unauthenticated.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := h.requestToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}

		user, err := h.auth.Authenticate(r.Context(), tokenString)
		if err != nil {
			if services.IsTokenError(err) || errors.Is(err, services.ErrUserNotFound) {
				writeError(w, http.StatusUnauthorized, "unauthenticated")
				return
			}
			logging.LogError(r.Context(), h.logger, "authenticate failed", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// Register creates a new user account and returns a token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Name == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	result, err := h.auth.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{Success: true, User: &result.User, Token: result.Token})
}

// Login verifies credentials, sets the token cookie and returns the token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	http.SetCookie(w, h.cookie(r, result.Token, int(services.SessionTTL.Seconds())))
	writeJSON(w, http.StatusOK, AuthResponse{Success: true, User: &result.User, Token: result.Token})
}

// Logout clears the token cookie. The token itself stays valid until it
// expires.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.auth.Logout(r.Context())
	http.SetCookie(w, h.cookie(r, "", -1))
	writeJSON(w, http.StatusOK, AuthResponse{Success: true})
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{Success: true, User: &user})
}

// UpdateMe changes the name or profile of the current user.
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req UpdateMeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			writeError(w, http.StatusBadRequest, "name cannot be empty")
			return
		}
		req.Name = &name
	}

	updated, err := h.users.Update(r.Context(), user.ID, types.UserUpdate{Name: req.Name, Profile: req.Profile})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{Success: true, User: &updated})
}

func (h *AuthHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var weak *services.WeakPasswordError
	switch {
	case errors.As(err, &weak) || errors.Is(err, services.ErrInvalidEmailFormat):
		resp := ErrorResponse{Error: validationMessage(err)}
		if weak != nil {
			resp.Reasons = weak.Reasons()
		}
		writeJSON(w, http.StatusBadRequest, resp)
	case errors.Is(err, services.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, services.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, services.ErrUserNotFound):
		writeError(w, http.StatusUnauthorized, "unauthenticated")
	default:
		logging.LogError(r.Context(), h.logger, "request failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func validationMessage(err error) string {
	var parts []string
	if errors.Is(err, services.ErrInvalidEmailFormat) {
		parts = append(parts, services.ErrInvalidEmailFormat.Error())
	}
	if errors.Is(err, services.ErrWeakPassword) {
		parts = append(parts, services.ErrWeakPassword.Error())
	}
	return strings.Join(parts, "; ")
}

// requestToken prefers the Authorization header and falls back to the
// token cookie. A present but malformed header is an error.
func (h *AuthHandler) requestToken(r *http.Request) (string, error) {
	if strings.TrimSpace(r.Header.Get("Authorization")) != "" {
		return bearerToken(r)
	}
	cookie, err := r.Cookie(h.cookieName)
	if err != nil {
		return "", errors.New("missing authorization")
	}
	if strings.TrimSpace(cookie.Value) == "" {
		return "", errors.New("missing authorization")
	}
	return cookie.Value, nil
}

func (h *AuthHandler) cookie(r *http.Request, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdateMeRequest struct {
	Name    *string        `json:"name,omitempty"`
	Profile *types.Profile `json:"profile,omitempty"`
}

type AuthResponse struct {
	Success bool        `json:"success"`
	User    *types.User `json:"user,omitempty"`
	Token   string      `json:"token,omitempty"`
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
