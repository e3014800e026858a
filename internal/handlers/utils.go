package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cloudpanel/authcore/types"
)

type contextKey string

const contextUserKey contextKey = "user"

func withUser(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, contextUserKey, user)
}

func userFromContext(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	if !ok || user.ID == "" {
		return types.User{}, false
	}
	return user, true
}

// UserFromContext returns the user injected by RequireAuth.
func UserFromContext(ctx context.Context) (types.User, bool) {
	return userFromContext(ctx)
}

// ErrorResponse is the failure payload. Reasons lists violated password
// rules when the failure is a weak password.
type ErrorResponse struct {
	Success bool     `json:"success"`
	Error   string   `json:"error"`
	Reasons []string `json:"reasons,omitempty"`
}

// Healthz reports that the process is serving.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
