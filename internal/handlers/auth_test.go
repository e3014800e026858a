package handlers_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cloudpanel/authcore/internal/handlers"
	"github.com/cloudpanel/authcore/internal/password"
	"github.com/cloudpanel/authcore/internal/services"
	"github.com/cloudpanel/authcore/internal/store"
	"github.com/cloudpanel/authcore/internal/token"
	"github.com/cloudpanel/authcore/types"
)

type authBody struct {
	Success bool     `json:"success"`
	Token   string   `json:"token"`
	Error   string   `json:"error"`
	Reasons []string `json:"reasons"`
	User    *struct {
		ID           string `json:"id"`
		Email        string `json:"email"`
		Name         string `json:"name"`
		Role         string `json:"role"`
		PasswordHash string `json:"passwordHash"`
		Profile      *struct {
			Theme string `json:"theme"`
		} `json:"profile"`
	} `json:"user"`
}

type testEnv struct {
	router http.Handler
	codec  *token.Codec
	now    time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{now: time.Now()}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	hasher, err := password.NewHasher(bcrypt.MinCost, 2)
	require.NoError(t, err)
	codec, err := token.NewCodec([]byte("handler-secret"), token.WithClock(func() time.Time { return env.now }))
	require.NoError(t, err)
	env.codec = codec

	users := store.NewUserRegistry(nil)
	auth := services.NewAuthService(services.AuthServiceConfig{
		Users:    users,
		Sessions: store.NewSessionStore(nil, 0),
		Hasher:   hasher,
		Codec:    codec,
		Logger:   logger,
	})
	handler := handlers.NewAuthHandler(auth, services.NewUserService(users), "", logger)

	router := chi.NewRouter()
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, handler)
	})
	env.router = router
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string, mutate ...func(*http.Request)) (*httptest.ResponseRecorder, authBody) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, m := range mutate {
		m(req)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var decoded authBody
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec, decoded
}

func bearer(tok string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

func TestRegisterLoginMe(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/auth/register", `{"email":"alice@example.com","password":"Str0ng!Pass","name":"Alice"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, body.Success)
	assert.NotEmpty(t, body.Token)
	require.NotNil(t, body.User)
	assert.Equal(t, "alice@example.com", body.User.Email)
	assert.Equal(t, "user", body.User.Role)
	assert.NotContains(t, rec.Body.String(), "asswordHash")
	assert.NotContains(t, rec.Body.String(), "$2a$")

	rec, body = env.do(t, http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"Str0ng!Pass"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)
	loginToken := body.Token

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, handlers.DefaultCookieName, cookies[0].Name)
	assert.Equal(t, loginToken, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	rec, body = env.do(t, http.MethodGet, "/auth/me", "", bearer(loginToken))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alice", body.User.Name)

	rec, body = env.do(t, http.MethodGet, "/auth/me", "", func(r *http.Request) { r.AddCookie(cookies[0]) })
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice@example.com", body.User.Email)
}

func TestRegister_Errors(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/auth/register", `{"email":"bob@example.com","password":"short1","name":"Bob"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, body.Success)
	assert.Equal(t, "weak password", body.Error)
	assert.Len(t, body.Reasons, 3)

	rec, body = env.do(t, http.MethodPost, "/auth/register", `{"email":"bob","password":"short1","name":"Bob"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid email format; weak password", body.Error)

	rec, _ = env.do(t, http.MethodPost, "/auth/register", `{"email":"bob@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/auth/register", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/auth/register", `{"email":"bob@example.com","password":"Str0ng!Pass","name":"Bob"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, body = env.do(t, http.MethodPost, "/auth/register", `{"email":"bob@example.com","password":"Str0ng!Pass","name":"Bob"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "email already registered", body.Error)
}

func TestLogin_InvalidCredentialsAreUniform(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodPost, "/auth/register", `{"email":"real@x.com","password":"Str0ng!Pass","name":"Real"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	unknown, unknownBody := env.do(t, http.MethodPost, "/auth/login", `{"email":"nouser@x.com","password":"anything"}`)
	wrong, wrongBody := env.do(t, http.MethodPost, "/auth/login", `{"email":"real@x.com","password":"wrongpass"}`)

	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, unknown.Code, wrong.Code)
	assert.Equal(t, unknownBody, wrongBody)
	assert.Equal(t, unknown.Body.String(), wrong.Body.String())
}

func TestRequireAuth_UniformUnauthenticated(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/auth/register", `{"email":"alice@example.com","password":"Str0ng!Pass","name":"Alice"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	valid := body.Token

	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	payload, err := env.codec.Verify(valid)
	require.NoError(t, err)
	saved := env.now
	env.now = saved.Add(-token.Validity - time.Minute)
	expired, _, err := env.codec.Sign(types.User{ID: payload.UserID, Email: payload.Email, Role: payload.Role})
	env.now = saved
	require.NoError(t, err)

	tests := map[string]func(*http.Request){
		"no token":      func(*http.Request) {},
		"wrong scheme":  func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") },
		"malformed":     bearer("not-a-token"),
		"bad signature": bearer(tampered),
		"expired":       bearer(expired),
		"empty cookie":  func(r *http.Request) { r.AddCookie(&http.Cookie{Name: handlers.DefaultCookieName, Value: ""}) },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			rec, body := env.do(t, http.MethodGet, "/auth/me", "", mutate)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "unauthenticated", body.Error)
		})
	}
}

func TestLogout_ClearsCookie(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/auth/logout", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, handlers.DefaultCookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestUpdateMe(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.do(t, http.MethodPost, "/auth/register", `{"email":"alice@example.com","password":"Str0ng!Pass","name":"Alice"}`)
	tok := body.Token

	rec, body := env.do(t, http.MethodPatch, "/auth/me", `{"name":"Alice L.","profile":{"theme":"dark"}}`, bearer(tok))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alice L.", body.User.Name)
	require.NotNil(t, body.User.Profile)
	assert.Equal(t, "dark", body.User.Profile.Theme)

	rec, _ = env.do(t, http.MethodPatch, "/auth/me", `{"name":"  "}`, bearer(tok))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodPatch, "/auth/me", `{"name":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
