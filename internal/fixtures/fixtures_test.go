package fixtures_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cloudpanel/authcore/config"
	"github.com/cloudpanel/authcore/internal/fixtures"
	"github.com/cloudpanel/authcore/internal/password"
	"github.com/cloudpanel/authcore/internal/services"
	"github.com/cloudpanel/authcore/internal/storage"
	"github.com/cloudpanel/authcore/internal/store"
	"github.com/cloudpanel/authcore/internal/token"
	"github.com/cloudpanel/authcore/types"
)

const document = `
users:
  - email: admin@example.com
    password: Adm1n!Pass
    name: Admin
    role: admin
    profile:
      theme: dark
      notifications:
        billing: true
  - email: demo@example.com
    password: Dem0!Pass
    name: Demo
`

func newLoader(t *testing.T) (*fixtures.Loader, *services.AuthService, *store.UserRegistry) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hasher, err := password.NewHasher(bcrypt.MinCost, 2)
	require.NoError(t, err)
	codec, err := token.NewCodec([]byte("fixture-secret"))
	require.NoError(t, err)

	users := store.NewUserRegistry(nil)
	auth := services.NewAuthService(services.AuthServiceConfig{
		Users:    users,
		Sessions: store.NewSessionStore(nil, 0),
		Hasher:   hasher,
		Codec:    codec,
		Logger:   logger,
	})
	return fixtures.NewLoader(auth, services.NewUserService(users), logger), auth, users
}

func TestParse(t *testing.T) {
	parsed, err := fixtures.Parse([]byte(document))
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, types.RoleAdmin, parsed[0].Role)
	require.NotNil(t, parsed[0].Profile)
	assert.Equal(t, "dark", parsed[0].Profile.Theme)
	assert.True(t, parsed[0].Profile.Notifications.Billing)
	assert.Nil(t, parsed[1].Profile)

	empty, err := fixtures.Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown field":    "users:\n  - email: a@b.co\n    password: x\n    nickname: y\n",
		"missing password": "users:\n  - email: a@b.co\n",
		"bad role":         "users:\n  - email: a@b.co\n    password: x\n    role: root\n",
		"not yaml":         "users: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := fixtures.Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFrom_FileSource(t *testing.T) {
	ctx := context.Background()
	loader, auth, users := newLoader(t)

	src, err := storage.New(ctx, config.FixturesConfig{Source: config.FixturesFile, Dir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, src.Write(ctx, "users.yaml", []byte(document), "application/yaml"))

	result, err := loader.LoadFrom(ctx, src, "users.yaml")
	require.NoError(t, err)
	require.Len(t, result.Created, 2)
	assert.Empty(t, result.Skipped)

	admin, err := users.GetByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, admin.Role)
	assert.Equal(t, "dark", admin.Profile.Theme)
	assert.Empty(t, result.Created[0].PasswordHash)

	login, err := auth.Login(ctx, "demo@example.com", "Dem0!Pass")
	require.NoError(t, err)
	assert.Equal(t, types.RoleUser, login.User.Role)
}

func TestLoad_SkipsExistingEmails(t *testing.T) {
	ctx := context.Background()
	loader, _, users := newLoader(t)

	parsed, err := fixtures.Parse([]byte(document))
	require.NoError(t, err)

	_, err = loader.Load(ctx, parsed)
	require.NoError(t, err)

	again, err := loader.Load(ctx, parsed)
	require.NoError(t, err)
	assert.Empty(t, again.Created)
	assert.Equal(t, []string{"admin@example.com", "demo@example.com"}, again.Skipped)
	assert.Equal(t, 2, users.Count())
}

func TestLoad_StopsOnWeakPassword(t *testing.T) {
	ctx := context.Background()
	loader, _, users := newLoader(t)

	result, err := loader.Load(ctx, []fixtures.UserFixture{
		{Email: "ok@example.com", Password: "G00d!Pass"},
		{Email: "weak@example.com", Password: "weak"},
		{Email: "never@example.com", Password: "G00d!Pass"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrWeakPassword)
	assert.Len(t, result.Created, 1)
	assert.Equal(t, 1, users.Count())
}

func TestLoadFrom_MissingKey(t *testing.T) {
	ctx := context.Background()
	loader, _, _ := newLoader(t)

	src, err := storage.New(ctx, config.FixturesConfig{Source: config.FixturesFile, Dir: t.TempDir()})
	require.NoError(t, err)

	_, err = loader.LoadFrom(ctx, src, "missing.yaml")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}
