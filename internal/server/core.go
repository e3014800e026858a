package server

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/cloudpanel/authcore/config"
	"github.com/cloudpanel/authcore/internal/password"
	"github.com/cloudpanel/authcore/internal/services"
	"github.com/cloudpanel/authcore/internal/store"
	"github.com/cloudpanel/authcore/internal/token"
)

// Core is the identity and session core constructed once per process.
type Core struct {
	Users    *store.UserRegistry
	Sessions *store.SessionStore
	Sweeper  *store.Sweeper
	Auth     *services.AuthService
	UserSvc  *services.UserService
}

// NewCore builds the core from cfg. events may be nil. Metrics are
// registered on reg when it is not nil.
func NewCore(cfg config.AuthConfig, logger *slog.Logger, reg prometheus.Registerer, events services.EventPublisher) (*Core, error) {
	if cfg.JWTSecret == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("JWT_SECRET is required")
	}

	hasher, err := password.NewHasher(cfg.BcryptCost, cfg.HashWorkers)
	if err != nil {
		return nil, err
	}
	codec, err := token.NewCodec([]byte(cfg.JWTSecret))
	if err != nil {
		return nil, err
	}

	users := store.NewUserRegistry(nil)
	sessions := store.NewSessionStore(nil, store.DefaultSweepBatch)

	core := &Core{
		Users:    users,
		Sessions: sessions,
		Sweeper: store.NewSweeper(sessions, store.SweeperConfig{
			Interval:   cfg.SweepInterval,
			Logger:     logger,
			Registerer: reg,
		}),
		UserSvc: services.NewUserService(users),
	}

	authCfg := services.AuthServiceConfig{
		Users:      users,
		Sessions:   sessions,
		Hasher:     hasher,
		Codec:      codec,
		Logger:     logger,
		Registerer: reg,
		Events:     events,
	}
	core.Auth = services.NewAuthService(authCfg)

	return core, nil
}
