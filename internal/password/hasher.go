// Package password hashes and verifies user credentials and checks them
// against the password policy.
package password

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"runtime"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// DefaultCost is the bcrypt work factor used unless configured otherwise.
const DefaultCost = 12

// Hasher hashes passwords with bcrypt. Every Hash and Verify call runs in
// one of a fixed number of worker slots; callers beyond that queue.
type Hasher struct {
	cost  int
	slots *semaphore.Weighted
	dummy string
}

// NewHasher creates a Hasher with the given bcrypt cost and number of
// concurrent hashing slots. workers <= 0 uses runtime.NumCPU().
func NewHasher(cost, workers int) (*Hasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, oops.Code("PASSWORD_INVALID_COST").
			With("cost", cost).
			Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	// The dummy hash is verified when a login names an unknown email so the
	// response takes as long as a real password check.
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, oops.Code("PASSWORD_SEED_FAILED").Wrap(err)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(seed)), cost)
	if err != nil {
		return nil, oops.Code("PASSWORD_SEED_FAILED").Wrap(err)
	}

	return &Hasher{
		cost:  cost,
		slots: semaphore.NewWeighted(int64(workers)),
		dummy: string(dummy),
	}, nil
}

// Cost returns the configured bcrypt work factor.
func (h *Hasher) Cost() int {
	return h.cost
}

// DummyHash returns a valid hash that no caller-supplied password matches.
func (h *Hasher) DummyHash() string {
	return h.dummy
}

// Hash produces a salted bcrypt hash of password.
// ctx only bounds the wait for a free slot; hashing itself is not interrupted.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if len(password) > MaxLength {
		return "", oops.Code("PASSWORD_TOO_LONG").
			With("max_bytes", MaxLength).
			Wrap(bcrypt.ErrPasswordTooLong)
	}
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return "", oops.Code("PASSWORD_SLOT_UNAVAILABLE").Wrap(err)
	}
	defer h.slots.Release(1)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", oops.Code("PASSWORD_HASH_FAILED").Wrap(err)
	}
	return string(hash), nil
}

// Verify checks password against hash.
// Returns (true, nil) on match, (false, nil) on mismatch, or an error when
// the hash is not a bcrypt hash or no slot could be acquired.
func (h *Hasher) Verify(ctx context.Context, password, hash string) (bool, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return false, oops.Code("PASSWORD_SLOT_UNAVAILABLE").Wrap(err)
	}
	defer h.slots.Release(1)

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, oops.Code("PASSWORD_INVALID_HASH").Wrap(err)
	}
}
