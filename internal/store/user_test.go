package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudpanel/authcore/internal/store"
	"github.com/cloudpanel/authcore/types"
)

// testClock is a settable clock safe for concurrent reads.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func ptr[T any](v T) *T { return &v }

func TestUserRegistry_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	reg := store.NewUserRegistry(clock.Now)

	created, err := reg.Create(ctx, types.User{Email: "alice@example.com", Name: "Alice", PasswordHash: "hash"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, types.RoleUser, created.Role)
	assert.Equal(t, clock.Now(), created.CreatedAt)
	assert.Equal(t, clock.Now(), created.UpdatedAt)

	byID, err := reg.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, byID)

	byEmail, err := reg.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, created, byEmail)
	assert.Equal(t, 1, reg.Count())
}

func TestUserRegistry_NotFound(t *testing.T) {
	ctx := context.Background()
	reg := store.NewUserRegistry(nil)

	_, err := reg.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = reg.GetByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = reg.Update(ctx, "missing", types.UserUpdate{Name: ptr("x")})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUserRegistry_CreateValidation(t *testing.T) {
	ctx := context.Background()
	reg := store.NewUserRegistry(nil)

	_, err := reg.Create(ctx, types.User{Name: "No Email"})
	assert.ErrorIs(t, err, store.ErrInvalidRecord)

	_, err = reg.Create(ctx, types.User{Email: "x@example.com", Role: "root"})
	assert.ErrorIs(t, err, store.ErrInvalidRecord)

	first, err := reg.Create(ctx, types.User{ID: "fixed", Email: "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", first.ID)

	_, err = reg.Create(ctx, types.User{ID: "fixed", Email: "b@example.com"})
	assert.ErrorIs(t, err, store.ErrDuplicateID)
}

func TestUserRegistry_DuplicateEmailIsCaseSensitive(t *testing.T) {
	ctx := context.Background()
	reg := store.NewUserRegistry(nil)

	_, err := reg.Create(ctx, types.User{Email: "alice@example.com"})
	require.NoError(t, err)

	_, err = reg.Create(ctx, types.User{Email: "alice@example.com"})
	assert.ErrorIs(t, err, store.ErrDuplicateEmail)

	_, err = reg.Create(ctx, types.User{Email: "Alice@example.com"})
	assert.NoError(t, err)
}

func TestUserRegistry_ConcurrentCreateSameEmail(t *testing.T) {
	ctx := context.Background()
	reg := store.NewUserRegistry(nil)

	const workers = 64
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dupes     int
	)
	start := make(chan struct{})
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := reg.Create(ctx, types.User{Email: "race@example.com", Name: fmt.Sprintf("user %d", i)})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, store.ErrDuplicateEmail):
				dupes++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, dupes)
	assert.Equal(t, 1, reg.Count())
}

func TestUserRegistry_ConcurrentCreateDistinctEmails(t *testing.T) {
	ctx := context.Background()
	reg := store.NewUserRegistry(nil)

	const workers = 64
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.Create(ctx, types.User{Email: fmt.Sprintf("user%d@example.com", i)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, reg.Count())
}

func TestUserRegistry_Update(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	reg := store.NewUserRegistry(clock.Now)

	created, err := reg.Create(ctx, types.User{Email: "alice@example.com", Name: "Alice"})
	require.NoError(t, err)
	_, err = reg.Create(ctx, types.User{Email: "bob@example.com", Name: "Bob"})
	require.NoError(t, err)

	clock.Advance(time.Minute)

	t.Run("merges fields and refreshes UpdatedAt", func(t *testing.T) {
		updated, err := reg.Update(ctx, created.ID, types.UserUpdate{
			Name:    ptr("Alice Liddell"),
			Role:    ptr(types.RoleAdmin),
			Profile: &types.Profile{Theme: "dark"},
		})
		require.NoError(t, err)
		assert.Equal(t, created.ID, updated.ID)
		assert.Equal(t, "Alice Liddell", updated.Name)
		assert.Equal(t, types.RoleAdmin, updated.Role)
		assert.Equal(t, "dark", updated.Profile.Theme)
		assert.Equal(t, created.CreatedAt, updated.CreatedAt)
		assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	})

	t.Run("email change moves the index", func(t *testing.T) {
		_, err := reg.Update(ctx, created.ID, types.UserUpdate{Email: ptr("alice@new.example.com")})
		require.NoError(t, err)

		_, err = reg.GetByEmail(ctx, "alice@example.com")
		assert.ErrorIs(t, err, store.ErrNotFound)

		got, err := reg.GetByEmail(ctx, "alice@new.example.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("email change to a taken email fails", func(t *testing.T) {
		_, err := reg.Update(ctx, created.ID, types.UserUpdate{Email: ptr("bob@example.com")})
		assert.ErrorIs(t, err, store.ErrDuplicateEmail)
	})

	t.Run("rejects invalid role", func(t *testing.T) {
		_, err := reg.Update(ctx, created.ID, types.UserUpdate{Role: ptr(types.Role("root"))})
		assert.ErrorIs(t, err, store.ErrInvalidRecord)
	})
}

func TestUserRegistry_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	reg := store.NewUserRegistry(nil)

	created, err := reg.Create(ctx, types.User{Email: "alice@example.com", Profile: &types.Profile{Theme: "light"}})
	require.NoError(t, err)

	got, err := reg.GetByID(ctx, created.ID)
	require.NoError(t, err)
	got.Profile.Theme = "mutated"
	got.Name = "mutated"

	again, err := reg.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "light", again.Profile.Theme)
	assert.Empty(t, again.Name)
}
