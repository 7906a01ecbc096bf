package sessioncleaner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/usersvc/internal/db/memorystorage"
	"github.com/patric-chuzhbe/usersvc/internal/logger"
	"github.com/patric-chuzhbe/usersvc/internal/user"
)

func TestRunClearsExpiredSessions(t *testing.T) {
	require.NoError(t, logger.Init("debug"))

	db, err := memorystorage.New()
	require.NoError(t, err)

	ctx := context.Background()
	_, err = db.CreateUser(ctx, &user.User{
		Email:         "a@x.com",
		Username:      "a",
		SessionToken:  "token-a",
		SessionExpiry: time.Now().Add(-time.Minute),
	}, nil)
	require.NoError(t, err)

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	cleaner := New(db, 10*time.Millisecond)
	cleaner.Run(runCtx)

	require.Eventually(
		t,
		func() bool {
			_, found, err := db.GetUserBySessionToken(ctx, "token-a")
			return err == nil && !found
		},
		time.Second,
		5*time.Millisecond,
		"the expired session should be cleared by the background sweep",
	)
}

type failingSessionsKeeper struct {
	mu    sync.Mutex
	calls int
}

func (k *failingSessionsKeeper) ClearExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.calls++

	return 0, errors.New("the storage is down")
}

func TestListenErrors(t *testing.T) {
	require.NoError(t, logger.Init("debug"))

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	var mu sync.Mutex
	var received []error

	cleaner := New(&failingSessionsKeeper{}, 10*time.Millisecond)
	cleaner.ListenErrors(func(err error) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, err)
	})
	cleaner.Run(runCtx)

	require.Eventually(
		t,
		func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(received) > 0
		},
		time.Second,
		5*time.Millisecond,
	)

	mu.Lock()
	defer mu.Unlock()
	assert.EqualError(t, received[0], "the storage is down")
}
