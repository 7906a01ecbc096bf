// Package sessioncleaner runs a background goroutine that periodically
// clears expired session tokens from the user storage.
package sessioncleaner

import (
	"context"
	"time"

	"github.com/patric-chuzhbe/usersvc/internal/logger"
)

type sessionsKeeper interface {
	ClearExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

const errorChannelCapacity = 16

type SessionCleaner struct {
	db           sessionsKeeper
	interval     time.Duration
	errorChannel chan error
}

func New(db sessionsKeeper, interval time.Duration) *SessionCleaner {
	return &SessionCleaner{
		db:           db,
		interval:     interval,
		errorChannel: make(chan error, errorChannelCapacity),
	}
}

// ListenErrors invokes the callback for every error the cleaner produces.
func (c *SessionCleaner) ListenErrors(callback func(error)) {
	go func() {
		for err := range c.errorChannel {
			callback(err)
		}
	}()
}

// Run starts the periodic sweep. It returns immediately; the sweep stops
// and the error channel is closed when the context is cancelled.
func (c *SessionCleaner) Run(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		defer close(c.errorChannel)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cleared, err := c.db.ClearExpiredSessions(ctx, time.Now())
				if err != nil {
					select {
					case c.errorChannel <- err:
					default:
					}
					continue
				}
				if cleared > 0 {
					logger.Log.Infof("cleared %d expired sessions", cleared)
				}
			}
		}
	}()
}
