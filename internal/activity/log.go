// ABOUTME: Append-only activity log of privileged actions
// ABOUTME: Record never fails the caller; storage errors are logged instead

package activity

import (
	"context"
	"log/slog"
	"time"

	"github.com/2389/lendtrack/internal/auth"
	"github.com/2389/lendtrack/internal/store"
)

// Log records who did what
type Log struct {
	store  store.ActivityStore
	now    func() time.Time
	logger *slog.Logger
}

// NewLog creates a Log over s. A nil clock means time.Now.
func NewLog(s store.ActivityStore, now func() time.Time, logger *slog.Logger) *Log {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{
		store:  s,
		now:    now,
		logger: logger.With("component", "activity"),
	}
}

// Record appends an entry for actorID. The session id is taken from the
// actor on ctx, if any.
func (l *Log) Record(ctx context.Context, actorID, description string) {
	rec := &store.ActivityRecord{
		ActorID:     actorID,
		Description: description,
		Timestamp:   l.now().UTC(),
	}
	if actor := auth.FromContext(ctx); actor != nil {
		rec.SessionID = actor.SessionID
	}

	if err := l.store.AppendActivity(ctx, rec); err != nil {
		l.logger.Error("failed to record activity",
			"actor", actorID,
			"description", description,
			"error", err,
		)
	}
}

// ListRecent returns up to limit entries, newest first. A limit of zero or
// less means 100; the maximum is 1000.
func (l *Log) ListRecent(ctx context.Context, limit int) ([]*store.ActivityRecord, error) {
	return l.store.ListActivity(ctx, limit)
}
