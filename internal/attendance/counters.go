package attendance

import (
	"context"
	"fmt"
)

// CounterUpdater applies accepted classifications to session counters.
//
// Increment is a plain read-then-write: two concurrent increments on the
// same session can read the same value and one of them is lost. The
// Reconciler repairs such drift from the entries afterwards.
type CounterUpdater struct {
	repo *Repository
}

func NewCounterUpdater(repo *Repository) *CounterUpdater {
	return &CounterUpdater{repo: repo}
}

// Increment reads the session and writes the matching counter plus one.
func (u *CounterUpdater) Increment(ctx context.Context, sessionID string, c Classification) error {
	s, err := u.repo.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("read session %s: %w", sessionID, err)
	}
	if s == nil {
		return fmt.Errorf("session %s disappeared before counter update", sessionID)
	}
	if err := u.repo.SetCounter(ctx, sessionID, c, s.Count(c)+1); err != nil {
		return fmt.Errorf("update %s counter: %w", c, err)
	}
	return nil
}
