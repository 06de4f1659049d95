package attendance

import (
	"context"
	"fmt"
)

// Tally is the per-classification entry count of a session.
type Tally map[Classification]int

// Reconciler raises session counters that fell behind their entries.
// It never lowers a counter.
type Reconciler struct {
	repo *Repository
}

func NewReconciler(repo *Repository) *Reconciler {
	return &Reconciler{repo: repo}
}

// Reconcile returns the entry tally for sessionID and whether any counter
// was raised.
func (r *Reconciler) Reconcile(ctx context.Context, sessionID string) (Tally, bool, error) {
	s, err := r.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	if s == nil {
		return nil, false, reject(ReasonSessionNotFound, nil)
	}
	entries, err := r.repo.ListEntries(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	tally := Tally{}
	for _, e := range entries {
		tally[e.Classification()]++
	}

	repaired := false
	for _, c := range []Classification{Present, Late, Excused} {
		if tally[c] > s.Count(c) {
			if err := r.repo.SetCounter(ctx, sessionID, c, tally[c]); err != nil {
				return tally, repaired, fmt.Errorf("raise %s counter: %w", c, err)
			}
			repaired = true
		}
	}
	return tally, repaired, nil
}

// ReconcileAll runs Reconcile over every session and returns how many
// sessions were repaired. It stops at the first error.
func (r *Reconciler) ReconcileAll(ctx context.Context) (int, error) {
	sessions, err := r.repo.ListSessions(ctx)
	if err != nil {
		return 0, err
	}
	repaired := 0
	for _, s := range sessions {
		if err := ctx.Err(); err != nil {
			return repaired, err
		}
		_, ok, err := r.Reconcile(ctx, s.ID)
		if err != nil {
			return repaired, fmt.Errorf("reconcile %s: %w", s.ID, err)
		}
		if ok {
			repaired++
		}
	}
	return repaired, nil
}
