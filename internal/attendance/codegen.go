package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"clubattend/internal/docstore"
)

const (
	// DefaultCodeLength gives 16^6 (about 1.7e7) possible codes. With n
	// sessions stored, a single candidate collides with probability
	// n/16^6, so ten straight collisions are practically impossible until
	// the keyspace is nearly full.
	DefaultCodeLength      = 6
	DefaultCodeMaxAttempts = 10
	maxCodeLength          = 32
)

// RandomCode returns length lowercase hex characters from a v4 UUID.
func RandomCode(length int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:clampCodeLength(length)]
}

func clampCodeLength(n int) int {
	switch {
	case n <= 0:
		return DefaultCodeLength
	case n > maxCodeLength:
		return maxCodeLength
	}
	return n
}

// CodeGenerator allocates short, unused session ids.
type CodeGenerator struct {
	repo        *Repository
	length      int
	maxAttempts int
	source      func(length int) string
	obs         Observer
}

// NewCodeGenerator builds a generator. A nil source uses RandomCode.
func NewCodeGenerator(repo *Repository, length, maxAttempts int, source func(int) string) *CodeGenerator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultCodeMaxAttempts
	}
	if source == nil {
		source = RandomCode
	}
	return &CodeGenerator{
		repo:        repo,
		length:      clampCodeLength(length),
		maxAttempts: maxAttempts,
		source:      source,
		obs:         nopObserver{},
	}
}

// Allocate creates a zeroed session at scheduledAt under a fresh code.
// A create that loses a race to another allocator counts as a collision.
func (g *CodeGenerator) Allocate(ctx context.Context, scheduledAt time.Time) (Session, error) {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		code := g.source(g.length)
		taken, err := g.repo.SessionExists(ctx, code)
		if err != nil {
			return Session{}, fmt.Errorf("check session code: %w", err)
		}
		if taken {
			g.obs.CodeCollision()
			continue
		}
		s, err := g.repo.CreateSession(ctx, code, scheduledAt)
		if errors.Is(err, docstore.ErrAlreadyExists) {
			g.obs.CodeCollision()
			continue
		}
		if err != nil {
			return Session{}, fmt.Errorf("create session: %w", err)
		}
		return s, nil
	}
	return Session{}, fmt.Errorf("%w after %d attempts", ErrCodeSpaceExhausted, g.maxAttempts)
}
