package attendance_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"clubattend/internal/attendance"
	"clubattend/internal/docstore"
	"clubattend/internal/docstore/memory"
	"clubattend/internal/identity"
)

// meetingTime is the scheduled start T used throughout the tests.
var meetingTime = time.Date(2026, 10, 20, 18, 0, 0, 0, time.UTC)

var pdsb = identity.Membership{Domain: "pdsb.net"}

// fakeResolver maps tokens to identities. "ghost" does not resolve and
// "flaky" fails as if the provider were down.
type fakeResolver map[string]identity.Identity

func (f fakeResolver) Resolve(_ context.Context, token string) (identity.Identity, error) {
	switch token {
	case "flaky":
		return identity.Identity{}, errors.New("provider timeout")
	}
	id, ok := f[token]
	if !ok {
		return identity.Identity{}, identity.ErrInvalidToken
	}
	return id, nil
}

func member(uid, number, name string) identity.Identity {
	email := number + "@pdsb.net"
	return identity.Identity{
		SubjectID:            uid,
		DisplayName:          name,
		Email:                email,
		PhotoURL:             "https://example.com/" + uid + ".png",
		IsOrganizationMember: pdsb.IsMember(email),
	}
}

var identities = fakeResolver{
	"admin":   member("uid-admin", "100000", "Org Admin"),
	"alice":   member("uid-alice", "123456", "Alice"),
	"bob":     member("uid-bob", "234567", "Bob"),
	"mallory": {SubjectID: "uid-mallory", Email: "mallory@gmail.com"},
	"nested":  member("x/entries/y", "345678", "Nested"),
	"slashed": member("a/b", "456789", "Slashed"),
	"blank":   member("", "567890", "Blank"),
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type fixture struct {
	svc   *attendance.Service
	repo  *attendance.Repository
	clock *clock
}

// newFixture wires a service over store (memory when nil) with uid-admin
// registered as an admin and the clock two hours before meetingTime.
func newFixture(t *testing.T, store docstore.Store) *fixture {
	t.Helper()
	if store == nil {
		store = memory.New()
	}
	repo := attendance.NewRepository(store)
	if err := repo.GrantAdmin(context.Background(), "uid-admin"); err != nil {
		t.Fatalf("GrantAdmin: %v", err)
	}
	allow, err := attendance.ParseAllowlist([]string{"10.0.0.0/8", "::1"})
	if err != nil {
		t.Fatalf("ParseAllowlist: %v", err)
	}
	policy := attendance.DefaultPolicy()
	policy.Allowlist = allow

	clk := &clock{t: meetingTime.Add(-2 * time.Hour)}
	svc := attendance.NewService(repo, identities, attendance.Options{
		Policy:     policy,
		Membership: pdsb,
		Now:        clk.Now,
	})
	return &fixture{svc: svc, repo: repo, clock: clk}
}

// createSession schedules a session at meetingTime and returns its id.
func (f *fixture) createSession(t *testing.T) string {
	t.Helper()
	sess, err := f.svc.CreateSession(context.Background(), "admin", meetingTime)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return sess.ID
}

func (f *fixture) session(t *testing.T, id string) attendance.Session {
	t.Helper()
	s, err := f.repo.GetSession(context.Background(), id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if s == nil {
		t.Fatalf("session %s not found", id)
	}
	return *s
}

func live(token, sessionID string, offset time.Duration) attendance.CheckInRequest {
	return attendance.CheckInRequest{
		IdentityToken: token,
		SessionID:     sessionID,
		Kind:          attendance.KindLive,
		SourceIP:      "10.1.2.3",
		RequestTime:   meetingTime.Add(offset),
	}
}

func excused(token, sessionID string, offset time.Duration, reason string) attendance.CheckInRequest {
	return attendance.CheckInRequest{
		IdentityToken: token,
		SessionID:     sessionID,
		Kind:          attendance.KindExcused,
		ExcusedReason: reason,
		SourceIP:      "10.1.2.3",
		RequestTime:   meetingTime.Add(offset),
	}
}

func expectReason(t *testing.T, err error, want attendance.Reason) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected rejection %s, got success", want)
	}
	if got := attendance.ReasonOf(err); got != want {
		t.Fatalf("expected rejection %s, got %s (%v)", want, got, err)
	}
}

// gate blocks callers until n of them have arrived, then lets everyone
// through. Calls after the n-th pass straight through.
type gate struct {
	mu   sync.Mutex
	n    int
	open chan struct{}
}

func newGate(n int) *gate {
	return &gate{n: n, open: make(chan struct{})}
}

func (g *gate) wait() {
	g.mu.Lock()
	g.n--
	if g.n == 0 {
		close(g.open)
	}
	g.mu.Unlock()
	<-g.open
}

// gatedStore holds Get calls on paths ending in suffix at the gate, so
// concurrent requests all read before any of them writes.
type gatedStore struct {
	docstore.Store
	suffix string
	gate   *gate
}

func (s *gatedStore) Get(ctx context.Context, path string) ([]byte, error) {
	if strings.HasSuffix(path, s.suffix) {
		s.gate.wait()
	}
	return s.Store.Get(ctx, path)
}

// staleStore reports every entry as absent on Get, as a reader that lost
// the race against a concurrent writer would see it.
type staleStore struct {
	docstore.Store
}

func (s staleStore) Get(ctx context.Context, path string) ([]byte, error) {
	if strings.Contains(path, "/entries/") {
		return nil, docstore.ErrNotFound
	}
	return s.Store.Get(ctx, path)
}

// failingStore fails every Update.
type failingStore struct {
	docstore.Store
}

func (failingStore) Update(context.Context, string, map[string]any) error {
	return errors.New("disk full")
}
