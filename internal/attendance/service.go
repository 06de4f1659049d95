package attendance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"clubattend/internal/docstore"
	"clubattend/internal/identity"
)

// Observer receives outcome notifications, e.g. for metrics.
type Observer interface {
	CheckInAccepted(c Classification, degraded bool)
	CheckInRejected(r Reason)
	SessionCreated()
	CodeCollision()
}

type nopObserver struct{}

func (nopObserver) CheckInAccepted(Classification, bool) {}
func (nopObserver) CheckInRejected(Reason)               {}
func (nopObserver) SessionCreated()                      {}
func (nopObserver) CodeCollision()                       {}

// CheckInRequest is a single check-in attempt.
type CheckInRequest struct {
	IdentityToken string
	SessionID     string
	Kind          Kind
	ExcusedReason string
	SourceIP      string
	// RequestTime defaults to the service clock when zero.
	RequestTime time.Time
}

// Result describes an accepted check-in.
type Result struct {
	Classification  Classification
	IsAllowlistedIP bool
}

// Degraded is true when the check-in came from outside the allowlist.
func (r Result) Degraded() bool { return !r.IsAllowlistedIP }

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	Policy          Policy
	Membership      identity.Membership
	CodeLength      int
	CodeMaxAttempts int
	CodeSource      func(length int) string
	Observer        Observer
	Now             func() time.Time
}

// Service coordinates identity resolution, admission and storage.
type Service struct {
	repo       *Repository
	resolver   identity.Resolver
	policy     Policy
	membership identity.Membership
	codes      *CodeGenerator
	counters   *CounterUpdater
	obs        Observer
	now        func() time.Time
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository, resolver identity.Resolver, opts Options) *Service {
	if opts.Policy.Window == 0 {
		allow := opts.Policy.Allowlist
		opts.Policy = DefaultPolicy()
		opts.Policy.Allowlist = allow
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	codes := NewCodeGenerator(repo, opts.CodeLength, opts.CodeMaxAttempts, opts.CodeSource)
	codes.obs = opts.Observer
	return &Service{
		repo:       repo,
		resolver:   resolver,
		policy:     opts.Policy,
		membership: opts.Membership,
		codes:      codes,
		counters:   NewCounterUpdater(repo),
		obs:        opts.Observer,
		now:        opts.Now,
	}
}

// Policy returns the active admission policy.
func (s *Service) Policy() Policy { return s.policy }

func (s *Service) resolve(ctx context.Context, token string) (identity.Identity, error) {
	id, err := s.resolver.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidToken) {
			return identity.Identity{}, reject(ReasonIdentityInvalid, err)
		}
		return identity.Identity{}, reject(ReasonIdentityResolutionFailed, err)
	}
	// The subject id becomes a document path segment.
	if id.SubjectID == "" || strings.Contains(id.SubjectID, "/") {
		return identity.Identity{}, reject(ReasonIdentityInvalid, fmt.Errorf("unusable subject id %q", id.SubjectID))
	}
	return id, nil
}

// RequireAdmin resolves token and checks the admin registry.
func (s *Service) RequireAdmin(ctx context.Context, token string) error {
	_, err := s.requireAdmin(ctx, token)
	return err
}

func (s *Service) requireAdmin(ctx context.Context, token string) (identity.Identity, error) {
	id, err := s.resolve(ctx, token)
	if err != nil {
		return identity.Identity{}, err
	}
	ok, err := s.repo.IsAdmin(ctx, id.SubjectID)
	if err != nil {
		return identity.Identity{}, reject(ReasonInternal, fmt.Errorf("admin lookup: %w", err))
	}
	if !ok {
		return identity.Identity{}, reject(ReasonNotAdmin, nil)
	}
	return id, nil
}

// CheckIn admits or rejects a check-in attempt. Every error it returns is
// classified by ReasonOf.
func (s *Service) CheckIn(ctx context.Context, req CheckInRequest) (Result, error) {
	res, err := s.checkIn(ctx, req)
	if err != nil {
		s.obs.CheckInRejected(ReasonOf(err))
		return Result{}, err
	}
	s.obs.CheckInAccepted(res.Classification, res.Degraded())
	return res, nil
}

func (s *Service) checkIn(ctx context.Context, req CheckInRequest) (Result, error) {
	now := req.RequestTime
	if now.IsZero() {
		now = s.now()
	}

	id, err := s.resolve(ctx, req.IdentityToken)
	if err != nil {
		return Result{}, err
	}

	attempt := Attempt{
		Identity:      id,
		RequestTime:   now,
		Kind:          req.Kind,
		ExcusedReason: req.ExcusedReason,
		IPAddress:     req.SourceIP,
	}
	sessionID := CleanSessionID(req.SessionID)
	if id.IsOrganizationMember {
		attempt.Session, err = s.repo.GetSession(ctx, sessionID)
		if err != nil {
			return Result{}, reject(ReasonInternal, fmt.Errorf("load session: %w", err))
		}
		if attempt.Session != nil {
			existing, err := s.repo.GetEntry(ctx, sessionID, id.SubjectID)
			if err != nil {
				return Result{}, reject(ReasonInternal, fmt.Errorf("load entry: %w", err))
			}
			attempt.ExistingEntry = existing != nil
		}
	}

	d, err := s.policy.Decide(attempt)
	if err != nil {
		return Result{}, err
	}

	entry := Entry{
		SubjectID:       id.SubjectID,
		StudentNumber:   s.membership.StudentNumber(id.Email),
		DisplayName:     id.DisplayName,
		PhotoURL:        id.PhotoURL,
		IPAddress:       req.SourceIP,
		IsAllowlistedIP: d.IsAllowlistedIP,
		CheckedInAt:     now.UTC(),
		IsLate:          d.Classification == Late,
		IsExcused:       d.Classification == Excused,
		ExcusedReason:   d.ExcusedReason,
	}
	if err := s.repo.CreateEntry(ctx, sessionID, entry); err != nil {
		if errors.Is(err, docstore.ErrAlreadyExists) {
			return Result{}, reject(ReasonDuplicateCheckIn, err)
		}
		return Result{}, reject(ReasonInternal, fmt.Errorf("create entry: %w", err))
	}
	if err := s.counters.Increment(ctx, sessionID, d.Classification); err != nil {
		return Result{}, reject(ReasonInternal, err)
	}
	return Result{Classification: d.Classification, IsAllowlistedIP: d.IsAllowlistedIP}, nil
}

// CreateSession allocates a new session scheduled at proposedAt on behalf
// of an admin.
func (s *Service) CreateSession(ctx context.Context, token string, proposedAt time.Time) (Session, error) {
	if _, err := s.requireAdmin(ctx, token); err != nil {
		return Session{}, err
	}
	if proposedAt.IsZero() {
		return Session{}, reject(ReasonInvalidTimestamp, errors.New("missing scheduled time"))
	}
	if !proposedAt.After(s.now()) {
		return Session{}, reject(ReasonInvalidTimestamp, errors.New("scheduled time must be in the future"))
	}
	sess, err := s.codes.Allocate(ctx, proposedAt)
	if err != nil {
		return Session{}, reject(ReasonInternal, err)
	}
	s.obs.SessionCreated()
	return sess, nil
}

// Summary returns a session with its entries, newest check-in first.
func (s *Service) Summary(ctx context.Context, token, sessionID string) (Summary, error) {
	if _, err := s.requireAdmin(ctx, token); err != nil {
		return Summary{}, err
	}
	sessionID = CleanSessionID(sessionID)
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return Summary{}, reject(ReasonInternal, err)
	}
	if sess == nil {
		return Summary{}, reject(ReasonSessionNotFound, nil)
	}
	entries, err := s.repo.ListEntries(ctx, sessionID)
	if err != nil {
		return Summary{}, reject(ReasonInternal, err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CheckedInAt.After(entries[j].CheckedInAt)
	})
	return Summary{Session: *sess, Entries: entries}, nil
}

// ListSessions returns all sessions, latest scheduled first.
func (s *Service) ListSessions(ctx context.Context, token string) ([]Session, error) {
	if _, err := s.requireAdmin(ctx, token); err != nil {
		return nil, err
	}
	sessions, err := s.repo.ListSessions(ctx)
	if err != nil {
		return nil, reject(ReasonInternal, err)
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].ScheduledAt.After(sessions[j].ScheduledAt)
	})
	return sessions, nil
}

// Status reports which windows are open for a session right now.
func (s *Service) Status(ctx context.Context, sessionID string) (Status, error) {
	sessionID = CleanSessionID(sessionID)
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return Status{}, reject(ReasonInternal, err)
	}
	if sess == nil {
		return Status{}, reject(ReasonSessionNotFound, nil)
	}
	now := s.now()
	return Status{
		ID:          sess.ID,
		ScheduledAt: sess.ScheduledAt,
		CheckInOpen: s.policy.CheckInOpen(sess.ScheduledAt, now),
		ExcusedOpen: s.policy.ExcusedOpen(sess.ScheduledAt, now),
	}, nil
}
