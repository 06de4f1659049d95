package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"clubattend/internal/docstore"
)

const (
	sessionCollection = "attendance"
	entryCollection   = "entries"
	adminCollection   = "admindata"
)

// Repository reads and writes typed attendance records in a document store.
type Repository struct {
	store docstore.Store
}

// NewRepository creates a repo.
func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// CleanSessionID strips path separators from caller-supplied ids.
func CleanSessionID(id string) string {
	return strings.ReplaceAll(strings.TrimSpace(id), "/", "")
}

func sessionPath(id string) string {
	return docstore.Join(sessionCollection, id)
}

func entriesPath(sessionID string) string {
	return docstore.Join(sessionCollection, sessionID, entryCollection)
}

func entryPath(sessionID, subjectID string) string {
	return docstore.Join(sessionCollection, sessionID, entryCollection, subjectID)
}

// GetSession returns nil when the session does not exist.
func (r *Repository) GetSession(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, nil
	}
	doc, err := r.store.Get(ctx, sessionPath(id))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) || errors.Is(err, docstore.ErrInvalidPath) {
			return nil, nil
		}
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(doc, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	s.ID = id
	return &s, nil
}

// SessionExists reports whether id is taken.
func (r *Repository) SessionExists(ctx context.Context, id string) (bool, error) {
	return r.store.Exists(ctx, sessionPath(id))
}

// CreateSession writes a new zeroed session. It fails with
// docstore.ErrAlreadyExists when the id is taken.
func (r *Repository) CreateSession(ctx context.Context, id string, scheduledAt time.Time) (Session, error) {
	s := Session{ID: id, ScheduledAt: scheduledAt.UTC()}
	doc, err := json.Marshal(s)
	if err != nil {
		return Session{}, err
	}
	if err := r.store.Create(ctx, sessionPath(id), doc); err != nil {
		return Session{}, err
	}
	return s, nil
}

// ListSessions returns every session.
func (r *Repository) ListSessions(ctx context.Context) ([]Session, error) {
	docs, err := r.store.List(ctx, sessionCollection)
	if err != nil {
		return nil, err
	}
	out := make([]Session, 0, len(docs))
	for _, doc := range docs {
		var s Session
		if err := json.Unmarshal(doc, &s); err != nil {
			return nil, fmt.Errorf("decode session: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}

// SetCounter overwrites a single session counter.
func (r *Repository) SetCounter(ctx context.Context, sessionID string, c Classification, value int) error {
	return r.store.Update(ctx, sessionPath(sessionID), map[string]any{string(c): value})
}

// GetEntry returns nil when subjectID has no entry for the session.
func (r *Repository) GetEntry(ctx context.Context, sessionID, subjectID string) (*Entry, error) {
	doc, err := r.store.Get(ctx, entryPath(sessionID, subjectID))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(doc, &e); err != nil {
		return nil, fmt.Errorf("decode entry %s/%s: %w", sessionID, subjectID, err)
	}
	return &e, nil
}

// CreateEntry writes the entry keyed by its subject id. It fails with
// docstore.ErrAlreadyExists when the identity already has one.
func (r *Repository) CreateEntry(ctx context.Context, sessionID string, e Entry) error {
	if e.SubjectID == "" {
		return errors.New("subject id required")
	}
	doc, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.store.Create(ctx, entryPath(sessionID, e.SubjectID), doc)
}

// ListEntries returns every entry recorded against a session.
func (r *Repository) ListEntries(ctx context.Context, sessionID string) ([]Entry, error) {
	docs, err := r.store.List(ctx, entriesPath(sessionID))
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(docs))
	for _, doc := range docs {
		var e Entry
		if err := json.Unmarshal(doc, &e); err != nil {
			return nil, fmt.Errorf("decode entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// IsAdmin looks the subject up in the admin registry.
func (r *Repository) IsAdmin(ctx context.Context, subjectID string) (bool, error) {
	if subjectID == "" {
		return false, nil
	}
	ok, err := r.store.Exists(ctx, docstore.Join(adminCollection, subjectID))
	if errors.Is(err, docstore.ErrInvalidPath) {
		return false, nil
	}
	return ok, err
}

// GrantAdmin registers subjectID as an admin. Granting twice is a no-op.
func (r *Repository) GrantAdmin(ctx context.Context, subjectID string) error {
	doc, err := json.Marshal(map[string]any{"granted_at": time.Now().UTC()})
	if err != nil {
		return err
	}
	err = r.store.Create(ctx, docstore.Join(adminCollection, subjectID), doc)
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return nil
	}
	return err
}
