// Package docstore defines a path-addressed JSON document store.
//
// Paths alternate collection and document segments, e.g.
// "attendance/abc123" or "attendance/abc123/entries/uid". Every operation
// is atomic for a single document; there are no multi-document
// transactions.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrAlreadyExists is returned by Create when the path is taken.
	ErrAlreadyExists = errors.New("docstore: document already exists")
	// ErrInvalidPath is returned for empty or malformed paths.
	ErrInvalidPath = errors.New("docstore: invalid path")
)

// Store is implemented by every storage backend.
type Store interface {
	// Get returns the raw JSON document at path.
	Get(ctx context.Context, path string) ([]byte, error)
	// Exists reports whether a document is stored at path.
	Exists(ctx context.Context, path string) (bool, error)
	// Create stores doc at path, failing with ErrAlreadyExists if taken.
	Create(ctx context.Context, path string, doc []byte) error
	// Update merges fields into the top level of the document at path,
	// failing with ErrNotFound if the document is absent.
	Update(ctx context.Context, path string, fields map[string]any) error
	// List returns the documents directly under a collection path.
	List(ctx context.Context, collection string) ([][]byte, error)
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Split validates path and returns its parent collection and document id.
func Split(path string) (parent, id string, err error) {
	if path == "" || strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") || strings.Contains(path, "//") {
		return "", "", ErrInvalidPath
	}
	segs := strings.Split(path, "/")
	if len(segs)%2 != 0 {
		return "", "", ErrInvalidPath
	}
	return strings.Join(segs[:len(segs)-1], "/"), segs[len(segs)-1], nil
}

// Merge overlays fields onto the top level of doc and returns the result.
func Merge(doc []byte, fields map[string]any) ([]byte, error) {
	obj := map[string]json.RawMessage{}
	if len(doc) > 0 {
		if err := json.Unmarshal(doc, &obj); err != nil {
			return nil, err
		}
	}
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		obj[k] = raw
	}
	return json.Marshal(obj)
}
