// Package memory is an in-process docstore backend for tests and dev.
package memory

import (
	"context"
	"sort"
	"sync"

	"clubattend/internal/docstore"
)

type Store struct {
	mu   sync.RWMutex
	docs map[string][]byte
	// children maps a collection path to the ids stored under it.
	children map[string]map[string]struct{}
}

func New() *Store {
	return &Store{
		docs:     make(map[string][]byte),
		children: make(map[string]map[string]struct{}),
	}
}

func (s *Store) Get(_ context.Context, path string) ([]byte, error) {
	if _, _, err := docstore.Split(path); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[path]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return clone(doc), nil
}

func (s *Store) Exists(_ context.Context, path string) (bool, error) {
	if _, _, err := docstore.Split(path); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[path]
	return ok, nil
}

func (s *Store) Create(_ context.Context, path string, doc []byte) error {
	parent, id, err := docstore.Split(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[path]; ok {
		return docstore.ErrAlreadyExists
	}
	s.docs[path] = clone(doc)
	if s.children[parent] == nil {
		s.children[parent] = make(map[string]struct{})
	}
	s.children[parent][id] = struct{}{}
	return nil
}

func (s *Store) Update(_ context.Context, path string, fields map[string]any) error {
	if _, _, err := docstore.Split(path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[path]
	if !ok {
		return docstore.ErrNotFound
	}
	merged, err := docstore.Merge(doc, fields)
	if err != nil {
		return err
	}
	s.docs[path] = merged
	return nil
}

// List returns children ordered by id.
func (s *Store) List(_ context.Context, collection string) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.children[collection]))
	for id := range s.children[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([][]byte, 0, len(ids))
	for _, id := range ids {
		out = append(out, clone(s.docs[docstore.Join(collection, id)]))
	}
	return out, nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
