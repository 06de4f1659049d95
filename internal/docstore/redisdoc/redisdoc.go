// Package redisdoc stores documents as JSON strings with a set per collection.
package redisdoc

import (
	"context"
	"errors"
	"sort"

	"github.com/redis/go-redis/v9"

	"clubattend/internal/docstore"
)

const maxUpdateRetries = 10

// createScript writes the document only when the key is free and indexes
// it under its collection in the same step.
var createScript = redis.NewScript(`
if redis.call("SETNX", KEYS[1], ARGV[1]) == 1 then
	redis.call("SADD", KEYS[2], ARGV[2])
	return 1
end
return 0
`)

// Store implements docstore.Store on top of a redis client.
type Store struct {
	client *redis.Client
	prefix string
}

// New builds a store; prefix namespaces all keys (default "clubattend").
func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "clubattend"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) docKey(path string) string { return s.prefix + ":doc:" + path }
func (s *Store) colKey(path string) string { return s.prefix + ":col:" + path }

func (s *Store) Get(ctx context.Context, path string) ([]byte, error) {
	if _, _, err := docstore.Split(path); err != nil {
		return nil, err
	}
	doc, err := s.client.Get(ctx, s.docKey(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, docstore.ErrNotFound
	}
	return doc, err
}

func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	if _, _, err := docstore.Split(path); err != nil {
		return false, err
	}
	n, err := s.client.Exists(ctx, s.docKey(path)).Result()
	return n == 1, err
}

func (s *Store) Create(ctx context.Context, path string, doc []byte) error {
	parent, id, err := docstore.Split(path)
	if err != nil {
		return err
	}
	created, err := createScript.Run(ctx, s.client, []string{s.docKey(path), s.colKey(parent)}, string(doc), id).Int()
	if err != nil {
		return err
	}
	if created == 0 {
		return docstore.ErrAlreadyExists
	}
	return nil
}

// Update merges under WATCH and retries when another writer touched the key.
func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	if _, _, err := docstore.Split(path); err != nil {
		return err
	}
	key := s.docKey(path)
	txf := func(tx *redis.Tx) error {
		doc, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return docstore.ErrNotFound
		}
		if err != nil {
			return err
		}
		merged, err := docstore.Merge(doc, fields)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, merged, 0)
			return nil
		})
		return err
	}
	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return redis.TxFailedErr
}

func (s *Store) List(ctx context.Context, collection string) ([][]byte, error) {
	ids, err := s.client.SMembers(ctx, s.colKey(collection)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Strings(ids)
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.docKey(docstore.Join(collection, id))
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(vals))
	for _, v := range vals {
		if str, ok := v.(string); ok {
			out = append(out, []byte(str))
		}
	}
	return out, nil
}
