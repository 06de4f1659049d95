package store_test

import (
	"context"
	"testing"

	"clubattend/internal/config"
	"clubattend/internal/docstore/memory"
	"clubattend/internal/store"
)

func TestOpen_Memory(t *testing.T) {
	b, err := store.Open(context.Background(), config.App{StoreBackend: "memory"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer b.Close()

	if _, ok := b.Docs.(*memory.Store); !ok {
		t.Errorf("expected memory store, got %T", b.Docs)
	}
	if b.DB != nil || b.Redis != nil {
		t.Error("memory backend should not open connections")
	}
	if len(b.Checks()) != 0 {
		t.Errorf("expected no health checks, got %d", len(b.Checks()))
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := store.Open(context.Background(), config.App{StoreBackend: "etcd"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
