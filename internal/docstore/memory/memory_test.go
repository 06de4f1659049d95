package memory_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"clubattend/internal/docstore"
	"clubattend/internal/docstore/memory"
)

func TestCreate_ThenGet(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	if err := s.Create(ctx, "attendance/abc123", []byte(`{"present":0}`)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	doc, err := s.Get(ctx, "attendance/abc123")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(doc) != `{"present":0}` {
		t.Errorf("unexpected doc %s", doc)
	}
	ok, err := s.Exists(ctx, "attendance/abc123")
	if err != nil || !ok {
		t.Errorf("expected exists=true, got %v (err %v)", ok, err)
	}
}

func TestCreate_ExistingPathFails(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	if err := s.Create(ctx, "attendance/abc123", []byte(`{}`)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := s.Create(ctx, "attendance/abc123", []byte(`{"present":9}`))
	if !errors.Is(err, docstore.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	doc, _ := s.Get(ctx, "attendance/abc123")
	if string(doc) != `{}` {
		t.Errorf("second create must not overwrite, got %s", doc)
	}
}

func TestGet_Missing(t *testing.T) {
	s := memory.New()
	if _, err := s.Get(context.Background(), "attendance/nope"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdate_MergesTopLevelFields(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	if err := s.Create(ctx, "attendance/abc123", []byte(`{"present":1,"late":2}`)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Update(ctx, "attendance/abc123", map[string]any{"late": 3}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	doc, _ := s.Get(ctx, "attendance/abc123")
	var got map[string]int
	if err := json.Unmarshal(doc, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["present"] != 1 || got["late"] != 3 {
		t.Errorf("unexpected merge result %v", got)
	}
}

func TestUpdate_MissingFails(t *testing.T) {
	s := memory.New()
	err := s.Update(context.Background(), "attendance/nope", map[string]any{"late": 1})
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestList_DirectChildrenOnly(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	for _, p := range []string{
		"attendance/s1",
		"attendance/s1/entries/u2",
		"attendance/s1/entries/u1",
		"attendance/s2",
	} {
		if err := s.Create(ctx, p, []byte(`{"p":"`+p+`"}`)); err != nil {
			t.Fatalf("Create %s: %v", p, err)
		}
	}

	entries, err := s.List(ctx, "attendance/s1/entries")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if string(entries[0]) != `{"p":"attendance/s1/entries/u1"}` {
		t.Errorf("expected entries ordered by id, got %s first", entries[0])
	}

	sessions, _ := s.List(ctx, "attendance")
	if len(sessions) != 2 {
		t.Errorf("expected 2 sessions, got %d", len(sessions))
	}
}

func TestInvalidPaths(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	for _, p := range []string{"", "attendance", "/attendance/x", "attendance/x/", "attendance//x"} {
		if err := s.Create(ctx, p, []byte(`{}`)); !errors.Is(err, docstore.ErrInvalidPath) {
			t.Errorf("Create(%q): expected ErrInvalidPath, got %v", p, err)
		}
	}
}
