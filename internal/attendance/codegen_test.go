package attendance_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"clubattend/internal/attendance"
	"clubattend/internal/docstore/memory"
)

var codePattern = regexp.MustCompile(`^[0-9a-f]+$`)

func TestRandomCode(t *testing.T) {
	for _, n := range []int{1, 6, 12, 32} {
		code := attendance.RandomCode(n)
		if len(code) != n || !codePattern.MatchString(code) {
			t.Errorf("RandomCode(%d) = %q", n, code)
		}
	}
	if got := attendance.RandomCode(0); len(got) != attendance.DefaultCodeLength {
		t.Errorf("expected default length for 0, got %q", got)
	}
	if got := attendance.RandomCode(100); len(got) != 32 {
		t.Errorf("expected length capped at 32, got %q", got)
	}
}

// sequence hands out codes in order, repeating the last one.
func sequence(codes ...string) func(int) string {
	i := 0
	return func(int) string {
		c := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return c
	}
}

func TestAllocate_SkipsTakenCodes(t *testing.T) {
	ctx := context.Background()
	repo := attendance.NewRepository(memory.New())
	if _, err := repo.CreateSession(ctx, "aaaaaa", meetingTime); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := repo.CreateSession(ctx, "bbbbbb", meetingTime); err != nil {
		t.Fatalf("seed: %v", err)
	}

	gen := attendance.NewCodeGenerator(repo, 6, 10, sequence("aaaaaa", "bbbbbb", "cccccc"))
	s, err := gen.Allocate(ctx, meetingTime)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if s.ID != "cccccc" {
		t.Errorf("expected cccccc, got %s", s.ID)
	}
	stored, _ := repo.GetSession(ctx, "cccccc")
	if stored == nil || stored.Present+stored.Late+stored.Excused != 0 {
		t.Errorf("expected zeroed stored session, got %+v", stored)
	}
}

func TestAllocate_GivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	repo := attendance.NewRepository(memory.New())
	if _, err := repo.CreateSession(ctx, "aaaaaa", meetingTime); err != nil {
		t.Fatalf("seed: %v", err)
	}

	calls := 0
	gen := attendance.NewCodeGenerator(repo, 6, 3, func(int) string {
		calls++
		return "aaaaaa"
	})
	_, err := gen.Allocate(ctx, meetingTime)
	if !errors.Is(err, attendance.ErrCodeSpaceExhausted) {
		t.Fatalf("expected ErrCodeSpaceExhausted, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestCreateSession_ExhaustionIsInternal(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.repo.CreateSession(ctx, "aaaaaa", meetingTime); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := attendance.NewService(f.repo, identities, attendance.Options{
		Membership:      pdsb,
		CodeMaxAttempts: 2,
		CodeSource:      sequence("aaaaaa"),
		Now:             f.clock.Now,
	})
	_, err := svc.CreateSession(ctx, "admin", meetingTime)
	expectReason(t, err, attendance.ReasonInternal)
	if !errors.Is(err, attendance.ErrCodeSpaceExhausted) {
		t.Errorf("expected wrapped ErrCodeSpaceExhausted, got %v", err)
	}
}
