package store_test

import (
	"io/fs"
	"strings"
	"testing"

	"clubattend/internal/store"
)

func TestMigrate_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name, dsn, direction, want string
	}{
		{"missing dsn", "", "up", "DATABASE_URL"},
		{"bad direction", "postgres://localhost/x", "sideways", "direction"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Migrate(tt.dsn, tt.direction)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestMigrationFS_PairsUpAndDown(t *testing.T) {
	names, err := fs.Glob(store.MigrationFS, "migrations/*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	ups, downs := 0, 0
	for _, n := range names {
		switch {
		case strings.HasSuffix(n, ".up.sql"):
			ups++
		case strings.HasSuffix(n, ".down.sql"):
			downs++
		}
	}
	if ups == 0 || ups != downs {
		t.Fatalf("expected matching up/down migrations, got %d up %d down", ups, downs)
	}
}
