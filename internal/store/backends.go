package store

import (
	"context"
	"fmt"
	"log"

	"clubattend/internal/config"
	"clubattend/internal/docstore"
	"clubattend/internal/docstore/memory"
	"clubattend/internal/docstore/postgres"
	"clubattend/internal/docstore/redisdoc"
)

// Backends holds the connections opened for one process.
type Backends struct {
	Docs  docstore.Store
	DB    *DB
	Redis *Redis
}

// Open connects the document store and, when any component needs it, Redis.
// Postgres migrations are applied before the store is returned.
func Open(ctx context.Context, cfg config.App) (*Backends, error) {
	b := &Backends{}
	if cfg.StoreBackend == "redis" || cfg.QueueBackend == "redis" || cfg.RateLimitBackend == "redis" {
		b.Redis = NewRedis(cfg.RedisAddr)
	}

	switch cfg.StoreBackend {
	case "postgres":
		db, err := NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		b.DB = db
		if err := Migrate(cfg.DatabaseURL, "up"); err != nil {
			b.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		b.Docs = postgres.New(db.Client)
	case "redis":
		b.Docs = redisdoc.New(b.Redis.Client, "clubattend")
	case "memory", "":
		log.Println("using in-memory store; data is lost on restart")
		b.Docs = memory.New()
	default:
		b.Close()
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	return b, nil
}

// Checks returns a health check per open connection.
func (b *Backends) Checks() map[string]func(context.Context) bool {
	checks := map[string]func(context.Context) bool{}
	if b.DB != nil {
		checks["db"] = b.DB.Healthy
	}
	if b.Redis != nil {
		checks["redis"] = b.Redis.Healthy
	}
	return checks
}

// Close releases every open connection.
func (b *Backends) Close() {
	if err := b.DB.Close(); err != nil {
		log.Printf("close db: %v", err)
	}
	if err := b.Redis.Close(); err != nil {
		log.Printf("close redis: %v", err)
	}
}
