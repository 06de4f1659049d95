package main

import (
	"context"
	"flag"
	"log"
	"strings"

	"clubattend/internal/attendance"
	"clubattend/internal/config"
	"clubattend/internal/store"
)

// Seed registers admins: seed -admin uid1,uid2
func main() {
	admins := flag.String("admin", "", "comma separated subject ids to register as admins")
	flag.Parse()

	cfg := config.Load()
	if cfg.StoreBackend == "memory" {
		log.Fatal("seed needs a persistent STORE_BACKEND (postgres or redis)")
	}
	ctx := context.Background()
	b, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	defer b.Close()

	repo := attendance.NewRepository(b.Docs)
	n := 0
	for _, uid := range strings.Split(*admins, ",") {
		uid = strings.TrimSpace(uid)
		if uid == "" {
			continue
		}
		if err := repo.GrantAdmin(ctx, uid); err != nil {
			log.Fatalf("grant admin %s: %v", uid, err)
		}
		log.Printf("admin registered: %s", uid)
		n++
	}
	if n == 0 {
		log.Println("nothing to do; pass -admin <subject id>")
	}
}
