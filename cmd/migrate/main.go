package main

import (
	"flag"
	"log"

	"clubattend/internal/config"
	"clubattend/internal/store"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	flag.Parse()

	cfg := config.Load()
	if err := store.Migrate(cfg.DatabaseURL, *direction); err != nil {
		log.Fatalf("migrate %s failed: %v", *direction, err)
	}
	log.Printf("migrate %s complete", *direction)
}
