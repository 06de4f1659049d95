package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"clubattend/internal/attendance"
	"clubattend/internal/config"
	"clubattend/internal/queue"
	"clubattend/internal/store"
)

// Worker repairs session counters: once per queued check-in event for that
// session, and for every session on RECONCILE_SCHEDULE.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	b, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	defer b.Close()
	if cfg.StoreBackend == "memory" {
		log.Println("WARNING: worker has its own in-memory store and will not see API writes")
	}

	rec := attendance.NewReconciler(attendance.NewRepository(b.Docs))

	c := cron.New()
	if _, err := c.AddFunc(cfg.ReconcileSchedule, func() {
		n, err := rec.ReconcileAll(ctx)
		if err != nil {
			log.Printf("scheduled reconcile failed: %v", err)
			return
		}
		log.Printf("scheduled reconcile repaired %d session(s)", n)
	}); err != nil {
		log.Fatalf("invalid RECONCILE_SCHEDULE %q: %v", cfg.ReconcileSchedule, err)
	}
	c.Start()
	defer func() { <-c.Stop().Done() }()
	log.Printf("reconcile scheduled: %s", cfg.ReconcileSchedule)

	if cfg.QueueBackend != "redis" {
		log.Println("queue backend is not redis; running schedule only")
		<-ctx.Done()
		log.Println("worker stopped")
		return
	}

	q := queue.NewRedisQueue(b.Redis.Client, "clubattend:events")
	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != queue.TypeCheckIn {
			continue
		}
		var evt queue.CheckInEvent
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			log.Printf("event %s: bad body: %v", msg.ID, err)
			continue
		}
		tally, repaired, err := rec.Reconcile(ctx, evt.SessionID)
		if err != nil {
			log.Printf("event %s: reconcile %s failed: %v", msg.ID, evt.SessionID, err)
			continue
		}
		if repaired {
			log.Printf("session %s: counters raised to %v", evt.SessionID, tally)
		}
	}

	log.Println("worker stopped")
}
