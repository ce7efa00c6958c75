// Command formgrid-usage snapshots monthly call counters from Redis into
// Postgres so billing and reporting have durable history after the
// counters expire.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/formgrid/formgrid/pkg/async"
)

var (
	dbURL     = flag.String("db-url", getEnv("FORMGRID_DATABASE_URL", "postgres://localhost/formgrid?sslmode=disable"), "PostgreSQL connection URL")
	redisAddr = flag.String("redis-addr", getEnv("FORMGRID_REDIS_ADDR", "localhost:6379"), "Redis address")
	schedule  = flag.String("schedule", "30 0 1 * *", "Cron schedule for the monthly rollup (default: 1st day 00:30 UTC)")
	runOnce   = flag.Bool("run-once", false, "Run the rollup once and exit (for testing or backfilling)")
	month     = flag.String("month", "", "Month to roll up (YYYY-MM). Defaults to the previous month. Only used with --run-once")
	workers   = flag.Int("workers", 8, "Concurrent upsert workers")
)

func main() {
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.WithError(err).Fatal("failed to ping database")
	}

	rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.WithError(err).Fatal("failed to ping redis")
	}

	roller := &rollup{db: db, redis: rdb, log: log, workers: *workers}

	if *runOnce {
		target := *month
		if target == "" {
			target = previousMonth(time.Now().UTC())
		}
		log.WithField("month", target).Info("running rollup")
		if err := roller.run(context.Background(), target); err != nil {
			log.WithError(err).Fatal("rollup failed")
		}
		log.Info("rollup completed")
		return
	}

	c := cron.New()
	_, err = c.AddFunc(*schedule, func() {
		target := previousMonth(time.Now().UTC())
		log.WithField("month", target).Info("starting monthly rollup")
		if err := roller.run(context.Background(), target); err != nil {
			log.WithError(err).Error("monthly rollup failed")
		} else {
			log.Info("monthly rollup completed")
		}
	})
	if err != nil {
		log.WithError(err).Fatal("failed to schedule rollup")
	}

	c.Start()
	log.WithField("schedule", *schedule).Info("formgrid usage rollup started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info("shutting down")

	ctx := c.Stop()
	<-ctx.Done()
	log.Info("rollup stopped")
}

type rollup struct {
	db      *sql.DB
	redis   *redis.Client
	log     *logrus.Logger
	workers int
}

type usageRow struct {
	projectID string
	calls     int64
}

// run copies every calls:{projectID}:{month} counter into project_usage
func (r *rollup) run(ctx context.Context, month string) error {
	rows, err := r.collect(ctx, month)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		r.log.WithField("month", month).Info("no counters found")
		return nil
	}

	errs := async.Batch(ctx, rows, r.workers, "usage upsert", 30*time.Second, func(ctx context.Context, row usageRow) error {
		return r.upsert(ctx, month, row)
	})
	for _, err := range errs {
		r.log.WithError(err).Error("usage upsert failed")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d upserts failed", len(errs), len(rows))
	}

	r.log.WithFields(logrus.Fields{"month": month, "projects": len(rows)}).Info("usage snapshot written")
	return nil
}

// collect scans Redis for the month's counters
func (r *rollup) collect(ctx context.Context, month string) ([]usageRow, error) {
	var rows []usageRow
	var cursor uint64
	pattern := "calls:*:" + month

	for {
		keys, next, err := r.redis.Scan(ctx, cursor, pattern, 500).Result()
		if err != nil {
			return nil, fmt.Errorf("scan counters: %w", err)
		}

		for _, key := range keys {
			parts := strings.Split(key, ":")
			if len(parts) != 3 {
				continue
			}
			calls, err := r.redis.Get(ctx, key).Int64()
			if err != nil {
				r.log.WithError(err).WithField("key", key).Warn("skipping unreadable counter")
				continue
			}
			rows = append(rows, usageRow{projectID: parts[1], calls: calls})
		}

		cursor = next
		if cursor == 0 {
			return rows, nil
		}
	}
}

func (r *rollup) upsert(ctx context.Context, month string, row usageRow) error {
	query := `
		INSERT INTO project_usage (project_id, month, calls, recorded_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (project_id, month) DO UPDATE
		SET calls = EXCLUDED.calls, recorded_at = EXCLUDED.recorded_at`

	if _, err := r.db.ExecContext(ctx, query, row.projectID, month, row.calls); err != nil {
		return fmt.Errorf("upsert usage for project %s: %w", row.projectID, err)
	}
	return nil
}

// previousMonth avoids AddDate's day normalization (March 31 minus one
// month is March 3) by stepping back from the first of the month
func previousMonth(now time.Time) string {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 0, -1).Format("2006-01")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
