package plans

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// MeteringStore tracks per-project API call counts by UTC month
type MeteringStore interface {
	// CallsThisMonth returns the project's call count for the current UTC
	// month. Missing data is zero, not an error.
	CallsThisMonth(ctx context.Context, projectID string) (int64, error)

	// RecordCall increments the project's counter for the current UTC month
	RecordCall(ctx context.Context, projectID string) error
}

// counterTTL keeps a monthly counter alive long enough for the rollup job
// to snapshot it after the month closes
const counterTTL = 62 * 24 * time.Hour

// RedisMeteringStore keeps monthly call counters in Redis under
// calls:{projectID}:{YYYY-MM}
type RedisMeteringStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisMeteringStore creates a metering store on the given client
func NewRedisMeteringStore(client *redis.Client) *RedisMeteringStore {
	return &RedisMeteringStore{
		client: client,
		now:    time.Now,
	}
}

// MonthKey returns the counter key for a project and month
func MonthKey(projectID string, t time.Time) string {
	return fmt.Sprintf("calls:%s:%s", projectID, t.UTC().Format("2006-01"))
}

// CallsThisMonth reads the current month's counter. A missing key counts as
// zero.
func (s *RedisMeteringStore) CallsThisMonth(ctx context.Context, projectID string) (int64, error) {
	val, err := s.client.Get(ctx, MonthKey(projectID, s.now())).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read call counter for project %s: %w", projectID, err)
	}
	return val, nil
}

// RecordCall increments the current month's counter and refreshes its
// expiry in one round trip
func (s *RedisMeteringStore) RecordCall(ctx context.Context, projectID string) error {
	key := MonthKey(projectID, s.now())

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, counterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record call for project %s: %w", projectID, err)
	}
	return nil
}
