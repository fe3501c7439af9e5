package floors

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bidmesh/auctioncore/internal/db"
	"github.com/bidmesh/auctioncore/internal/models"
)

// RedisStore persists experiment counters as one Redis hash per segment with
// fields s:<i> / f:<i> per candidate. HINCRBY is atomic server-side, which
// satisfies the no-lost-updates requirement without client locking.
type RedisStore struct {
	store *db.RedisStore
}

// NewRedisStore wraps the shared Redis connection.
func NewRedisStore(store *db.RedisStore) *RedisStore {
	return &RedisStore{store: store}
}

func experimentKey(key models.SegmentKey) string {
	return "floorexp:" + key.String()
}

// Load reads the segment hash and expands it into a counter snapshot. Missing
// fields read as zero, so fresh segments need no initialization step.
func (s *RedisStore) Load(ctx context.Context, key models.SegmentKey, candidates int) (Counts, error) {
	if s.store == nil || s.store.Client == nil {
		return Counts{}, fmt.Errorf("redis store is nil")
	}

	fields, err := s.store.Client.HGetAll(ctx, experimentKey(key)).Result()
	if err != nil {
		return Counts{}, fmt.Errorf("load floor experiment: %w", err)
	}

	out := Counts{
		Successes: make([]int64, candidates),
		Failures:  make([]int64, candidates),
	}
	for i := 0; i < candidates; i++ {
		if v, ok := fields["s:"+strconv.Itoa(i)]; ok {
			out.Successes[i], _ = strconv.ParseInt(v, 10, 64)
		}
		if v, ok := fields["f:"+strconv.Itoa(i)]; ok {
			out.Failures[i], _ = strconv.ParseInt(v, 10, 64)
		}
	}
	return out, nil
}

// Record atomically increments one candidate's counter.
func (s *RedisStore) Record(ctx context.Context, key models.SegmentKey, candidate int, cleared bool) error {
	if s.store == nil || s.store.Client == nil {
		return fmt.Errorf("redis store is nil")
	}

	field := "f:" + strconv.Itoa(candidate)
	if cleared {
		field = "s:" + strconv.Itoa(candidate)
	}
	if err := s.store.Client.HIncrBy(ctx, experimentKey(key), field, 1).Err(); err != nil {
		return fmt.Errorf("record floor outcome: %w", err)
	}
	return nil
}
