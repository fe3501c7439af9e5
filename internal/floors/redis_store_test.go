package floors

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bidmesh/auctioncore/internal/db"
)

func setupTestRedis(t *testing.T) *db.RedisStore {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(s.Close)
	return &db.RedisStore{
		Client: redis.NewClient(&redis.Options{Addr: s.Addr()}),
		Ctx:    context.Background(),
	}
}

func TestRedisStoreLoadEmpty(t *testing.T) {
	store := NewRedisStore(setupTestRedis(t))

	counts, err := store.Load(context.Background(), testSegment(), 4)
	require.NoError(t, err)
	assert.Equal(t, int64(0), counts.Trials(), "fresh segment reads as all zeros")
	assert.Len(t, counts.Successes, 4)
	assert.Len(t, counts.Failures, 4)
}

func TestRedisStoreRecordAndLoad(t *testing.T) {
	store := NewRedisStore(setupTestRedis(t))
	ctx := context.Background()
	seg := testSegment()

	require.NoError(t, store.Record(ctx, seg, 1, true))
	require.NoError(t, store.Record(ctx, seg, 1, true))
	require.NoError(t, store.Record(ctx, seg, 1, false))
	require.NoError(t, store.Record(ctx, seg, 3, false))

	counts, err := store.Load(ctx, seg, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.Successes[1])
	assert.Equal(t, int64(1), counts.Failures[1])
	assert.Equal(t, int64(1), counts.Failures[3])
	assert.Equal(t, int64(4), counts.Trials())
}

func TestRedisStoreSegmentIsolation(t *testing.T) {
	store := NewRedisStore(setupTestRedis(t))
	ctx := context.Background()

	segUS := testSegment()
	segDE := segUS
	segDE.Country = "DE"

	require.NoError(t, store.Record(ctx, segUS, 0, true))

	counts, err := store.Load(ctx, segDE, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(0), counts.Trials(), "segments keep independent counters")
}

func TestRedisStoreConcurrentRecords(t *testing.T) {
	store := NewRedisStore(setupTestRedis(t))
	ctx := context.Background()
	seg := testSegment()

	const writers = 8
	const perWriter = 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_ = store.Record(ctx, seg, 2, true)
			}
		}()
	}
	wg.Wait()

	counts, err := store.Load(ctx, seg, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(writers*perWriter), counts.Successes[2], "no update may be lost under concurrency")
}
