package landscape

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bidmesh/auctioncore/internal/models"
	"github.com/bidmesh/auctioncore/internal/observability"
)

// Config holds the logger's buffering and retry knobs.
type Config struct {
	QueueSize     int
	Workers       int
	BatchSize     int
	FlushInterval time.Duration
	MaxRetries    int
}

// Logger buffers landscape records in a bounded queue drained by a worker
// pool. LogAuction never blocks and never surfaces an error to the caller:
// when the queue is full, records are dropped and the drop is alerted through
// metrics and logs instead.
type Logger struct {
	sink    Sink
	queue   chan Record
	cfg     Config
	metrics observability.MetricsRegistry
	logger  *zap.Logger

	seen *seenSet

	wg   sync.WaitGroup
	stop chan struct{}
	once sync.Once
}

// NewLogger constructs a Logger over the given sink. Call Start to begin
// draining and Close on shutdown.
func NewLogger(sink Sink, cfg Config, metrics observability.MetricsRegistry, logger *zap.Logger) *Logger {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 4096
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 256
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Logger{
		sink:    sink,
		queue:   make(chan Record, cfg.QueueSize),
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
		seen:    newSeenSet(8192),
		stop:    make(chan struct{}),
	}
}

// Start launches the drain workers.
func (l *Logger) Start() {
	for i := 0; i < l.cfg.Workers; i++ {
		l.wg.Add(1)
		go l.drain()
	}
}

// Close stops accepting work, flushes what is queued and waits for workers.
func (l *Logger) Close() {
	l.once.Do(func() {
		close(l.stop)
	})
	l.wg.Wait()
}

// LogAuction enqueues every bid of the result for persistence. Replaying the
// same result is a no-op: the auction ID has already been seen, so no
// duplicate rows are produced.
func (l *Logger) LogAuction(res *models.AuctionResult) {
	if res == nil {
		return
	}
	records := Flatten(res)
	if len(records) == 0 {
		return
	}
	if !l.seen.add(res.AuctionID) {
		return
	}

	for _, r := range records {
		select {
		case l.queue <- r:
		default:
			l.metrics.IncrementLandscapeDropped("queue_full")
			l.logger.Error("landscape queue full, dropping record",
				zap.String("auction_id", r.AuctionID),
				zap.String("adapter", r.AdapterID),
			)
		}
	}
	l.metrics.SetLandscapeQueueDepth(len(l.queue))
}

// drain accumulates records into batches and flushes them on size or on the
// flush ticker, whichever comes first.
func (l *Logger) drain() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]Record, 0, l.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		l.flushWithRetry(batch)
		batch = batch[:0]
	}

	for {
		select {
		case r := <-l.queue:
			batch = append(batch, r)
			if len(batch) >= l.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
			l.metrics.SetLandscapeQueueDepth(len(l.queue))
		case <-l.stop:
			// drain whatever is left before exiting
			for {
				select {
				case r := <-l.queue:
					batch = append(batch, r)
					if len(batch) >= l.cfg.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

// flushWithRetry writes one batch, backing off between attempts. A batch that
// still fails after MaxRetries is dropped with an operational alert; the
// request path is never affected.
func (l *Logger) flushWithRetry(batch []Record) {
	backoff := 100 * time.Millisecond
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := l.sink.WriteBatch(ctx, batch)
		cancel()
		if err == nil {
			l.metrics.IncrementLandscapeBatches("ok")
			return
		}
		if attempt >= l.cfg.MaxRetries {
			l.metrics.IncrementLandscapeBatches("failed")
			l.metrics.IncrementLandscapeDropped("retries_exhausted")
			l.logger.Error("landscape batch dropped after retries",
				zap.Int("records", len(batch)),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			return
		}
		l.logger.Warn("landscape batch flush failed, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-l.stop:
			// Shutting down: skip the remaining waits and make the next
			// attempt the last one.
			attempt = l.cfg.MaxRetries - 1
		}
	}
}

// Query proxies to the sink. Analytics-only; never used by the hot path.
func (l *Logger) Query(ctx context.Context, f Filter) ([]Record, error) {
	return l.sink.Query(ctx, f)
}

// seenSet is a bounded FIFO set of auction IDs used to make LogAuction
// idempotent under replay. Oldest entries are evicted once capacity is hit;
// the ClickHouse ReplacingMergeTree key covers replays older than that.
type seenSet struct {
	mu    sync.Mutex
	ids   map[string]struct{}
	order []string
	next  int
}

func newSeenSet(capacity int) *seenSet {
	return &seenSet{
		ids:   make(map[string]struct{}, capacity),
		order: make([]string, capacity),
	}
}

// add returns false when the ID was already present.
func (s *seenSet) add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	if old := s.order[s.next]; old != "" {
		delete(s.ids, old)
	}
	s.order[s.next] = id
	s.next = (s.next + 1) % len(s.order)
	s.ids[id] = struct{}{}
	return true
}
