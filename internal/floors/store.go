package floors

import (
	"context"
	"sync"

	"github.com/bidmesh/auctioncore/internal/models"
)

// Counts is a copy-on-read snapshot of one segment's experiment counters,
// indexed in parallel with the candidate set. The sampling step works on this
// copy, never on shared state.
type Counts struct {
	Successes []int64
	Failures  []int64
}

// Trials returns the total number of recorded outcomes in the snapshot.
func (c Counts) Trials() int64 {
	var n int64
	for i := range c.Successes {
		n += c.Successes[i] + c.Failures[i]
	}
	return n
}

// Store persists per-segment experiment counters. Record must be atomic per
// (segment, candidate): concurrent auctions for the same segment may report
// outcomes simultaneously and no update may be lost.
type Store interface {
	Load(ctx context.Context, key models.SegmentKey, candidates int) (Counts, error)
	Record(ctx context.Context, key models.SegmentKey, candidate int, cleared bool) error
}

// MemoryStore keeps experiment counters in process memory. It backs tests and
// single-node development; production uses RedisStore so state survives
// restarts.
type MemoryStore struct {
	mu       sync.Mutex
	segments map[string]*memorySegment
}

type memorySegment struct {
	successes []int64
	failures  []int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{segments: make(map[string]*memorySegment)}
}

func (s *MemoryStore) segment(key models.SegmentKey, candidates int) *memorySegment {
	k := key.String()
	seg, ok := s.segments[k]
	if !ok || len(seg.successes) < candidates {
		seg = &memorySegment{
			successes: make([]int64, candidates),
			failures:  make([]int64, candidates),
		}
		s.segments[k] = seg
	}
	return seg
}

// Load returns a snapshot of the segment's counters.
func (s *MemoryStore) Load(ctx context.Context, key models.SegmentKey, candidates int) (Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seg := s.segment(key, candidates)
	out := Counts{
		Successes: make([]int64, candidates),
		Failures:  make([]int64, candidates),
	}
	copy(out.Successes, seg.successes)
	copy(out.Failures, seg.failures)
	return out, nil
}

// Record increments one candidate's counter under the store mutex.
func (s *MemoryStore) Record(ctx context.Context, key models.SegmentKey, candidate int, cleared bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seg := s.segment(key, candidate+1)
	if cleared {
		seg.successes[candidate]++
	} else {
		seg.failures[candidate]++
	}
	return nil
}
