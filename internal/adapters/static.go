package adapters

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bidmesh/auctioncore/internal/models"
)

// StaticBidder returns a fixed price after an optional artificial delay.
// It backs local development and the traffic simulator; tests use it to
// shape deterministic auctions.
type StaticBidder struct {
	name    string
	price   float64
	delay   time.Duration
	timeout time.Duration

	// Err, when set, is returned instead of a bid.
	Err error
}

// NewStaticBidder creates a bidder that always offers price.
func NewStaticBidder(name string, price float64, delay time.Duration) *StaticBidder {
	return &StaticBidder{
		name:    name,
		price:   price,
		delay:   delay,
		timeout: 100 * time.Millisecond,
	}
}

// Name returns the adapter identifier.
func (b *StaticBidder) Name() string { return b.name }

// Timeout returns the per-call timeout.
func (b *StaticBidder) Timeout() time.Duration { return b.timeout }

// RequestBid waits out the configured delay, honouring ctx cancellation, then
// returns the fixed bid or the configured error.
func (b *StaticBidder) RequestBid(ctx context.Context, req BidRequest) (*models.Bid, error) {
	if b.delay > 0 {
		timer := time.NewTimer(b.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if b.Err != nil {
		return nil, b.Err
	}
	return &models.Bid{
		AdapterID:  b.name,
		BidID:      uuid.NewString(),
		Price:      b.price,
		Currency:   req.Currency,
		Format:     req.Format,
		TTL:        5 * time.Minute,
		ReceivedAt: time.Now(),
	}, nil
}
