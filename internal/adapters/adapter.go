// Package adapters defines the normalized bid call interface to external
// demand sources and a registry of configured adapter integrations. Each
// integration owns its own protocol translation; the auction engine only
// depends on the BidRequest/Bid shape plus a timeout.
package adapters

import (
	"context"
	"errors"
	"time"

	"github.com/bidmesh/auctioncore/internal/models"
)

// BidRequest is the normalized request sent to every adapter. The floor is
// the minimum acceptable price for this adapter's segment; adapters may use
// it to suppress bids that would be rejected anyway.
type BidRequest struct {
	AuctionID   string               `json:"auction_id"`
	PlacementID string               `json:"placement_id"`
	Format      models.AdFormat      `json:"format"`
	FloorPrice  float64              `json:"floor_price"`
	Currency    string               `json:"currency"`
	Device      models.DeviceContext `json:"device"`
}

// ErrNoBid is returned by adapters that responded but chose not to bid.
// It is a normal outcome, not a failure: it does not count against the
// adapter's circuit breaker.
var ErrNoBid = errors.New("no_bid")

// Bidder is the capability interface every demand-source integration
// implements.
type Bidder interface {
	// Name returns the adapter identifier used in configuration, segment
	// keys and metrics.
	Name() string

	// Timeout returns the per-call timeout for waterfall attempts. During
	// the concurrent auction the global deadline governs instead.
	Timeout() time.Duration

	// RequestBid requests a price for the given opportunity. It returns
	// ErrNoBid for an explicit pass, or another error for transport and
	// protocol failures.
	RequestBid(ctx context.Context, req BidRequest) (*models.Bid, error)
}

// Config describes one adapter row from the control-plane store.
type Config struct {
	ID       string
	Endpoint string
	Timeout  time.Duration
	Enabled  bool
}
