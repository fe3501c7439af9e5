package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bidmesh/auctioncore/internal/models"
)

// HTTPBidder calls a demand source over its normalized JSON endpoint:
// POST <endpoint> with a BidRequest body, expecting a bidWire response.
// A 204 is an explicit no-bid.
type HTTPBidder struct {
	name       string
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// bidWire is the response body the endpoint returns on a bid.
type bidWire struct {
	BidID    string  `json:"bid_id"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
	AdMarkup string  `json:"ad_markup"`
	TTLSec   int     `json:"ttl_sec"`
	NoBid    bool    `json:"no_bid"`
}

// NewHTTPBidder creates an adapter calling the given endpoint. The client
// timeout is a backstop; per-call deadlines come from the request context.
func NewHTTPBidder(cfg Config, logger *zap.Logger) *HTTPBidder {
	return &HTTPBidder{
		name:     cfg.ID,
		endpoint: cfg.Endpoint,
		timeout:  cfg.Timeout,
		httpClient: &http.Client{
			Timeout: cfg.Timeout + 50*time.Millisecond,
		},
		logger: logger.With(zap.String("adapter", cfg.ID)),
	}
}

// Name returns the adapter identifier.
func (b *HTTPBidder) Name() string { return b.name }

// Timeout returns the configured per-call timeout.
func (b *HTTPBidder) Timeout() time.Duration { return b.timeout }

// RequestBid issues the bid call and normalizes the response.
func (b *HTTPBidder) RequestBid(ctx context.Context, req BidRequest) (*models.Bid, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal bid request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build bid request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			b.logger.Warn("response body close", zap.Error(err))
		}
	}()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil, ErrNoBid
	case resp.StatusCode != http.StatusOK:
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var wire bidWire
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode bid response: %w", err)
	}
	if wire.NoBid {
		return nil, ErrNoBid
	}
	if wire.Price < 0 {
		return nil, fmt.Errorf("negative bid price %f", wire.Price)
	}

	bidID := wire.BidID
	if bidID == "" {
		bidID = uuid.NewString()
	}
	currency := wire.Currency
	if currency == "" {
		currency = req.Currency
	}
	ttl := time.Duration(wire.TTLSec) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &models.Bid{
		AdapterID:  b.name,
		BidID:      bidID,
		Price:      wire.Price,
		Currency:   currency,
		Format:     req.Format,
		AdMarkup:   wire.AdMarkup,
		TTL:        ttl,
		ReceivedAt: time.Now(),
	}, nil
}
