package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bidmesh/auctioncore/internal/models"
)

func bidServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func testBidRequest() BidRequest {
	return BidRequest{
		AuctionID:   "auction-1",
		PlacementID: "placement-1",
		Format:      models.FormatBanner,
		FloorPrice:  1.00,
		Currency:    "USD",
		Device:      models.DeviceContext{Country: "US", DeviceType: "mobile"},
	}
}

func newTestHTTPBidder(endpoint string) *HTTPBidder {
	return NewHTTPBidder(Config{
		ID:       "test-adapter",
		Endpoint: endpoint,
		Timeout:  200 * time.Millisecond,
		Enabled:  true,
	}, zap.NewNop())
}

func TestHTTPBidderBid(t *testing.T) {
	srv := bidServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req BidRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "auction-1", req.AuctionID)
		assert.InDelta(t, 1.00, req.FloorPrice, 1e-9)

		json.NewEncoder(w).Encode(map[string]any{
			"bid_id":    "bid-42",
			"price":     2.50,
			"currency":  "USD",
			"ad_markup": "<div/>",
			"ttl_sec":   60,
		})
	})

	bid, err := newTestHTTPBidder(srv.URL).RequestBid(context.Background(), testBidRequest())
	require.NoError(t, err)
	assert.Equal(t, "test-adapter", bid.AdapterID)
	assert.Equal(t, "bid-42", bid.BidID)
	assert.InDelta(t, 2.50, bid.Price, 1e-9)
	assert.Equal(t, "USD", bid.Currency)
	assert.Equal(t, "<div/>", bid.AdMarkup)
	assert.Equal(t, time.Minute, bid.TTL)
}

func TestHTTPBidderNoContent(t *testing.T) {
	srv := bidServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	_, err := newTestHTTPBidder(srv.URL).RequestBid(context.Background(), testBidRequest())
	assert.ErrorIs(t, err, ErrNoBid)
}

func TestHTTPBidderExplicitNoBid(t *testing.T) {
	srv := bidServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"no_bid": true})
	})

	_, err := newTestHTTPBidder(srv.URL).RequestBid(context.Background(), testBidRequest())
	assert.ErrorIs(t, err, ErrNoBid)
}

func TestHTTPBidderServerError(t *testing.T) {
	srv := bidServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := newTestHTTPBidder(srv.URL).RequestBid(context.Background(), testBidRequest())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.Code)
}

func TestHTTPBidderTimeout(t *testing.T) {
	srv := bidServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := newTestHTTPBidder(srv.URL).RequestBid(ctx, testBidRequest())
	require.Error(t, err)
	assert.Equal(t, models.NoBidTimeout, NoBidReason(err))
}

func TestHTTPBidderDefaults(t *testing.T) {
	srv := bidServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"price": 1.75})
	})

	bid, err := newTestHTTPBidder(srv.URL).RequestBid(context.Background(), testBidRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, bid.BidID, "missing bid ID is filled in")
	assert.Equal(t, "USD", bid.Currency, "missing currency inherits the request's")
	assert.Equal(t, 5*time.Minute, bid.TTL, "missing TTL gets the default")
}

func TestHTTPBidderNegativePrice(t *testing.T) {
	srv := bidServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"price": -0.5})
	})

	_, err := newTestHTTPBidder(srv.URL).RequestBid(context.Background(), testBidRequest())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoBid)
}
