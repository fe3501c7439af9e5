package models

import (
	"time"
)

// AdFormat identifies the creative format an auction is run for.
type AdFormat string

const (
	FormatBanner AdFormat = "banner"
	FormatVideo  AdFormat = "video"
	FormatNative AdFormat = "native"
)

// Valid reports whether f is one of the supported ad formats.
func (f AdFormat) Valid() bool {
	switch f {
	case FormatBanner, FormatVideo, FormatNative:
		return true
	}
	return false
}

// DeviceContext carries the device and geo attributes used for adapter
// targeting and for segmenting floor experiments. Country is an ISO 3166-1
// alpha-2 code resolved from the client IP.
type DeviceContext struct {
	OS         string `json:"os,omitempty"`
	DeviceType string `json:"device_type,omitempty"`
	UserAgent  string `json:"ua,omitempty"`
	IP         string `json:"ip,omitempty"`
	Country    string `json:"country,omitempty"`
}

// AuctionRequest describes one ad opportunity to be auctioned. The API layer
// builds it once per request; every component after that treats it as
// read-only.
type AuctionRequest struct {
	PlacementID string        `json:"placement_id"`
	Adapters    []string      `json:"adapters"`
	Timeout     time.Duration `json:"-"`
	TimeoutMS   int           `json:"timeout_ms,omitempty"`
	Format      AdFormat      `json:"format"`
	Device      DeviceContext `json:"device"`
	Currency    string        `json:"currency,omitempty"`
}

// Bid is one adapter's priced response to an auction request.
type Bid struct {
	AdapterID  string        `json:"adapter_id"`
	BidID      string        `json:"bid_id"`
	Price      float64       `json:"price"`
	Currency   string        `json:"currency"`
	Format     AdFormat      `json:"format"`
	AdMarkup   string        `json:"ad_markup,omitempty"`
	TTL        time.Duration `json:"-"`
	ReceivedAt time.Time     `json:"received_at"`
}

// AuctionResult is the closed outcome of one auction. Winner is nil on
// no-fill. AllBids holds every bid received before the deadline, winning or
// not, so the landscape logger can persist the full picture. A result is
// never modified after the auction closes.
type AuctionResult struct {
	AuctionID     string        `json:"auction_id"`
	PlacementID   string        `json:"placement_id"`
	Winner        *Bid          `json:"winner,omitempty"`
	ClearingPrice float64       `json:"clearing_price"`
	FloorPrice    float64       `json:"floor_price"`
	AllBids       []Bid         `json:"all_bids"`
	NoFill        bool          `json:"no_fill"`
	Duration      time.Duration `json:"duration"`
	Timestamp     time.Time     `json:"timestamp"`
	Country       string        `json:"country,omitempty"`
	Format        AdFormat      `json:"format,omitempty"`
}

// Normalized no-bid taxonomy recorded when an adapter returns no usable bid.
// The values feed breaker accounting and landscape analytics.
const (
	NoBidTimeout      = "timeout"
	NoBidNetworkError = "network_error"
	NoBidStatusPrefix = "status_"
	NoBidNoFill       = "no_fill"
	NoBidCircuitOpen  = "circuit_open"
	NoBidBelowFloor   = "below_floor"
	NoBidError        = "error"
)
