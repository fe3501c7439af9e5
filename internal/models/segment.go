package models

import "fmt"

// SegmentKey identifies one floor experiment: the traffic slice over which a
// floor price is learned independently. Country may be empty when geo
// resolution failed; such traffic pools into a single "unknown" segment.
type SegmentKey struct {
	AdapterID string
	Country   string
	Format    AdFormat
	Currency  string
}

// Segment builds the experiment key for one adapter in the context of req.
func Segment(adapterID string, req AuctionRequest) SegmentKey {
	return SegmentKey{
		AdapterID: adapterID,
		Country:   req.Device.Country,
		Format:    req.Format,
		Currency:  req.Currency,
	}
}

// String renders the key in the form used for Redis hashes and metric labels.
func (k SegmentKey) String() string {
	country := k.Country
	if country == "" {
		country = "unknown"
	}
	return fmt.Sprintf("%s:%s:%s:%s", k.AdapterID, country, k.Format, k.Currency)
}
