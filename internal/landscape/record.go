// Package landscape persists the full set of bids behind every auction (won
// and lost) to an append-only analytical store, off the request path.
package landscape

import (
	"time"

	"github.com/bidmesh/auctioncore/internal/models"
)

// Record is one flattened bid-landscape fact row. Rows are write-once: the
// hot path never updates or deletes them; retention is an out-of-band job.
type Record struct {
	ObservedAt    time.Time       `json:"observed_at"`
	AuctionID     string          `json:"auction_id"`
	PlacementID   string          `json:"placement_id"`
	AdapterID     string          `json:"adapter_id"`
	BidID         string          `json:"bid_id"`
	BidPrice      float64         `json:"bid_price"`
	Won           bool            `json:"won"`
	ClearingPrice float64         `json:"clearing_price"`
	BidCount      int             `json:"bid_count"`
	Country       string          `json:"country"`
	Format        models.AdFormat `json:"format"`
}

// Filter bounds a landscape query. Zero values mean "any".
type Filter struct {
	AdapterID string
	Country   string
	Format    models.AdFormat
	From      time.Time
	To        time.Time
	Limit     int
}

// Flatten expands an auction result into one record per submitted bid.
func Flatten(res *models.AuctionResult) []Record {
	if res == nil || len(res.AllBids) == 0 {
		return nil
	}
	records := make([]Record, 0, len(res.AllBids))
	for _, bid := range res.AllBids {
		won := res.Winner != nil && res.Winner.BidID == bid.BidID && res.Winner.AdapterID == bid.AdapterID
		clearing := 0.0
		if won {
			clearing = res.ClearingPrice
		}
		records = append(records, Record{
			ObservedAt:    res.Timestamp,
			AuctionID:     res.AuctionID,
			PlacementID:   res.PlacementID,
			AdapterID:     bid.AdapterID,
			BidID:         bid.BidID,
			BidPrice:      bid.Price,
			Won:           won,
			ClearingPrice: clearing,
			BidCount:      len(res.AllBids),
			Country:       res.Country,
			Format:        res.Format,
		})
	}
	return records
}
