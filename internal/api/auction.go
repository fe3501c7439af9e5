package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/bidmesh/auctioncore/internal/models"
)

// AuctionResponse is the wire shape returned to mediation clients. The client
// either gets a winning bid or an explicit no-fill, never an error under
// normal operation.
type AuctionResponse struct {
	AuctionID     string      `json:"auction_id"`
	Winner        *models.Bid `json:"winner,omitempty"`
	ClearingPrice float64     `json:"clearing_price,omitempty"`
	NoFill        bool        `json:"no_fill"`
	BidCount      int         `json:"bid_count"`
	Source        string      `json:"source"`
}

// AuctionHandler runs the full request chain: floor lookup, concurrent
// auction and, on no-fill, the waterfall cascade.
func (s *Server) AuctionHandler(w http.ResponseWriter, r *http.Request) {
	var req models.AuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.PlacementID == "" {
		http.Error(w, `{"error":"placement_id is required"}`, http.StatusBadRequest)
		return
	}
	if len(req.Adapters) == 0 {
		http.Error(w, `{"error":"adapters list is required"}`, http.StatusBadRequest)
		return
	}
	if req.Format == "" {
		req.Format = models.FormatBanner
	}
	if !req.Format.Valid() {
		http.Error(w, `{"error":"unknown ad format"}`, http.StatusBadRequest)
		return
	}
	if req.TimeoutMS > 0 {
		req.Timeout = time.Duration(req.TimeoutMS) * time.Millisecond
	}
	if req.Currency == "" {
		req.Currency = s.Config.BaseCurrency
	}
	req.Device = s.resolveDevice(r, req.Device)

	result := s.Engine.RunAuction(r.Context(), req)

	resp := AuctionResponse{
		AuctionID:     result.AuctionID,
		Winner:        result.Winner,
		ClearingPrice: result.ClearingPrice,
		NoFill:        result.NoFill,
		BidCount:      len(result.AllBids),
		Source:        "auction",
	}

	if result.NoFill && s.Cascade != nil && s.Config.WaterfallEnabled {
		cfg := s.waterfallConfig(req.PlacementID, req.Adapters)
		if bid := s.Cascade.Run(r.Context(), req, cfg); bid != nil {
			resp.Winner = bid
			resp.ClearingPrice = bid.Price
			resp.NoFill = false
			resp.Source = "waterfall"
			s.Metrics.IncrementAuctions("waterfall_fill")
			s.logWaterfallFill(result, bid)
		}
	}
	if resp.NoFill {
		resp.Source = "none"
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.Logger.Error("encode auction response", zap.Error(err))
	}
}

// logWaterfallFill records the fallback fill in the bid landscape under a
// stage-qualified auction ID, so auction and waterfall rows stay distinct for
// the same request.
func (s *Server) logWaterfallFill(result *models.AuctionResult, bid *models.Bid) {
	if s.Landscape == nil {
		return
	}
	s.Landscape.LogAuction(&models.AuctionResult{
		AuctionID:     result.AuctionID + ":waterfall",
		PlacementID:   result.PlacementID,
		Winner:        bid,
		ClearingPrice: bid.Price,
		FloorPrice:    result.FloorPrice,
		AllBids:       []models.Bid{*bid},
		Timestamp:     time.Now(),
		Country:       result.Country,
		Format:        result.Format,
	})
}
