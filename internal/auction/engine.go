// Package auction implements the concurrent second-price auction over the
// configured demand adapters, with per-adapter circuit breaking and a hard
// global deadline.
package auction

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bidmesh/auctioncore/internal/adapters"
	"github.com/bidmesh/auctioncore/internal/models"
	"github.com/bidmesh/auctioncore/internal/observability"
)

// monetaryPrecision is the number of decimal places used for price
// comparisons and clearing arithmetic (0.0001 CPM resolution).
const monetaryPrecision int32 = 4

// FloorAdvisor supplies the reserve price per segment and learns from
// auction outcomes.
type FloorAdvisor interface {
	GetFloor(ctx context.Context, key models.SegmentKey) float64
	RecordOutcome(ctx context.Context, key models.SegmentKey, price float64, cleared bool)
}

// LandscapeSink receives the full bid set of every closed auction.
// Implementations must not block the caller.
type LandscapeSink interface {
	LogAuction(res *models.AuctionResult)
}

// Config holds the engine's tunable knobs.
type Config struct {
	// DefaultTimeout is the global auction deadline applied when the
	// request carries no override.
	DefaultTimeout time.Duration
	// BidIncrement is added to the second-highest bid under second-price
	// rules.
	BidIncrement float64
	// BaseCurrency is assumed for requests that do not specify one.
	BaseCurrency string
}

// Engine runs auctions. One Engine instance serves all concurrent requests
// and owns the breaker set; nothing else mutates breaker state.
type Engine struct {
	registry  *adapters.Registry
	breakers  *BreakerSet
	floors    FloorAdvisor
	landscape LandscapeSink
	metrics   observability.MetricsRegistry
	logger    *zap.Logger
	cfg       Config
}

// NewEngine constructs an Engine. landscape may be nil in tests.
func NewEngine(registry *adapters.Registry, breakers *BreakerSet, floors FloorAdvisor, landscape LandscapeSink, metrics observability.MetricsRegistry, logger *zap.Logger, cfg Config) *Engine {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 120 * time.Millisecond
	}
	if cfg.BidIncrement <= 0 {
		cfg.BidIncrement = 0.01
	}
	if cfg.BaseCurrency == "" {
		cfg.BaseCurrency = "USD"
	}
	return &Engine{
		registry:  registry,
		breakers:  breakers,
		floors:    floors,
		landscape: landscape,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// Breakers exposes the breaker set for observability surfaces.
func (e *Engine) Breakers() *BreakerSet { return e.breakers }

type callResult struct {
	adapter string
	bid     *models.Bid
	err     error
}

// RunAuction fans out to every eligible adapter concurrently, waits until all
// calls return or the global deadline fires, and resolves a winner under
// second-price rules. It never returns an error: internal failures collapse
// into a no-fill result.
func (e *Engine) RunAuction(ctx context.Context, req models.AuctionRequest) *models.AuctionResult {
	start := time.Now()

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.cfg.DefaultTimeout
	}
	if req.Currency == "" {
		req.Currency = e.cfg.BaseCurrency
	}

	result := &models.AuctionResult{
		AuctionID:   uuid.NewString(),
		PlacementID: req.PlacementID,
		NoFill:      true,
		Country:     req.Device.Country,
		Format:      req.Format,
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Gather eligible adapters and their segment floors before launching
	// anything; the sampling step is pure computation and must not eat
	// into the network budget unevenly across adapters.
	type eligible struct {
		bidder adapters.Bidder
		floor  float64
		seg    models.SegmentKey
	}
	var calls []eligible
	minFloor := 0.0
	for _, id := range req.Adapters {
		bidder, ok := e.registry.Get(id)
		if !ok {
			e.logger.Warn("unknown adapter in request", zap.String("adapter", id))
			continue
		}
		if !e.breakers.Get(id).Allow() {
			e.metrics.IncrementAdapterBids(id, models.NoBidCircuitOpen)
			continue
		}
		seg := models.Segment(id, req)
		floor := e.floors.GetFloor(ctx, seg)
		e.metrics.ObserveFloorSelected(id, string(req.Format), floor)
		if minFloor == 0 || floor < minFloor {
			minFloor = floor
		}
		calls = append(calls, eligible{bidder: bidder, floor: floor, seg: seg})
	}

	// Buffered so late goroutines can always deliver without leaking; a
	// call that outlives the deadline still updates its breaker even
	// though its bid is discarded.
	results := make(chan callResult, len(calls))
	for _, c := range calls {
		go func(c eligible) {
			callStart := time.Now()
			bid, err := c.bidder.RequestBid(cctx, adapters.BidRequest{
				AuctionID:   result.AuctionID,
				PlacementID: req.PlacementID,
				Format:      req.Format,
				FloorPrice:  c.floor,
				Currency:    req.Currency,
				Device:      req.Device,
			})
			name := c.bidder.Name()
			e.metrics.RecordAdapterLatency(name, time.Since(callStart))

			br := e.breakers.Get(name)
			if err != nil {
				if adapters.IsFailure(err) {
					br.OnFailure()
				} else {
					br.OnSuccess()
				}
				e.metrics.IncrementAdapterBids(name, adapters.NoBidReason(err))
				results <- callResult{adapter: name, err: err}
				return
			}
			br.OnSuccess()
			results <- callResult{adapter: name, bid: bid}
		}(c)
	}

	// Collect until every call returned or the deadline fired, whichever
	// comes first.
	var received []models.Bid
	responded := make(map[string]*models.Bid, len(calls))
collect:
	for i := 0; i < len(calls); i++ {
		select {
		case r := <-results:
			if r.bid != nil {
				bid := e.normalize(*r.bid, req.Currency)
				received = append(received, bid)
				responded[r.adapter] = &bid
			} else {
				responded[r.adapter] = nil
			}
		case <-cctx.Done():
			break collect
		}
	}

	floorByAdapter := make(map[string]float64, len(calls))
	for _, c := range calls {
		floorByAdapter[c.bidder.Name()] = c.floor
	}

	result.AllBids = received
	result.FloorPrice = minFloor

	// Resolve among bids that clear their adapter's floor.
	var valid []models.Bid
	for _, bid := range received {
		if bidMeetsFloor(bid.Price, floorByAdapter[bid.AdapterID]) {
			valid = append(valid, bid)
		} else {
			e.metrics.IncrementAdapterBids(bid.AdapterID, models.NoBidBelowFloor)
		}
	}

	if len(valid) > 0 {
		sort.Slice(valid, func(i, j int) bool { return valid[i].Price > valid[j].Price })
		winner := valid[0]
		floor := floorByAdapter[winner.AdapterID]
		result.Winner = &winner
		result.FloorPrice = floor
		result.ClearingPrice = e.clearingPrice(valid, floor)
		result.NoFill = false
	}

	result.Duration = time.Since(start)
	result.Timestamp = time.Now()

	// Feed the learning loop: each adapter that was actually called gets
	// an outcome for its segment. Success means the adapter produced a
	// bid at or above the floor it was given.
	for _, c := range calls {
		bid, ok := responded[c.bidder.Name()]
		cleared := ok && bid != nil && bidMeetsFloor(bid.Price, c.floor)
		e.floors.RecordOutcome(ctx, c.seg, c.floor, cleared)
	}

	if e.landscape != nil {
		e.landscape.LogAuction(result)
	}

	outcome := "no_fill"
	if !result.NoFill {
		outcome = "won"
	}
	e.metrics.IncrementAuctions(outcome)
	e.metrics.RecordAuctionDuration(result.Duration)

	if result.Winner != nil {
		e.logger.Debug("auction completed",
			zap.String("auction_id", result.AuctionID),
			zap.String("winner", result.Winner.AdapterID),
			zap.Float64("price", result.Winner.Price),
			zap.Float64("clearing_price", result.ClearingPrice),
			zap.Duration("duration", result.Duration),
		)
	} else {
		e.logger.Debug("auction no fill",
			zap.String("auction_id", result.AuctionID),
			zap.Int("bids", len(received)),
			zap.Duration("duration", result.Duration),
		)
	}

	return result
}

// clearingPrice applies the second-price rule: max(floor, second-highest
// valid bid + increment), capped at the winner's own price. The slice must be
// sorted by price descending.
func (e *Engine) clearingPrice(valid []models.Bid, floor float64) float64 {
	winner := decimal.NewFromFloat(valid[0].Price).Round(monetaryPrecision)
	clearing := decimal.NewFromFloat(floor).Round(monetaryPrecision)
	if len(valid) > 1 {
		second := decimal.NewFromFloat(valid[1].Price).Round(monetaryPrecision).
			Add(decimal.NewFromFloat(e.cfg.BidIncrement))
		if second.GreaterThan(clearing) {
			clearing = second
		}
	}
	if clearing.GreaterThan(winner) {
		clearing = winner
	}
	f, _ := clearing.Float64()
	return f
}

// bidMeetsFloor compares at fixed monetary precision to keep float noise out
// of validity decisions.
func bidMeetsFloor(bidPrice, floorPrice float64) bool {
	bid := decimal.NewFromFloat(bidPrice).Round(monetaryPrecision)
	floor := decimal.NewFromFloat(floorPrice).Round(monetaryPrecision)
	return bid.GreaterThanOrEqual(floor)
}

// usdRates maps currency codes to their USD value per unit. The table is
// intentionally small; rates only matter when adapters bid in a currency
// other than the request's.
var usdRates = map[string]float64{
	"USD": 1.0,
	"EUR": 1.08,
	"GBP": 1.27,
	"JPY": 0.0067,
}

// normalize converts a bid's price into the request currency. Unknown
// currencies pass through unconverted.
func (e *Engine) normalize(bid models.Bid, currency string) models.Bid {
	if bid.Currency == currency {
		return bid
	}
	from, okFrom := usdRates[bid.Currency]
	to, okTo := usdRates[currency]
	if !okFrom || !okTo {
		bid.Currency = currency
		return bid
	}
	price := decimal.NewFromFloat(bid.Price).
		Mul(decimal.NewFromFloat(from)).
		Div(decimal.NewFromFloat(to)).
		Round(monetaryPrecision)
	bid.Price, _ = price.Float64()
	bid.Currency = currency
	return bid
}
