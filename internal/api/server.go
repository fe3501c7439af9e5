package api

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/avct/uasurfer"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/bidmesh/auctioncore/internal/auction"
	"github.com/bidmesh/auctioncore/internal/config"
	"github.com/bidmesh/auctioncore/internal/geoip"
	"github.com/bidmesh/auctioncore/internal/landscape"
	"github.com/bidmesh/auctioncore/internal/models"
	"github.com/bidmesh/auctioncore/internal/observability"
	"github.com/bidmesh/auctioncore/internal/waterfall"
)

// Server groups dependencies for HTTP handlers.
type Server struct {
	Logger    *zap.Logger
	Engine    *auction.Engine
	Cascade   *waterfall.Cascade
	Landscape *landscape.Logger
	GeoIP     *geoip.GeoIP
	Metrics   observability.MetricsRegistry
	Config    config.Config

	tiersMu sync.RWMutex
	tiers   map[string][]waterfall.Tier
}

// NewServer constructs a Server.
func NewServer(logger *zap.Logger, engine *auction.Engine, cascade *waterfall.Cascade, lds *landscape.Logger, geo *geoip.GeoIP, metrics observability.MetricsRegistry, cfg config.Config) *Server {
	return &Server{
		Logger:    logger,
		Engine:    engine,
		Cascade:   cascade,
		Landscape: lds,
		GeoIP:     geo,
		Metrics:   metrics,
		Config:    cfg,
		tiers:     make(map[string][]waterfall.Tier),
	}
}

// Routes builds the HTTP router.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/v1/auction", s.AuctionHandler).Methods(http.MethodPost)
	r.HandleFunc("/v1/landscape", s.LandscapeHandler).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.HealthHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler())

	handler := s.withRequestLogging(r)
	return otelhttp.NewHandler(handler, "auctioncore")
}

// SetWaterfallTiers swaps the per-placement priority lists. Called by the
// reload loop; requests in flight keep the ordering they started with.
func (s *Server) SetWaterfallTiers(tiers map[string][]waterfall.Tier) {
	if tiers == nil {
		tiers = make(map[string][]waterfall.Tier)
	}
	s.tiersMu.Lock()
	s.tiers = tiers
	s.tiersMu.Unlock()
}

// waterfallConfig assembles the cascade config for one placement. Placements
// without configured tiers fall back to the request's adapter list in its
// given order.
func (s *Server) waterfallConfig(placementID string, requestAdapters []string) waterfall.Config {
	priority := requestAdapters

	s.tiersMu.RLock()
	if tiers, ok := s.tiers[placementID]; ok && len(tiers) > 0 {
		priority = make([]string, len(tiers))
		for i, t := range tiers {
			priority[i] = t.AdapterID
		}
	}
	s.tiersMu.RUnlock()

	return waterfall.Config{
		Enabled:      s.Config.WaterfallEnabled,
		MaxAttempts:  s.Config.WaterfallMaxAttempts,
		InitialDelay: s.Config.WaterfallInitialDelay,
		MaxDelay:     s.Config.WaterfallMaxDelay,
		Multiplier:   s.Config.WaterfallMultiplier,
		Priority:     priority,
		Smart:        s.Config.WaterfallSmart,
	}
}

// resolveDevice enriches the device context with the client IP, country and
// device type. Missing geo data is tolerated; such traffic pools into the
// unknown segment.
func (s *Server) resolveDevice(r *http.Request, device models.DeviceContext) models.DeviceContext {
	if device.IP == "" {
		device.IP = clientIP(r)
	}
	if device.Country == "" {
		if ip := net.ParseIP(device.IP); ip != nil {
			device.Country = s.GeoIP.Country(ip)
		}
	}
	if device.UserAgent == "" {
		device.UserAgent = r.UserAgent()
	}
	if device.DeviceType == "" && device.UserAgent != "" {
		device.DeviceType = deviceTypeFromUA(device.UserAgent)
	}
	return device
}

// deviceTypeFromUA maps a raw User-Agent onto the coarse device classes used
// for targeting.
func deviceTypeFromUA(ua string) string {
	switch uasurfer.Parse(ua).DeviceType {
	case uasurfer.DeviceComputer:
		return "desktop"
	case uasurfer.DevicePhone:
		return "mobile"
	case uasurfer.DeviceTablet:
		return "tablet"
	default:
		return "other"
	}
}

// clientIP extracts the originating client IP, preferring X-Forwarded-For.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
