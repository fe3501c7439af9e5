package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/bidmesh/auctioncore/internal/landscape"
	"github.com/bidmesh/auctioncore/internal/models"
)

// LandscapeHandler serves out-of-band analytics queries over persisted bid
// landscape rows. Filters: adapter, country, format, from, to (RFC 3339),
// limit.
func (s *Server) LandscapeHandler(w http.ResponseWriter, r *http.Request) {
	if s.Landscape == nil {
		http.Error(w, `{"error":"landscape store unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()
	f := landscape.Filter{
		AdapterID: q.Get("adapter"),
		Country:   q.Get("country"),
		Format:    models.AdFormat(q.Get("format")),
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, `{"error":"invalid from timestamp"}`, http.StatusBadRequest)
			return
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, `{"error":"invalid to timestamp"}`, http.StatusBadRequest)
			return
		}
		f.To = t
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Limit = n
		}
	}

	records, err := s.Landscape.Query(r.Context(), f)
	if err != nil {
		s.Logger.Error("landscape query failed", zap.Error(err))
		http.Error(w, `{"error":"landscape query failed"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(struct {
		Records []landscape.Record `json:"records"`
		Count   int                `json:"count"`
	}{Records: records, Count: len(records)}); err != nil {
		s.Logger.Error("encode landscape response", zap.Error(err))
	}
}
