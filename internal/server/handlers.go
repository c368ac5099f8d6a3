package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"vnmonitor/internal/market"
	"vnmonitor/internal/mediator"
	"vnmonitor/internal/provider"
)

type objectResponse struct {
	Data any `json:"data"`
	mediator.Meta
}

type listResponse struct {
	Items any `json:"items"`
	Count int `json:"count"`
	mediator.Meta
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeObject(w http.ResponseWriter, data any, meta mediator.Meta) {
	s.writeJSON(w, http.StatusOK, objectResponse{Data: data, Meta: meta})
}

func (s *Server) writeList(w http.ResponseWriter, items any, count int, meta mediator.Meta) {
	s.writeJSON(w, http.StatusOK, listResponse{Items: items, Count: count, Meta: meta})
}

// writeError maps the mediator's error taxonomy onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway
	msg := "upstream error"
	switch {
	case errors.Is(err, provider.ErrRateLimited):
		status = http.StatusTooManyRequests
		msg = "rate limited by data provider, try again later"
	case errors.Is(err, provider.ErrNotFound):
		status = http.StatusNotFound
		msg = "not found"
	}
	s.log.Warn().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("Request failed")
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type indicesResponse struct {
	Items  []market.IndexCard `json:"items"`
	Count  int                `json:"count"`
	Series *market.Series     `json:"series,omitempty"`
	mediator.Meta
}

func (s *Server) handleIndices(w http.ResponseWriter, r *http.Request) {
	cards, meta, err := s.market.MarketCards(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := indicesResponse{Items: cards, Count: len(cards), Meta: meta}
	// The overview page plots the benchmark series next to the cards. A
	// failing series does not take the cards down with it.
	if series, _, err := s.market.IndexSeries(r.Context()); err != nil {
		s.log.Warn().Err(err).Msg("Benchmark series unavailable")
	} else {
		resp.Series = &series
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePriceBoard(w http.ResponseWriter, r *http.Request) {
	universe := r.URL.Query().Get("universe")
	limit := queryInt(r, "limit", 0)
	rows, meta, err := s.market.PriceBoard(r.Context(), universe, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeList(w, rows, len(rows), meta)
}

func (s *Server) handleTopMovers(w http.ResponseWriter, r *http.Request) {
	// The dashboard sends ?type=; kind is kept as an alias.
	kindParam := r.URL.Query().Get("type")
	if kindParam == "" {
		kindParam = r.URL.Query().Get("kind")
	}
	kind := market.ParseMoverKind(kindParam)
	universe := r.URL.Query().Get("universe")
	limit := queryInt(r, "limit", 0)
	movers, meta, err := s.market.TopMovers(r.Context(), kind, universe, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeList(w, movers, len(movers), meta)
}

func (s *Server) handleStockList(w http.ResponseWriter, r *http.Request) {
	exchange := r.URL.Query().Get("exchange")
	list, meta, err := s.market.StockList(r.Context(), exchange)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeList(w, list, len(list), meta)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	row, meta, err := s.market.Quote(r.Context(), symbol)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeObject(w, row, meta)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	q := r.URL.Query()

	req := market.HistoryRequest{
		Interval: q.Get("interval"),
		Length:   q.Get("length"),
	}
	if req.Interval == "" {
		req.Interval = "1D"
	}
	if v := q.Get("start"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad start date"})
			return
		}
		req.Start = t
	}
	if v := q.Get("end"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad end date"})
			return
		}
		req.End = t
	}

	series, meta, err := s.market.History(r.Context(), symbol, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeObject(w, series, meta)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	profile, meta, err := s.market.Profile(r.Context(), symbol)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeObject(w, profile, meta)
}

func (s *Server) handleRatios(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	period := strings.ToLower(r.URL.Query().Get("period"))
	if period != "quarter" {
		period = "year"
	}
	rows, meta, err := s.market.Ratios(r.Context(), symbol, period)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeList(w, rows, len(rows), meta)
}

func (s *Server) handleCompanyNews(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	limit := queryInt(r, "limit", 0)
	items, meta, err := s.market.CompanyNews(r.Context(), symbol, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeList(w, items, len(items), meta)
}

func (s *Server) handleMarketNews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	region := q.Get("region")
	var sources []string
	if v := q.Get("sources"); v != "" {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				sources = append(sources, p)
			}
		}
	}
	items, meta, err := s.market.MarketNews(r.Context(), region, sources, queryInt(r, "limit", 0))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeList(w, items, len(items), meta)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
