package mediator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"vnmonitor/internal/cache"
	"vnmonitor/internal/provider"
)

// Config wires a Service. Sources are tried in priority order (primary
// first). Clock defaults to time.Now; the remaining zero values get the
// defaults the dashboard ships with.
type Config struct {
	Sources     []provider.MarketData
	Feeds       []provider.NewsFeed
	Cache       *cache.Store
	Clock       cache.Clock
	CallTimeout time.Duration
	Log         zerolog.Logger

	// IndexProxies maps an index symbol to the substitute series used
	// when the requested one comes back empty (VNINDEX -> VN30).
	IndexProxies map[string]string
	// Proxy fallback is configurable per resource type. Only history has
	// a confirmed proxy semantics; quote and price-board default off.
	ProxyHistory bool
	ProxyQuote   bool
	ProxyBoard   bool

	CardGroups  []string
	BoardChunk  int
	UniverseCap int
}

// Meta describes how an answer was produced: when the data was actually
// fetched, whether it came from cache, and whether it is stale (served
// past its TTL under soft degradation).
type Meta struct {
	Source    string          `json:"source,omitempty"`
	AsOf      time.Time       `json:"as_of"`
	FromCache bool            `json:"from_cache"`
	Stale     bool            `json:"stale,omitempty"`
	Status    provider.Status `json:"-"`
}

// stored is what a cache entry holds: the payload plus enough bookkeeping
// to rebuild Meta on a hit.
type stored struct {
	Payload any
	Source  string
	Count   int
}

// Service is the endpoint mediator. One instance serves every resource;
// per-resource methods only differ in cache key, category and chain.
type Service struct {
	sources []provider.MarketData
	feeds   []provider.NewsFeed
	cache   *cache.Store
	now     cache.Clock
	res     *Resolver
	log     zerolog.Logger
	sf      singleflight.Group

	proxies      map[string]string
	proxyHistory bool
	proxyQuote   bool
	proxyBoard   bool
	cardGroups   []string
	boardChunk   int
	universeCap  int
}

// New builds the mediator service.
func New(cfg Config) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 15 * time.Second
	}
	if cfg.IndexProxies == nil {
		cfg.IndexProxies = map[string]string{"VNINDEX": "VN30"}
	}
	if len(cfg.CardGroups) == 0 {
		cfg.CardGroups = []string{"VN30", "HNX30"}
	}
	if cfg.BoardChunk <= 0 {
		cfg.BoardChunk = 50
	}
	if cfg.UniverseCap <= 0 {
		cfg.UniverseCap = 200
	}
	log := cfg.Log.With().Str("component", "mediator").Logger()
	guard := NewGuard(cfg.CallTimeout, clock, cfg.Log)
	return &Service{
		sources:      cfg.Sources,
		feeds:        cfg.Feeds,
		cache:        cfg.Cache,
		now:          clock,
		res:          NewResolver(guard, cfg.Log),
		log:          log,
		proxies:      cfg.IndexProxies,
		proxyHistory: cfg.ProxyHistory,
		proxyQuote:   cfg.ProxyQuote,
		proxyBoard:   cfg.ProxyBoard,
		cardGroups:   cfg.CardGroups,
		boardChunk:   cfg.BoardChunk,
		universeCap:  cfg.UniverseCap,
	}
}

// run answers one resource request: cache check, collapsed refresh on a
// miss, store under the resource's category.
func (s *Service) run(ctx context.Context, key string, cat cache.Category, chain Chain) (stored, Meta, error) {
	if e, ok := s.cache.Fresh(key); ok {
		return s.fromEntry(e, true)
	}

	type flight struct {
		st   stored
		meta Meta
	}
	v, err, _ := s.sf.Do(key, func() (any, error) {
		st, meta, err := s.refresh(ctx, key, cat, chain)
		return flight{st, meta}, err
	})
	f := v.(flight)
	return f.st, f.meta, err
}

// refresh runs the fallback chain and applies the caching policy for its
// outcome. Callers collapsed into the same flight all see its result.
func (s *Service) refresh(ctx context.Context, key string, cat cache.Category, chain Chain) (stored, Meta, error) {
	// Another flight may have refreshed between our cache check and the
	// singleflight acquisition.
	if e, ok := s.cache.Fresh(key); ok {
		return s.fromEntry(e, true)
	}

	res := s.res.Resolve(ctx, chain)
	switch res.Status {
	case provider.StatusOK:
		st := stored{Payload: res.Data, Source: res.Source, Count: res.Count}
		e := s.cache.Put(key, st, cat)
		s.log.Debug().Str("key", key).Str("source", res.Source).Msg("Cached fresh result")
		return st, Meta{Source: res.Source, AsOf: e.FetchedAt, Status: provider.StatusOK}, nil

	case provider.StatusEmpty:
		// Outside trading hours an empty result is expected; the
		// last-known snapshot with its true fetch time beats a synthetic
		// "no data" answer.
		if e, ok := s.cache.Get(key); ok {
			return s.fromEntry(e, true)
		}
		st := stored{Payload: res.Data, Source: res.Source, Count: 0}
		e := s.cache.Put(key, st, cat)
		return st, Meta{Source: res.Source, AsOf: e.FetchedAt, Status: provider.StatusEmpty}, nil

	case provider.StatusRateLimited:
		// Never cached: the very next request must retry upstream, not
		// serve a stored throttling answer.
		return stored{}, Meta{Source: res.Source, AsOf: res.AsOf, Status: provider.StatusRateLimited},
			fmt.Errorf("%s: %w", key, provider.ErrRateLimited)

	case provider.StatusNotFound:
		return stored{}, Meta{Source: res.Source, AsOf: res.AsOf, Status: provider.StatusNotFound},
			fmt.Errorf("%s: %w", key, provider.ErrNotFound)

	default:
		if e, ok := s.cache.Get(key); ok {
			s.log.Warn().Err(res.Err).Str("key", key).Msg("Upstream failed, serving stale cache")
			return s.fromEntry(e, true)
		}
		return stored{}, Meta{Source: res.Source, AsOf: res.AsOf, Status: provider.StatusError},
			fmt.Errorf("fetch %s: %w", key, res.Err)
	}
}

func (s *Service) fromEntry(e cache.Entry, fromCache bool) (stored, Meta, error) {
	st, ok := e.Value.(stored)
	if !ok {
		st = stored{Payload: e.Value}
	}
	status := provider.StatusOK
	if st.Count == 0 {
		status = provider.StatusEmpty
	}
	return st, Meta{
		Source:    st.Source,
		AsOf:      e.FetchedAt,
		FromCache: fromCache,
		Stale:     !s.cache.Valid(e),
		Status:    status,
	}, nil
}
