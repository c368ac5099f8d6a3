// Package cache is the in-memory TTL store behind every endpoint mediator.
// One entry per cache key; entries are immutable and replaced on refresh.
// Expired entries are kept until overwritten so callers can serve stale
// data when an upstream refresh fails.
package cache

import (
	"sync"
	"time"
)

// Clock supplies the current time. Injected so TTL behavior is testable
// without sleeping.
type Clock func() time.Time

// Category binds a cache key to its fixed TTL. Every key maps to exactly
// one category and a category's TTL is process-wide constant.
type Category int

const (
	MarketCards Category = iota
	StockList
	Quote
	PriceBoard
	History
	CompanyNews
	MarketNews
)

// TTLs per category. These mirror how volatile each resource is: realtime
// boards refresh within a trading tick, the listing changes on the order
// of days.
const (
	TTLMarketCards = 60 * time.Second
	TTLStockList   = 12 * time.Hour
	TTLQuote       = 15 * time.Second
	TTLPriceBoard  = 15 * time.Second
	TTLHistory     = 120 * time.Second
	TTLCompanyNews = 600 * time.Second
	TTLMarketNews  = 300 * time.Second
)

// TTL returns the fixed TTL for the category.
func (c Category) TTL() time.Duration {
	switch c {
	case MarketCards:
		return TTLMarketCards
	case StockList:
		return TTLStockList
	case Quote:
		return TTLQuote
	case PriceBoard:
		return TTLPriceBoard
	case History:
		return TTLHistory
	case CompanyNews:
		return TTLCompanyNews
	case MarketNews:
		return TTLMarketNews
	default:
		return time.Minute
	}
}

func (c Category) String() string {
	switch c {
	case MarketCards:
		return "market_cards"
	case StockList:
		return "stock_list"
	case Quote:
		return "quote"
	case PriceBoard:
		return "price_board"
	case History:
		return "history"
	case CompanyNews:
		return "company_news"
	case MarketNews:
		return "market_news"
	default:
		return "unknown"
	}
}

// Entry is one cached value. FetchedAt is the time of the outbound fetch
// that produced Value and survives cache hits unchanged, so a caller can
// always report how old the data really is.
type Entry struct {
	Key       string
	Value     any
	FetchedAt time.Time
	ExpiresAt time.Time
}

// Store is a concurrency-safe key -> Entry map with per-category TTLs.
// There is no eviction beyond replacement: the key space is bounded by
// symbol count x resource category.
type Store struct {
	now Clock

	mu      sync.RWMutex
	entries map[string]Entry
}

// New returns an empty store reading time from clock. A nil clock uses
// time.Now.
func New(clock Clock) *Store {
	if clock == nil {
		clock = time.Now
	}
	return &Store{now: clock, entries: make(map[string]Entry)}
}

// Get returns the stored entry for key, expired or not. The second return
// is false only when the key was never written.
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	return e, ok
}

// Fresh returns the entry for key only while it is still within its TTL.
func (s *Store) Fresh(key string) (Entry, bool) {
	e, ok := s.Get(key)
	if !ok || !s.Valid(e) {
		return Entry{}, false
	}
	return e, true
}

// Valid reports whether the entry is still within its TTL.
func (s *Store) Valid(e Entry) bool {
	return s.now().Before(e.ExpiresAt)
}

// Put stores value under key with the category's TTL, replacing any
// previous entry.
func (s *Store) Put(key string, value any, cat Category) Entry {
	now := s.now()
	e := Entry{
		Key:       key,
		Value:     value,
		FetchedAt: now,
		ExpiresAt: now.Add(cat.TTL()),
	}
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return e
}

// Len reports the number of stored entries, fresh and stale alike.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
