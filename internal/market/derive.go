package market

import (
	"sort"
	"strings"
	"time"
)

// CardFromBoard computes an index-like overview card from a group's price
// board using the mean reference price as base and the mean match price
// as the proxy value. Rows without a reference price are skipped so a few
// missing fields cannot zero out the whole card. Returns false when no
// usable rows remain.
func CardFromBoard(group string, rows []PriceRow, asOf time.Time) (IndexCard, bool) {
	var refSum, lastSum float64
	var n int
	for _, r := range rows {
		if r.ReferencePrice == 0 {
			continue
		}
		refSum += r.ReferencePrice
		lastSum += r.MatchPrice
		n++
	}
	if n == 0 {
		return IndexCard{}, false
	}
	refMean := refSum / float64(n)
	lastMean := lastSum / float64(n)
	change := lastMean - refMean
	pct := 0.0
	if refMean != 0 {
		pct = change / refMean * 100
	}
	return IndexCard{
		Name:       group,
		ProxyGroup: group,
		Value:      round2(lastMean),
		Change:     round2(change),
		PctChange:  round2(pct),
		AsOf:       asOf,
	}, true
}

// MoverKind selects the ranking order of TopMovers.
type MoverKind string

const (
	MoverGainers MoverKind = "gainers"
	MoverLosers  MoverKind = "losers"
	MoverVolume  MoverKind = "volume"
)

// ParseMoverKind normalizes a user-supplied mover type, defaulting to gainers.
func ParseMoverKind(s string) MoverKind {
	switch MoverKind(strings.ToLower(strings.TrimSpace(s))) {
	case MoverLosers:
		return MoverLosers
	case MoverVolume:
		return MoverVolume
	default:
		return MoverGainers
	}
}

// TopMovers ranks price-board rows by the given kind and keeps the first
// limit rows. Input is not mutated. Ties keep symbol order for stable output.
func TopMovers(rows []PriceRow, kind MoverKind, limit int) []Mover {
	movers := make([]Mover, 0, len(rows))
	for _, r := range rows {
		movers = append(movers, Mover{
			Symbol:         r.Symbol,
			ReferencePrice: r.ReferencePrice,
			MatchPrice:     r.MatchPrice,
			Change:         round2(r.Change()),
			PctChange:      round2(r.PctChange()),
			TotalVolume:    r.TotalVolume,
		})
	}
	sort.SliceStable(movers, func(i, j int) bool {
		a, b := movers[i], movers[j]
		switch kind {
		case MoverLosers:
			if a.PctChange != b.PctChange {
				return a.PctChange < b.PctChange
			}
		case MoverVolume:
			if a.TotalVolume != b.TotalVolume {
				return a.TotalVolume > b.TotalVolume
			}
		default:
			if a.PctChange != b.PctChange {
				return a.PctChange > b.PctChange
			}
		}
		return a.Symbol < b.Symbol
	})
	if limit > 0 && len(movers) > limit {
		movers = movers[:limit]
	}
	return movers
}

// MergeNews merges per-source article lists, drops exact URL duplicates,
// sorts newest first (articles without a publish time sink to the end),
// and keeps the first limit items. Later sources never displace an earlier
// source's copy of the same URL.
func MergeNews(lists [][]NewsItem, limit int) []NewsItem {
	seen := make(map[string]struct{})
	var merged []NewsItem
	for _, items := range lists {
		for _, it := range items {
			if it.URL == "" || it.Title == "" {
				continue
			}
			if _, dup := seen[it.URL]; dup {
				continue
			}
			seen[it.URL] = struct{}{}
			merged = append(merged, it)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		ti, tj := merged[i].PublishedAt, merged[j].PublishedAt
		if ti.IsZero() != tj.IsZero() {
			return !ti.IsZero()
		}
		return ti.After(tj)
	})
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

func round2(v float64) float64 {
	if v < 0 {
		return float64(int64(v*100-0.5)) / 100
	}
	return float64(int64(v*100+0.5)) / 100
}
