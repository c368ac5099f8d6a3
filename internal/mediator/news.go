package mediator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"vnmonitor/internal/cache"
	"vnmonitor/internal/market"
	"vnmonitor/internal/provider"
)

const maxNewsSources = 10

// FeedNames lists the configured news feed names, sorted.
func (s *Service) FeedNames() []string {
	names := make([]string, 0, len(s.feeds))
	for _, f := range s.feeds {
		names = append(names, f.Name())
	}
	sort.Strings(names)
	return names
}

// MarketNews aggregates the latest articles across the configured feeds.
// region is vn, global or all; sources optionally narrows the feed set.
// Every selected feed is fetched concurrently and a failing feed simply
// contributes zero items.
func (s *Service) MarketNews(ctx context.Context, region string, sources []string, limit int) ([]market.NewsItem, Meta, error) {
	region = strings.ToLower(strings.TrimSpace(region))
	if region == "" {
		region = "vn"
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	wanted := make(map[string]bool, len(sources))
	for _, src := range sources {
		if name := strings.ToLower(strings.TrimSpace(src)); name != "" {
			wanted[name] = true
		}
	}

	var selected []provider.NewsFeed
	for _, f := range s.feeds {
		if region != "all" && region != "both" && f.Region() != region {
			continue
		}
		if len(wanted) > 0 && !wanted[f.Name()] {
			continue
		}
		selected = append(selected, f)
	}
	if len(selected) > maxNewsSources {
		selected = selected[:maxNewsSources]
	}

	names := make([]string, 0, len(selected))
	for _, f := range selected {
		names = append(names, f.Name())
	}
	sort.Strings(names)
	key := fmt.Sprintf("news_latest:%s:%s:%d", region, strings.Join(names, ","), limit)

	attempt := Attempt{Source: "news", Fetch: func(ctx context.Context) (any, int, error) {
		items := s.fanOut(ctx, selected, limit)
		return items, len(items), nil
	}}

	st, meta, err := s.run(ctx, key, cache.MarketNews, Chain{Attempts: []Attempt{attempt}})
	if err != nil {
		return nil, meta, err
	}
	items, _ := st.Payload.([]market.NewsItem)
	return items, meta, nil
}

// fanOut queries every feed concurrently and merges the results newest
// first. Feed errors are logged and swallowed; the aggregate never fails
// because one source changed its markup.
func (s *Service) fanOut(ctx context.Context, feeds []provider.NewsFeed, limit int) []market.NewsItem {
	if len(feeds) == 0 {
		return nil
	}
	perSource := limit / len(feeds)
	if perSource < 5 {
		perSource = 5
	}
	if perSource > 30 {
		perSource = 30
	}

	lists := make([][]market.NewsItem, len(feeds))
	g, ctx := errgroup.WithContext(ctx)
	for i, f := range feeds {
		i, f := i, f
		g.Go(func() error {
			items, err := f.Latest(ctx, perSource)
			if err != nil {
				s.log.Warn().Err(err).Str("feed", f.Name()).Msg("News feed failed, skipping")
				return nil
			}
			lists[i] = items
			return nil
		})
	}
	_ = g.Wait()
	return market.MergeNews(lists, limit)
}
