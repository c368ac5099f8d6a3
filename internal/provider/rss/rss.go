// Package rss reads market headlines from public RSS feeds and, for
// outlets without one, from their HTML front page.
package rss

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"vnmonitor/internal/httpx"
	"vnmonitor/internal/market"
)

// Feed is one news outlet. Region is "vn" or "global".
type Feed struct {
	name   string
	region string
	url    string
	client *httpx.Client
	parse  func(f *Feed, resp *http.Response, limit int) ([]market.NewsItem, error)
}

func (f *Feed) Name() string   { return f.name }
func (f *Feed) Region() string { return f.region }

// NewRSS builds a feed backed by an RSS or Atom document.
func NewRSS(name, region, url string, hc *httpx.Client) *Feed {
	return &Feed{name: name, region: region, url: url, client: hc, parse: parseRSS}
}

// NewHTML builds a feed that scrapes headline anchors off an HTML page.
// The match function decides which hrefs count as articles.
func NewHTML(name, region, url string, hc *httpx.Client, match func(href string) bool) *Feed {
	return &Feed{name: name, region: region, url: url, client: hc, parse: htmlParser(match)}
}

// Defaults are the outlets the dashboard ships with.
func Defaults(hc *httpx.Client) []*Feed {
	return []*Feed{
		NewRSS("vnexpress", "vn", "https://vnexpress.net/rss/kinh-doanh.rss", hc),
		NewRSS("cafef", "vn", "https://cafef.vn/thi-truong-chung-khoan.rss", hc),
		NewRSS("tinnhanhchungkhoan", "vn", "https://www.tinnhanhchungkhoan.vn/rss/chung-khoan.rss", hc),
		NewRSS("vietstock", "vn", "https://vietstock.vn/830/chung-khoan/co-phieu.rss", hc),
		NewHTML("bloomberg", "global", "https://www.bloomberg.com/markets", hc, func(href string) bool {
			return strings.Contains(href, "/news/articles/")
		}),
	}
}

func (f *Feed) Latest(ctx context.Context, limit int) ([]market.NewsItem, error) {
	resp, err := f.client.Get(ctx, f.url)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s -> %d: %s", f.name, resp.StatusCode, httpx.Snippet(resp.Body, 512))
	}
	items, err := f.parse(f, resp, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.name, err)
	}
	return items, nil
}

func parseRSS(f *Feed, resp *http.Response, limit int) ([]market.NewsItem, error) {
	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, err
	}
	out := make([]market.NewsItem, 0, limit)
	for _, it := range feed.Items {
		if len(out) >= limit {
			break
		}
		item := market.NewsItem{
			Title:   strings.TrimSpace(it.Title),
			Summary: strings.TrimSpace(stripTags(it.Description)),
			URL:     it.Link,
			Source:  f.name,
		}
		if it.PublishedParsed != nil {
			item.PublishedAt = it.PublishedParsed.UTC()
		} else if it.UpdatedParsed != nil {
			item.PublishedAt = it.UpdatedParsed.UTC()
		}
		if it.Image != nil {
			item.ImageURL = it.Image.URL
		}
		if item.Title == "" || item.URL == "" {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func htmlParser(match func(href string) bool) func(f *Feed, resp *http.Response, limit int) ([]market.NewsItem, error) {
	return func(f *Feed, resp *http.Response, limit int) ([]market.NewsItem, error) {
		doc, err := goquery.NewDocumentFromReader(resp.Body)
		if err != nil {
			return nil, err
		}
		fetched := time.Now().UTC()
		seen := make(map[string]struct{})
		out := make([]market.NewsItem, 0, limit)
		doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			href, _ := sel.Attr("href")
			if !match(href) {
				return true
			}
			title := strings.TrimSpace(sel.Text())
			if title == "" || len(title) < 20 {
				return true
			}
			link := absoluteURL(resp.Request, href)
			if _, dup := seen[link]; dup {
				return true
			}
			seen[link] = struct{}{}
			out = append(out, market.NewsItem{
				Title:       title,
				URL:         link,
				Source:      f.name,
				PublishedAt: fetched,
			})
			return len(out) < limit
		})
		return out, nil
	}
}

func absoluteURL(req *http.Request, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if req == nil || req.URL == nil {
		return href
	}
	ref, err := req.URL.Parse(href)
	if err != nil {
		return href
	}
	return ref.String()
}

// stripTags flattens the HTML fragments feeds stuff into descriptions.
func stripTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
