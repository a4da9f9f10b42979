package crawler

import (
	"bytes"
	"context"
	"encoding/xml"
	"html"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const maxSitemapDepth = 2

// Conventional sitemap locations, probed in order.
var sitemapPaths = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemap-index.xml",
	"/wp-sitemap.xml",
	"/sitemap/sitemap.xml",
}

var skipExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true,
	".webp": true, ".ico": true, ".bmp": true,
	".css": true, ".js": true, ".mjs": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true, ".otf": true,
	".zip": true, ".tar": true, ".gz": true, ".tgz": true, ".rar": true, ".7z": true,
}

type sitemapIndexXML struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

type urlSetXML struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// Resolver discovers page URLs for a root URL: sitemap probe first, breadth
// first same-domain crawl as the fallback.
type Resolver struct {
	fetcher  *Fetcher
	throttle *Throttle
	maxPages int
	maxDepth int
}

func NewResolver(fetcher *Fetcher, throttle *Throttle, maxPages int, maxDepth int) *Resolver {
	if maxPages <= 0 {
		maxPages = 50
	}
	if maxDepth <= 0 {
		maxDepth = 3
	}
	return &Resolver{fetcher: fetcher, throttle: throttle, maxPages: maxPages, maxDepth: maxDepth}
}

// Discover returns up to maxPages unique page URLs for rootURL.
func (r *Resolver) Discover(ctx context.Context, rootURL string) ([]string, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("root_url", rootURL))
	urls, err := r.probeSitemaps(ctx, rootURL)
	if err != nil {
		return nil, err
	}
	if len(urls) > 0 {
		logger.Info("sitemap discovery finished", zap.Int("urls", len(urls)))
		return urls, nil
	}
	logger.Info("no sitemap found, falling back to link crawl")
	return r.crawlLinks(ctx, rootURL)
}

func (r *Resolver) probeSitemaps(ctx context.Context, rootURL string) ([]string, error) {
	base, err := url.Parse(rootURL)
	if err != nil {
		return nil, err
	}
	for _, path := range sitemapPaths {
		if err := r.throttle.Wait(ctx); err != nil {
			return nil, err
		}
		candidate := base.Scheme + "://" + base.Host + path
		res, err := r.fetcher.Fetch(ctx, candidate)
		if err != nil || res.StatusCode != http.StatusOK {
			continue
		}
		urls := r.resolveSitemap(ctx, res.Body, 0)
		if len(urls) > 0 {
			return capURLs(dedupeURLs(urls), r.maxPages), nil
		}
	}
	return nil, nil
}

// ResolveSitemapDocument extracts page URLs from an already fetched sitemap
// file, e.g. one uploaded alongside a crawl request.
func (r *Resolver) ResolveSitemapDocument(ctx context.Context, data []byte) []string {
	return capURLs(dedupeURLs(r.resolveSitemap(ctx, data, 0)), r.maxPages)
}

func (r *Resolver) resolveSitemap(ctx context.Context, data []byte, depth int) []string {
	var index sitemapIndexXML
	if err := xml.Unmarshal(data, &index); err == nil && len(index.Sitemaps) > 0 {
		if depth >= maxSitemapDepth {
			return nil
		}
		var urls []string
		for _, child := range index.Sitemaps {
			loc := html.UnescapeString(strings.TrimSpace(child.Loc))
			if loc == "" {
				continue
			}
			if err := r.throttle.Wait(ctx); err != nil {
				return urls
			}
			res, err := r.fetcher.Fetch(ctx, loc)
			if err != nil || res.StatusCode != http.StatusOK {
				continue
			}
			urls = append(urls, r.resolveSitemap(ctx, res.Body, depth+1)...)
		}
		return urls
	}

	var set urlSetXML
	if err := xml.Unmarshal(data, &set); err == nil && len(set.URLs) > 0 {
		var urls []string
		for _, entry := range set.URLs {
			if loc := pageLoc(entry.Loc); loc != "" {
				urls = append(urls, loc)
			}
		}
		return urls
	}

	// Fall back to any <loc> tag present; tolerates one malformed <url>
	// block without losing the well-formed entries.
	var urls []string
	for _, loc := range collectLocs(data) {
		if page := pageLoc(loc); page != "" {
			urls = append(urls, page)
		}
	}
	return urls
}

// pageLoc entity-decodes a <loc> value and drops entries that are themselves
// sitemap files rather than pages.
func pageLoc(raw string) string {
	loc := html.UnescapeString(strings.TrimSpace(raw))
	if loc == "" {
		return ""
	}
	lower := strings.ToLower(loc)
	if strings.HasSuffix(lower, ".xml") || strings.Contains(lower, "sitemap") {
		return ""
	}
	return loc
}

// collectLocs token-scans for <loc> character data, keeping whatever was
// parsed before any malformed markup.
func collectLocs(data []byte) []string {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	var locs []string
	inLoc := false
	for {
		token, err := decoder.Token()
		if err != nil {
			return locs
		}
		switch t := token.(type) {
		case xml.StartElement:
			inLoc = t.Name.Local == "loc"
		case xml.EndElement:
			inLoc = false
		case xml.CharData:
			if inLoc {
				if value := strings.TrimSpace(string(t)); value != "" {
					locs = append(locs, value)
				}
			}
		}
	}
}

type crawlTarget struct {
	url   string
	depth int
}

func (r *Resolver) crawlLinks(ctx context.Context, rootURL string) ([]string, error) {
	root, err := url.Parse(rootURL)
	if err != nil {
		return nil, err
	}
	start := normalizeURL(root)

	seen := map[string]bool{start: true}
	discovered := []string{start}
	queue := []crawlTarget{{url: start, depth: 0}}

	for len(queue) > 0 && len(discovered) < r.maxPages {
		target := queue[0]
		queue = queue[1:]
		if target.depth >= r.maxDepth {
			continue
		}
		if err := r.throttle.Wait(ctx); err != nil {
			return discovered, nil
		}
		res, err := r.fetcher.Fetch(ctx, target.url)
		if err != nil || res.StatusCode != http.StatusOK {
			continue
		}
		if !strings.Contains(res.ContentType, "text/html") && res.ContentType != "" {
			continue
		}
		for _, link := range extractLinks(res.Body, root) {
			if seen[link] || len(discovered) >= r.maxPages {
				continue
			}
			seen[link] = true
			discovered = append(discovered, link)
			queue = append(queue, crawlTarget{url: link, depth: target.depth + 1})
		}
	}
	return discovered, nil
}

func extractLinks(body []byte, root *url.URL) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if link := followableLink(href, root); link != "" {
			links = append(links, link)
		}
	})
	return links
}

// followableLink resolves href against root and returns a normalized absolute
// URL, or "" when the link must not be followed: cross-host, pseudo-link, or
// a non-document asset.
func followableLink(href string, root *url.URL) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") || strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "data:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := root.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	if !strings.EqualFold(resolved.Hostname(), root.Hostname()) {
		return ""
	}
	path := strings.ToLower(resolved.Path)
	if idx := strings.LastIndex(path, "."); idx >= 0 {
		if skipExtensions[path[idx:]] {
			return ""
		}
	}
	return normalizeURL(resolved)
}

// normalizeURL strips the fragment so deduplication treats anchor variants of
// one page as the same URL.
func normalizeURL(u *url.URL) string {
	clone := *u
	clone.Fragment = ""
	return clone.String()
}

func dedupeURLs(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	var unique []string
	for _, raw := range urls {
		parsed, err := url.Parse(raw)
		if err != nil {
			continue
		}
		normalized := normalizeURL(parsed)
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		unique = append(unique, normalized)
	}
	return unique
}

func capURLs(urls []string, limit int) []string {
	if limit > 0 && len(urls) > limit {
		return urls[:limit]
	}
	return urls
}
