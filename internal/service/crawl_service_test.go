package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chatkb/chatkb/internal/config"
	"github.com/chatkb/chatkb/internal/crawler"
	"github.com/chatkb/chatkb/internal/model"
	appErr "github.com/chatkb/chatkb/internal/pkg/errors"
)

func newCrawlFixture(t *testing.T, urls []string) (*CrawlService, *fakeSourceStore, *fakePageStore, *fakeFragmentStore, *fakeFetcher) {
	t.Helper()
	sources := newFakeSourceStore()
	pages := newFakePageStore()
	fragments := newFakeFragmentStore()
	fetcher := newFakeFetcher()
	svc := NewCrawlService(
		sources, pages, fragments,
		&fakeEmbedder{},
		&fakeDiscoverer{urls: urls},
		fetcher,
		crawler.NewThrottle(time.Millisecond),
		NewPlanGate(sources, config.LimitsConfig{MaxDocuments: 10, MaxDocumentBytes: 1 << 20, MaxPagesPerSource: 10}),
		NewNoopIntentDetector(),
	)
	return svc, sources, pages, fragments, fetcher
}

func TestCreateWebsiteValidation(t *testing.T) {
	svc, _, _, _, _ := newCrawlFixture(t, nil)

	_, err := svc.CreateWebsite(context.Background(), "", "https://example.com", model.InputModeURL)
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = svc.CreateWebsite(context.Background(), "bot-1", "ftp://example.com", model.InputModeURL)
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = svc.CreateWebsite(context.Background(), "bot-1", "https://example.com", "rss")
	require.ErrorIs(t, err, appErr.ErrInvalid)

	src, err := svc.CreateWebsite(context.Background(), "bot-1", "https://example.com", model.InputModeURL)
	require.NoError(t, err)
	require.Equal(t, model.CrawlStatusPending, src.Status)
	require.Equal(t, model.SourceKindWebsite, src.Kind)
}

func TestCrawlPartialFailureCompletes(t *testing.T) {
	urls := []string{
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c",
	}
	svc, sources, pages, fragments, fetcher := newCrawlFixture(t, urls)
	fetcher.setHTML(urls[0], "<html><title>A</title><body><p>alpha content here</p></body></html>")
	fetcher.errs[urls[1]] = fmt.Errorf("%w: connection refused", appErr.ErrFetch)
	fetcher.setHTML(urls[2], "<html><title>C</title><body><p>gamma content here</p></body></html>")

	src, err := svc.CreateWebsite(context.Background(), "bot-1", "https://example.com", model.InputModeURL)
	require.NoError(t, err)

	report, err := svc.Crawl(context.Background(), "bot-1", src.ID, nil)
	require.NoError(t, err)
	require.Equal(t, 3, report.PagesFound)
	require.Equal(t, 2, report.PagesCrawled)
	require.Equal(t, 1, report.PagesErrored)

	final := sources.get(src.ID)
	require.Equal(t, model.CrawlStatusCompleted, final.Status)
	require.Equal(t, 2, final.PageCount)

	good := pages.byURL(src.ID, urls[0])
	require.NotNil(t, good)
	require.Equal(t, model.PageStatusCrawled, good.Status)
	require.NotEmpty(t, good.ContentHash)
	require.NotEmpty(t, fragments.byParent(good.ID))

	bad := pages.byURL(src.ID, urls[1])
	require.NotNil(t, bad)
	require.Equal(t, model.PageStatusError, bad.Status)
	require.NotEmpty(t, bad.ErrorMsg)
}

func TestCrawlAllPagesFailEndsInError(t *testing.T) {
	urls := []string{"https://example.com/a", "https://example.com/b"}
	svc, sources, _, _, fetcher := newCrawlFixture(t, urls)
	fetcher.errs[urls[0]] = fmt.Errorf("%w: timeout", appErr.ErrFetch)
	// urls[1] falls through to the fake's default 404.

	src, err := svc.CreateWebsite(context.Background(), "bot-1", "https://example.com", model.InputModeURL)
	require.NoError(t, err)

	report, err := svc.Crawl(context.Background(), "bot-1", src.ID, nil)
	require.NoError(t, err)
	require.Equal(t, 0, report.PagesCrawled)
	require.Equal(t, 2, report.PagesErrored)

	final := sources.get(src.ID)
	require.Equal(t, model.CrawlStatusError, final.Status)
	require.NotEmpty(t, final.ErrorMsg)
}

func TestCrawlRejectsWrongKindAndTenant(t *testing.T) {
	svc, sources, _, _, _ := newCrawlFixture(t, nil)
	doc := &model.Source{ID: "doc-1", ChatbotID: "bot-1", Kind: model.SourceKindDocument, Status: model.DocStatusReady}
	require.NoError(t, sources.Create(context.Background(), doc))

	_, err := svc.Crawl(context.Background(), "bot-1", "doc-1", nil)
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = svc.Crawl(context.Background(), "bot-2", "doc-1", nil)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestCrawlCapsDiscoveredPages(t *testing.T) {
	var urls []string
	for i := 0; i < 25; i++ {
		urls = append(urls, fmt.Sprintf("https://example.com/p%d", i))
	}
	svc, _, _, _, fetcher := newCrawlFixture(t, urls)
	for _, u := range urls {
		fetcher.setHTML(u, "<html><body><p>text</p></body></html>")
	}

	src, err := svc.CreateWebsite(context.Background(), "bot-1", "https://example.com", model.InputModeURL)
	require.NoError(t, err)

	report, err := svc.Crawl(context.Background(), "bot-1", src.ID, nil)
	require.NoError(t, err)
	// Plan gate allows at most 10 pages per source.
	require.Equal(t, 10, report.PagesFound)
	require.Equal(t, 10, report.PagesCrawled)
}

func TestRefreshSkipsUnchangedPages(t *testing.T) {
	urls := []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"}
	svc, _, pages, fragments, fetcher := newCrawlFixture(t, urls)
	bodyA := "<html><title>A</title><body><p>stable alpha text</p></body></html>"
	fetcher.setHTML(urls[0], bodyA)
	fetcher.setHTML(urls[1], "<html><title>B</title><body><p>original beta text</p></body></html>")
	fetcher.setHTML(urls[2], "<html><title>C</title><body><p>original gamma text</p></body></html>")

	src, err := svc.CreateWebsite(context.Background(), "bot-1", "https://example.com", model.InputModeURL)
	require.NoError(t, err)
	_, err = svc.Crawl(context.Background(), "bot-1", src.ID, nil)
	require.NoError(t, err)

	pageB := pages.byURL(src.ID, urls[1])
	require.NotNil(t, pageB)
	oldFragments := fragments.byParent(pageB.ID)
	require.NotEmpty(t, oldFragments)

	// B changes, C disappears, A stays identical.
	fetcher.setHTML(urls[1], "<html><title>B</title><body><p>rewritten beta text entirely</p></body></html>")
	fetcher.errs[urls[2]] = fmt.Errorf("%w: gone", appErr.ErrFetch)

	report, err := svc.Refresh(context.Background(), "bot-1", src.ID)
	require.NoError(t, err)
	require.Equal(t, 3, report.TotalPages)
	require.Equal(t, 1, report.PagesUpdated)
	require.Equal(t, 1, report.PagesSkipped)
	require.Equal(t, 1, report.PagesErrored)

	refreshedB := pages.byURL(src.ID, urls[1])
	require.NotEqual(t, pageB.ContentHash, refreshedB.ContentHash)
	newFragments := fragments.byParent(pageB.ID)
	require.NotEmpty(t, newFragments)
	require.NotEqual(t, oldFragments[0].Content, newFragments[0].Content)

	erroredC := pages.byURL(src.ID, urls[2])
	require.Equal(t, model.PageStatusError, erroredC.Status)
}

func TestRefreshAlwaysEndsCompleted(t *testing.T) {
	urls := []string{"https://example.com/a"}
	svc, sources, _, _, fetcher := newCrawlFixture(t, urls)
	fetcher.setHTML(urls[0], "<html><body><p>alpha</p></body></html>")

	src, err := svc.CreateWebsite(context.Background(), "bot-1", "https://example.com", model.InputModeURL)
	require.NoError(t, err)
	_, err = svc.Crawl(context.Background(), "bot-1", src.ID, nil)
	require.NoError(t, err)

	fetcher.errs[urls[0]] = fmt.Errorf("%w: refused", appErr.ErrFetch)
	report, err := svc.Refresh(context.Background(), "bot-1", src.ID)
	require.NoError(t, err)
	require.Equal(t, 1, report.PagesErrored)
	require.Zero(t, report.PagesUpdated)

	final := sources.get(src.ID)
	require.Equal(t, model.CrawlStatusCompleted, final.Status)
}
