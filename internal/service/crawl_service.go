package service

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/chatkb/chatkb/internal/ai"
	"github.com/chatkb/chatkb/internal/crawler"
	"github.com/chatkb/chatkb/internal/extract"
	"github.com/chatkb/chatkb/internal/metrics"
	"github.com/chatkb/chatkb/internal/model"
	appErr "github.com/chatkb/chatkb/internal/pkg/errors"
)

type Discoverer interface {
	Discover(ctx context.Context, rootURL string) ([]string, error)
	ResolveSitemapDocument(ctx context.Context, data []byte) []string
}

type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*crawler.FetchResult, error)
}

// CrawlService drives the website path: discovery, sequential fetch, page
// extraction, chunk/embed/persist, and the change-aware refresh.
type CrawlService struct {
	sources   SourceStore
	pages     PageStore
	fragments FragmentStore
	embedder  ai.IEmbedder
	resolver  Discoverer
	fetcher   PageFetcher
	throttle  *crawler.Throttle
	plan      *PlanGate
	intent    IntentDetector
	chunkSize int
}

func NewCrawlService(
	sources SourceStore,
	pages PageStore,
	fragments FragmentStore,
	embedder ai.IEmbedder,
	resolver Discoverer,
	fetcher PageFetcher,
	throttle *crawler.Throttle,
	plan *PlanGate,
	intent IntentDetector,
) *CrawlService {
	return &CrawlService{
		sources:   sources,
		pages:     pages,
		fragments: fragments,
		embedder:  embedder,
		resolver:  resolver,
		fetcher:   fetcher,
		throttle:  throttle,
		plan:      plan,
		intent:    intent,
		chunkSize: extract.DefaultMaxChunkSize,
	}
}

// CreateWebsite registers a website source in `pending` state. The crawl
// itself is triggered by Crawl.
func (s *CrawlService) CreateWebsite(ctx context.Context, chatbotID string, rootURL string, inputMode string) (*model.Source, error) {
	if chatbotID == "" {
		return nil, appErr.ErrInvalid
	}
	if inputMode != model.InputModeURL && inputMode != model.InputModeSitemapUpload {
		return nil, appErr.ErrInvalid
	}
	parsed, err := url.Parse(rootURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, appErr.ErrInvalid
	}
	if s.plan != nil {
		if err := s.plan.AllowWebsite(ctx, chatbotID); err != nil {
			return nil, err
		}
	}
	now := time.Now().Unix()
	src := &model.Source{
		ID:        newID(),
		ChatbotID: chatbotID,
		Kind:      model.SourceKindWebsite,
		RootURL:   rootURL,
		InputMode: inputMode,
		Status:    model.CrawlStatusPending,
		Ctime:     now,
		Mtime:     now,
	}
	if err := s.sources.Create(ctx, src); err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrPersist, err)
	}
	return src, nil
}

// Crawl runs the initial crawl for a website source. sitemapData carries an
// uploaded sitemap file when the source's input mode is sitemap-upload. One
// page's failure never aborts the batch; the source ends `completed` when at
// least one page succeeded and `error` otherwise.
func (s *CrawlService) Crawl(ctx context.Context, chatbotID string, sourceID string, sitemapData []byte) (*model.CrawlReport, error) {
	src, err := s.sources.Get(ctx, chatbotID, sourceID)
	if err != nil {
		return nil, err
	}
	if src.Kind != model.SourceKindWebsite {
		return nil, appErr.ErrInvalid
	}
	logger := logutil.GetLogger(ctx).With(
		zap.String("source_id", src.ID),
		zap.String("root_url", src.RootURL),
	)

	if err := s.sources.UpdateStatus(ctx, src.ID, model.CrawlStatusCrawling, ""); err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrPersist, err)
	}

	var pageURLs []string
	if src.InputMode == model.InputModeSitemapUpload && len(sitemapData) > 0 {
		pageURLs = s.resolver.ResolveSitemapDocument(ctx, sitemapData)
	} else {
		pageURLs, err = s.resolver.Discover(ctx, src.RootURL)
		if err != nil {
			_ = s.sources.UpdateCrawlResult(ctx, src.ID, model.CrawlStatusError, 0, err.Error())
			return nil, err
		}
	}
	if s.plan != nil && s.plan.MaxPages() > 0 && len(pageURLs) > s.plan.MaxPages() {
		pageURLs = pageURLs[:s.plan.MaxPages()]
	}

	report := &model.CrawlReport{PagesFound: len(pageURLs)}
	for _, pageURL := range pageURLs {
		if err := s.throttle.Wait(ctx); err != nil {
			break
		}
		if err := s.processPage(ctx, src, pageURL); err != nil {
			logger.Warn("page failed", zap.String("url", pageURL), zap.Error(err))
			metrics.PagesErrored.Inc()
			report.PagesErrored++
			continue
		}
		metrics.PagesCrawled.Inc()
		report.PagesCrawled++
	}

	status := model.CrawlStatusCompleted
	errorMsg := ""
	if report.PagesCrawled == 0 {
		status = model.CrawlStatusError
		errorMsg = "no pages could be crawled"
	}
	if err := s.sources.UpdateCrawlResult(ctx, src.ID, status, report.PagesCrawled, errorMsg); err != nil {
		return report, fmt.Errorf("%w: %v", appErr.ErrPersist, err)
	}
	logger.Info("crawl finished",
		zap.Int("found", report.PagesFound),
		zap.Int("crawled", report.PagesCrawled),
		zap.Int("errored", report.PagesErrored),
	)
	if report.PagesCrawled > 0 {
		notifyIntent(s.intent, src.ChatbotID)
	}
	return report, nil
}

// processPage runs the per-URL tail of the pipeline. Page rows are upserted
// by (source, URL), so retries never duplicate.
func (s *CrawlService) processPage(ctx context.Context, src *model.Source, pageURL string) error {
	now := time.Now().Unix()
	res, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		s.recordPageError(ctx, src, pageURL, err)
		return err
	}
	if res.StatusCode != 200 {
		err := fmt.Errorf("%w: status %d", appErr.ErrFetch, res.StatusCode)
		s.recordPageError(ctx, src, pageURL, err)
		return err
	}
	content, err := crawler.ExtractPage(res.Body)
	if err != nil {
		s.recordPageError(ctx, src, pageURL, err)
		return err
	}

	page := &model.Page{
		ID:          newID(),
		SourceID:    src.ID,
		URL:         pageURL,
		Title:       content.Title,
		Description: content.Description,
		ContentHash: crawler.ContentHash(content.Content),
		Status:      model.PageStatusCrawled,
		LastCrawled: now,
		Ctime:       now,
		Mtime:       now,
	}
	if err := s.pages.Upsert(ctx, page); err != nil {
		return fmt.Errorf("%w: %v", appErr.ErrPersist, err)
	}

	if err := s.indexPage(ctx, src, page, content.Content); err != nil {
		_ = s.pages.MarkError(ctx, page.ID, err.Error())
		return err
	}
	return nil
}

// indexPage replaces the page's fragments with a freshly embedded set. A
// page with no extractable content is a zero-chunk success, not an error.
func (s *CrawlService) indexPage(ctx context.Context, src *model.Source, page *model.Page, content string) error {
	if err := s.fragments.DeleteByParent(ctx, page.ID); err != nil {
		return fmt.Errorf("%w: %v", appErr.ErrPersist, err)
	}
	chunks := extract.Chunk(content, s.chunkSize, extract.DefaultOverlapHint)
	if len(chunks) == 0 {
		return nil
	}
	now := time.Now().Unix()
	fragments := make([]*model.Fragment, 0, len(chunks))
	for i, chunk := range chunks {
		vector, err := s.embedder.Embed(ctx, chunk)
		if err != nil {
			return err
		}
		metrics.FragmentsEmbedded.Inc()
		fragments = append(fragments, &model.Fragment{
			ID:         newID(),
			ChatbotID:  src.ChatbotID,
			PageID:     page.ID,
			SourceType: model.SourceKindWebsite,
			Content:    chunk,
			Embedding:  vector,
			Position:   i,
			TokenCount: extract.EstimateTokens(chunk),
			PageURL:    page.URL,
			PageTitle:  page.Title,
			Ctime:      now,
		})
	}
	if err := s.fragments.Upsert(ctx, fragments); err != nil {
		return fmt.Errorf("%w: %v", appErr.ErrPersist, err)
	}
	return nil
}

func (s *CrawlService) recordPageError(ctx context.Context, src *model.Source, pageURL string, cause error) {
	now := time.Now().Unix()
	page := &model.Page{
		ID:          newID(),
		SourceID:    src.ID,
		URL:         pageURL,
		Status:      model.PageStatusError,
		ErrorMsg:    cause.Error(),
		LastCrawled: now,
		Ctime:       now,
		Mtime:       now,
	}
	if err := s.pages.Upsert(ctx, page); err != nil {
		logutil.GetLogger(ctx).Error("failed to record page error",
			zap.String("url", pageURL), zap.Error(err))
	}
}

// Refresh re-fetches every known page under a source, skipping unchanged
// content by hash and re-indexing only what changed. Unlike the initial
// crawl, refresh always ends `completed` regardless of per-page errors.
func (s *CrawlService) Refresh(ctx context.Context, chatbotID string, sourceID string) (*model.RefreshReport, error) {
	src, err := s.sources.Get(ctx, chatbotID, sourceID)
	if err != nil {
		return nil, err
	}
	if src.Kind != model.SourceKindWebsite {
		return nil, appErr.ErrInvalid
	}
	logger := logutil.GetLogger(ctx).With(zap.String("source_id", src.ID))

	pages, err := s.pages.ListBySource(ctx, src.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrPersist, err)
	}
	if err := s.sources.UpdateStatus(ctx, src.ID, model.CrawlStatusCrawling, ""); err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrPersist, err)
	}

	report := &model.RefreshReport{TotalPages: len(pages)}
	healthy := 0
	for _, page := range pages {
		if err := s.throttle.Wait(ctx); err != nil {
			break
		}
		outcome, err := s.refreshPage(ctx, src, page)
		if err != nil {
			logger.Warn("page refresh failed", zap.String("url", page.URL), zap.Error(err))
			metrics.PagesErrored.Inc()
			report.PagesErrored++
			continue
		}
		healthy++
		if outcome {
			metrics.PagesCrawled.Inc()
			report.PagesUpdated++
		} else {
			report.PagesSkipped++
		}
	}

	if err := s.sources.UpdateCrawlResult(ctx, src.ID, model.CrawlStatusCompleted, healthy, ""); err != nil {
		return report, fmt.Errorf("%w: %v", appErr.ErrPersist, err)
	}
	logger.Info("refresh finished",
		zap.Int("updated", report.PagesUpdated),
		zap.Int("skipped", report.PagesSkipped),
		zap.Int("errored", report.PagesErrored),
		zap.Int("total", report.TotalPages),
	)
	if report.PagesUpdated > 0 {
		notifyIntent(s.intent, src.ChatbotID)
	}
	return report, nil
}

// refreshPage returns true when the page content changed and was re-indexed,
// false when the hash matched and the page was only touched.
func (s *CrawlService) refreshPage(ctx context.Context, src *model.Source, page *model.Page) (bool, error) {
	now := time.Now().Unix()
	res, err := s.fetcher.Fetch(ctx, page.URL)
	if err != nil {
		_ = s.pages.MarkError(ctx, page.ID, err.Error())
		return false, err
	}
	if res.StatusCode != 200 {
		err := fmt.Errorf("%w: status %d", appErr.ErrFetch, res.StatusCode)
		_ = s.pages.MarkError(ctx, page.ID, err.Error())
		return false, err
	}
	content, err := crawler.ExtractPage(res.Body)
	if err != nil {
		_ = s.pages.MarkError(ctx, page.ID, err.Error())
		return false, err
	}

	newHash := crawler.ContentHash(content.Content)
	if newHash == page.ContentHash {
		if err := s.pages.Touch(ctx, page.ID, now); err != nil {
			return false, fmt.Errorf("%w: %v", appErr.ErrPersist, err)
		}
		return false, nil
	}

	page.Title = content.Title
	page.Description = content.Description
	page.ContentHash = newHash
	page.Status = model.PageStatusCrawled
	page.ErrorMsg = ""
	page.LastCrawled = now
	page.Mtime = now
	if err := s.pages.Upsert(ctx, page); err != nil {
		return false, fmt.Errorf("%w: %v", appErr.ErrPersist, err)
	}
	if err := s.indexPage(ctx, src, page, content.Content); err != nil {
		_ = s.pages.MarkError(ctx, page.ID, err.Error())
		return false, err
	}
	return true, nil
}
