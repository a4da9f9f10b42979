package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/chatkb/chatkb/internal/crawler"
	"github.com/chatkb/chatkb/internal/model"
	appErr "github.com/chatkb/chatkb/internal/pkg/errors"
)

type fakeSourceStore struct {
	mu      sync.Mutex
	sources map[string]*model.Source
}

func newFakeSourceStore() *fakeSourceStore {
	return &fakeSourceStore{sources: make(map[string]*model.Source)}
}

func (f *fakeSourceStore) Create(ctx context.Context, src *model.Source) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *src
	f.sources[src.ID] = &clone
	return nil
}

func (f *fakeSourceStore) Get(ctx context.Context, chatbotID string, id string) (*model.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	src, ok := f.sources[id]
	if !ok || src.ChatbotID != chatbotID {
		return nil, appErr.ErrNotFound
	}
	clone := *src
	return &clone, nil
}

func (f *fakeSourceStore) ListByChatbot(ctx context.Context, chatbotID string) ([]*model.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Source
	for _, src := range f.sources {
		if src.ChatbotID == chatbotID {
			clone := *src
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeSourceStore) UpdateStatus(ctx context.Context, id string, status string, errorMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	src, ok := f.sources[id]
	if !ok {
		return appErr.ErrNotFound
	}
	src.Status = status
	src.ErrorMsg = errorMsg
	return nil
}

func (f *fakeSourceStore) UpdateDocumentResult(ctx context.Context, id string, status string, fragmentCount int, errorMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	src, ok := f.sources[id]
	if !ok {
		return appErr.ErrNotFound
	}
	src.Status = status
	src.FragmentCount = fragmentCount
	src.ErrorMsg = errorMsg
	return nil
}

func (f *fakeSourceStore) UpdateCrawlResult(ctx context.Context, id string, status string, pageCount int, errorMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	src, ok := f.sources[id]
	if !ok {
		return appErr.ErrNotFound
	}
	src.Status = status
	src.PageCount = pageCount
	src.ErrorMsg = errorMsg
	return nil
}

func (f *fakeSourceStore) Delete(ctx context.Context, chatbotID string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	src, ok := f.sources[id]
	if !ok || src.ChatbotID != chatbotID {
		return appErr.ErrNotFound
	}
	delete(f.sources, id)
	return nil
}

func (f *fakeSourceStore) CountByKind(ctx context.Context, chatbotID string, kind string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, src := range f.sources {
		if src.ChatbotID == chatbotID && src.Kind == kind {
			count++
		}
	}
	return count, nil
}

func (f *fakeSourceStore) get(id string) *model.Source {
	f.mu.Lock()
	defer f.mu.Unlock()
	src, ok := f.sources[id]
	if !ok {
		return nil
	}
	clone := *src
	return &clone
}

type fakePageStore struct {
	mu    sync.Mutex
	pages map[string]*model.Page // keyed by source|url
}

func newFakePageStore() *fakePageStore {
	return &fakePageStore{pages: make(map[string]*model.Page)}
}

func pageKey(sourceID string, url string) string {
	return sourceID + "|" + url
}

func (f *fakePageStore) Upsert(ctx context.Context, page *model.Page) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := pageKey(page.SourceID, page.URL)
	if existing, ok := f.pages[key]; ok {
		page.ID = existing.ID
	}
	clone := *page
	f.pages[key] = &clone
	return nil
}

func (f *fakePageStore) Touch(ctx context.Context, id string, lastCrawled int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, page := range f.pages {
		if page.ID == id {
			page.LastCrawled = lastCrawled
			return nil
		}
	}
	return appErr.ErrNotFound
}

func (f *fakePageStore) MarkError(ctx context.Context, id string, errorMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, page := range f.pages {
		if page.ID == id {
			page.Status = model.PageStatusError
			page.ErrorMsg = errorMsg
			return nil
		}
	}
	return appErr.ErrNotFound
}

func (f *fakePageStore) ListBySource(ctx context.Context, sourceID string) ([]*model.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Page
	for _, page := range f.pages {
		if page.SourceID == sourceID {
			clone := *page
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakePageStore) byURL(sourceID string, url string) *model.Page {
	f.mu.Lock()
	defer f.mu.Unlock()
	page, ok := f.pages[pageKey(sourceID, url)]
	if !ok {
		return nil
	}
	clone := *page
	return &clone
}

type fakeFragmentStore struct {
	mu        sync.Mutex
	fragments []*model.Fragment
}

func newFakeFragmentStore() *fakeFragmentStore {
	return &fakeFragmentStore{}
}

func (f *fakeFragmentStore) Upsert(ctx context.Context, fragments []*model.Fragment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fragments = append(f.fragments, fragments...)
	return nil
}

func (f *fakeFragmentStore) DeleteByParent(ctx context.Context, parentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.fragments[:0]
	for _, frag := range f.fragments {
		if frag.DocumentID != parentID && frag.PageID != parentID {
			kept = append(kept, frag)
		}
	}
	f.fragments = kept
	return nil
}

func (f *fakeFragmentStore) byParent(parentID string) []*model.Fragment {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Fragment
	for _, frag := range f.fragments {
		if frag.DocumentID == parentID || frag.PageID == parentID {
			out = append(out, frag)
		}
	}
	return out
}

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, fmt.Errorf("%w: forced failure", appErr.ErrEmbedding)
	}
	return []float32{float32(len(text)), 1, 2}, nil
}

func (f *fakeEmbedder) ModelName() string {
	return "fake-embed"
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeDiscoverer struct {
	urls []string
	err  error
}

func (f *fakeDiscoverer) Discover(ctx context.Context, rootURL string) ([]string, error) {
	return f.urls, f.err
}

func (f *fakeDiscoverer) ResolveSitemapDocument(ctx context.Context, data []byte) []string {
	return f.urls
}

type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]*crawler.FetchResult
	errs      map[string]error
	fetched   []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		responses: make(map[string]*crawler.FetchResult),
		errs:      make(map[string]error),
	}
}

func (f *fakeFetcher) setHTML(url string, body string) {
	f.responses[url] = &crawler.FetchResult{
		StatusCode:  200,
		ContentType: "text/html",
		Body:        []byte(body),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (*crawler.FetchResult, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, rawURL)
	f.mu.Unlock()
	if err, ok := f.errs[rawURL]; ok {
		return nil, err
	}
	if res, ok := f.responses[rawURL]; ok {
		return res, nil
	}
	return &crawler.FetchResult{StatusCode: 404}, nil
}
