package model

const (
	PageStatusPending = "pending"
	PageStatusCrawled = "crawled"
	PageStatusError   = "error"
)

type Page struct {
	ID          string `json:"id"`
	SourceID    string `json:"source_id"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ContentHash string `json:"content_hash"`
	Status      string `json:"status"`
	ErrorMsg    string `json:"error_msg,omitempty"`
	LastCrawled int64  `json:"last_crawled"`
	Ctime       int64  `json:"ctime"`
	Mtime       int64  `json:"mtime"`
}

// CrawlReport aggregates an initial crawl run.
type CrawlReport struct {
	PagesFound   int `json:"pages_found"`
	PagesCrawled int `json:"pages_crawled"`
	PagesErrored int `json:"pages_errored"`
}

// RefreshReport aggregates an incremental refresh run.
type RefreshReport struct {
	PagesUpdated int `json:"pages_updated"`
	PagesSkipped int `json:"pages_skipped"`
	PagesErrored int `json:"pages_errored"`
	TotalPages   int `json:"total_pages"`
}
