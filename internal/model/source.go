package model

const (
	SourceKindDocument = "document"
	SourceKindWebsite  = "website"

	InputModeURL           = "url"
	InputModeSitemapUpload = "sitemap-upload"

	// Document source lifecycle.
	DocStatusProcessing = "processing"
	DocStatusReady      = "ready"
	DocStatusError      = "error"

	// Website source lifecycle.
	CrawlStatusPending   = "pending"
	CrawlStatusCrawling  = "crawling"
	CrawlStatusCompleted = "completed"
	CrawlStatusError     = "error"
)

type Source struct {
	ID            string `json:"id"`
	ChatbotID     string `json:"chatbot_id"`
	Kind          string `json:"kind"`
	Filename      string `json:"filename,omitempty"`
	MediaType     string `json:"media_type,omitempty"`
	ByteSize      int64  `json:"byte_size,omitempty"`
	RootURL       string `json:"root_url,omitempty"`
	InputMode     string `json:"input_mode,omitempty"`
	Status        string `json:"status"`
	FragmentCount int    `json:"fragment_count"`
	PageCount     int    `json:"page_count"`
	LastCrawlTs   int64  `json:"last_crawl_ts,omitempty"`
	ErrorMsg      string `json:"error_msg,omitempty"`
	Ctime         int64  `json:"ctime"`
	Mtime         int64  `json:"mtime"`
}
