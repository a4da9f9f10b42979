package model

// Fragment is the atomic unit of retrieval: one chunk of source text plus its
// embedding vector. A fragment belongs to exactly one parent, either a
// document source or a crawled page.
type Fragment struct {
	ID         string    `json:"id"`
	ChatbotID  string    `json:"chatbot_id"`
	DocumentID string    `json:"document_id,omitempty"`
	PageID     string    `json:"page_id,omitempty"`
	SourceType string    `json:"source_type"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"`
	Position   int       `json:"position"`
	TokenCount int       `json:"token_count"`
	PageURL    string    `json:"page_url,omitempty"`
	PageTitle  string    `json:"page_title,omitempty"`
	Ctime      int64     `json:"ctime"`
}

// SearchHit is one ranked retrieval result. Similarity is zero when the
// result came from the recency fallback tier.
type SearchHit struct {
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
	PageURL    string  `json:"page_url,omitempty"`
	PageTitle  string  `json:"page_title,omitempty"`
}
