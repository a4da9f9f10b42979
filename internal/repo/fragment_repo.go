package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/chatkb/chatkb/internal/model"
	"github.com/chatkb/chatkb/internal/pkg/dbutil"
)

type FragmentRepo struct {
	db *sql.DB
}

func NewFragmentRepo(db *sql.DB) *FragmentRepo {
	return &FragmentRepo{db: db}
}

// Upsert inserts a batch of fragments. The pipeline always replaces a
// parent's fragments wholesale (DeleteByParent first), so plain inserts are
// sufficient here.
func (r *FragmentRepo) Upsert(ctx context.Context, fragments []*model.Fragment) error {
	if len(fragments) == 0 {
		return nil
	}
	rows := make([]map[string]interface{}, 0, len(fragments))
	for _, frag := range fragments {
		var documentID, pageID interface{}
		if frag.DocumentID != "" {
			documentID = frag.DocumentID
		}
		if frag.PageID != "" {
			pageID = frag.PageID
		}
		rows = append(rows, map[string]interface{}{
			"id":          frag.ID,
			"chatbot_id":  frag.ChatbotID,
			"document_id": documentID,
			"page_id":     pageID,
			"source_type": frag.SourceType,
			"content":     frag.Content,
			"embedding":   pgvector.NewVector(frag.Embedding),
			"position":    frag.Position,
			"token_count": frag.TokenCount,
			"page_url":    frag.PageURL,
			"page_title":  frag.PageTitle,
			"ctime":       frag.Ctime,
		})
	}
	query, args, err := builder.BuildInsert("fragments", rows)
	if err != nil {
		return err
	}
	query, args = dbutil.Finalize(query, args)
	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

// DeleteByParent removes every fragment owned by one document or page.
func (r *FragmentRepo) DeleteByParent(ctx context.Context, parentID string) error {
	const query = `DELETE FROM fragments WHERE document_id = $1 OR page_id = $1`
	_, err := r.db.ExecContext(ctx, query, parentID)
	return err
}

// SearchWithCitations is the primary retrieval tier: cosine similarity with
// live page metadata joined in for citation display.
func (r *FragmentRepo) SearchWithCitations(ctx context.Context, chatbotID string, vector []float32, topK int) ([]*model.SearchHit, error) {
	const query = `
		SELECT f.content,
			1 - (f.embedding <=> $2) AS similarity,
			COALESCE(p.url, f.page_url) AS page_url,
			COALESCE(p.title, f.page_title) AS page_title
		FROM fragments f
		LEFT JOIN pages p ON f.page_id = p.id
		WHERE f.chatbot_id = $1 AND f.embedding IS NOT NULL
		ORDER BY f.embedding <=> $2
		LIMIT $3
	`
	return r.queryHits(ctx, query, chatbotID, pgvector.NewVector(vector), topK)
}

// SearchBare is the degraded tier: similarity search without the citation
// join, for when the pages relation is unavailable or the join plan fails.
func (r *FragmentRepo) SearchBare(ctx context.Context, chatbotID string, vector []float32, topK int) ([]*model.SearchHit, error) {
	const query = `
		SELECT content,
			1 - (embedding <=> $2) AS similarity,
			'' AS page_url,
			'' AS page_title
		FROM fragments
		WHERE chatbot_id = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2
		LIMIT $3
	`
	return r.queryHits(ctx, query, chatbotID, pgvector.NewVector(vector), topK)
}

// RecentSample is the last-resort tier: an unordered recency sample with
// similarity forced to zero, so retrieval never hard-fails just because the
// similarity index is unavailable.
func (r *FragmentRepo) RecentSample(ctx context.Context, chatbotID string, topK int) ([]*model.SearchHit, error) {
	const query = `
		SELECT content, 0 AS similarity, page_url, page_title
		FROM fragments
		WHERE chatbot_id = $1
		ORDER BY ctime DESC
		LIMIT $2
	`
	return r.queryHits(ctx, query, chatbotID, topK)
}

func (r *FragmentRepo) queryHits(ctx context.Context, query string, args ...interface{}) ([]*model.SearchHit, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var hits []*model.SearchHit
	for rows.Next() {
		var hit model.SearchHit
		if err := rows.Scan(&hit.Content, &hit.Similarity, &hit.PageURL, &hit.PageTitle); err != nil {
			return nil, err
		}
		hits = append(hits, &hit)
	}
	return hits, rows.Err()
}

// CountByChatbot supports the plan gate and dashboard counters.
func (r *FragmentRepo) CountByChatbot(ctx context.Context, chatbotID string) (int, error) {
	const query = `SELECT COUNT(*) FROM fragments WHERE chatbot_id = $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, chatbotID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
