package repo

import (
	"context"
	"database/sql"
	"time"

	appErr "github.com/chatkb/chatkb/internal/pkg/errors"

	"github.com/chatkb/chatkb/internal/model"
)

type PageRepo struct {
	db *sql.DB
}

func NewPageRepo(db *sql.DB) *PageRepo {
	return &PageRepo{db: db}
}

// Upsert inserts or updates the page row keyed by (source_id, url), so
// re-crawling never duplicates a page. The row id of an existing page is
// preserved and written back to page.ID.
func (r *PageRepo) Upsert(ctx context.Context, page *model.Page) error {
	const query = `
		INSERT INTO pages (id, source_id, url, title, description, content_hash, status, error_msg, last_crawled, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (source_id, url) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			content_hash = EXCLUDED.content_hash,
			status = EXCLUDED.status,
			error_msg = EXCLUDED.error_msg,
			last_crawled = EXCLUDED.last_crawled,
			mtime = EXCLUDED.mtime
		RETURNING id
	`
	row := r.db.QueryRowContext(ctx, query,
		page.ID, page.SourceID, page.URL, page.Title, page.Description,
		page.ContentHash, page.Status, page.ErrorMsg, page.LastCrawled,
		page.Ctime, page.Mtime,
	)
	return row.Scan(&page.ID)
}

// Touch updates only the last-crawled timestamp, used when a refresh finds
// the content hash unchanged.
func (r *PageRepo) Touch(ctx context.Context, id string, lastCrawled int64) error {
	const query = `UPDATE pages SET last_crawled = $2, mtime = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, lastCrawled)
	return err
}

func (r *PageRepo) MarkError(ctx context.Context, id string, errorMsg string) error {
	const query = `UPDATE pages SET status = $2, error_msg = $3, mtime = $4 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, model.PageStatusError, errorMsg, time.Now().Unix())
	return err
}

func (r *PageRepo) Get(ctx context.Context, id string) (*model.Page, error) {
	const query = `
		SELECT id, source_id, url, title, description, content_hash, status, error_msg, last_crawled, ctime, mtime
		FROM pages WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, id)
	page, err := scanPage(row)
	if err == sql.ErrNoRows {
		return nil, appErr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (r *PageRepo) ListBySource(ctx context.Context, sourceID string) ([]*model.Page, error) {
	const query = `
		SELECT id, source_id, url, title, description, content_hash, status, error_msg, last_crawled, ctime, mtime
		FROM pages WHERE source_id = $1 ORDER BY ctime ASC
	`
	rows, err := r.db.QueryContext(ctx, query, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pages []*model.Page
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

func scanPage(row rowScanner) (*model.Page, error) {
	var page model.Page
	err := row.Scan(
		&page.ID, &page.SourceID, &page.URL, &page.Title, &page.Description,
		&page.ContentHash, &page.Status, &page.ErrorMsg, &page.LastCrawled,
		&page.Ctime, &page.Mtime,
	)
	if err != nil {
		return nil, err
	}
	return &page, nil
}
