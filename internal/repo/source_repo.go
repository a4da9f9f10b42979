package repo

import (
	"context"
	"database/sql"
	"time"

	appErr "github.com/chatkb/chatkb/internal/pkg/errors"

	"github.com/chatkb/chatkb/internal/model"
	"github.com/chatkb/chatkb/internal/pkg/dbutil"
)

type SourceRepo struct {
	db *sql.DB
}

func NewSourceRepo(db *sql.DB) *SourceRepo {
	return &SourceRepo{db: db}
}

const sourceColumns = `id, chatbot_id, kind, filename, media_type, byte_size, root_url, input_mode,
	status, fragment_count, page_count, last_crawl_ts, error_msg, ctime, mtime`

func (r *SourceRepo) Create(ctx context.Context, src *model.Source) error {
	const query = `
		INSERT INTO sources (id, chatbot_id, kind, filename, media_type, byte_size, root_url, input_mode,
			status, fragment_count, page_count, last_crawl_ts, error_msg, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.db.ExecContext(ctx, query,
		src.ID, src.ChatbotID, src.Kind, src.Filename, src.MediaType, src.ByteSize,
		src.RootURL, src.InputMode, src.Status, src.FragmentCount, src.PageCount,
		src.LastCrawlTs, src.ErrorMsg, src.Ctime, src.Mtime,
	)
	if err != nil && dbutil.IsConflict(err) {
		return appErr.ErrConflict
	}
	return err
}

func (r *SourceRepo) Get(ctx context.Context, chatbotID string, id string) (*model.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE id = $1 AND chatbot_id = $2`
	row := r.db.QueryRowContext(ctx, query, id, chatbotID)
	src, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, appErr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return src, nil
}

func (r *SourceRepo) ListByChatbot(ctx context.Context, chatbotID string) ([]*model.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE chatbot_id = $1 ORDER BY ctime DESC`
	rows, err := r.db.QueryContext(ctx, query, chatbotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sources []*model.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

func (r *SourceRepo) UpdateStatus(ctx context.Context, id string, status string, errorMsg string) error {
	const query = `UPDATE sources SET status = $2, error_msg = $3, mtime = $4 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, status, errorMsg, time.Now().Unix())
	return err
}

// UpdateDocumentResult records a document pipeline outcome.
func (r *SourceRepo) UpdateDocumentResult(ctx context.Context, id string, status string, fragmentCount int, errorMsg string) error {
	const query = `
		UPDATE sources SET status = $2, fragment_count = $3, error_msg = $4, mtime = $5
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, status, fragmentCount, errorMsg, time.Now().Unix())
	return err
}

// UpdateCrawlResult records a crawl or refresh terminal state.
func (r *SourceRepo) UpdateCrawlResult(ctx context.Context, id string, status string, pageCount int, errorMsg string) error {
	now := time.Now().Unix()
	const query = `
		UPDATE sources SET status = $2, page_count = $3, error_msg = $4, last_crawl_ts = $5, mtime = $5
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, status, pageCount, errorMsg, now)
	return err
}

func (r *SourceRepo) Delete(ctx context.Context, chatbotID string, id string) error {
	const query = `DELETE FROM sources WHERE id = $1 AND chatbot_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, chatbotID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *SourceRepo) CountByKind(ctx context.Context, chatbotID string, kind string) (int, error) {
	const query = `SELECT COUNT(*) FROM sources WHERE chatbot_id = $1 AND kind = $2`
	var count int
	if err := r.db.QueryRowContext(ctx, query, chatbotID, kind).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListStaleWebsites returns completed website sources whose last crawl is
// older than cutoff, for the scheduled refresh job.
func (r *SourceRepo) ListStaleWebsites(ctx context.Context, cutoff int64, limit int) ([]*model.Source, error) {
	query := `
		SELECT ` + sourceColumns + `
		FROM sources
		WHERE kind = $1 AND status = $2 AND last_crawl_ts > 0 AND last_crawl_ts < $3
		ORDER BY last_crawl_ts ASC
		LIMIT $4
	`
	rows, err := r.db.QueryContext(ctx, query, model.SourceKindWebsite, model.CrawlStatusCompleted, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sources []*model.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSource(row rowScanner) (*model.Source, error) {
	var src model.Source
	err := row.Scan(
		&src.ID, &src.ChatbotID, &src.Kind, &src.Filename, &src.MediaType, &src.ByteSize,
		&src.RootURL, &src.InputMode, &src.Status, &src.FragmentCount, &src.PageCount,
		&src.LastCrawlTs, &src.ErrorMsg, &src.Ctime, &src.Mtime,
	)
	if err != nil {
		return nil, err
	}
	return &src, nil
}
