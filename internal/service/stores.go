package service

import (
	"context"

	"github.com/chatkb/chatkb/internal/model"
)

// Store dependencies are taken as interfaces so the pipeline services can be
// exercised against fakes; internal/repo provides the Postgres
// implementations.

type SourceStore interface {
	Create(ctx context.Context, src *model.Source) error
	Get(ctx context.Context, chatbotID string, id string) (*model.Source, error)
	ListByChatbot(ctx context.Context, chatbotID string) ([]*model.Source, error)
	UpdateStatus(ctx context.Context, id string, status string, errorMsg string) error
	UpdateDocumentResult(ctx context.Context, id string, status string, fragmentCount int, errorMsg string) error
	UpdateCrawlResult(ctx context.Context, id string, status string, pageCount int, errorMsg string) error
	Delete(ctx context.Context, chatbotID string, id string) error
	CountByKind(ctx context.Context, chatbotID string, kind string) (int, error)
}

type PageStore interface {
	Upsert(ctx context.Context, page *model.Page) error
	Touch(ctx context.Context, id string, lastCrawled int64) error
	MarkError(ctx context.Context, id string, errorMsg string) error
	ListBySource(ctx context.Context, sourceID string) ([]*model.Page, error)
}

type FragmentStore interface {
	Upsert(ctx context.Context, fragments []*model.Fragment) error
	DeleteByParent(ctx context.Context, parentID string) error
}

type FragmentSearcher interface {
	SearchWithCitations(ctx context.Context, chatbotID string, vector []float32, topK int) ([]*model.SearchHit, error)
	SearchBare(ctx context.Context, chatbotID string, vector []float32, topK int) ([]*model.SearchHit, error)
	RecentSample(ctx context.Context, chatbotID string, topK int) ([]*model.SearchHit, error)
}
