package service

import (
	"context"

	"github.com/chatkb/chatkb/internal/model"
)

// SourceService is the thin read/delete surface used for status polling and
// source management; all mutation of status fields belongs to the pipeline.
type SourceService struct {
	sources SourceStore
	pages   PageStore
}

func NewSourceService(sources SourceStore, pages PageStore) *SourceService {
	return &SourceService{sources: sources, pages: pages}
}

func (s *SourceService) List(ctx context.Context, chatbotID string) ([]*model.Source, error) {
	return s.sources.ListByChatbot(ctx, chatbotID)
}

func (s *SourceService) Get(ctx context.Context, chatbotID string, id string) (*model.Source, []*model.Page, error) {
	src, err := s.sources.Get(ctx, chatbotID, id)
	if err != nil {
		return nil, nil, err
	}
	if src.Kind != model.SourceKindWebsite {
		return src, nil, nil
	}
	pages, err := s.pages.ListBySource(ctx, src.ID)
	if err != nil {
		return nil, nil, err
	}
	return src, pages, nil
}

// Delete removes the source; pages and fragments cascade in the store.
// Deleting is the only way to abandon in-flight work, and a write racing the
// delete is an accepted inconsistency window.
func (s *SourceService) Delete(ctx context.Context, chatbotID string, id string) error {
	return s.sources.Delete(ctx, chatbotID, id)
}
