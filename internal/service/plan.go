package service

import (
	"context"
	"fmt"

	"github.com/chatkb/chatkb/internal/config"
	"github.com/chatkb/chatkb/internal/model"
	appErr "github.com/chatkb/chatkb/internal/pkg/errors"
)

// PlanGate is the pre-check boolean gate invoked before any pipeline work is
// accepted; rejection short-circuits before a single pipeline component runs.
type PlanGate struct {
	sources SourceStore
	limits  config.LimitsConfig
}

func NewPlanGate(sources SourceStore, limits config.LimitsConfig) *PlanGate {
	return &PlanGate{sources: sources, limits: limits}
}

func (g *PlanGate) AllowDocument(ctx context.Context, chatbotID string, byteSize int64) error {
	if g.limits.MaxDocumentBytes > 0 && byteSize > g.limits.MaxDocumentBytes {
		return fmt.Errorf("%w: document exceeds %d bytes", appErr.ErrPlanExceeded, g.limits.MaxDocumentBytes)
	}
	count, err := g.sources.CountByKind(ctx, chatbotID, model.SourceKindDocument)
	if err != nil {
		return err
	}
	if g.limits.MaxDocuments > 0 && count >= g.limits.MaxDocuments {
		return fmt.Errorf("%w: document limit %d reached", appErr.ErrPlanExceeded, g.limits.MaxDocuments)
	}
	return nil
}

func (g *PlanGate) AllowWebsite(ctx context.Context, chatbotID string) error {
	count, err := g.sources.CountByKind(ctx, chatbotID, model.SourceKindWebsite)
	if err != nil {
		return err
	}
	if g.limits.MaxDocuments > 0 && count >= g.limits.MaxDocuments {
		return fmt.Errorf("%w: website limit %d reached", appErr.ErrPlanExceeded, g.limits.MaxDocuments)
	}
	return nil
}

// MaxPages is the per-source discovery ceiling.
func (g *PlanGate) MaxPages() int {
	return g.limits.MaxPagesPerSource
}
