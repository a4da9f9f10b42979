package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/chatkb/chatkb/internal/model"
	"github.com/chatkb/chatkb/internal/service"
)

const refreshBatchSize = 20

type StaleSourceLister interface {
	ListStaleWebsites(ctx context.Context, cutoff int64, limit int) ([]*model.Source, error)
}

// RefreshJob re-crawls website sources whose last crawl is older than the
// configured age. Refresh itself throttles per page, so the job only bounds
// how many sources one run touches.
type RefreshJob struct {
	sources    StaleSourceLister
	crawl      *service.CrawlService
	refreshAge time.Duration
}

func NewRefreshJob(sources StaleSourceLister, crawl *service.CrawlService, refreshAge time.Duration) *RefreshJob {
	return &RefreshJob{sources: sources, crawl: crawl, refreshAge: refreshAge}
}

func (j *RefreshJob) Name() string {
	return "website_refresh"
}

func (j *RefreshJob) Run(ctx context.Context) error {
	cutoff := time.Now().Add(-j.refreshAge).Unix()
	stale, err := j.sources.ListStaleWebsites(ctx, cutoff, refreshBatchSize)
	if err != nil {
		return err
	}
	logger := logutil.GetLogger(ctx)
	for _, src := range stale {
		report, err := j.crawl.Refresh(ctx, src.ChatbotID, src.ID)
		if err != nil {
			logger.Error("scheduled refresh failed",
				zap.String("source_id", src.ID), zap.Error(err))
			continue
		}
		logger.Info("scheduled refresh done",
			zap.String("source_id", src.ID),
			zap.Int("updated", report.PagesUpdated),
			zap.Int("skipped", report.PagesSkipped),
			zap.Int("errored", report.PagesErrored),
		)
	}
	return nil
}
