package service

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/chatkb/chatkb/internal/ai"
	"github.com/chatkb/chatkb/internal/metrics"
	"github.com/chatkb/chatkb/internal/model"
	appErr "github.com/chatkb/chatkb/internal/pkg/errors"
)

const defaultTopK = 5

// SearchService embeds the query and retrieves nearest fragments with a
// three-tier degradation: citation-joined similarity search, bare similarity
// search, then an unordered recency sample with similarity zero. A later
// tier is tried only after the previous one reported an error.
type SearchService struct {
	searcher FragmentSearcher
	embedder ai.IEmbedder
}

func NewSearchService(searcher FragmentSearcher, embedder ai.IEmbedder) *SearchService {
	return &SearchService{searcher: searcher, embedder: embedder}
}

func (s *SearchService) Search(ctx context.Context, chatbotID string, query string, topK int) ([]*model.SearchHit, error) {
	if chatbotID == "" || query == "" {
		return nil, appErr.ErrInvalid
	}
	if topK <= 0 {
		topK = defaultTopK
	}
	logger := logutil.GetLogger(ctx).With(zap.String("chatbot_id", chatbotID))

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		// Without a query vector neither similarity tier can run; fall
		// straight through to the recency sample.
		logger.Warn("query embedding failed, using recency fallback", zap.Error(err))
		metrics.SearchRequests.WithLabelValues("recency").Inc()
		return s.searcher.RecentSample(ctx, chatbotID, topK)
	}

	hits, err := s.searcher.SearchWithCitations(ctx, chatbotID, vector, topK)
	if err == nil {
		metrics.SearchRequests.WithLabelValues("citations").Inc()
		return hits, nil
	}
	logger.Warn("citation search failed, trying bare similarity", zap.Error(err))

	hits, err = s.searcher.SearchBare(ctx, chatbotID, vector, topK)
	if err == nil {
		metrics.SearchRequests.WithLabelValues("bare").Inc()
		return hits, nil
	}
	logger.Warn("similarity search failed, using recency fallback", zap.Error(err))

	metrics.SearchRequests.WithLabelValues("recency").Inc()
	return s.searcher.RecentSample(ctx, chatbotID, topK)
}
