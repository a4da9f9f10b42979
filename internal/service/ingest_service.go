package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/chatkb/chatkb/internal/ai"
	"github.com/chatkb/chatkb/internal/extract"
	"github.com/chatkb/chatkb/internal/filestore"
	"github.com/chatkb/chatkb/internal/metrics"
	"github.com/chatkb/chatkb/internal/model"
	appErr "github.com/chatkb/chatkb/internal/pkg/errors"
)

// IngestService drives the document path: extract, chunk, embed, persist.
// Processing runs as one detached background task per upload; callers poll
// the source row for status.
type IngestService struct {
	sources   SourceStore
	fragments FragmentStore
	embedder  ai.IEmbedder
	blob      filestore.Store
	plan      *PlanGate
	intent    IntentDetector
	chunkSize int
}

func NewIngestService(
	sources SourceStore,
	fragments FragmentStore,
	embedder ai.IEmbedder,
	blob filestore.Store,
	plan *PlanGate,
	intent IntentDetector,
) *IngestService {
	return &IngestService{
		sources:   sources,
		fragments: fragments,
		embedder:  embedder,
		blob:      blob,
		plan:      plan,
		intent:    intent,
		chunkSize: extract.DefaultMaxChunkSize,
	}
}

// CreateDocument accepts an upload, creates the source row in `processing`
// state and returns immediately; the pipeline updates status asynchronously.
func (s *IngestService) CreateDocument(ctx context.Context, chatbotID string, filename string, mediaType string, data []byte) (*model.Source, error) {
	if chatbotID == "" || filename == "" || len(data) == 0 {
		return nil, appErr.ErrInvalid
	}
	if s.plan != nil {
		if err := s.plan.AllowDocument(ctx, chatbotID, int64(len(data))); err != nil {
			return nil, err
		}
	}
	now := time.Now().Unix()
	src := &model.Source{
		ID:        newID(),
		ChatbotID: chatbotID,
		Kind:      model.SourceKindDocument,
		Filename:  filename,
		MediaType: mediaType,
		ByteSize:  int64(len(data)),
		Status:    model.DocStatusProcessing,
		Ctime:     now,
		Mtime:     now,
	}
	if err := s.sources.Create(ctx, src); err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrPersist, err)
	}

	go s.process(context.Background(), src, data)
	return src, nil
}

// process is the background document pipeline. A failure at any step marks
// the document `error` with a message and stops; there are no automatic
// retries.
func (s *IngestService) process(ctx context.Context, src *model.Source, data []byte) {
	logger := logutil.GetLogger(ctx).With(
		zap.String("source_id", src.ID),
		zap.String("chatbot_id", src.ChatbotID),
		zap.String("filename", src.Filename),
	)

	s.retainOriginal(ctx, src, data)

	text, err := extract.Text(data, src.MediaType)
	if err != nil {
		logger.Error("document extraction failed", zap.Error(err))
		s.fail(ctx, src, err)
		return
	}
	chunks := extract.Chunk(text, s.chunkSize, extract.DefaultOverlapHint)
	if len(chunks) == 0 {
		logger.Warn("document yielded no extractable text")
		s.fail(ctx, src, appErr.ErrNoExtractableText)
		return
	}

	fragments, err := s.embedChunks(ctx, src, chunks)
	if err != nil {
		logger.Error("document embedding failed", zap.Error(err))
		s.fail(ctx, src, err)
		return
	}

	// Full replacement of the parent's fragments: delete then reinsert,
	// never a partial patch.
	if err := s.fragments.DeleteByParent(ctx, src.ID); err != nil {
		s.fail(ctx, src, fmt.Errorf("%w: %v", appErr.ErrPersist, err))
		return
	}
	if err := s.fragments.Upsert(ctx, fragments); err != nil {
		s.fail(ctx, src, fmt.Errorf("%w: %v", appErr.ErrPersist, err))
		return
	}

	if err := s.sources.UpdateDocumentResult(ctx, src.ID, model.DocStatusReady, len(fragments), ""); err != nil {
		logger.Error("failed to mark document ready", zap.Error(err))
		return
	}
	metrics.DocumentsIngested.Inc()
	logger.Info("document ingested", zap.Int("fragments", len(fragments)))
	notifyIntent(s.intent, src.ChatbotID)
}

func (s *IngestService) embedChunks(ctx context.Context, src *model.Source, chunks []string) ([]*model.Fragment, error) {
	now := time.Now().Unix()
	fragments := make([]*model.Fragment, 0, len(chunks))
	// One embedding call at a time, in chunk order; the service may be slow
	// or rate-limited.
	for i, chunk := range chunks {
		vector, err := s.embedder.Embed(ctx, chunk)
		if err != nil {
			return nil, err
		}
		metrics.FragmentsEmbedded.Inc()
		fragments = append(fragments, &model.Fragment{
			ID:         newID(),
			ChatbotID:  src.ChatbotID,
			DocumentID: src.ID,
			SourceType: model.SourceKindDocument,
			Content:    chunk,
			Embedding:  vector,
			Position:   i,
			TokenCount: extract.EstimateTokens(chunk),
			Ctime:      now,
		})
	}
	return fragments, nil
}

// retainOriginal keeps the uploaded bytes in blob storage for retention
// only; the pipeline never reads them back, so failures are logged and
// ignored.
func (s *IngestService) retainOriginal(ctx context.Context, src *model.Source, data []byte) {
	if s.blob == nil {
		return
	}
	key := src.ID + "-" + src.Filename
	file := newMemFile(data)
	if err := s.blob.Save(ctx, key, file, int64(len(data))); err != nil {
		logutil.GetLogger(ctx).Warn("original file retention failed",
			zap.String("source_id", src.ID), zap.Error(err))
	}
}

func (s *IngestService) fail(ctx context.Context, src *model.Source, cause error) {
	if err := s.sources.UpdateDocumentResult(ctx, src.ID, model.DocStatusError, 0, cause.Error()); err != nil {
		logutil.GetLogger(ctx).Error("failed to record document error",
			zap.String("source_id", src.ID), zap.Error(err))
	}
}

type memFile struct {
	*bytes.Reader
}

func newMemFile(data []byte) *memFile {
	return &memFile{Reader: bytes.NewReader(data)}
}

func (f *memFile) Close() error {
	return nil
}
