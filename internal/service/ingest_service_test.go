package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chatkb/chatkb/internal/config"
	"github.com/chatkb/chatkb/internal/model"
	appErr "github.com/chatkb/chatkb/internal/pkg/errors"
)

func newIngestFixture(embedder *fakeEmbedder, limits config.LimitsConfig) (*IngestService, *fakeSourceStore, *fakeFragmentStore) {
	sources := newFakeSourceStore()
	fragments := newFakeFragmentStore()
	svc := NewIngestService(
		sources, fragments, embedder, nil,
		NewPlanGate(sources, limits),
		NewNoopIntentDetector(),
	)
	return svc, sources, fragments
}

func waitForStatus(t *testing.T, sources *fakeSourceStore, id string, want string) *model.Source {
	t.Helper()
	var got *model.Source
	require.Eventually(t, func() bool {
		got = sources.get(id)
		return got != nil && got.Status == want
	}, 3*time.Second, 10*time.Millisecond)
	return got
}

func TestCreateDocumentHappyPath(t *testing.T) {
	embedder := &fakeEmbedder{}
	svc, sources, fragments := newIngestFixture(embedder, config.LimitsConfig{MaxDocuments: 10, MaxDocumentBytes: 1 << 20})

	text := strings.Repeat("Plain sentences fill this document with searchable words. ", 40)
	src, err := svc.CreateDocument(context.Background(), "bot-1", "notes.txt", "text/plain", []byte(text))
	require.NoError(t, err)
	require.Equal(t, model.DocStatusProcessing, src.Status)

	final := waitForStatus(t, sources, src.ID, model.DocStatusReady)
	require.Greater(t, final.FragmentCount, 1)
	require.Empty(t, final.ErrorMsg)

	got := fragments.byParent(src.ID)
	require.Len(t, got, final.FragmentCount)
	for i, frag := range got {
		require.Equal(t, "bot-1", frag.ChatbotID)
		require.Equal(t, model.SourceKindDocument, frag.SourceType)
		require.Equal(t, i, frag.Position)
		require.NotEmpty(t, frag.Embedding)
		require.Positive(t, frag.TokenCount)
	}
	require.Equal(t, final.FragmentCount, embedder.callCount())
}

func TestCreateDocumentValidation(t *testing.T) {
	svc, _, _ := newIngestFixture(&fakeEmbedder{}, config.LimitsConfig{MaxDocuments: 10, MaxDocumentBytes: 1 << 20})

	_, err := svc.CreateDocument(context.Background(), "", "a.txt", "text/plain", []byte("x"))
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, err = svc.CreateDocument(context.Background(), "bot-1", "", "text/plain", []byte("x"))
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, err = svc.CreateDocument(context.Background(), "bot-1", "a.txt", "text/plain", nil)
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestCreateDocumentPlanLimits(t *testing.T) {
	svc, _, _ := newIngestFixture(&fakeEmbedder{}, config.LimitsConfig{MaxDocuments: 1, MaxDocumentBytes: 16})

	_, err := svc.CreateDocument(context.Background(), "bot-1", "big.txt", "text/plain", []byte(strings.Repeat("x", 17)))
	require.ErrorIs(t, err, appErr.ErrPlanExceeded)

	_, err = svc.CreateDocument(context.Background(), "bot-1", "a.txt", "text/plain", []byte("first"))
	require.NoError(t, err)
	_, err = svc.CreateDocument(context.Background(), "bot-1", "b.txt", "text/plain", []byte("second"))
	require.ErrorIs(t, err, appErr.ErrPlanExceeded)
}

func TestCreateDocumentUnsupportedFormatEndsInError(t *testing.T) {
	svc, sources, _ := newIngestFixture(&fakeEmbedder{}, config.LimitsConfig{MaxDocuments: 10, MaxDocumentBytes: 1 << 20})

	src, err := svc.CreateDocument(context.Background(), "bot-1", "image.png", "image/png", []byte{0x89, 0x50})
	require.NoError(t, err)

	final := waitForStatus(t, sources, src.ID, model.DocStatusError)
	require.Contains(t, final.ErrorMsg, "unsupported")
	require.Zero(t, final.FragmentCount)
}

func TestCreateDocumentEmbeddingFailureEndsInError(t *testing.T) {
	svc, sources, fragments := newIngestFixture(&fakeEmbedder{fail: true}, config.LimitsConfig{MaxDocuments: 10, MaxDocumentBytes: 1 << 20})

	src, err := svc.CreateDocument(context.Background(), "bot-1", "a.txt", "text/plain", []byte("some text to embed"))
	require.NoError(t, err)

	final := waitForStatus(t, sources, src.ID, model.DocStatusError)
	require.NotEmpty(t, final.ErrorMsg)
	require.Empty(t, fragments.byParent(src.ID))
}

func TestCreateDocumentWhitespaceOnlyEndsInError(t *testing.T) {
	svc, sources, _ := newIngestFixture(&fakeEmbedder{}, config.LimitsConfig{MaxDocuments: 10, MaxDocumentBytes: 1 << 20})

	src, err := svc.CreateDocument(context.Background(), "bot-1", "blank.txt", "text/plain", []byte("   \n\t  "))
	require.NoError(t, err)

	final := waitForStatus(t, sources, src.ID, model.DocStatusError)
	require.Contains(t, final.ErrorMsg, "no extractable text")
}
