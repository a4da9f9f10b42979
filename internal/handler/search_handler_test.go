package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/chatkb/chatkb/internal/model"
	"github.com/chatkb/chatkb/internal/service"
)

type stubSearcher struct {
	hits []*model.SearchHit
}

func (s *stubSearcher) SearchWithCitations(ctx context.Context, chatbotID string, vector []float32, topK int) ([]*model.SearchHit, error) {
	return s.hits, nil
}

func (s *stubSearcher) SearchBare(ctx context.Context, chatbotID string, vector []float32, topK int) ([]*model.SearchHit, error) {
	return s.hits, nil
}

func (s *stubSearcher) RecentSample(ctx context.Context, chatbotID string, topK int) ([]*model.SearchHit, error) {
	return s.hits, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (stubEmbedder) ModelName() string {
	return "stub"
}

func newSearchRouter(hits []*model.SearchHit) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	svc := service.NewSearchService(&stubSearcher{hits: hits}, stubEmbedder{})
	engine.POST("/api/v1/search", NewSearchHandler(svc).Search)
	return engine
}

func TestSearchEndpointReturnsHits(t *testing.T) {
	router := newSearchRouter([]*model.SearchHit{
		{Content: "fragment text", Similarity: 0.83, PageURL: "https://example.com/doc", PageTitle: "Doc"},
	})

	body := `{"chatbot_id":"bot-1","query":"what is pricing","top_k":3}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "fragment text")
	require.Contains(t, rec.Body.String(), "https://example.com/doc")
}

func TestSearchEndpointRejectsMissingQuery(t *testing.T) {
	router := newSearchRouter(nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{"chatbot_id":"bot-1"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	require.NotContains(t, rec.Body.String(), `"hits"`)
}

func TestSearchEndpointRejectsBadJSON(t *testing.T) {
	router := newSearchRouter(nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{bad json`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	require.NotContains(t, rec.Body.String(), `"hits"`)
}
