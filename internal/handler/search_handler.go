package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/chatkb/chatkb/internal/model"
	"github.com/chatkb/chatkb/internal/pkg/errcode"
	"github.com/chatkb/chatkb/internal/pkg/response"
	"github.com/chatkb/chatkb/internal/service"
)

type SearchHandler struct {
	search *service.SearchService
}

func NewSearchHandler(search *service.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

type searchRequest struct {
	ChatbotID string `json:"chatbot_id"`
	Query     string `json:"query"`
	TopK      int    `json:"top_k"`
}

type searchResponse struct {
	Hits []*model.SearchHit `json:"hits"`
}

func (h *SearchHandler) Search(c *gin.Context) {
	req := &searchRequest{}
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request body")
		return
	}
	if req.ChatbotID == "" {
		req.ChatbotID = chatbotID(c)
	}
	hits, err := h.search.Search(c.Request.Context(), req.ChatbotID, req.Query, req.TopK)
	if err != nil {
		handleError(c, err)
		return
	}
	if hits == nil {
		hits = []*model.SearchHit{}
	}
	response.Success(c, searchResponse{Hits: hits})
}
