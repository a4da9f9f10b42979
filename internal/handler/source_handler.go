package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/chatkb/chatkb/internal/extract"
	"github.com/chatkb/chatkb/internal/model"
	"github.com/chatkb/chatkb/internal/pkg/errcode"
	"github.com/chatkb/chatkb/internal/pkg/response"
	"github.com/chatkb/chatkb/internal/service"
)

type SourceHandler struct {
	ingest  *service.IngestService
	crawl   *service.CrawlService
	sources *service.SourceService
}

func NewSourceHandler(ingest *service.IngestService, crawl *service.CrawlService, sources *service.SourceService) *SourceHandler {
	return &SourceHandler{ingest: ingest, crawl: crawl, sources: sources}
}

type createWebsiteRequest struct {
	ChatbotID string `json:"chatbot_id"`
	RootURL   string `json:"root_url"`
	InputMode string `json:"input_mode"`
}

type sourceDetailResponse struct {
	Source *model.Source `json:"source"`
	Pages  []*model.Page `json:"pages,omitempty"`
}

// CreateDocument accepts a multipart upload and returns the source in
// `processing` state immediately; extraction and embedding run in the
// background and the caller polls GET /sources/:id for the outcome.
func (h *SourceHandler) CreateDocument(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()
	data, err := io.ReadAll(opened)
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to read file")
		return
	}

	mediaType := extract.DetectMediaType(file.Header.Get("Content-Type"), file.Filename)
	src, err := h.ingest.CreateDocument(c.Request.Context(), chatbotID(c), file.Filename, mediaType, data)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, src)
}

func (h *SourceHandler) CreateWebsite(c *gin.Context) {
	req := &createWebsiteRequest{}
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request body")
		return
	}
	if req.ChatbotID == "" {
		req.ChatbotID = chatbotID(c)
	}
	if req.InputMode == "" {
		req.InputMode = model.InputModeURL
	}
	src, err := h.crawl.CreateWebsite(c.Request.Context(), req.ChatbotID, req.RootURL, req.InputMode)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, src)
}

// Crawl runs synchronously and returns the per-page report. Sources created
// with input_mode=sitemap-upload must attach the sitemap XML as a multipart
// `sitemap` file.
func (h *SourceHandler) Crawl(c *gin.Context) {
	var sitemapData []byte
	if file, err := c.FormFile("sitemap"); err == nil {
		opened, err := file.Open()
		if err != nil {
			response.Error(c, errcode.ErrInvalidFile, "failed to open sitemap")
			return
		}
		defer opened.Close()
		if sitemapData, err = io.ReadAll(opened); err != nil {
			response.Error(c, errcode.ErrInvalidFile, "failed to read sitemap")
			return
		}
	}
	report, err := h.crawl.Crawl(c.Request.Context(), chatbotID(c), c.Param("id"), sitemapData)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, report)
}

func (h *SourceHandler) Refresh(c *gin.Context) {
	report, err := h.crawl.Refresh(c.Request.Context(), chatbotID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, report)
}

func (h *SourceHandler) List(c *gin.Context) {
	sources, err := h.sources.List(c.Request.Context(), chatbotID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, sources)
}

func (h *SourceHandler) Get(c *gin.Context) {
	src, pages, err := h.sources.Get(c.Request.Context(), chatbotID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, sourceDetailResponse{Source: src, Pages: pages})
}

func (h *SourceHandler) Delete(c *gin.Context) {
	if err := h.sources.Delete(c.Request.Context(), chatbotID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
