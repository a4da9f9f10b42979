package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/chatkb/chatkb/internal/pkg/errcode"
	appErr "github.com/chatkb/chatkb/internal/pkg/errors"
	"github.com/chatkb/chatkb/internal/pkg/response"
)

// chatbotID resolves the tenant for a request: JSON and form bodies carry it
// as a field, everything else sends the X-Chatbot-Id header or a query param.
func chatbotID(c *gin.Context) string {
	if id := c.GetHeader("X-Chatbot-Id"); id != "" {
		return id
	}
	if id := c.Query("chatbot_id"); id != "" {
		return id
	}
	return c.PostForm("chatbot_id")
}

func handleError(c *gin.Context, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, appErr.ErrForbidden):
		response.Error(c, errcode.ErrForbidden, "forbidden")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrPlanExceeded):
		response.Error(c, errcode.ErrPlanExceeded, "plan limit exceeded")
	case errors.Is(err, appErr.ErrUnsupportedFormat):
		response.Error(c, errcode.ErrUnsupportedFormat, "unsupported file format")
	case errors.Is(err, appErr.ErrNoExtractableText):
		response.Error(c, errcode.ErrNoExtractableText, "no extractable text")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, errcode.ErrConflict, "conflict")
	case errors.Is(err, appErr.ErrTooMany):
		response.Error(c, errcode.ErrTooMany, "too many requests")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
