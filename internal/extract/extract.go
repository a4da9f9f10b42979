package extract

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"

	appErr "github.com/chatkb/chatkb/internal/pkg/errors"
)

const (
	MediaTypePDF      = "pdf"
	MediaTypeDocx     = "docx"
	MediaTypeText     = "plain-text"
	MediaTypeMarkdown = "markdown"
)

const pdfPageTimeout = 10 * time.Second

// NormalizeMediaType maps declared MIME names and file extensions onto the
// closed media-type set. Returns "" for anything outside it.
func NormalizeMediaType(declared string) string {
	switch strings.ToLower(strings.TrimSpace(declared)) {
	case MediaTypePDF, "application/pdf", ".pdf":
		return MediaTypePDF
	case MediaTypeDocx, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", ".docx":
		return MediaTypeDocx
	case MediaTypeText, "text/plain", "txt", ".txt":
		return MediaTypeText
	case MediaTypeMarkdown, "text/markdown", "md", ".md":
		return MediaTypeMarkdown
	default:
		return ""
	}
}

// DetectMediaType resolves an upload's media type from the declared
// content type, falling back to the filename extension. Browsers often send
// generic or parameterized content types for markdown and docx uploads.
func DetectMediaType(contentType string, filename string) string {
	base := contentType
	if idx := strings.Index(base, ";"); idx >= 0 {
		base = base[:idx]
	}
	if mt := NormalizeMediaType(base); mt != "" {
		return mt
	}
	if idx := strings.LastIndex(filename, "."); idx >= 0 {
		return NormalizeMediaType(filename[idx:])
	}
	return ""
}

// Text decodes a raw document into plain UTF-8 text. Empty output for a
// well-formed pdf/docx is legitimate (image-only files) and is not an error
// here; the caller decides whether that is fatal.
func Text(data []byte, mediaType string) (string, error) {
	switch NormalizeMediaType(mediaType) {
	case MediaTypePDF:
		return pdfText(data)
	case MediaTypeDocx:
		return docxText(data)
	case MediaTypeText:
		return string(data), nil
	case MediaTypeMarkdown:
		return markdownText(data), nil
	default:
		return "", fmt.Errorf("%w: %s", appErr.ErrUnsupportedFormat, mediaType)
	}
}

func pdfText(data []byte) (string, error) {
	path, cleanup, err := spool(data, "*.pdf")
	if err != nil {
		return "", err
	}
	defer cleanup()

	reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	var sb strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := guardedPlainText(page)
		if err != nil {
			// Skip an unparsable page, keep the rest of the document.
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(content)
	}
	return sb.String(), nil
}

func docxText(data []byte) (string, error) {
	path, cleanup, err := spool(data, "*.docx")
	if err != nil {
		return "", err
	}
	defer cleanup()

	text, err := cat.File(path)
	if err != nil {
		return "", fmt.Errorf("extract docx: %w", err)
	}
	return text, nil
}

// guardedPlainText runs page extraction under a timeout; malformed content
// streams can hang the pdf parser.
func guardedPlainText(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)
	go func() {
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-time.After(pdfPageTimeout):
		return "", errors.New("page extraction timeout")
	}
}

func spool(data []byte, pattern string) (string, func(), error) {
	f, err := os.CreateTemp("", "chatkb-extract-"+pattern)
	if err != nil {
		return "", nil, err
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}
