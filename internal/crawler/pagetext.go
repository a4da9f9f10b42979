package crawler

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageContent is the distilled text of one fetched HTML document. Empty
// Content is not an error at this layer; it propagates to the orchestrator
// as a zero-chunk result.
type PageContent struct {
	Title       string
	Description string
	Content     string
}

// Non-content blocks stripped before text extraction.
var strippedSelectors = []string{"script", "style", "noscript", "nav", "header", "footer", "aside"}

func ExtractPage(htmlBody []byte) (*PageContent, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlBody))
	if err != nil {
		return nil, err
	}

	title := collapse(doc.Find("title").First().Text())
	description, _ := doc.Find(`meta[name="description"]`).First().Attr("content")
	if description == "" {
		description, _ = doc.Find(`meta[property="og:description"]`).First().Attr("content")
	}

	for _, selector := range strippedSelectors {
		doc.Find(selector).Remove()
	}

	root := doc.Find("main").First()
	if root.Length() == 0 {
		root = doc.Find("article").First()
	}
	if root.Length() == 0 {
		root = doc.Find(`div[class*="content"]`).First()
	}
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}

	return &PageContent{
		Title:       title,
		Description: collapse(description),
		Content:     collapse(root.Text()),
	}, nil
}

// ContentHash fingerprints normalized page text for change detection across
// refresh runs.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(collapse(content)))
	return hex.EncodeToString(sum[:])
}

func collapse(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
