package ingest

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/docvault/backend/internal/llm"
)

// strategy is the closed set of extraction routes. The route is resolved once
// from the mime type at the start of ingestion.
type strategy int

const (
	strategyPlainText strategy = iota
	strategyPDF
	strategyImage
	strategyOffice
	strategyUnsupported
)

const (
	mimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeXlsx = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func resolveStrategy(mimeType string) strategy {
	switch {
	case mimeType == "text/plain" || strings.HasPrefix(mimeType, "text/"):
		return strategyPlainText
	case mimeType == "application/pdf":
		return strategyPDF
	case strings.HasPrefix(mimeType, "image/"):
		return strategyImage
	case mimeType == mimeDocx || mimeType == mimeXlsx || mimeType == "application/msword":
		return strategyOffice
	default:
		return strategyUnsupported
	}
}

// ExtractResult carries the extracted text plus a degraded reason when the
// preferred route failed and a fallback or placeholder was used. Extraction
// never fails ingestion: a document with no body text still has value through
// its title and tags.
type ExtractResult struct {
	Text     string
	Pages    int
	Degraded string
}

type Extractor struct {
	gateway     llm.Gateway
	visionModel string
}

func NewExtractor(gw llm.Gateway, visionModel string) *Extractor {
	if visionModel == "" {
		visionModel = "gpt-4o"
	}
	return &Extractor{gateway: gw, visionModel: visionModel}
}

func (e *Extractor) Extract(ctx context.Context, data []byte, mimeType string) *ExtractResult {
	switch resolveStrategy(mimeType) {
	case strategyPlainText:
		return e.extractPlainText(data)
	case strategyPDF:
		return e.extractPDF(ctx, data)
	case strategyImage:
		return e.extractImage(ctx, data, mimeType)
	case strategyOffice:
		return e.extractViaVision(ctx, data, mimeType,
			"This file is an office document. Transcribe all of its textual content, including table cells, in reading order.")
	default:
		return &ExtractResult{
			Text:     unsupportedPlaceholder(mimeType),
			Degraded: fmt.Sprintf("unsupported mime type %q", mimeType),
		}
	}
}

func (e *Extractor) extractPlainText(data []byte) *ExtractResult {
	if !utf8.Valid(data) {
		return &ExtractResult{
			Text:     string(bytes.ToValidUTF8(data, []byte("�"))),
			Pages:    1,
			Degraded: "plain text was not valid UTF-8, invalid bytes replaced",
		}
	}
	return &ExtractResult{Text: string(bytes.TrimSpace(data)), Pages: 1}
}

func (e *Extractor) extractPDF(ctx context.Context, data []byte) *ExtractResult {
	text, pages, err := pdfText(data)
	if err == nil && strings.TrimSpace(text) != "" {
		return &ExtractResult{Text: text, Pages: pages}
	}

	if err != nil {
		slog.Warn("structured pdf extraction failed, falling back to vision", "error", err)
	}

	// Scanned or malformed PDF. The vision route reads from the raw bytes.
	res := e.extractViaVision(ctx, data, "application/pdf",
		"This file is a PDF, possibly scanned. Transcribe all text visible in the document in reading order.")
	res.Pages = pages
	if res.Degraded == "" {
		res.Degraded = "structured pdf extraction yielded nothing, used vision transcription"
	}
	return res
}

func pdfText(data []byte) (string, int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}

	var buf strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(text)
		buf.WriteString("\n")
	}

	return buf.String(), numPages, nil
}

const imagePrompt = `Transcribe ALL text visible in this image: every word, number, date, and name.
If the image looks like a receipt or an invoice, list each line item on its own line with its
description, quantity, and amount, followed by subtotals and the total. Return only the
transcribed content, no commentary.`

func (e *Extractor) extractImage(ctx context.Context, data []byte, mimeType string) *ExtractResult {
	res := e.extractViaVision(ctx, data, mimeType, imagePrompt)
	res.Pages = 1
	return res
}

func (e *Extractor) extractViaVision(ctx context.Context, data []byte, mimeType, instruction string) *ExtractResult {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))

	resp, err := e.gateway.Chat(ctx, llm.ChatRequest{
		Model: e.visionModel,
		Messages: []llm.Message{
			{Role: "system", Content: "You extract text from documents and images accurately and completely."},
			{Role: "user", Content: fmt.Sprintf("[Attachment: %s]\n\n%s", dataURL, instruction)},
		},
	})
	if err != nil {
		slog.Warn("vision extraction failed", "mime_type", mimeType, "error", err)
		return &ExtractResult{
			Text:     unsupportedPlaceholder(mimeType),
			Degraded: fmt.Sprintf("vision extraction failed: %v", err),
		}
	}

	return &ExtractResult{Text: strings.TrimSpace(resp.Content)}
}

func unsupportedPlaceholder(mimeType string) string {
	return fmt.Sprintf("[Unsupported document type: %s]", mimeType)
}
