// Package pdftext extracts plain text from downloaded PDF menus.
package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/menuscout/backend/internal/domain"
)

// minTextChars is the floor below which a PDF is assumed to be scanned
// images. Image-only PDFs silently produce near-empty text, so they are
// flagged for OCR instead of being passed downstream as an empty menu.
const minTextChars = 200

// Extractor implements domain.PDFTextExtractor with a pure-Go PDF reader.
type Extractor struct{}

// NewExtractor creates a PDF text extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractText returns the plain text of the PDF, or ErrImageOnlyPDF when the
// document has too little extractable text to be a real text-layer menu.
func (e *Extractor) ExtractText(ctx context.Context, raw []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("parsing pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}

	text := strings.TrimSpace(buf.String())
	if len(text) < minTextChars {
		return text, domain.ErrImageOnlyPDF
	}

	return text, nil
}
