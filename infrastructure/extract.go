package infrastructure

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/nguyenthenguyen/docx"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"resume-screener/domain"
)

// TextExtractor is the text extraction unit: synchronous and pure, identical
// bytes always yield the identical ExtractedDocument or the identical failure.
// Paginated formats (PDF) stop at MaxDocumentPages and break early once the
// character cap is reached; flat formats (DOCX, TXT) cap on characters
// directly.
type TextExtractor struct{}

func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

func (e *TextExtractor) Extract(data []byte, filename string) (domain.ExtractedDocument, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return extractPDF(data)
	case ".docx":
		return extractDOCX(data)
	case ".txt":
		return extractTXT(data)
	default:
		// Includes legacy .doc: there is no reliable parser for it here, and
		// attempting one would not be deterministic. Never retried.
		return domain.ExtractedDocument{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

func extractPDF(data []byte) (domain.ExtractedDocument, error) {
	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return domain.ExtractedDocument{}, fmt.Errorf("%w: %v", domain.ErrCorruptDocument, err)
	}

	numPages, err := reader.GetNumPages()
	if err != nil {
		return domain.ExtractedDocument{}, fmt.Errorf("%w: %v", domain.ErrCorruptDocument, err)
	}
	if numPages == 0 {
		return domain.ExtractedDocument{}, fmt.Errorf("%w: PDF has no pages", domain.ErrCorruptDocument)
	}
	if numPages > domain.MaxDocumentPages {
		numPages = domain.MaxDocumentPages
	}

	var b strings.Builder
	pagesRead := 0
	for i := 1; i <= numPages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			return domain.ExtractedDocument{}, fmt.Errorf("%w: page %d: %v", domain.ErrCorruptDocument, i, err)
		}
		ex, err := extractor.New(page)
		if err != nil {
			return domain.ExtractedDocument{}, fmt.Errorf("%w: page %d: %v", domain.ErrCorruptDocument, i, err)
		}
		pageText, err := ex.ExtractText()
		if err != nil {
			return domain.ExtractedDocument{}, fmt.Errorf("%w: page %d: %v", domain.ErrCorruptDocument, i, err)
		}
		b.WriteString(pageText)
		b.WriteString("\n")
		pagesRead = i
		if utf8.RuneCountInString(b.String()) >= domain.MaxExtractedChars {
			break
		}
	}

	return finishExtraction(b.String(), "pdf", pagesRead)
}

func extractDOCX(data []byte) (domain.ExtractedDocument, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return domain.ExtractedDocument{}, fmt.Errorf("%w: %v", domain.ErrCorruptDocument, err)
	}
	defer r.Close()

	return finishExtraction(docxToPlainText(r.Editable().GetContent()), "docx", 0)
}

func extractTXT(data []byte) (domain.ExtractedDocument, error) {
	if !utf8.Valid(data) {
		return domain.ExtractedDocument{}, fmt.Errorf("%w: not valid UTF-8 text", domain.ErrCorruptDocument)
	}
	return finishExtraction(string(data), "txt", 0)
}

// finishExtraction applies the shared character cap and the non-empty-body
// invariant. A document that extracts to whitespace only (a scanned image,
// typically) is a failure, not an empty success.
func finishExtraction(text, format string, pages int) (domain.ExtractedDocument, error) {
	text = domain.TruncateRunes(strings.TrimSpace(text), domain.MaxExtractedChars)
	if text == "" {
		return domain.ExtractedDocument{}, fmt.Errorf("%w: no extractable text", domain.ErrCorruptDocument)
	}
	return domain.ExtractedDocument{Text: text, Format: format, Pages: pages}, nil
}

// docxToPlainText strips the WordprocessingML markup from document.xml,
// keeping text runs and turning paragraph ends into newlines.
func docxToPlainText(content string) string {
	var b strings.Builder
	inTag := false
	tagStart := 0
	for i, r := range content {
		switch {
		case r == '<':
			inTag = true
			tagStart = i
		case r == '>' && inTag:
			inTag = false
			if strings.HasPrefix(content[tagStart:i], "</w:p") {
				b.WriteString("\n")
			}
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}
