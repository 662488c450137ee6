package infrastructure

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-screener/domain"
)

func TestExtractTXT(t *testing.T) {
	e := NewTextExtractor()

	doc, err := e.Extract([]byte("  Jane Doe\nBackend Engineer  "), "resume.txt")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe\nBackend Engineer", doc.Text)
	assert.Equal(t, "txt", doc.Format)
}

func TestExtractTXTTruncationIsDeterministic(t *testing.T) {
	e := NewTextExtractor()
	data := []byte(strings.Repeat("résumé ", 10000))

	first, err := e.Extract(data, "resume.txt")
	require.NoError(t, err)
	second, err := e.Extract(data, "resume.txt")
	require.NoError(t, err)

	assert.Equal(t, domain.MaxExtractedChars, utf8.RuneCountInString(first.Text))
	assert.Equal(t, first.Text, second.Text, "same bytes must give the same truncated text")
}

func TestExtractUnsupportedFormat(t *testing.T) {
	e := NewTextExtractor()

	for _, name := range []string{"resume.doc", "resume.rtf", "resume.png", "resume"} {
		_, err := e.Extract([]byte("whatever"), name)
		assert.ErrorIs(t, err, domain.ErrUnsupportedFormat, name)
	}
}

func TestExtractCorruptInput(t *testing.T) {
	e := NewTextExtractor()

	_, err := e.Extract([]byte("not a pdf at all"), "resume.pdf")
	assert.ErrorIs(t, err, domain.ErrCorruptDocument)

	_, err = e.Extract([]byte("not a zip archive"), "resume.docx")
	assert.ErrorIs(t, err, domain.ErrCorruptDocument)

	_, err = e.Extract([]byte{0xff, 0xfe, 0x00}, "resume.txt")
	assert.ErrorIs(t, err, domain.ErrCorruptDocument)
}

func TestExtractEmptyBodyIsFailure(t *testing.T) {
	e := NewTextExtractor()

	_, err := e.Extract([]byte("   \n\t  "), "resume.txt")
	assert.ErrorIs(t, err, domain.ErrCorruptDocument)
}

func TestDocxToPlainText(t *testing.T) {
	content := `<w:body><w:p><w:r><w:t>Jane Doe</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Backend </w:t></w:r><w:r><w:t>Engineer</w:t></w:r></w:p></w:body>`

	assert.Equal(t, "Jane Doe\nBackend Engineer\n", docxToPlainText(content))
}
