package domain

// Limits applied during text extraction. Truncation is silent but cuts at a
// fixed boundary so identical input bytes always yield identical text.
const (
	MaxExtractedChars = 25000
	MaxDocumentPages  = 6

	// Job descriptions above this are cut before being sent to the judgment
	// service, bounding per-call cost.
	MaxJobDescriptionChars = 20000
)

// ExtractedDocument is the output of the text extraction unit. Text is never
// empty on success.
type ExtractedDocument struct {
	Text   string
	Format string
	Pages  int
}

// TruncateRunes cuts s to at most limit runes. Cutting on rune boundaries
// keeps the result valid UTF-8 and the boundary deterministic.
func TruncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
