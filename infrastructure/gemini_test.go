package infrastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-screener/domain"
)

func TestGeminiResponseText(t *testing.T) {
	body := []byte(`{"candidates": [{"content": {"parts": [{"text": "{\"ok\": true}"}]}}]}`)

	text, err := geminiResponseText(body)
	require.NoError(t, err)
	assert.Equal(t, `{"ok": true}`, text)
}

func TestGeminiResponseTextDefensiveParsing(t *testing.T) {
	cases := [][]byte{
		[]byte(`not json`),
		[]byte(`{}`),
		[]byte(`{"candidates": []}`),
		[]byte(`{"candidates": [{"content": {"parts": []}}]}`),
		[]byte(`{"candidates": [{"content": {"parts": [{"text": ""}]}}]}`),
	}
	for _, body := range cases {
		_, err := geminiResponseText(body)
		assert.ErrorIs(t, err, domain.ErrInvalidModelResponse, string(body))
	}
}
