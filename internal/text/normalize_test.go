// Package text_test tests text normalization and log previews.
package text_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/book-expert/tts-gateway/internal/text"
)

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "hello world", text.Normalize("  hello \t\n world  "))
	assert.Equal(t, "a b c", text.Normalize("a\nb\r\nc"))
}

func TestNormalizeWhitespaceOnlyIsEmpty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, text.Normalize(""))
	assert.Empty(t, text.Normalize("   \t  \n "))
}

func TestNormalizeDropsControlCharacters(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "hello", text.Normalize("he\x00l\x07lo"))
}

func TestNormalizeKeepsUnicodeText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "héllo wörld", text.Normalize("héllo   wörld"))
}

func TestPreviewTruncatesLongText(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 200)
	preview := text.Preview(long)

	assert.Len(t, []rune(preview), text.LogPreviewRunes+3)
	assert.True(t, strings.HasSuffix(preview, "..."))
}

func TestPreviewKeepsShortTextIntact(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "hello", text.Preview("hello"))
}
