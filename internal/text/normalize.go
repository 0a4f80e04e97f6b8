// Package text provides the text preparation the gateway applies before a
// request reaches the inference engine, plus log-safe truncation.
package text

import (
	"strings"
	"unicode"
)

// LogPreviewRunes bounds how much request text is echoed into log lines.
const LogPreviewRunes = 50

const truncationMarker = "..."

// Normalize prepares inbound text for synthesis: control characters are
// dropped, whitespace runs collapse to single spaces, and the result is
// trimmed. A whitespace-only input normalizes to the empty string, which
// is what request validation keys off.
func Normalize(input string) string {
	var builder strings.Builder

	builder.Grow(len(input))

	pendingSpace := false

	for _, r := range input {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = true
		case unicode.IsControl(r):
			// Dropped entirely; engines read them as garbage tokens.
		default:
			if pendingSpace && builder.Len() > 0 {
				builder.WriteByte(' ')
			}

			pendingSpace = false

			builder.WriteRune(r)
		}
	}

	return builder.String()
}

// Preview truncates text to LogPreviewRunes runes for logging, appending a
// marker when anything was cut. Full request payloads never reach the log.
func Preview(input string) string {
	runes := []rune(input)
	if len(runes) <= LogPreviewRunes {
		return input
	}

	return string(runes[:LogPreviewRunes]) + truncationMarker
}
