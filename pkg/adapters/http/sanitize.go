package http

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mahi1722/ticketflow/pkg/domain"
)

// DefaultMaxTextSize bounds each free-text ticket field (16KB).
const DefaultMaxTextSize = 16 << 10

// DefaultMaxBodySize bounds a whole POST /api/task body, including the
// ticket fields that are passed through unchecked (1MB).
const DefaultMaxBodySize = 1 << 20

var (
	ErrTextTooLarge = errors.New("ticket text exceeds maximum allowed size")
	ErrInvalidUTF8  = errors.New("ticket text contains invalid UTF-8 sequences")
)

// sanitizeTicket enforces size limits and UTF-8 on the free-text fields that
// end up in prompts and logs, and strips control characters from them.
func sanitizeTicket(t *domain.Ticket, limit int) error {
	for _, field := range []struct {
		name string
		ptr  *string
	}{
		{"short_description", &t.ShortDescription},
		{"description", &t.Description},
	} {
		clean, err := sanitizeText(*field.ptr, limit)
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.ptr = clean
	}
	return nil
}

func sanitizeText(input string, limit int) (string, error) {
	// Rejected rather than truncated so the checkpointed ticket matches what was sent.
	if len(input) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrTextTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	// Fast path: if no control chars, return as is.
	if strings.IndexFunc(input, isUnsafeControl) < 0 {
		return input, nil
	}
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !isUnsafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

// isUnsafeControl keeps newline, tab and carriage return; ANSI escapes,
// NUL, BEL and the like are dropped.
func isUnsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}
