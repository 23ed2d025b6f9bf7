package http

import (
	"strings"
	"testing"

	"github.com/mahi1722/ticketflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeText_SizeLimit(t *testing.T) {
	limit := 64

	tests := []struct {
		name      string
		inputSize int
		wantErr   bool
	}{
		{"Under Limit", limit - 1, false},
		{"Exact Limit", limit, false},
		{"Over Limit", limit + 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sanitizeText(strings.Repeat("a", tt.inputSize), limit)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrTextTooLarge)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeText_ControlChars(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Plain", "Create user jdoe", "Create user jdoe"},
		{"Keeps whitespace", "line1\nline2\tcol\r\n", "line1\nline2\tcol\r\n"},
		{"Strips ANSI escape", "\x1b[31mred\x1b[0m", "[31mred[0m"},
		{"Strips NUL and BEL", "a\x00b\x07c", "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sanitizeText(tt.input, DefaultMaxTextSize)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeText_InvalidUTF8(t *testing.T) {
	_, err := sanitizeText("bad \xff byte", DefaultMaxTextSize)
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestSanitizeTicket(t *testing.T) {
	tk := domain.Ticket{Number: "1", ShortDescription: "ok\x00", Description: strings.Repeat("x", 10)}
	require.NoError(t, sanitizeTicket(&tk, 10))
	assert.Equal(t, "ok", tk.ShortDescription)

	tk.Description += "!"
	err := sanitizeTicket(&tk, 10)
	assert.ErrorContains(t, err, "description:")
	assert.ErrorIs(t, err, ErrTextTooLarge)
}
