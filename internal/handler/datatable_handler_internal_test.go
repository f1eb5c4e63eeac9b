package handler

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSheetName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Short", "visits", "visits"},
		{"ExactLimit", strings.Repeat("a", 31), strings.Repeat("a", 31)},
		{"ASCII", strings.Repeat("a", 40), strings.Repeat("a", 31)},
		{"MultiByte", strings.Repeat("é", 40), strings.Repeat("é", 31)},
		{"MixedAtBoundary", strings.Repeat("a", 30) + "日本", strings.Repeat("a", 30) + "日"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sheetName(tt.in)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
			assert.LessOrEqual(t, utf8.RuneCountInString(got), 31)
		})
	}
}

func TestFileNameReplacer(t *testing.T) {
	assert.Equal(t, "q1_2024_visits_", fileNameReplacer.Replace(`q1/2024:visits"`))
}
