package tts

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSplitSentences(t *testing.T) {
	cfg := DefaultSegmenterConfig()
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "simple",
			text: "Thanks for sharing that. What would you change next quarter?",
			want: []string{"Thanks for sharing that.", "What would you change next quarter?"},
		},
		{
			name: "short fragment merged",
			text: "Great! Could you give me a specific example of that?",
			want: []string{"Great! Could you give me a specific example of that?"},
		},
		{
			name: "title abbreviation",
			text: "I spoke with Dr. Smith about the launch. It went well overall.",
			want: []string{"I spoke with Dr. Smith about the launch.", "It went well overall."},
		},
		{
			name: "decimal",
			text: "Latency dropped to 1.5 seconds this quarter. That is a real win.",
			want: []string{"Latency dropped to 1.5 seconds this quarter.", "That is a real win."},
		},
		{
			name: "no terminator",
			text: "thank you so much",
			want: []string{"thank you so much"},
		},
		{
			name: "trailing short tail appended",
			text: "That covers everything I wanted to ask today. Bye!",
			want: []string{"That covers everything I wanted to ask today. Bye!"},
		},
		{
			name: "empty",
			text: "   ",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSentences(tt.text, cfg))
		})
	}
}

func TestSplitSentencesForcesLongRuns(t *testing.T) {
	cfg := SegmenterConfig{MinLength: 5, MaxLength: 40}
	text := strings.Repeat("word ", 30)
	parts := SplitSentences(text, cfg)
	assert.Greater(t, len(parts), 1)
	for _, p := range parts {
		assert.LessOrEqual(t, utf8.RuneCountInString(p), 40)
	}
	assert.Equal(t, strings.Join(strings.Fields(text), " "), strings.Join(parts, " "))
}
