package tts

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SegmenterConfig bounds sentence length in runes.
type SegmenterConfig struct {
	// MinLength merges shorter fragments ("OK.", "Hi.") into the next one.
	MinLength int
	// MaxLength forces a break at a comma or space.
	MaxLength int
}

func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{MinLength: 10, MaxLength: 200}
}

var sentenceEnders = map[rune]bool{
	'.': true, '!': true, '?': true, ';': true,
	'。': true, '！': true, '？': true, '；': true, '…': true,
}

var softBreaks = map[rune]bool{
	',': true, '，': true, ':': true, '：': true, '、': true,
}

// Titles that are followed by a name rather than a new sentence.
var prefixAbbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
	"sr": true, "jr": true, "st": true, "vs": true,
	"e.g": true, "i.e": true, "etc": true,
}

// SplitSentences cuts text into utterance-sized pieces.
func SplitSentences(text string, cfg SegmenterConfig) []string {
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultSegmenterConfig().MinLength
	}
	if cfg.MaxLength <= cfg.MinLength {
		cfg.MaxLength = DefaultSegmenterConfig().MaxLength
	}

	var out []string
	var pending strings.Builder
	emit := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if pending.Len() > 0 {
			pending.WriteByte(' ')
		}
		pending.WriteString(s)
		if utf8.RuneCountInString(pending.String()) >= cfg.MinLength {
			out = append(out, pending.String())
			pending.Reset()
		}
	}

	runes := []rune(strings.TrimSpace(text))
	start := 0
	for i := 0; i < len(runes); i++ {
		if sentenceEnders[runes[i]] && isBoundary(runes, i) {
			emit(string(runes[start : i+1]))
			start = i + 1
			continue
		}
		if i-start+1 >= cfg.MaxLength {
			cut := forcedBreak(runes[start:i+1], cfg.MinLength)
			emit(string(runes[start : start+cut]))
			start += cut
		}
	}
	emit(string(runes[start:]))

	if pending.Len() > 0 {
		if n := len(out); n > 0 {
			out[n-1] += " " + pending.String()
		} else {
			out = append(out, pending.String())
		}
	}
	return out
}

// isBoundary reports whether the terminator at i ends a sentence.
func isBoundary(runes []rune, i int) bool {
	if runes[i] != '.' {
		return i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) || !isLatin(runes[i])
	}
	if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
		// 3.14, v1.2, example.com
		return false
	}
	word := lastWord(runes[:i])
	return !prefixAbbreviations[strings.ToLower(word)]
}

func isLatin(r rune) bool {
	return r < utf8.RuneSelf
}

func lastWord(runes []rune) string {
	j := len(runes)
	for j > 0 && !unicode.IsSpace(runes[j-1]) {
		j--
	}
	return strings.Trim(string(runes[j:]), "\"'(")
}

// forcedBreak returns the cut position within an over-long run.
func forcedBreak(runes []rune, minLen int) int {
	for i := len(runes) - 1; i >= minLen; i-- {
		if softBreaks[runes[i]] {
			return i + 1
		}
	}
	for i := len(runes) - 1; i >= minLen; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return len(runes)
}
