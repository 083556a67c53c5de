package textutil

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var spacePattern = regexp.MustCompile(`\s+`)

// NormalizeSpace collapses runs of whitespace into single spaces and trims
// the result.
func NormalizeSpace(text string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
}

// Fold applies NFKC normalization and full-width to half-width folding.
// Recognition output from CJK video frames frequently mixes full-width
// latin and digits; folding keeps the evidence index consistent with
// ordinary query text.
func Fold(text string) string {
	return norm.NFKC.String(width.Fold.String(text))
}

// Tokenize splits text into lowercase search tokens, dropping empties.
func Tokenize(text string) []string {
	lowered := strings.ToLower(Fold(text))
	fields := strings.FieldsFunc(lowered, func(r rune) bool {
		return !isTokenRune(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if field == "" {
			continue
		}
		tokens = append(tokens, field)
	}
	return tokens
}

func isTokenRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r >= 0x4E00 && r <= 0x9FFF: // CJK unified ideographs
		return true
	default:
		return false
	}
}

// Snippet truncates text to max characters on a word boundary, appending an
// ellipsis when anything was dropped. Newlines are flattened first.
func Snippet(text string, max int) string {
	text = NormalizeSpace(text)
	if max <= 0 || len([]rune(text)) <= max {
		return text
	}
	runes := []rune(text)
	truncated := string(runes[:max])
	if idx := strings.LastIndex(truncated, " "); idx > max/2 {
		truncated = truncated[:idx]
	}
	return strings.TrimRight(truncated, " ") + "..."
}

// FormatTimeMs renders milliseconds as M:SS, or H:MM:SS past one hour.
func FormatTimeMs(ms int64) string {
	total := ms / 1000
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
