package ai

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/f1re/watchdog/internal/logging"
)

var (
	codeFenceStartRegex = regexp.MustCompile(`(?s)^` + "`" + `{3}(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}\s*$`)
	codeFenceAnyRegex   = regexp.MustCompile(`(?s)` + "`" + `{3}(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}`)

	trailingCommaRegex     = regexp.MustCompile(`,(\s*[}\]])`)
	unquotedKeyRegex       = regexp.MustCompile(`([{,]\s*)([a-zA-Z_$][a-zA-Z0-9_$]*)\s*:`)
	singleLineCommentRegex = regexp.MustCompile(`(?m)^\s*//.*$`)
	multiLineCommentRegex  = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

// defaultMaxInput bounds the text Parse will look at
const defaultMaxInput = 10 * 1024 * 1024

// ParseResult is the outcome of Parse
type ParseResult[T any] struct {
	Success bool
	Data    T
	Error   string
}

// Parse decodes JSON from model or agent output, tolerating the usual
// formatting noise: code fences, trailing commas, comments, unquoted keys,
// and prose around the JSON. When the text holds several JSON objects the
// last complete one wins, since agents print their report at the end.
//
// Strategy sequence:
//  1. Direct parse
//  2. Strip code fences
//  3. Clean up common JSON mistakes
//  4. Extract the last balanced object from mixed content
func Parse[T any](text string, context string) ParseResult[T] {
	if len(text) > defaultMaxInput {
		text = text[len(text)-defaultMaxInput:]
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return parseError[T]("empty input", context)
	}

	if v, err := decode[T](trimmed); err == nil {
		return ParseResult[T]{Success: true, Data: v}
	}

	withoutFences := removeCodeFences(trimmed)
	if withoutFences != trimmed {
		if v, err := decode[T](withoutFences); err == nil {
			return ParseResult[T]{Success: true, Data: v}
		}
	}

	cleaned := cleanupJSON(withoutFences)
	if v, err := decode[T](cleaned); err == nil {
		return ParseResult[T]{Success: true, Data: v}
	}

	for _, candidate := range objectCandidates(trimmed) {
		if v, err := decode[T](candidate); err == nil {
			return ParseResult[T]{Success: true, Data: v}
		}
		if v, err := decode[T](cleanupJSON(candidate)); err == nil {
			return ParseResult[T]{Success: true, Data: v}
		}
	}

	logging.Debug().Str("context", context).Str("preview", truncate(trimmed, 100)).Msg("all JSON parsing strategies failed")
	return parseError[T]("all JSON parsing strategies failed", context)
}

// ParseOrDefault returns fallback when text holds no parseable JSON
func ParseOrDefault[T any](text string, fallback T, context string) T {
	if res := Parse[T](text, context); res.Success {
		return res.Data
	}
	return fallback
}

func decode[T any](text string) (T, error) {
	var v T
	err := json.Unmarshal([]byte(text), &v)
	return v, err
}

func removeCodeFences(text string) string {
	cleaned := codeFenceStartRegex.ReplaceAllString(text, "$1")
	if cleaned == text {
		cleaned = codeFenceAnyRegex.ReplaceAllString(text, "$1")
	}
	if strings.HasPrefix(cleaned, "`") && strings.HasSuffix(cleaned, "`") {
		cleaned = strings.Trim(cleaned, "`")
	}
	return strings.TrimSpace(cleaned)
}

// cleanupJSON fixes trailing commas, unquoted keys, and comments.
// Single quotes are left alone; converting them would break apostrophes in values.
func cleanupJSON(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = trailingCommaRegex.ReplaceAllString(cleaned, "$1")
	cleaned = unquotedKeyRegex.ReplaceAllString(cleaned, `$1"$2":`)
	cleaned = singleLineCommentRegex.ReplaceAllString(cleaned, "")
	cleaned = multiLineCommentRegex.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// objectCandidates returns every top-level balanced {...} span in text,
// last first. Braces inside JSON strings are skipped.
func objectCandidates(text string) []string {
	var spans []string
	depth, start := 0, -1
	inString, escaped := false, false

	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				spans = append(spans, text[start:i+1])
				start = -1
			}
		}
	}

	for i, j := 0, len(spans)-1; i < j; i, j = i+1, j-1 {
		spans[i], spans[j] = spans[j], spans[i]
	}
	return spans
}

func parseError[T any](message, context string) ParseResult[T] {
	if context != "" {
		message = context + ": " + message
	}
	return ParseResult[T]{Error: message}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
