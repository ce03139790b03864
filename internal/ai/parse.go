package ai

import (
	"errors"
	"strings"
)

// ErrMalformedResponse indicates model output that could not be parsed into
// the expected structure. Callers may retry generation.
var ErrMalformedResponse = errors.New("malformed model response")

// ExtractFencedJSON returns the body of the first fenced code block in the
// model output. The fence language tag ("json") is optional. Fails when no
// fence is present or the body is empty.
func ExtractFencedJSON(s string) (string, error) {
	start := strings.Index(s, "```")
	if start == -1 {
		return "", ErrMalformedResponse
	}
	rest := s[start+3:]

	// Skip an optional language tag on the fence line
	if nl := strings.IndexByte(rest, '\n'); nl != -1 {
		tag := strings.TrimSpace(rest[:nl])
		if tag == "json" || tag == "" {
			rest = rest[nl+1:]
		}
	}

	end := strings.Index(rest, "```")
	if end == -1 {
		return "", ErrMalformedResponse
	}

	body := strings.TrimSpace(rest[:end])
	if body == "" {
		return "", ErrMalformedResponse
	}
	return body, nil
}

// ExtractFirstJSON returns the first balanced JSON object or array in s.
// Models often wrap grading verdicts in prose, so everything before the first
// opening brace and after its matching close is discarded.
func ExtractFirstJSON(s string) (string, error) {
	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return "", ErrMalformedResponse
	}

	open := s[start]
	var closer byte = '}'
	if open == '[' {
		closer = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
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
			inString = true
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", ErrMalformedResponse
}

// StripControlChars removes ASCII control characters (0x00-0x1F) so raw
// newlines the model emits inside JSON strings do not break decoding.
func StripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 {
			return -1
		}
		return r
	}, s)
}
