package rag

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyInput is returned when there is no text to chunk.
var ErrEmptyInput = errors.New("input text is empty")

// Chunk splits text into overlapping windows snapped to natural boundaries.
// A window ends at the last boundary character (space, newline, sentence
// punctuation) inside it; when a window contains no boundary at all it is cut
// mid-word rather than growing past chunkSize. The start position advances by
// at least one rune per window, so the walk terminates for any chunkSize >= 1
// and overlap >= 0, including overlap >= chunkSize.
func Chunk(text string, chunkSize, overlap int) ([]string, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	if chunkSize < 1 {
		return nil, fmt.Errorf("chunk size must be >= 1, got %d", chunkSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("overlap must be >= 0, got %d", overlap)
	}

	runes := []rune(text)
	length := len(runes)

	var chunks []string
	start := 0
	for start < length {
		end := start + chunkSize
		if end > length {
			end = length
		}

		if end < length {
			boundary := end
			for boundary > start && !isBoundary(runes[boundary]) {
				boundary--
			}
			// No boundary inside the window: keep the hard cut
			if boundary > start {
				end = boundary
			}
		}

		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, piece)
		}

		if end < length {
			next := end - overlap
			if next < start+1 {
				next = start + 1
			}
			start = next
		} else {
			start = end
		}
	}

	return chunks, nil
}

func isBoundary(r rune) bool {
	switch r {
	case ' ', '\n', '.', '!', '?':
		return true
	}
	return false
}
