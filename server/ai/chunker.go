package ai

import (
	"strings"
	"unicode"
)

const (
	// ChunkSize is the maximum character count per chunk.
	ChunkSize = 500
	// ChunkOverlap is the character count carried over between chunks.
	ChunkOverlap = 50
)

// ChunkDocument splits a document into bounded chunks for embedding and
// storage. Paragraph boundaries are preserved when possible; oversized
// paragraphs are force-split at sentence or word boundaries.
func ChunkDocument(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if len(content) <= ChunkSize {
		return []string{content}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunks = append(chunks, current.String())
		overlap := overlapTail(current.String(), ChunkOverlap)
		current.Reset()
		if overlap != "" {
			current.WriteString(overlap)
		}
	}

	for _, para := range splitParagraphs(content) {
		if current.Len() > 0 && current.Len()+len(para) > ChunkSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)

		for current.Len() > ChunkSize {
			text := current.String()
			cut := findBreakPoint(text[:ChunkSize])
			chunks = append(chunks, strings.TrimSpace(text[:cut]))
			current.Reset()
			current.WriteString(strings.TrimSpace(text[cut:]))
		}
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// splitParagraphs splits content into non-empty paragraphs.
func splitParagraphs(content string) []string {
	var paragraphs []string
	for _, block := range strings.Split(content, "\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			paragraphs = append(paragraphs, block)
		}
	}
	return paragraphs
}

// overlapTail returns the last overlapSize characters, trimmed to a word
// boundary, to carry context into the next chunk.
func overlapTail(chunk string, overlapSize int) string {
	if len(chunk) <= overlapSize {
		return chunk
	}
	tail := chunk[len(chunk)-overlapSize:]
	if idx := strings.IndexAny(tail, " \t"); idx >= 0 {
		return strings.TrimSpace(tail[idx+1:])
	}
	return tail
}

// findBreakPoint finds a sentence or word boundary to split at.
func findBreakPoint(text string) int {
	for i := len(text) - 1; i >= 0; i-- {
		if text[i] == '.' || text[i] == '!' || text[i] == '?' {
			if i == len(text)-1 || unicode.IsSpace(rune(text[i+1])) {
				return i + 1
			}
		}
	}
	for i := len(text) - 1; i >= len(text)/2; i-- {
		if unicode.IsSpace(rune(text[i])) {
			return i
		}
	}
	return len(text)
}
