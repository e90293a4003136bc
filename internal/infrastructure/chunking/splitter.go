package chunking

import "strings"

// Splitter cuts markdown into chunks of at most ChunkSize runes, packing
// whole paragraphs together and hard-splitting only oversized ones.
type Splitter struct {
	ChunkSize int
}

func NewSplitter(chunkSize int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1500
	}
	return &Splitter{ChunkSize: chunkSize}
}

func (s *Splitter) Split(text string) []string {
	paragraphs := strings.Split(text, "\n\n")

	var out []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		chunk := strings.TrimSpace(current.String())
		if chunk != "" {
			out = append(out, chunk)
		}
		current.Reset()
		currentLen = 0
	}

	for _, paragraph := range paragraphs {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		size := len([]rune(paragraph))

		if size > s.ChunkSize {
			flush()
			for _, piece := range hardSplit(paragraph, s.ChunkSize) {
				out = append(out, piece)
			}
			continue
		}
		if currentLen+size > s.ChunkSize {
			flush()
		}
		if currentLen > 0 {
			current.WriteString("\n\n")
			currentLen += 2
		}
		current.WriteString(paragraph)
		currentLen += size
	}
	flush()
	return out
}

func hardSplit(paragraph string, size int) []string {
	runes := []rune(paragraph)
	out := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			out = append(out, piece)
		}
	}
	return out
}
