package rag

import "strings"

// ChunkerOptions configures the Chunker. Sizes count runes.
type ChunkerOptions struct {
	Size     int // Default 400
	Overlap  int // Default 80
	MinRunes int // Default 20, shorter windows are dropped
}

// DefaultChunkerOptions returns the default chunker configuration.
func DefaultChunkerOptions() ChunkerOptions {
	return ChunkerOptions{
		Size:     400,
		Overlap:  80,
		MinRunes: 20,
	}
}

// Chunker splits text into overlapping fixed-size windows.
type Chunker struct {
	size     int
	overlap  int
	minRunes int
}

// NewChunker creates a Chunker, repairing invalid options.
func NewChunker(opts ChunkerOptions) *Chunker {
	if opts.Size <= 0 {
		opts.Size = 400
	}
	if opts.Overlap < 0 {
		opts.Overlap = 80
	}
	if opts.Overlap >= opts.Size {
		opts.Overlap = opts.Size / 5
	}
	if opts.MinRunes < 0 {
		opts.MinRunes = 0
	}
	return &Chunker{size: opts.Size, overlap: opts.Overlap, minRunes: opts.MinRunes}
}

// Split collapses whitespace runs to a single space and cuts the result
// into windows of Size runes, each starting Size-Overlap after the previous.
func (c *Chunker) Split(text string) []string {
	cleaned := []rune(strings.Join(strings.Fields(text), " "))
	if len(cleaned) == 0 {
		return nil
	}

	var out []string
	step := c.size - c.overlap
	for start := 0; start < len(cleaned); start += step {
		end := min(start+c.size, len(cleaned))
		if end-start >= c.minRunes {
			out = append(out, string(cleaned[start:end]))
		}
	}
	return out
}
