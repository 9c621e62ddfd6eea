// Package book defines the assembled book model shared by the pipeline,
// formatters, and packager.
package book

import "time"

// Metadata is the bibliographic information for a generated book.
type Metadata struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	Language    string    `json:"language"`
	GeneratedAt time.Time `json:"generated_at"`
}

// OutlineChapter is one planned chapter before generation.
type OutlineChapter struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Outline is the planned chapter structure.
type Outline struct {
	Chapters []OutlineChapter `json:"chapters"`
}

// Chapter is one generated chapter.
type Chapter struct {
	Index   int    `json:"index"` // zero-based position
	Title   string `json:"title"`
	Content string `json:"content"`

	// Placeholder marks chapters whose generation failed and were filled
	// with stand-in text so the book still assembles.
	Placeholder bool `json:"placeholder,omitempty"`

	// Illustration is optional PNG image data for the chapter.
	Illustration []byte `json:"-"`
}

// Book is a fully assembled book ready for formatting.
type Book struct {
	Metadata Metadata  `json:"metadata"`
	Chapters []Chapter `json:"chapters"`

	// Cover is optional PNG image data.
	Cover []byte `json:"-"`
}

// PlaceholderCount returns how many chapters are placeholders.
func (b *Book) PlaceholderCount() int {
	n := 0
	for _, ch := range b.Chapters {
		if ch.Placeholder {
			n++
		}
	}
	return n
}
