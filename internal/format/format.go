// Package format renders an assembled book into PDF, EPUB, and HTML files.
package format

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bookforge/bookforge/internal/book"
)

// Formatter renders books into output formats.
type Formatter struct {
	logger *slog.Logger
}

// New creates a formatter.
func New(logger *slog.Logger) *Formatter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Formatter{logger: logger.With("component", "formatter")}
}

// Render writes the book in the given format to outputPath.
func (f *Formatter) Render(bk *book.Book, format, outputPath string) error {
	switch format {
	case "pdf":
		return f.renderPDF(bk, outputPath)
	case "epub":
		return f.renderEPUB(bk, outputPath)
	case "html":
		return f.renderHTML(bk, outputPath)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// RenderAll renders the book in every requested format under dir, returning
// a map of format to the written file path.
func (f *Formatter) RenderAll(bk *book.Book, formats []string, dir string) (map[string]string, error) {
	files := make(map[string]string, len(formats))
	for _, format := range formats {
		path := filepath.Join(dir, FileName(bk.Metadata.Title, format))
		f.logger.Info("rendering book", "format", format, "path", path)
		if err := f.Render(bk, format, path); err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", format, err)
		}
		files[format] = path
	}
	return files, nil
}

// splitParagraphs breaks generated chapter text into display paragraphs.
func splitParagraphs(content string) []string {
	var out []string
	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(strings.ReplaceAll(para, "\n", " "))
		if para != "" {
			out = append(out, para)
		}
	}
	return out
}

// FileName builds a unique, filesystem-safe name for a rendered book.
func FileName(title, extension string) string {
	safe := make([]rune, 0, len(title))
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			safe = append(safe, r)
		case r == ' ', r == '-', r == '_':
			safe = append(safe, '_')
		}
	}
	name := strings.Trim(string(safe), "_")
	if len(name) > 50 {
		name = name[:50]
	}
	if name == "" {
		name = "book"
	}
	return fmt.Sprintf("%s_%d_%s.%s", name, time.Now().Unix(), uuid.New().String()[:8], extension)
}
