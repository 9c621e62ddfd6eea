package packager

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bookforge/bookforge/internal/book"
	"github.com/bookforge/bookforge/internal/cache"
)

func packageBook() *book.Book {
	return &book.Book{
		Metadata: book.Metadata{
			Title:       "The Deep Field",
			Description: "A survey of what telescopes found.",
			Author:      "bookforge",
			Language:    "en",
		},
		Chapters: []book.Chapter{
			{Index: 0, Title: "First Light", Content: "It began with photons."},
			{Index: 1, Title: "Dark Patches", Content: "", Placeholder: true},
		},
		Cover: []byte("not-really-a-png"),
	}
}

func TestPackager_Create(t *testing.T) {
	outputDir := t.TempDir()

	pdfPath := filepath.Join(t.TempDir(), "the_deep_field.pdf")
	if err := os.WriteFile(pdfPath, []byte("%PDF-1.7 fake"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := New(nil)
	dir, err := p.Create(packageBook(), Options{
		OutputDir:  outputDir,
		Files:      map[string]string{"pdf": pdfPath},
		ConfigYAML: []byte("book:\n  author: bookforge\n"),
		CacheStats: cache.Stats{Hits: 3, Misses: 2},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if !strings.HasPrefix(filepath.Base(dir), "the_deep_field_") {
		t.Errorf("package dir %q does not start with sanitized title", filepath.Base(dir))
	}

	for _, name := range []string{
		"the_deep_field.pdf",
		"README.md",
		"metadata.json",
		"cover.png",
		filepath.Join("artifacts", "content.yaml"),
		filepath.Join("artifacts", "config.yaml"),
		filepath.Join("artifacts", "chapters", "chapter_01.txt"),
		filepath.Join("artifacts", "chapters", "chapter_02.txt"),
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing package entry %s: %v", name, err)
		}
	}

	t.Run("metadata contents", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
		if err != nil {
			t.Fatal(err)
		}
		var meta packageMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			t.Fatalf("metadata.json is not valid JSON: %v", err)
		}
		if meta.Title != "The Deep Field" {
			t.Errorf("metadata title = %q", meta.Title)
		}
		if meta.ChapterCount != 2 || meta.Placeholders != 1 {
			t.Errorf("metadata counts = %d chapters, %d placeholders", meta.ChapterCount, meta.Placeholders)
		}
		if meta.CacheHits != 3 || meta.CacheMisses != 2 {
			t.Errorf("metadata cache stats = %d/%d", meta.CacheHits, meta.CacheMisses)
		}
		if meta.Files["pdf"] != "the_deep_field.pdf" {
			t.Errorf("metadata files = %v", meta.Files)
		}
	})

	t.Run("readme contents", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join(dir, "README.md"))
		if err != nil {
			t.Fatal(err)
		}
		readme := string(data)
		for _, want := range []string{"# The Deep Field", "1. First Light", "2. Dark Patches", "Placeholder chapters"} {
			if !strings.Contains(readme, want) {
				t.Errorf("README missing %q", want)
			}
		}
	})
}

func TestSafeName(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"The Deep Field", "the_deep_field"},
		{"What?! A <Book>", "what_a_book"},
		{"", "book"},
		{"///", "book"},
	}
	for _, tt := range tests {
		if got := safeName(tt.title); got != tt.want {
			t.Errorf("safeName(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}
