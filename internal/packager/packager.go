// Package packager assembles the final book package directory: rendered
// formats, generation artifacts, metadata, and a README.
package packager

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bookforge/bookforge/internal/book"
	"github.com/bookforge/bookforge/internal/cache"
	"github.com/bookforge/bookforge/internal/metrics"
)

// Options configures one packaging run.
type Options struct {
	// OutputDir is the directory the package directory is created under.
	OutputDir string

	// Files maps output format ("pdf", "epub", "html") to the rendered file path.
	Files map[string]string

	// ConfigYAML, when set, is written into the package as the effective
	// generation config.
	ConfigYAML []byte

	CacheStats cache.Stats
	Stages     []metrics.StageSummary
}

// Packager creates book package directories.
type Packager struct {
	logger *slog.Logger
}

// New creates a packager.
func New(logger *slog.Logger) *Packager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Packager{logger: logger.With("component", "packager")}
}

// Create builds a timestamped package directory for bk and returns its path.
func (p *Packager) Create(bk *book.Book, opts Options) (string, error) {
	dir := filepath.Join(opts.OutputDir,
		fmt.Sprintf("%s_%s", safeName(bk.Metadata.Title), time.Now().Format("20060102_150405")))
	if err := os.MkdirAll(filepath.Join(dir, "artifacts", "chapters"), 0o755); err != nil {
		return "", fmt.Errorf("failed to create package directory: %w", err)
	}

	p.logger.Info("creating book package", "dir", dir)

	bookFiles := make(map[string]string, len(opts.Files))
	for format, src := range opts.Files {
		dst := filepath.Join(dir, filepath.Base(src))
		if err := copyFile(src, dst); err != nil {
			return "", fmt.Errorf("failed to copy %s output: %w", format, err)
		}
		bookFiles[format] = filepath.Base(src)
	}

	if err := p.writeArtifacts(bk, dir, opts.ConfigYAML); err != nil {
		return "", err
	}
	if err := p.writeMetadata(bk, dir, bookFiles, opts); err != nil {
		return "", err
	}
	if err := p.writeReadme(bk, dir, bookFiles); err != nil {
		return "", err
	}

	return dir, nil
}

// writeArtifacts saves the generation inputs alongside the book: full
// content as YAML, per-chapter text files, images, and the effective config.
func (p *Packager) writeArtifacts(bk *book.Book, dir string, configYAML []byte) error {
	content, err := yaml.Marshal(bk)
	if err != nil {
		return fmt.Errorf("failed to marshal book content: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "artifacts", "content.yaml"), content, 0o644); err != nil {
		return fmt.Errorf("failed to write content artifact: %w", err)
	}

	for _, ch := range bk.Chapters {
		name := fmt.Sprintf("chapter_%02d.txt", ch.Index+1)
		text := fmt.Sprintf("%s\n\n%s\n", ch.Title, ch.Content)
		if err := os.WriteFile(filepath.Join(dir, "artifacts", "chapters", name), []byte(text), 0o644); err != nil {
			return fmt.Errorf("failed to write chapter artifact %s: %w", name, err)
		}
	}

	if len(bk.Cover) > 0 {
		if err := os.WriteFile(filepath.Join(dir, "cover.png"), bk.Cover, 0o644); err != nil {
			return fmt.Errorf("failed to write cover: %w", err)
		}
	}

	imagesDir := filepath.Join(dir, "artifacts", "images")
	for _, ch := range bk.Chapters {
		if len(ch.Illustration) == 0 {
			continue
		}
		if err := os.MkdirAll(imagesDir, 0o755); err != nil {
			return fmt.Errorf("failed to create images directory: %w", err)
		}
		name := fmt.Sprintf("illustration_%02d.png", ch.Index+1)
		if err := os.WriteFile(filepath.Join(imagesDir, name), ch.Illustration, 0o644); err != nil {
			return fmt.Errorf("failed to write illustration %s: %w", name, err)
		}
	}

	if len(configYAML) > 0 {
		if err := os.WriteFile(filepath.Join(dir, "artifacts", "config.yaml"), configYAML, 0o644); err != nil {
			return fmt.Errorf("failed to write config artifact: %w", err)
		}
	}

	return nil
}

// packageMetadata is the metadata.json document describing the package.
type packageMetadata struct {
	PackageName string    `json:"package_name"`
	CreatedAt   time.Time `json:"created_at"`
	Generator   string    `json:"generator"`

	Title        string `json:"title"`
	Description  string `json:"description"`
	Author       string `json:"author"`
	Language     string `json:"language"`
	ChapterCount int    `json:"chapter_count"`
	Placeholders int    `json:"placeholder_chapters"`

	Files map[string]string `json:"files"`

	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`
	TotalTokens int   `json:"total_tokens"`
}

func (p *Packager) writeMetadata(bk *book.Book, dir string, bookFiles map[string]string, opts Options) error {
	tokens := 0
	for _, s := range opts.Stages {
		tokens += s.TotalTokens
	}

	meta := packageMetadata{
		PackageName:  filepath.Base(dir),
		CreatedAt:    time.Now(),
		Generator:    "bookforge",
		Title:        bk.Metadata.Title,
		Description:  bk.Metadata.Description,
		Author:       bk.Metadata.Author,
		Language:     bk.Metadata.Language,
		ChapterCount: len(bk.Chapters),
		Placeholders: bk.PlaceholderCount(),
		Files:        bookFiles,
		CacheHits:    opts.CacheStats.Hits,
		CacheMisses:  opts.CacheStats.Misses,
		TotalTokens:  tokens,
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal package metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata.json: %w", err)
	}
	return nil
}

func (p *Packager) writeReadme(bk *book.Book, dir string, bookFiles map[string]string) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", bk.Metadata.Title))
	if bk.Metadata.Description != "" {
		sb.WriteString(bk.Metadata.Description)
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Book info\n\n")
	sb.WriteString(fmt.Sprintf("- Author: %s\n", bk.Metadata.Author))
	sb.WriteString(fmt.Sprintf("- Language: %s\n", bk.Metadata.Language))
	sb.WriteString(fmt.Sprintf("- Chapters: %d\n", len(bk.Chapters)))
	if n := bk.PlaceholderCount(); n > 0 {
		sb.WriteString(fmt.Sprintf("- Placeholder chapters (generation failed): %d\n", n))
	}
	sb.WriteString(fmt.Sprintf("- Created: %s\n\n", time.Now().Format("2006-01-02 15:04:05")))

	sb.WriteString("## Files\n\n")
	for format, name := range bookFiles {
		sb.WriteString(fmt.Sprintf("- `%s` (%s)\n", name, strings.ToUpper(format)))
	}
	sb.WriteString("\nThe `artifacts/` directory holds the full generated content, ")
	sb.WriteString("per-chapter text, images, and the configuration used for this run, ")
	sb.WriteString("so the generation can be reproduced.\n")

	sb.WriteString("\n## Contents\n\n")
	for i, ch := range bk.Chapters {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, ch.Title))
	}

	sb.WriteString("\n---\n\nGenerated with bookforge.\n")

	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write README: %w", err)
	}
	return nil
}

// safeName reduces a book title to a filesystem-safe directory prefix.
func safeName(title string) string {
	out := make([]rune, 0, len(title))
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r == ' ', r == '-', r == '_':
			out = append(out, '_')
		}
	}
	name := strings.Trim(string(out), "_")
	if len(name) > 40 {
		name = name[:40]
	}
	if name == "" {
		name = "book"
	}
	return name
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
