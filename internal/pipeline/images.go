package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"time"

	"github.com/bookforge/bookforge/internal/book"
	"github.com/bookforge/bookforge/internal/metrics"
	"github.com/bookforge/bookforge/internal/prompts"
	"github.com/bookforge/bookforge/internal/providers"
)

// generateImages renders the cover and per-chapter illustrations. Image
// failures never abort the book: a failed render degrades to a placeholder.
func (p *Pipeline) generateImages(ctx context.Context, bk *book.Book) {
	if p.images == nil {
		return
	}

	coverPrompt, err := prompts.Cover(bk.Metadata.Title, bk.Metadata.Description)
	if err == nil {
		bk.Cover = p.renderImage(ctx, "cover", coverPrompt)
	} else {
		p.logger.Warn("failed to render cover prompt", "error", err)
	}

	for i := range bk.Chapters {
		ch := &bk.Chapters[i]
		if ch.Placeholder {
			continue
		}
		prompt, err := prompts.Illustration(bk.Metadata.Title, ch.Title, truncate(ch.Content, 300))
		if err != nil {
			p.logger.Warn("failed to render illustration prompt", "chapter", ch.Index, "error", err)
			continue
		}
		ch.Illustration = p.renderImage(ctx, "images", prompt)
	}
}

// renderImage makes one image call and falls back to a placeholder on failure.
func (p *Pipeline) renderImage(ctx context.Context, stage, prompt string) []byte {
	start := time.Now()
	result, err := p.images.GenerateImage(ctx, &providers.ImageRequest{Prompt: prompt})

	m := metrics.Metric{Stage: stage, Provider: p.images.Name(), Duration: time.Since(start), Attempts: 1}
	if err != nil {
		m.ErrorType = string(providers.KindOf(err))
		p.recorder.Record(m)
		p.logger.Warn("image generation failed, using placeholder", "stage", stage, "error", err)
		return placeholderPNG()
	}

	m.Success = true
	m.Model = result.ModelUsed
	p.recorder.Record(m)
	return result.Data
}

// placeholderPNG produces a plain gray image used when generation fails.
func placeholderPNG() []byte {
	const w, h = 512, 512
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	gray := color.RGBA{R: 0xcc, G: 0xcc, B: 0xcc, A: 0xff}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, gray)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}
