// Package prompts holds the embedded prompt templates for each generation
// stage and small builders that render them.
package prompts

import (
	"bytes"
	_ "embed"
	"text/template"
)

//go:embed title.tmpl
var titleTmpl string

//go:embed description.tmpl
var descriptionTmpl string

//go:embed outline.tmpl
var outlineTmpl string

//go:embed chapter.tmpl
var chapterTmpl string

//go:embed cover.tmpl
var coverTmpl string

//go:embed illustration.tmpl
var illustrationTmpl string

var (
	titleTemplate        = template.Must(template.New("title").Parse(titleTmpl))
	descriptionTemplate  = template.Must(template.New("description").Parse(descriptionTmpl))
	outlineTemplate      = template.Must(template.New("outline").Parse(outlineTmpl))
	chapterTemplate      = template.Must(template.New("chapter").Parse(chapterTmpl))
	coverTemplate        = template.Must(template.New("cover").Parse(coverTmpl))
	illustrationTemplate = template.Must(template.New("illustration").Parse(illustrationTmpl))
)

// AuthorSystem is the system prompt shared by the text generation stages.
const AuthorSystem = "You are a professional book author. You write clear, engaging prose and follow instructions exactly."

// ChapterData fills the chapter prompt.
type ChapterData struct {
	BookTitle      string
	ChapterNumber  int
	ChapterCount   int
	ChapterTitle   string
	ChapterSummary string
	SectionContent string
}

// OutlineData fills the outline prompt.
type OutlineData struct {
	Title        string
	ChapterCount int
	Content      string
}

// MetadataData fills the title and description prompts.
type MetadataData struct {
	Title   string
	Content string
}

// ImageData fills the cover and illustration prompts.
type ImageData struct {
	Title          string
	Description    string
	BookTitle      string
	ChapterTitle   string
	ChapterSummary string
}

// Title renders the book title prompt.
func Title(content string) (string, error) {
	return render(titleTemplate, MetadataData{Content: content})
}

// Description renders the book description prompt.
func Description(title, content string) (string, error) {
	return render(descriptionTemplate, MetadataData{Title: title, Content: content})
}

// Outline renders the chapter outline prompt.
func Outline(data OutlineData) (string, error) {
	return render(outlineTemplate, data)
}

// Chapter renders the chapter generation prompt.
func Chapter(data ChapterData) (string, error) {
	return render(chapterTemplate, data)
}

// Cover renders the cover image prompt.
func Cover(title, description string) (string, error) {
	return render(coverTemplate, ImageData{Title: title, Description: description})
}

// Illustration renders a chapter illustration prompt.
func Illustration(bookTitle, chapterTitle, chapterSummary string) (string, error) {
	return render(illustrationTemplate, ImageData{
		BookTitle:      bookTitle,
		ChapterTitle:   chapterTitle,
		ChapterSummary: chapterSummary,
	})
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
