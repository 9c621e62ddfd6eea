package format

import (
	"encoding/base64"
	"fmt"
	"html/template"
	"os"

	"github.com/bookforge/bookforge/internal/book"
)

// htmlDocument is the single-file HTML rendition. Images are inlined as data
// URIs so the file is self-contained.
const htmlDocument = `<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8"/>
<title>{{.Book.Metadata.Title}}</title>
<style>
body { font-family: Georgia, "Times New Roman", serif; line-height: 1.6; max-width: 46em; margin: 2em auto; padding: 0 1em; text-align: justify; }
h1, h2 { font-family: "Helvetica Neue", Helvetica, Arial, sans-serif; text-align: left; }
h1 { font-size: 1.8em; border-bottom: 1px solid #ccc; padding-bottom: 0.3em; }
p { margin: 0.5em 0; }
img.cover { display: block; margin: 2em auto; max-width: 60%; }
img.illustration { display: block; margin: 1.5em auto; max-width: 50%; }
.description { font-style: italic; color: #444; }
.placeholder { color: #888; }
nav ol { line-height: 2; }
</style>
</head>
<body>
<h1>{{.Book.Metadata.Title}}</h1>
<p class="description">{{.Book.Metadata.Description}}</p>
<p>By {{.Book.Metadata.Author}}</p>
{{- if .CoverURI}}
<img class="cover" src="{{.CoverURI}}" alt="Cover"/>
{{- end}}
<nav>
<h2>Contents</h2>
<ol>
{{- range .Book.Chapters}}
<li><a href="#chapter-{{.Index}}">{{.Title}}</a></li>
{{- end}}
</ol>
</nav>
{{- range $i, $ch := .Book.Chapters}}
<section id="chapter-{{$ch.Index}}"{{if $ch.Placeholder}} class="placeholder"{{end}}>
<h2>{{$ch.Title}}</h2>
{{- with index $.Illustrations $i}}
<img class="illustration" src="{{.}}" alt=""/>
{{- end}}
{{- range paragraphs $ch.Content}}
<p>{{.}}</p>
{{- end}}
</section>
{{- end}}
</body>
</html>
`

var htmlTemplate = template.Must(
	template.New("book").Funcs(template.FuncMap{"paragraphs": splitParagraphs}).Parse(htmlDocument),
)

type htmlData struct {
	Book          *book.Book
	Lang          string
	CoverURI      template.URL
	Illustrations []template.URL
}

// renderHTML writes a self-contained HTML file.
func (f *Formatter) renderHTML(bk *book.Book, outputPath string) error {
	data := htmlData{
		Book:          bk,
		Lang:          language(bk),
		Illustrations: make([]template.URL, len(bk.Chapters)),
	}
	if len(bk.Cover) > 0 {
		data.CoverURI = dataURI(bk.Cover)
	}
	for i, ch := range bk.Chapters {
		if len(ch.Illustration) > 0 {
			data.Illustrations[i] = dataURI(ch.Illustration)
		}
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create HTML file: %w", err)
	}
	defer out.Close()

	if err := htmlTemplate.Execute(out, data); err != nil {
		return fmt.Errorf("failed to render HTML: %w", err)
	}
	return nil
}

func dataURI(png []byte) template.URL {
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
}

func language(bk *book.Book) string {
	if bk.Metadata.Language != "" {
		return bk.Metadata.Language
	}
	return "en"
}
