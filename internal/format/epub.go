package format

import (
	"archive/zip"
	"fmt"
	"io"
	"os"

	"github.com/bookforge/bookforge/internal/book"
)

// renderEPUB writes an ePub 3.0 file.
func (f *Formatter) renderEPUB(bk *book.Book, outputPath string) error {
	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create EPUB file: %w", err)
	}
	defer out.Close()

	b := newEpubBuilder(bk)
	if err := b.writeTo(out); err != nil {
		return fmt.Errorf("failed to write EPUB: %w", err)
	}
	return nil
}

// epubBuilder assembles the ePub container for one book.
type epubBuilder struct {
	book *book.Book
	uuid string
}

func newEpubBuilder(bk *book.Book) *epubBuilder {
	return &epubBuilder{book: bk, uuid: epubIdentifier()}
}

// writeTo writes the complete ePub archive. The mimetype entry must come
// first and be stored uncompressed.
func (b *epubBuilder) writeTo(w io.Writer) error {
	zw := zip.NewWriter(w)
	defer zw.Close()

	if err := b.writeMimetype(zw); err != nil {
		return err
	}
	if err := writeEntry(zw, "META-INF/container.xml", containerXML); err != nil {
		return err
	}
	if err := writeEntry(zw, "OEBPS/content.opf", b.packageDocument()); err != nil {
		return err
	}
	if err := writeEntry(zw, "OEBPS/nav.xhtml", b.navigation()); err != nil {
		return err
	}
	if err := writeEntry(zw, "OEBPS/toc.ncx", b.ncx()); err != nil {
		return err
	}
	if err := writeEntry(zw, "OEBPS/styles/style.css", epubStylesheet); err != nil {
		return err
	}
	if err := writeEntry(zw, "OEBPS/chapters/title.xhtml", b.titlePage()); err != nil {
		return err
	}

	if len(b.book.Cover) > 0 {
		if err := writeBinaryEntry(zw, "OEBPS/images/cover.png", b.book.Cover); err != nil {
			return err
		}
	}

	for _, ch := range b.book.Chapters {
		name := fmt.Sprintf("OEBPS/chapters/%s.xhtml", chapterID(ch.Index))
		if err := writeEntry(zw, name, b.chapterXHTML(ch)); err != nil {
			return fmt.Errorf("failed to write chapter %d: %w", ch.Index, err)
		}
		if len(ch.Illustration) > 0 {
			img := fmt.Sprintf("OEBPS/images/%s.png", chapterID(ch.Index))
			if err := writeBinaryEntry(zw, img, ch.Illustration); err != nil {
				return err
			}
		}
	}

	return nil
}

func (b *epubBuilder) writeMimetype(zw *zip.Writer) error {
	header := &zip.FileHeader{
		Name:   "mimetype",
		Method: zip.Store,
	}
	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create mimetype: %w", err)
	}
	_, err = w.Write([]byte("application/epub+zip"))
	return err
}

func writeEntry(zw *zip.Writer, name, content string) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	_, err = w.Write([]byte(content))
	return err
}

func writeBinaryEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}

func chapterID(index int) string {
	return fmt.Sprintf("ch_%03d", index+1)
}

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const epubStylesheet = `/* Bookforge ePub Stylesheet */

body {
  font-family: Georgia, "Times New Roman", serif;
  font-size: 1em;
  line-height: 1.6;
  margin: 1em;
  text-align: justify;
}

h1, h2 {
  font-family: "Helvetica Neue", Helvetica, Arial, sans-serif;
  font-weight: bold;
  margin-top: 1.5em;
  margin-bottom: 0.5em;
  text-align: left;
}

h1 {
  font-size: 1.8em;
  border-bottom: 1px solid #ccc;
  padding-bottom: 0.3em;
}

p {
  margin: 0.5em 0;
  text-indent: 1.5em;
}

p:first-of-type,
h1 + p, h2 + p {
  text-indent: 0;
}

img.cover {
  display: block;
  margin: 2em auto;
  max-width: 90%;
}

img.illustration {
  display: block;
  margin: 1.5em auto;
  max-width: 70%;
}

.title-page {
  text-align: center;
  margin-top: 4em;
}

.description {
  font-style: italic;
}
`
