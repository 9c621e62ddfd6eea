package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bookforge/bookforge/internal/book"
)

// packageDocument creates the content.opf package document.
func (b *epubBuilder) packageDocument() string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="pub-id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
`)

	sb.WriteString(fmt.Sprintf("    <dc:identifier id=\"pub-id\">%s</dc:identifier>\n", b.uuid))
	sb.WriteString(fmt.Sprintf("    <dc:title>%s</dc:title>\n", escapeXML(b.book.Metadata.Title)))
	sb.WriteString(fmt.Sprintf("    <dc:creator>%s</dc:creator>\n", escapeXML(b.book.Metadata.Author)))
	sb.WriteString(fmt.Sprintf("    <dc:language>%s</dc:language>\n", language(b.book)))
	if b.book.Metadata.Description != "" {
		sb.WriteString(fmt.Sprintf("    <dc:description>%s</dc:description>\n", escapeXML(b.book.Metadata.Description)))
	}
	if len(b.book.Cover) > 0 {
		sb.WriteString("    <meta name=\"cover\" content=\"cover-image\"/>\n")
	}

	// Modified timestamp (required for ePub 3)
	sb.WriteString(fmt.Sprintf("    <meta property=\"dcterms:modified\">%s</meta>\n",
		time.Now().UTC().Format("2006-01-02T15:04:05Z")))

	sb.WriteString("  </metadata>\n\n")

	// Manifest
	sb.WriteString("  <manifest>\n")
	sb.WriteString("    <item id=\"nav\" href=\"nav.xhtml\" media-type=\"application/xhtml+xml\" properties=\"nav\"/>\n")
	sb.WriteString("    <item id=\"ncx\" href=\"toc.ncx\" media-type=\"application/x-dtbncx+xml\"/>\n")
	sb.WriteString("    <item id=\"style\" href=\"styles/style.css\" media-type=\"text/css\"/>\n")
	sb.WriteString("    <item id=\"title\" href=\"chapters/title.xhtml\" media-type=\"application/xhtml+xml\"/>\n")
	if len(b.book.Cover) > 0 {
		sb.WriteString("    <item id=\"cover-image\" href=\"images/cover.png\" media-type=\"image/png\" properties=\"cover-image\"/>\n")
	}
	for _, ch := range b.book.Chapters {
		id := chapterID(ch.Index)
		sb.WriteString(fmt.Sprintf("    <item id=\"%s\" href=\"chapters/%s.xhtml\" media-type=\"application/xhtml+xml\"/>\n", id, id))
		if len(ch.Illustration) > 0 {
			sb.WriteString(fmt.Sprintf("    <item id=\"%s-img\" href=\"images/%s.png\" media-type=\"image/png\"/>\n", id, id))
		}
	}
	sb.WriteString("  </manifest>\n\n")

	// Spine (reading order)
	sb.WriteString("  <spine toc=\"ncx\">\n")
	sb.WriteString("    <itemref idref=\"title\"/>\n")
	for _, ch := range b.book.Chapters {
		sb.WriteString(fmt.Sprintf("    <itemref idref=\"%s\"/>\n", chapterID(ch.Index)))
	}
	sb.WriteString("  </spine>\n")

	sb.WriteString("</package>\n")

	return sb.String()
}

// navigation creates the nav.xhtml navigation document.
func (b *epubBuilder) navigation() string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head>
  <title>Table of Contents</title>
  <link rel="stylesheet" type="text/css" href="styles/style.css"/>
</head>
<body>
  <nav epub:type="toc" id="toc">
    <h1>Table of Contents</h1>
    <ol>
`)

	for _, ch := range b.book.Chapters {
		sb.WriteString(fmt.Sprintf("      <li><a href=\"chapters/%s.xhtml\">%s</a></li>\n",
			chapterID(ch.Index), escapeXML(ch.Title)))
	}

	sb.WriteString(`    </ol>
  </nav>
</body>
</html>
`)

	return sb.String()
}

// ncx creates the toc.ncx for ePub 2 compatibility.
func (b *epubBuilder) ncx() string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <head>
    <meta name="dtb:uid" content="`)
	sb.WriteString(b.uuid)
	sb.WriteString(`"/>
    <meta name="dtb:depth" content="1"/>
    <meta name="dtb:totalPageCount" content="0"/>
    <meta name="dtb:maxPageNumber" content="0"/>
  </head>
  <docTitle>
    <text>`)
	sb.WriteString(escapeXML(b.book.Metadata.Title))
	sb.WriteString(`</text>
  </docTitle>
  <navMap>
`)

	for i, ch := range b.book.Chapters {
		sb.WriteString(fmt.Sprintf("    <navPoint id=\"navpoint-%d\" playOrder=\"%d\">\n", i+1, i+1))
		sb.WriteString(fmt.Sprintf("      <navLabel><text>%s</text></navLabel>\n", escapeXML(ch.Title)))
		sb.WriteString(fmt.Sprintf("      <content src=\"chapters/%s.xhtml\"/>\n", chapterID(ch.Index)))
		sb.WriteString("    </navPoint>\n")
	}

	sb.WriteString(`  </navMap>
</ncx>
`)

	return sb.String()
}

// titlePage creates the opening XHTML page with title, author, and cover.
func (b *epubBuilder) titlePage() string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <title>`)
	sb.WriteString(escapeXML(b.book.Metadata.Title))
	sb.WriteString(`</title>
  <link rel="stylesheet" type="text/css" href="../styles/style.css"/>
</head>
<body>
  <div class="title-page">
`)
	sb.WriteString(fmt.Sprintf("    <h1>%s</h1>\n", escapeXML(b.book.Metadata.Title)))
	sb.WriteString(fmt.Sprintf("    <p>%s</p>\n", escapeXML(b.book.Metadata.Author)))
	if len(b.book.Cover) > 0 {
		sb.WriteString("    <img class=\"cover\" src=\"../images/cover.png\" alt=\"Cover\"/>\n")
	}
	if b.book.Metadata.Description != "" {
		sb.WriteString(fmt.Sprintf("    <p class=\"description\">%s</p>\n", escapeXML(b.book.Metadata.Description)))
	}
	sb.WriteString(`  </div>
</body>
</html>
`)

	return sb.String()
}

// chapterXHTML converts one chapter's text to XHTML.
func (b *epubBuilder) chapterXHTML(ch book.Chapter) string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <title>`)
	sb.WriteString(escapeXML(ch.Title))
	sb.WriteString(`</title>
  <link rel="stylesheet" type="text/css" href="../styles/style.css"/>
</head>
<body>
`)

	sb.WriteString(fmt.Sprintf("<h1>%s</h1>\n", escapeXML(ch.Title)))
	if len(ch.Illustration) > 0 {
		sb.WriteString(fmt.Sprintf("<img class=\"illustration\" src=\"../images/%s.png\" alt=\"\"/>\n", chapterID(ch.Index)))
	}
	for _, para := range splitParagraphs(ch.Content) {
		sb.WriteString(fmt.Sprintf("<p>%s</p>\n", escapeXML(para)))
	}

	sb.WriteString("</body>\n</html>\n")

	return sb.String()
}

// epubIdentifier generates a unique identifier for the epub.
func epubIdentifier() string {
	return "urn:uuid:" + uuid.New().String()
}

// escapeXML escapes special XML characters.
func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
