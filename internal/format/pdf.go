package format

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/bookforge/bookforge/internal/book"
)

// renderPDF writes an A4 PDF with a cover page, table of contents, and one
// section per chapter, then validates the result with pdfcpu.
func (f *Formatter) renderPDF(bk *book.Book, outputPath string) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(bk.Metadata.Title, true)
	pdf.SetAuthor(bk.Metadata.Author, true)

	// Running header and page footer, skipped on the cover page.
	pdf.SetHeaderFuncMode(func() {
		if pdf.PageNo() == 1 {
			return
		}
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, tr(truncateTitle(bk.Metadata.Title, 50)), "", 0, "L", false, 0, "")
		pdf.Ln(15)
	}, true)
	pdf.SetFooterFunc(func() {
		if pdf.PageNo() == 1 {
			return
		}
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()-1), "", 0, "C", false, 0, "")
	})

	f.pdfCoverPage(pdf, tr, bk)
	f.pdfContentsPage(pdf, tr, bk)

	for _, ch := range bk.Chapters {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 18)
		pdf.SetTextColor(0, 0, 0)
		pdf.MultiCell(0, 10, tr(ch.Title), "", "L", false)
		pdf.Ln(4)

		if len(ch.Illustration) > 0 {
			f.pdfImage(pdf, fmt.Sprintf("illustration-%d", ch.Index), ch.Illustration, 60)
			pdf.Ln(4)
		}

		pdf.SetFont("Times", "", 12)
		for _, para := range splitParagraphs(ch.Content) {
			pdf.MultiCell(0, 6, tr(para), "", "J", false)
			pdf.Ln(2)
		}
	}

	if err := pdf.OutputFileAndClose(outputPath); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}

	if err := api.ValidateFile(outputPath, nil); err != nil {
		return fmt.Errorf("generated PDF failed validation: %w", err)
	}
	return nil
}

func (f *Formatter) pdfCoverPage(pdf *fpdf.Fpdf, tr func(string) string, bk *book.Book) {
	pdf.AddPage()
	pdf.Ln(40)
	pdf.SetFont("Helvetica", "B", 28)
	pdf.MultiCell(0, 14, tr(bk.Metadata.Title), "", "C", false)
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 14)
	pdf.CellFormat(0, 10, tr(bk.Metadata.Author), "", 1, "C", false, 0, "")

	if len(bk.Cover) > 0 {
		pdf.Ln(10)
		f.pdfImage(pdf, "cover", bk.Cover, 120)
	}
}

func (f *Formatter) pdfContentsPage(pdf *fpdf.Fpdf, tr func(string) string, bk *book.Book) {
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, "Contents", "", 1, "L", false, 0, "")
	pdf.Ln(4)
	pdf.SetFont("Times", "", 12)
	for i, ch := range bk.Chapters {
		pdf.CellFormat(0, 8, tr(fmt.Sprintf("%d. %s", i+1, ch.Title)), "", 1, "L", false, 0, "")
	}
}

// pdfImage registers PNG bytes and draws them centered at the given width.
func (f *Formatter) pdfImage(pdf *fpdf.Fpdf, name string, data []byte, width float64) {
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	info := pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	if info == nil || pdf.Err() {
		// A bad image never fails the book; clear the error and move on.
		f.logger.Warn("skipping unrenderable image", "name", name, "error", pdf.Error())
		pdf.ClearError()
		return
	}

	pageW, _ := pdf.GetPageSize()
	x := (pageW - width) / 2
	pdf.ImageOptions(name, x, pdf.GetY(), width, 0, true, opts, 0, "")
}

func truncateTitle(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
