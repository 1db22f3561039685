// Package pdftext extracts positioned text blocks from a PDF page using
// ledongthuc/pdf, the way the teacher's LedongthucDocument.ExtractText
// reads page.Content().Text. It is shared by the structure detector's
// label inference and the text-overlap filter, both of which need the
// same page-relative text geometry.
package pdftext

import (
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/docfields/hybriddetect/internal/pdferr"
)

// Block is one run of text with its bounding rectangle in raw PDF units
// (bottom-left origin, as ledongthuc/pdf reports it).
type Block struct {
	Text                           string
	XMin, YMin, XMax, YMax float64
}

// PageBlocks returns the text blocks and page dimensions (in PDF points)
// for pageIndex (0-based).
func PageBlocks(path string, pageIndex int) (blocks []Block, pageWidth, pageHeight float64, err error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, 0, 0, pdferr.Wrap(pdferr.KindInvalidInput, "open pdf for text extraction", err)
	}
	defer f.Close()

	pageNum := pageIndex + 1
	if pageNum < 1 || pageNum > reader.NumPage() {
		return nil, 0, 0, fmt.Errorf("page %d out of range (document has %d pages)", pageIndex, reader.NumPage())
	}

	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return nil, 0, 0, fmt.Errorf("page %d is null", pageIndex)
	}

	pageWidth, pageHeight = mediaBoxSize(page)

	content := page.Content()
	for _, t := range content.Text {
		height := t.FontSize
		if height == 0 {
			height = 12.0
		}
		blocks = append(blocks, Block{
			Text: t.S,
			XMin: t.X,
			YMin: t.Y,
			XMax: t.X + t.W,
			YMax: t.Y + height,
		})
	}
	return blocks, pageWidth, pageHeight, nil
}

// PageCount returns the number of pages in the PDF at path, for the
// worker's post-scan Document.page_count update.
func PageCount(path string) (int, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return 0, pdferr.Wrap(pdferr.KindInvalidInput, "open pdf for page count", err)
	}
	defer f.Close()
	return reader.NumPage(), nil
}

// mediaBoxSize reads the page's MediaBox, falling back to US Letter
// (612x792) when absent or malformed.
func mediaBoxSize(page pdf.Page) (width, height float64) {
	defer func() {
		if r := recover(); r != nil {
			width, height = 612, 792
		}
	}()

	mediaBox := page.V.Key("MediaBox")
	if mediaBox.IsNull() || mediaBox.Kind() != pdf.Array || mediaBox.Len() != 4 {
		return 612, 792
	}

	coords := make([]float64, 4)
	for i := 0; i < 4; i++ {
		v := mediaBox.Index(i)
		switch v.Kind() {
		case pdf.Integer:
			coords[i] = float64(v.Int64())
		case pdf.Real:
			coords[i] = v.Float64()
		default:
			return 612, 792
		}
	}
	w := coords[2] - coords[0]
	h := coords[3] - coords[1]
	if w <= 0 || h <= 0 {
		return 612, 792
	}
	return w, h
}
