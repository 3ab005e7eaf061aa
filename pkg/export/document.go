package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// KeyValue is one labelled line in a document.
type KeyValue struct {
	Label string
	Value string
}

// DocumentSection is a titled block of labelled lines.
type DocumentSection struct {
	Title string
	Items []KeyValue
}

// Document is a form-shaped payload: a header block followed by sections
// and a closing declaration.
type Document struct {
	Title       string
	Subtitle    string
	Meta        []KeyValue
	Sections    []DocumentSection
	Declaration string
}

// DocumentRenderer renders a Document into a single-column PDF.
type DocumentRenderer struct{}

// NewDocumentRenderer constructs a document renderer.
func NewDocumentRenderer() *DocumentRenderer {
	return &DocumentRenderer{}
}

// Render produces the PDF bytes for a document.
func (r *DocumentRenderer) Render(doc Document) ([]byte, error) {
	if doc.Title == "" {
		return nil, fmt.Errorf("document requires a title")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 9, doc.Title, "", 1, "C", false, 0, "")
	if doc.Subtitle != "" {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, doc.Subtitle, "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 10)
	for _, item := range doc.Meta {
		r.line(pdf, item)
	}

	for _, section := range doc.Sections {
		pdf.Ln(3)
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 7, section.Title, "B", 1, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		for _, item := range section.Items {
			r.line(pdf, item)
		}
	}

	if doc.Declaration != "" {
		pdf.Ln(5)
		pdf.SetFont("Arial", "I", 9)
		pdf.MultiCell(0, 5, doc.Declaration, "", "", false)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render document pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *DocumentRenderer) line(pdf *gofpdf.Fpdf, item KeyValue) {
	pdf.CellFormat(70, 6, item.Label, "", 0, "", false, 0, "")
	pdf.MultiCell(0, 6, item.Value, "", "", false)
}
