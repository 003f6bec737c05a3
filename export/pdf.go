package export

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"
)

const (
	pageWidth   = 277.0 // A4 landscape minus margins, in mm
	rowHeight   = 7.0
	headerFill  = 230
	maxCellRune = 48
)

// WritePDF renders a landscape table with a title line. The header is repeated on
// every page. The returned count excludes the header.
func WritePDF(w io.Writer, title string, header []string, rows [][]string) (int, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	colWidth := pageWidth
	if len(header) > 0 {
		colWidth = pageWidth / float64(len(header))
	}

	writeHeader := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(headerFill, headerFill, headerFill)
		for _, h := range header {
			pdf.CellFormat(colWidth, rowHeight, tr(clip(h)), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
	}

	pdf.SetHeaderFunc(func() {
		if pdf.PageNo() > 1 {
			writeHeader()
		}
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(0, 5, "Generated "+time.Now().UTC().Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.Ln(2)
	writeHeader()

	n := 0
	for _, row := range rows {
		for i := range header {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			pdf.CellFormat(colWidth, rowHeight, tr(clip(cell)), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
		n++
	}

	if err := pdf.Output(w); err != nil {
		return 0, fmt.Errorf("failed to render pdf: %w", err)
	}
	return n, nil
}

// clip keeps long values inside their cell
func clip(s string) string {
	r := []rune(s)
	if len(r) <= maxCellRune {
		return s
	}
	return string(r[:maxCellRune-3]) + "..."
}
