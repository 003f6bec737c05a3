// Package export renders tabular reports as CSV or PDF.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Formats accepted by Write
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

// Table is a titled report with a header row and data rows
type Table struct {
	Title  string
	Header []string
	Rows   [][]string
}

// ContentType returns the MIME type for a format
func ContentType(format string) string {
	if format == FormatPDF {
		return "application/pdf"
	}
	return "text/csv; charset=utf-8"
}

// Write renders t in the requested format and returns the number of data rows written
func Write(w io.Writer, format string, t Table) (int, error) {
	switch strings.ToLower(format) {
	case "", FormatCSV:
		return WriteCSV(w, t.Header, t.Rows)
	case FormatPDF:
		return WritePDF(w, t.Title, t.Header, t.Rows)
	}
	return 0, fmt.Errorf("unsupported export format %q", format)
}

// WriteCSV writes the header followed by every row. The returned count excludes the header.
func WriteCSV(w io.Writer, header []string, rows [][]string) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return 0, fmt.Errorf("failed to write csv header: %w", err)
	}
	n := 0
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return n, fmt.Errorf("failed to write csv row %d: %w", n, err)
		}
		n++
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return n, fmt.Errorf("failed to flush csv: %w", err)
	}
	return n, nil
}
