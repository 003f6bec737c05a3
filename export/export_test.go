package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRows(n int) [][]string {
	rows := make([][]string, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, []string{fmt.Sprintf("Member %d", i), "meeting", "2026-03-01"})
	}
	return rows
}

func TestWriteCSVRowCountMatches(t *testing.T) {
	for _, n := range []int{0, 1, 25} {
		var buf bytes.Buffer
		header := []string{"Name", "Event", "Date"}

		written, err := WriteCSV(&buf, header, sampleRows(n))
		require.NoError(t, err)
		assert.Equal(t, n, written)

		records, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		assert.Len(t, records, n+1)
		assert.Equal(t, header, records[0])
	}
}

func TestWriteCSVQuotesFields(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteCSV(&buf, []string{"Name"}, [][]string{{"Doe, Jane"}})
	require.NoError(t, err)
	assert.Equal(t, "Name\n\"Doe, Jane\"\n", buf.String())
}

func TestWritePDFRowCountMatches(t *testing.T) {
	for _, n := range []int{0, 3, 120} {
		var buf bytes.Buffer
		written, err := WritePDF(&buf, "Attendance", []string{"Name", "Event", "Date"}, sampleRows(n))
		require.NoError(t, err)
		assert.Equal(t, n, written)
		assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	}
}

func TestWritePDFShortRows(t *testing.T) {
	var buf bytes.Buffer
	written, err := WritePDF(&buf, "Finance", []string{"A", "B"}, [][]string{{"only one"}, {}})
	require.NoError(t, err)
	assert.Equal(t, 2, written)
}

func TestWrite(t *testing.T) {
	table := Table{Title: "Members", Header: []string{"Name"}, Rows: sampleRows(4)}

	var buf bytes.Buffer
	n, err := Write(&buf, "CSV", table)
	assert.NoError(t, err)
	assert.Equal(t, 4, n)

	buf.Reset()
	n, err = Write(&buf, FormatPDF, table)
	assert.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = Write(&buf, "xlsx", table)
	assert.Error(t, err)
}

func TestClip(t *testing.T) {
	long := string(bytes.Repeat([]byte("x"), 100))
	assert.Len(t, clip(long), maxCellRune)
	assert.Equal(t, "short", clip("short"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentType(FormatPDF))
	assert.Contains(t, ContentType(FormatCSV), "text/csv")
}
