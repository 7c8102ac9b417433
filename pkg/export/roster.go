package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Format selects the rendering backend for a roster export.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ParseFormat validates a user-supplied format string, defaulting to CSV.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(FormatCSV):
		return FormatCSV, nil
	case string(FormatPDF):
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// ContentType returns the MIME type for download responses.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/csv"
}

// Roster is the tabular content of a faculty or student export.
type Roster struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Render produces the roster in the requested format.
func Render(format Format, roster Roster) ([]byte, error) {
	if len(roster.Headers) == 0 {
		return nil, fmt.Errorf("roster export requires at least one column")
	}
	if format == FormatPDF {
		return renderPDF(roster)
	}
	return renderCSV(roster)
}

func renderCSV(roster Roster) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(roster.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range roster.Rows {
		record := make([]string, len(roster.Headers))
		copy(record, row)
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func renderPDF(roster Roster) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if roster.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(roster.Title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	colWidth := 190.0 / float64(len(roster.Headers))

	pdf.SetFont("Arial", "B", 10)
	for _, header := range roster.Headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range roster.Rows {
		for i := range roster.Headers {
			value := ""
			if i < len(row) {
				value = row[i]
			}
			pdf.CellFormat(colWidth, 7, value, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
