package export

import (
	"fmt"
	"io"
	"strings"
)

// Format names a supported output format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// Dataset is a titled table. Rows are positional and padded or truncated to the headers.
type Dataset struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Exporter writes a dataset in one format.
type Exporter interface {
	Write(w io.Writer, data Dataset) error
	ContentType() string
	Extension() string
}

// New returns the exporter for format.
func New(format string) (Exporter, error) {
	switch Format(strings.ToLower(strings.TrimSpace(format))) {
	case FormatCSV, "":
		return NewCSVExporter(), nil
	case FormatPDF:
		return NewPDFExporter(), nil
	case FormatXLSX:
		return NewXLSXExporter(), nil
	}
	return nil, fmt.Errorf("unsupported export format %q", format)
}

func (d Dataset) validate() error {
	if len(d.Headers) == 0 {
		return fmt.Errorf("dataset requires at least one header")
	}
	return nil
}

func (d Dataset) cells(row []string) []string {
	out := make([]string, len(d.Headers))
	copy(out, row)
	return out
}
