// Package export renders the preparation summary of a document, listing its
// recipients, their placed fields and the preparation history.
package export

import "errors"

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
)

// ParseFormat defaults an empty value to PDF.
func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case "", FormatPDF:
		return FormatPDF, nil
	case FormatHTML:
		return FormatHTML, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates no headless Chromium is installed.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	ErrUnsupportedFormat    = errors.New("unsupported export format")
)
