package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

type Format string

const (
	FormatCSV     Format = "csv"
	FormatGeoJSON Format = "geojson"
	FormatXLSX    Format = "xlsx"
)

var ErrUnknownFormat = errors.New("format must be csv, geojson or xlsx")

// ParseFormat accepts a format name case-insensitively; empty means geojson.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatGeoJSON, nil
	case FormatCSV, FormatGeoJSON, FormatXLSX:
		return f, nil
	case "json":
		return FormatGeoJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ParseCSV reads every record of a UTF-8 CSV document. A leading byte order
// mark is dropped and invalid byte sequences are replaced with U+FFFD.
func ParseCSV(r io.Reader) ([][]string, error) {
	dec := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(dec)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

// ParseXLSX reads the rows of the first worksheet as text.
func ParseXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}
