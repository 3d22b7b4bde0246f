package dataprocessing

import (
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"geodash/pkg/contracts/domain"
)

// Format is an upload file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// naValues are cell texts read as missing, matching common dataframe readers.
var naValues = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// DetectFormat picks a decoder from the upload file name.
func DetectFormat(filename string) (Format, error) {
	name := strings.ToLower(filename)
	switch {
	case strings.Contains(name, "csv"):
		return FormatCSV, nil
	case strings.Contains(name, "xls"):
		return FormatXLSX, nil
	default:
		return "", UnsupportedFormatError(filename)
	}
}

// Decode turns uploaded bytes into a raw table using the format implied by
// filename.
func Decode(filename string, data []byte) (*domain.Table, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatCSV:
		return DecodeCSV(data)
	default:
		return DecodeWorkbook(data)
	}
}

// DecodeDataURL extracts the payload of a browser upload of the form
// "data:<mime>;base64,<payload>".
func DecodeDataURL(contents string) ([]byte, error) {
	_, payload, ok := strings.Cut(contents, ",")
	if !ok {
		return nil, DecodeError("upload contents are not a data URL", nil)
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, DecodeError("upload payload is not valid base64", err)
	}
	return data, nil
}

// DecodeCSV reads UTF-8 CSV with a header row.
func DecodeCSV(data []byte) (*domain.Table, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return nil, DecodeError("file is not UTF-8 encoded", ErrInvalidEncoding)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = false

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, DecodeError("file has no header row", nil)
	}
	if err != nil {
		return nil, DecodeError("malformed CSV header", err)
	}

	var records [][]string
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, DecodeError("malformed CSV", err)
		}
		records = append(records, rec)
	}

	return buildTable(header, records)
}

// DecodeWorkbook reads the first worksheet of an Excel workbook. The first
// non-empty row is the header.
func DecodeWorkbook(data []byte) (*domain.Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, DecodeError("file is not a readable workbook", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, DecodeError("workbook has no sheets", nil)
	}

	// Raw values keep coordinates free of display formatting.
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, DecodeError(fmt.Sprintf("cannot read sheet %q", sheets[0]), err)
	}

	for i, row := range rows {
		if !blankRow(row) {
			return buildTable(row, rows[i+1:])
		}
	}
	return nil, DecodeError("file has no header row", nil)
}

// buildTable normalizes the header, pads rows and infers a type per column:
// a column whose present cells all parse as numbers holds Numbers, any
// other column holds Text.
func buildTable(header []string, records [][]string) (*domain.Table, error) {
	columns := normalizeHeader(header)

	cells := make([][]string, 0, len(records))
	for i, rec := range records {
		if blankRow(rec) {
			continue
		}
		if len(rec) > len(columns) {
			return nil, DecodeError(fmt.Sprintf("row %d has %d cells, header has %d", i+2, len(rec), len(columns)), nil)
		}
		cells = append(cells, rec)
	}

	numeric := make([]bool, len(columns))
	for c := range columns {
		numeric[c] = true
		for _, rec := range cells {
			if c >= len(rec) || isNA(rec[c]) {
				continue
			}
			if _, err := strconv.ParseFloat(strings.TrimSpace(rec[c]), 64); err != nil {
				numeric[c] = false
				break
			}
		}
	}

	rows := make([][]domain.Value, len(cells))
	for r, rec := range cells {
		row := make([]domain.Value, len(columns))
		for c := range columns {
			if c >= len(rec) || isNA(rec[c]) {
				row[c] = domain.Null()
				continue
			}
			if numeric[c] {
				f, _ := strconv.ParseFloat(strings.TrimSpace(rec[c]), 64)
				row[c] = domain.Number(f)
				continue
			}
			row[c] = domain.Text(rec[c])
		}
		rows[r] = row
	}

	return &domain.Table{Columns: columns, Rows: rows}, nil
}

// normalizeHeader trims names, names blank columns "Unnamed: <i>" and
// suffixes repeated names with ".1", ".2" and so on.
func normalizeHeader(header []string) []string {
	columns := make([]string, len(header))
	used := make(map[string]bool, len(header))
	repeats := make(map[string]int)
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		candidate := name
		for used[candidate] {
			repeats[name]++
			candidate = fmt.Sprintf("%s.%d", name, repeats[name])
		}
		used[candidate] = true
		columns[i] = candidate
	}
	return columns
}

func isNA(cell string) bool {
	_, ok := naValues[strings.TrimSpace(cell)]
	return ok
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
