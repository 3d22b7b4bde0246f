package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"geodash/pkg/contracts/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteOptions configures export behavior
type WriteOptions struct {
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
	SheetName string
	Logger    *slog.Logger // nil uses slog.Default
}

// WriteCSV writes ds with a header row in schema order
func WriteCSV(w io.Writer, ds *domain.Dataset, options WriteOptions) error {
	stream, err := NewStreamWriter(w, ds.Fields(), options.BOMPrefix)
	if err != nil {
		return err
	}

	record := make([]string, ds.Schema().Len())
	for i := 0; i < ds.Len(); i++ {
		for c, v := range ds.Record(i).Values() {
			record[c] = v.String()
		}
		if err := stream.WriteRecord(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	return stream.Flush()
}

// WriteFile writes ds to filePath, choosing CSV or an Excel workbook from the
// file extension. Missing directories are created.
func WriteFile(filePath string, ds *domain.Dataset, options WriteOptions) error {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Writing dataset file",
		slog.String("file_path", filePath),
		slog.Int("record_count", ds.Len()))

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".xlsx":
		err = WriteWorkbook(file, ds, options)
	default:
		err = WriteCSV(file, ds, options)
	}
	if err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// StreamWriter provides streaming CSV writing for large datasets
type StreamWriter struct {
	writer *csv.Writer
}

// NewStreamWriter starts a CSV stream on w, writing the BOM and headers
// when given.
func NewStreamWriter(w io.Writer, headers []string, bom bool) (*StreamWriter, error) {
	if bom {
		if _, err := w.Write(utf8BOM); err != nil {
			return nil, fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			return nil, fmt.Errorf("failed to write headers: %w", err)
		}
	}

	return &StreamWriter{writer: writer}, nil
}

// WriteRecord writes a single record to the stream
func (s *StreamWriter) WriteRecord(record []string) error {
	return s.writer.Write(record)
}

// Flush writes buffered records and reports any write error
func (s *StreamWriter) Flush() error {
	s.writer.Flush()
	return s.writer.Error()
}
