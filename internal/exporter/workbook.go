package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"geodash/pkg/contracts/domain"
)

const defaultSheet = "Sheet1"

// WriteWorkbook writes ds as a single-sheet Excel workbook. Numbers are
// stored as numeric cells, everything else as text.
func WriteWorkbook(w io.Writer, ds *domain.Dataset, options WriteOptions) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := defaultSheet
	if options.SheetName != "" && options.SheetName != defaultSheet {
		if err := f.SetSheetName(defaultSheet, options.SheetName); err != nil {
			return fmt.Errorf("failed to name sheet: %w", err)
		}
		sheet = options.SheetName
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to open sheet stream: %w", err)
	}

	fields := ds.Fields()
	header := make([]interface{}, len(fields))
	for i, name := range fields {
		header[i] = name
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	row := make([]interface{}, len(fields))
	for i := 0; i < ds.Len(); i++ {
		for c, v := range ds.Record(i).Values() {
			row[c] = cellValue(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func cellValue(v domain.Value) interface{} {
	if f, ok := v.Float(); ok {
		return f
	}
	if v.IsNull() {
		return nil
	}
	return v.String()
}
