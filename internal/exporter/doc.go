// Package exporter writes prepared datasets out as CSV or Excel workbooks.
//
// CSV output optionally starts with a UTF-8 BOM so spreadsheet tools detect
// the encoding. Cells are rendered with their display form, so the
// missing-value sentinel is written as "unknown".
//
// Example usage:
//
//	err := exporter.WriteCSV(w, result.Dataset, exporter.WriteOptions{BOMPrefix: true})
//
//	err = exporter.WriteFile("out/prepared.xlsx", result.Dataset, exporter.WriteOptions{})
package exporter
