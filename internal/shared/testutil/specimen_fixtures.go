package testutil

import (
	"bytes"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

// SpecimenCSV is four specimens: two 0.0005 degrees apart at the origin, a
// third 0.004 degrees away and a distant outlier.
const SpecimenCSV = "species,lat,lon\n" +
	"oak,0,0\n" +
	"ash,0.0005,0.0005\n" +
	"oak,0.004,0.004\n" +
	"elm,10,10\n"

// SpecimenCSVLong is SpecimenCSV with the longitude column named "long".
const SpecimenCSVLong = "species,lat,long\n" +
	"oak,0,0\n" +
	"ash,0.0005,0.0005\n" +
	"oak,0.004,0.004\n" +
	"elm,10,10\n"

// RandomSpecimenCSV returns n specimens scattered over a small area so that
// neighborhoods overlap. The output is deterministic for a seed.
func RandomSpecimenCSV(n int, seed int64) string {
	rng := rand.New(rand.NewSource(seed))
	species := []string{"oak", "ash", "elm", "pine", "birch"}

	var b strings.Builder
	b.WriteString("species,lat,lon\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%s,%.6f,%.6f\n",
			species[rng.Intn(len(species))],
			rng.Float64()*0.02,
			rng.Float64()*0.02)
	}
	return b.String()
}

// SpecimenWorkbook returns SpecimenCSV as an xlsx workbook.
func SpecimenWorkbook(t *testing.T) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"species", "lat", "lon"},
		{"oak", 0, 0},
		{"ash", 0.0005, 0.0005},
		{"oak", 0.004, 0.004},
		{"elm", 10, 10},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}
