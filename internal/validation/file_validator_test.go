package validation

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geodash/internal/dataprocessing"
	"geodash/internal/shared/testutil"
)

func TestFileValidator_ValidateInputFile(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "specimens.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(testutil.SpecimenCSV), 0644))
	jsonPath := filepath.Join(dir, "specimens.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte("{}"), 0644))

	tests := []struct {
		name        string
		path        string
		maxBytes    int64
		expectError bool
		unsupported bool
	}{
		{name: "valid csv", path: csvPath},
		{name: "within limit", path: csvPath, maxBytes: 1 << 20},
		{name: "over limit", path: csvPath, maxBytes: 10, expectError: true},
		{name: "missing file", path: filepath.Join(dir, "missing.csv"), expectError: true},
		{name: "directory", path: dir, expectError: true},
		{name: "unsupported format", path: jsonPath, expectError: true, unsupported: true},
	}

	logger, _ := testutil.NewTestLogger(t)
	v := NewFileValidator(logger)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateInputFile(tt.path, tt.maxBytes)
			if !tt.expectError {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var pErr *dataprocessing.PipelineError
			assert.Equal(t, tt.unsupported, errors.As(err, &pErr))
		})
	}
}

func TestFileValidator_ValidateOutputFile(t *testing.T) {
	dir := t.TempDir()
	v := NewFileValidator(nil)

	tests := []struct {
		name        string
		path        string
		expectError bool
	}{
		{name: "csv", path: filepath.Join(dir, "out.csv")},
		{name: "xlsx in new directory", path: filepath.Join(dir, "nested", "out.XLSX")},
		{name: "unsupported extension", path: filepath.Join(dir, "out.json"), expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateOutputFile(tt.path)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.DirExists(t, filepath.Dir(tt.path))
		})
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".write_test")
	}
}
