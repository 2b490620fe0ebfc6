package dataprocessing

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estadistica/internal/config"
)

func TestConsolidate(t *testing.T) {
	day1 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	file1 := writeFixture(t, [][]interface{}{
		{"Sección", "Examen", "Cant. Exámenes"},
		{"Hematología", "BIOMETRÍA HEMÁTICA", 3},
	})
	file2 := writeFixture(t, [][]interface{}{
		{"Sección", "Examen", "Cant. Exámenes"},
		{"Microbiología", "UROCULTIVO", 2},
	})

	// Files given out of order: consolidation sorts by date.
	files := []DatedFile{
		{Date: day2, Path: file2},
		{Date: day1, Path: file1},
	}

	tables, err := Consolidate(files, config.DefaultCategoryRules(), slog.Default())
	require.NoError(t, err)

	require.Len(t, tables.Raw, 2)
	assert.True(t, tables.Raw[0].Date.Equal(day1))
	assert.True(t, tables.Raw[1].Date.Equal(day2))

	require.Len(t, tables.Categorized, 2)
	assert.Equal(t, "Hematologico", tables.Categorized[0].Category)
	assert.Equal(t, 54.0, tables.Categorized[0].WeightedCount)
	assert.Equal(t, "Bacteriológico", tables.Categorized[1].Category)
	assert.Equal(t, 20.0, tables.Categorized[1].WeightedCount)

	// One category row plus a TOTAL row per date.
	assert.Len(t, tables.Summary, 4)
}

func TestConsolidate_SkipsMalformedFile(t *testing.T) {
	day1 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	good := writeFixture(t, [][]interface{}{
		{"Sección", "Examen", "Cant. Exámenes"},
		{"Hematología", "TP", 2},
	})
	bad := filepath.Join(t.TempDir(), "2024-03-02.xlsx")
	require.NoError(t, os.WriteFile(bad, []byte("corrupt"), 0o644))

	tables, err := Consolidate([]DatedFile{
		{Date: day1, Path: good},
		{Date: day2, Path: bad},
	}, config.DefaultCategoryRules(), slog.Default())
	require.NoError(t, err)
	assert.Len(t, tables.Raw, 1)
}

func TestConsolidate_AllFilesMalformed(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "2024-03-01.xlsx")
	require.NoError(t, os.WriteFile(bad, []byte("corrupt"), 0o644))

	_, err := Consolidate([]DatedFile{
		{Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Path: bad},
	}, config.DefaultCategoryRules(), slog.Default())
	assert.Error(t, err)
}

func TestScanDownloadDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"2024-03-02.xlsx",
		"2024-03-01.xlsx",
		"notes.txt",
		"2024-03-03.tmp",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "2024-03-04.xlsx"), 0o755))

	files, err := ScanDownloadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "2024-03-01", files[0].Date.Format("2006-01-02"))
	assert.Equal(t, "2024-03-02", files[1].Date.Format("2006-01-02"))
}

func TestScanDownloadDir_Missing(t *testing.T) {
	_, err := ScanDownloadDir(filepath.Join(t.TempDir(), "no-such-dir"))
	assert.Error(t, err)
}
