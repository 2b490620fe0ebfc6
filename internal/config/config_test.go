package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://hjmvi.orion-labs.com/informes/estadisticos", cfg.General.URL)
	assert.Equal(t, 2*time.Second, cfg.General.WaitBetween)
	assert.Equal(t, 5*time.Second, cfg.General.PageLoadTimeout)
	assert.Equal(t, 15*time.Second, cfg.General.DownloadTimeout)
	assert.Equal(t, 3, cfg.General.RetryAttempts)
	assert.False(t, cfg.General.Headless)

	assert.Equal(t, "agrupar-por", cfg.Report.GroupingSelectID)
	assert.Equal(t, "SECCION_TIPO_ATENCION", cfg.Report.GroupingValue)
	assert.Equal(t, "fecha-orden-desde", cfg.Report.DateFromID)
	assert.Equal(t, "fecha-orden-hasta", cfg.Report.DateToID)

	assert.Equal(t, "ExcelsDescargados", cfg.Files.DownloadDir)
	assert.Equal(t, "Estadistica Hospital.xlsx", cfg.Files.OutputPath)
	assert.Equal(t, "config_examenes.json", cfg.Files.RulesPath)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
general:
  url: https://portal.example.com/informes
  wait_between: 5s
  retry_attempts: 2
files:
  download_dir: descargas
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://portal.example.com/informes", cfg.General.URL)
	assert.Equal(t, 5*time.Second, cfg.General.WaitBetween)
	assert.Equal(t, 2, cfg.General.RetryAttempts)
	assert.Equal(t, "descargas", cfg.Files.DownloadDir)
	// untouched fields keep their defaults
	assert.Equal(t, 15*time.Second, cfg.General.DownloadTimeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("general:\n  retry_attempts: 2\n"), 0o644))
	t.Setenv("ESTADISTICA_GENERAL_RETRY_ATTEMPTS", "5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.General.RetryAttempts)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.General.RetryAttempts)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "malformed yaml",
			content: "general: [not a map",
		},
		{
			name:    "retry attempts out of range",
			content: "general:\n  retry_attempts: 99\n",
		},
		{
			name:    "url not a url",
			content: "general:\n  url: not-a-url\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestDownloadPath(t *testing.T) {
	cfg := &Config{Files: FilesConfig{DownloadDir: "descargas"}}
	date := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, filepath.Join("descargas", "2024-03-07.xlsx"), cfg.DownloadPath(date))
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := &Config{
		Files:   FilesConfig{DownloadDir: filepath.Join(base, "descargas")},
		Logging: LoggingConfig{FilePath: filepath.Join(base, "logs", "run.log")},
	}
	require.NoError(t, cfg.EnsureDirectories())

	for _, dir := range []string{cfg.Files.DownloadDir, filepath.Dir(cfg.Logging.FilePath)} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
