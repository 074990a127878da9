package scandoc_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanvanderbyl/scandoc"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scandoc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	config := scandoc.DefaultConfig()

	require.NoError(t, config.Validate())
	assert.Equal(t, "eng", config.OCR.Language)
	assert.Equal(t, 300, config.OCR.DPI)
	assert.True(t, config.Tables.Enabled)
	assert.Equal(t, "all", config.Tables.Method)
	assert.Equal(t, scandoc.DefaultAccuracyThreshold, config.Tables.AccuracyThreshold)
	assert.Zero(t, config.Tables.BackendTimeout)
	assert.Equal(t, time.Hour, config.Server.JobTTL)
	assert.False(t, config.EnableMetricsLogging)
}

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
ocr:
  language: eng+fra
  deskew: true
tables:
  method: tabula
  backend_timeout: 45s
  tabula_jar: /opt/tabula.jar
output:
  format: docx
  table_style: fancy
server:
  job_ttl: 30m
enable_metrics_logging: true
`)

	config, err := scandoc.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "eng+fra", config.OCR.Language)
	assert.True(t, config.OCR.Deskew)
	assert.Equal(t, 300, config.OCR.DPI, "unset keys keep their default")
	assert.Equal(t, "tabula", config.Tables.Method)
	assert.Equal(t, 45*time.Second, config.Tables.BackendTimeout)
	assert.Equal(t, "/opt/tabula.jar", config.Tables.TabulaJar)
	assert.Equal(t, "docx", config.Output.Format)
	assert.Equal(t, "fancy", config.Output.TableStyle)
	assert.Equal(t, 30*time.Minute, config.Server.JobTTL)
	assert.True(t, config.EnableMetricsLogging)
	assert.Equal(t, scandoc.DefaultTableSettings(), config.Tables.Settings)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := scandoc.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = scandoc.LoadConfig(writeConfig(t, "ocr: [not, a, map]"))
	assert.Error(t, err)

	_, err = scandoc.LoadConfig(writeConfig(t, "tables:\n  method: ouija\n"))
	assert.ErrorContains(t, err, "ouija")

	_, err = scandoc.LoadConfig(writeConfig(t, "output:\n  format: rtf\n"))
	assert.Error(t, err)

	_, err = scandoc.LoadConfig(writeConfig(t, "output:\n  export_format: ods\n"))
	assert.Error(t, err)

	_, err = scandoc.LoadConfig(writeConfig(t, "ocr:\n  dpi: -1\n"))
	assert.Error(t, err)
}
