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
	dir := filepath.Join(t.TempDir(), "scans")
	t.Setenv("SCANNER_IP", "192.168.1.20")
	t.Setenv("SCAN_DIR", dir)

	conf, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.20", conf.ScannerIP)
	assert.Equal(t, "300", conf.DPI)
	assert.Equal(t, "pdf", conf.Format)
	assert.Equal(t, "scanimage", conf.Driver)
	assert.Equal(t, "scanimage", conf.ScanCommand)
	assert.Equal(t, 2*time.Minute, conf.ScanTimeout)
	assert.Equal(t, 8080, conf.Port)
	assert.Equal(t, "0.0.0.0", conf.BindAddress)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLoad_MissingScannerIP(t *testing.T) {
	t.Setenv("SCANNER_IP", "")
	os.Unsetenv("SCANNER_IP")
	t.Setenv("SCAN_DIR", t.TempDir())

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidFormat(t *testing.T) {
	t.Setenv("SCANNER_IP", "192.168.1.20")
	t.Setenv("SCAN_DIR", t.TempDir())
	t.Setenv("SCAN_FORMAT", "gif")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_FormatIsCaseInsensitive(t *testing.T) {
	t.Setenv("SCANNER_IP", "192.168.1.20")
	t.Setenv("SCAN_DIR", t.TempDir())
	t.Setenv("SCAN_FORMAT", "PDF")

	conf, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "pdf", conf.Format)
}

func TestLoad_EpsonScan2NeedsTemplate(t *testing.T) {
	t.Setenv("SCANNER_IP", "192.168.1.20")
	t.Setenv("SCAN_DIR", t.TempDir())
	t.Setenv("SCAN_DRIVER", "epsonscan2")
	t.Setenv("SCAN_CONFIG_TEMPLATE", filepath.Join(t.TempDir(), "missing.SF2"))

	_, err := Load()
	assert.Error(t, err)

	template := filepath.Join(t.TempDir(), "scan_config.SF2")
	require.NoError(t, os.WriteFile(template, []byte("PREFIX"), 0o644))
	t.Setenv("SCAN_CONFIG_TEMPLATE", template)
	conf, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "epsonscan2", conf.ScanCommand)
}

func TestEnsureDir(t *testing.T) {
	base := t.TempDir()

	// missing dir gets created
	dir := filepath.Join(base, "scans")
	assert.NoError(t, EnsureDir(dir))
	assert.DirExists(t, dir)
	// existing dir is fine
	assert.NoError(t, EnsureDir(dir))

	// a file in the way is fatal
	file := filepath.Join(base, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	assert.Error(t, EnsureDir(file))
}
