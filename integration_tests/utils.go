package integrationtests

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"scanserver/internal/config"
	"scanserver/internal/middleware"
	"scanserver/internal/scanner"
	"scanserver/internal/scans"
	"testing"

	"github.com/stretchr/testify/require"
)

// stands in for scanimage: honours --output-file and the FAKE_SCAN_* knobs
const fakeScanimage = `#!/bin/sh
for arg in "$@"; do
  case "$arg" in
    --output-file=*) out="${arg#--output-file=}" ;;
  esac
done
if [ -n "$FAKE_SCAN_SLEEP" ]; then
  exec sleep "$FAKE_SCAN_SLEEP"
fi
if [ -n "$FAKE_SCAN_EXIT" ] && [ "$FAKE_SCAN_EXIT" != "0" ]; then
  echo "scanning to $out"
  echo "scanimage: open of device failed" >&2
  exit "$FAKE_SCAN_EXIT"
fi
printf '%%PDF-1.4\n%%%%EOF\n' > "$out"
`

var scannedContent = []byte("%PDF-1.4\n%%EOF\n")

func writeFakeScanimage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scanimage")
	require.NoError(t, os.WriteFile(path, []byte(fakeScanimage), 0o755))
	return path
}

// initServer wires the service the same way cmd/server does.
func initServer(t *testing.T) (*httptest.Server, *config.Config) {
	t.Helper()
	t.Setenv("SCANNER_IP", "192.168.1.20")
	t.Setenv("SCAN_DIR", filepath.Join(t.TempDir(), "scans"))
	t.Setenv("SCAN_COMMAND", writeFakeScanimage(t))
	if os.Getenv("SCAN_TIMEOUT") == "" {
		t.Setenv("SCAN_TIMEOUT", "30s")
	}

	conf, err := config.Load()
	require.NoError(t, err)
	format, err := scanner.ParseFormat(conf.Format)
	require.NoError(t, err)
	driver, err := scanner.NewDriver(conf.Driver, conf.ScanCommand, conf.ScanConfigTemplate)
	require.NoError(t, err)
	s := scanner.New(scanner.Options{
		Dir:        conf.ScanDir,
		Format:     format,
		Device:     conf.ScannerIP,
		Resolution: conf.DPI,
	}, driver, scanner.NewCommandRunner(conf.ScanTimeout))

	var handler http.Handler = scans.NewRouter(scans.NewService(s, conf.ScanDir, format))
	handler = middleware.RegisterMiddleware(middleware.NormalizePath(handler))
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts, conf
}
