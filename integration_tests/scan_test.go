package integrationtests

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getJSON(t *testing.T, url string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body := map[string]interface{}{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestScanAndDownload(t *testing.T) {
	ts, _ := initServer(t)

	status, body := getJSON(t, ts.URL+"/scan")
	require.Equal(t, http.StatusOK, status)
	filename, ok := body["filename"].(string)
	require.True(t, ok)
	assert.Regexp(t, `^[a-z]{8}\.pdf$`, filename)

	resp, err := http.Get(ts.URL + "/files/" + filename)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="`+filename+`"`, resp.Header.Get("Content-Disposition"))
	content, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, scannedContent, content)
}

func TestScanFailure(t *testing.T) {
	t.Setenv("FAKE_SCAN_EXIT", "4")
	ts, conf := initServer(t)

	status, body := getJSON(t, ts.URL+"/SCAN/")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Error while scanning", body["message"])
	assert.Equal(t, float64(4), body["returncode"])
	assert.Contains(t, body["stdout"], "scanning to")
	assert.Equal(t, "scanimage: open of device failed\n", body["stderr"])
	command, ok := body["command"].([]interface{})
	require.True(t, ok)
	assert.Equal(t, conf.ScanCommand, command[0])
	assert.NotContains(t, body, "filename")

	entries, err := os.ReadDir(conf.ScanDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestScanMissingBinary(t *testing.T) {
	ts, conf := initServer(t)
	require.NoError(t, os.Remove(conf.ScanCommand))

	status, body := getJSON(t, ts.URL+"/scan")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, float64(-1), body["returncode"])
}

func TestScanTimeout(t *testing.T) {
	t.Setenv("FAKE_SCAN_SLEEP", "10")
	t.Setenv("SCAN_TIMEOUT", "200ms")
	ts, _ := initServer(t)

	status, body := getJSON(t, ts.URL+"/scan")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Scan timed out", body["message"])
	assert.NotContains(t, body, "filename")
}

func TestConcurrentScans(t *testing.T) {
	ts, _ := initServer(t)

	const scans = 8
	var wg sync.WaitGroup
	names := make(chan string, scans)
	for i := 0; i < scans; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Get(ts.URL + "/scan")
			if !assert.NoError(t, err) {
				return
			}
			defer resp.Body.Close()
			body := map[string]string{}
			if assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body)) {
				names <- body["filename"]
			}
		}()
	}
	wg.Wait()
	close(names)

	seen := map[string]bool{}
	for n := range names {
		assert.False(t, seen[n], "duplicate filename %s", n)
		seen[n] = true
	}
	assert.Len(t, seen, scans)
}

func TestFiles(t *testing.T) {
	ts, _ := initServer(t)

	status, body := getJSON(t, ts.URL+"/files/doesnotexist123")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "File Not Found", body["message"])

	status, body = getJSON(t, ts.URL+"/files/..%2F..%2Fetc%2Fpasswd")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Invalid Filename", body["message"])

	resp, err := http.Get(ts.URL + "/unknown")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	content, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Empty(t, content)
}
