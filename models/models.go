package models

import "context"

type ScanResponse struct {
	Filename string `json:"filename"`
}

type ScanErrorResponse struct {
	Message    string   `json:"message"`
	ReturnCode int      `json:"returncode"`
	Stdout     string   `json:"stdout"`
	Stderr     string   `json:"stderr"`
	Command    []string `json:"command"`
}

type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ScanInfoKey string

const SCAN_INFO_KEY ScanInfoKey = "scan_info"

// LogScanInfo is filled in by the handlers and read back by the access log.
type LogScanInfo struct {
	Prefix   string
	Filename string
}

func ScanInfoFromContext(ctx context.Context) *LogScanInfo {
	lsi, ok := ctx.Value(SCAN_INFO_KEY).(*LogScanInfo)
	if !ok {
		return nil
	}
	return lsi
}
