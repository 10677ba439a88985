package scanner

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
)

var ErrUnknownFormat = errors.New("unknown output format")

// Format is an output encoding understood by the scanning tools.
type Format string

const (
	FormatPNM  Format = "pnm"
	FormatTIFF Format = "tiff"
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatPDF  Format = "pdf"
)

var mimeTypes = map[Format]string{
	FormatPNM:  "image/x-portable-anymap",
	FormatTIFF: "image/tiff",
	FormatPNG:  "image/png",
	FormatJPEG: "image/jpeg",
	FormatPDF:  "application/pdf",
}

// netpbm tools write one of the concrete subtypes, never the umbrella type
var pnmSubtypes = []string{
	"image/x-portable-bitmap",
	"image/x-portable-graymap",
	"image/x-portable-pixmap",
	"image/x-portable-arbitrarymap",
}

func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(s))
	if _, ok := mimeTypes[f]; !ok {
		return "", fmt.Errorf("%w %q, expected one of %s", ErrUnknownFormat, s, strings.Join(Formats(), ", "))
	}
	return f, nil
}

// Formats lists the supported format names in a stable order.
func Formats() []string {
	names := lo.Map(lo.Keys(mimeTypes), func(f Format, _ int) string { return string(f) })
	sort.Strings(names)
	return names
}

func (f Format) Extension() string {
	return "." + string(f)
}

func (f Format) MIMEType() string {
	return mimeTypes[f]
}

// Accepts reports whether a sniffed MIME type is a valid encoding of f.
func (f Format) Accepts(mimeType string) bool {
	if mimeType == f.MIMEType() {
		return true
	}
	return f == FormatPNM && lo.Contains(pnmSubtypes, mimeType)
}
