package scans

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"scanserver/internal/scanner"
	"scanserver/models"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

var filenamePattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

type Scanner interface {
	Scan(ctx context.Context) (*scanner.Outcome, error)
}

type service struct {
	scanner Scanner
	dir     string
	format  scanner.Format
}

func NewService(s Scanner, dir string, format scanner.Format) *service {
	return &service{
		scanner: s,
		dir:     dir,
		format:  format,
	}
}

func RegisterRoutes(r *mux.Router, svc *service) {
	r.HandleFunc("/scan", svc.ScanHandler).Methods(http.MethodGet)
	r.HandleFunc("/files/{filename:.*}", svc.FileHandler).Methods(http.MethodGet)
}

// NewRouter answers every unmatched request, whatever the method, with an
// empty 404.
func NewRouter(svc *service) *mux.Router {
	r := mux.NewRouter()
	// keep "..", "//" and friends so the filename check sees them
	r.SkipClean(true)
	r.NotFoundHandler = http.HandlerFunc(emptyNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(emptyNotFound)
	RegisterRoutes(r, svc)
	return r
}

func emptyNotFound(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNotFound)
}

func (svc *service) ScanHandler(w http.ResponseWriter, r *http.Request) {
	outcome, err := svc.scanner.Scan(r.Context())
	if err != nil {
		var cmdErr *scanner.CommandError
		if errors.As(err, &cmdErr) {
			logrus.WithFields(logrus.Fields{
				"command":   cmdErr.Result.Command,
				"exit_code": cmdErr.Result.ExitCode,
				"stderr":    cmdErr.Result.Stderr,
			}).Errorf("Scan failed: %s", err.Error())
			sentry.CaptureException(err)
			writeJSON(w, http.StatusInternalServerError, &models.ScanErrorResponse{
				Message:    cmdErr.Message,
				ReturnCode: cmdErr.Result.ExitCode,
				Stdout:     cmdErr.Result.Stdout,
				Stderr:     cmdErr.Result.Stderr,
				Command:    cmdErr.Result.Command,
			})
			return
		}
		logrus.Errorf("Error while scanning: %s", err.Error())
		sentry.CaptureException(err)
		writeJSON(w, http.StatusInternalServerError, &models.ErrorResponse{
			Message: "Error while scanning",
			Error:   err.Error(),
		})
		return
	}
	if lsi := models.ScanInfoFromContext(r.Context()); lsi != nil {
		lsi.Prefix = outcome.Prefix
		lsi.Filename = outcome.Filename
	}
	writeJSON(w, http.StatusOK, &models.ScanResponse{Filename: outcome.Filename})
}

func (svc *service) FileHandler(w http.ResponseWriter, r *http.Request) {
	filename, ok := svc.resolveFilename(mux.Vars(r)["filename"])
	if !ok {
		writeJSON(w, http.StatusNotFound, &models.MessageResponse{Message: "Invalid Filename"})
		return
	}
	if lsi := models.ScanInfoFromContext(r.Context()); lsi != nil {
		lsi.Filename = filename
	}

	path := filepath.Join(svc.dir, filename)
	info, err := os.Stat(path)
	// an empty file is the placeholder of a scan still in progress
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		writeJSON(w, http.StatusNotFound, &models.MessageResponse{Message: "File Not Found"})
		return
	}
	file, err := os.Open(path)
	if err != nil {
		logrus.Errorf("Error opening %s: %s", path, err.Error())
		sentry.CaptureException(err)
		writeJSON(w, http.StatusNotFound, &models.MessageResponse{Message: "File Not Found"})
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", svc.format.MIMEType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	http.ServeContent(w, r, filename, info.ModTime(), file)
}

// resolveFilename accepts "<stem>" or "<stem>.<ext>" where the stem is
// alphanumeric and ext is the configured format. It returns the name on disk.
func (svc *service) resolveFilename(name string) (string, bool) {
	stem, ext, hasExt := strings.Cut(name, ".")
	if !filenamePattern.MatchString(stem) {
		return "", false
	}
	if hasExt && ext != string(svc.format) {
		return "", false
	}
	return stem + svc.format.Extension(), true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		logrus.Error(err)
	}
}
