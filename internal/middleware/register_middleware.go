package middleware

import (
	"context"
	"net/http"
	"scanserver/models"
	"strings"

	"github.com/felixge/httpsnoop"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/gorilla/handlers"
	"github.com/sirupsen/logrus"
)

// panic recover, logging, Sentry middlewares
func RegisterMiddleware(h http.Handler) http.Handler {
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(logrus.StandardLogger()))(h)
	h = LoggingMiddleware(h)
	h = sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle(h)
	return h
}

func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entry := logrus.NewEntry(logrus.StandardLogger())
		entry = entry.WithField("host", r.Host)
		entry = entry.WithField("id", r.Header.Get("X-Request-Id"))
		remoteIpList := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
		if len(remoteIpList) > 0 && remoteIpList[0] != "" {
			entry = entry.WithField("remote_ip", strings.TrimSpace(remoteIpList[0]))
		} else {
			entry = entry.WithField("remote_ip", r.RemoteAddr)
		}
		entry = entry.WithField("method", r.Method)
		entry = entry.WithField("user_agent", r.UserAgent())
		entry = entry.WithField("uri", r.URL.Path)
		lsi := &models.LogScanInfo{}
		r = r.WithContext(context.WithValue(r.Context(), models.SCAN_INFO_KEY, lsi))
		//this already calls next.ServeHttp
		m := httpsnoop.CaptureMetrics(next, w, r)
		entry = entry.WithField("latency", m.Duration.Seconds())
		entry = entry.WithField("status", m.Code)
		entry = entry.WithField("bytes_out", m.Written)
		if lsi.Prefix != "" {
			entry = entry.WithField("prefix", lsi.Prefix)
		}
		if lsi.Filename != "" {
			entry = entry.WithField("filename", lsi.Filename)
		}
		entry.Info()
	})
}

// NormalizePath rewrites the request path so routing is case-insensitive
// and tolerates a trailing slash on /scan. The filename after /files/
// keeps its case.
func NormalizePath(next http.Handler) http.Handler {
	const filesPrefix = "/files/"
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case strings.EqualFold(strings.TrimRight(path, "/"), "/scan"):
			r.URL.Path = "/scan"
			r.URL.RawPath = ""
		case len(path) >= len(filesPrefix) && strings.EqualFold(path[:len(filesPrefix)], filesPrefix):
			r.URL.Path = filesPrefix + path[len(filesPrefix):]
			r.URL.RawPath = ""
		}
		next.ServeHTTP(w, r)
	})
}
