package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"scanserver/constants"
	"scanserver/internal/config"
	"scanserver/internal/middleware"
	"scanserver/internal/scanner"
	"scanserver/internal/scans"
	"strconv"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	// Load env file as env variables
	err := godotenv.Load(".env")
	if err != nil {
		logrus.Warnf("Error loading .env file: %v", err)
	}
	conf, err := config.Load()
	if err != nil {
		logrus.Fatalf("Error loading environment variables: %v", err)
	}
	level, err := logrus.ParseLevel(conf.LogLevel)
	if err != nil {
		logrus.Fatalf("Invalid LOG_LEVEL %q: %v", conf.LogLevel, err)
	}
	logrus.SetLevel(level)

	// Setup exception tracking with Sentry if configured
	if conf.SentryDSN != "" {
		if err = sentry.Init(sentry.ClientOptions{
			Dsn: conf.SentryDSN,
		}); err != nil {
			logrus.Errorf("sentry init error: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	format, err := scanner.ParseFormat(conf.Format)
	if err != nil {
		logrus.Fatal(err)
	}
	driver, err := scanner.NewDriver(conf.Driver, conf.ScanCommand, conf.ScanConfigTemplate)
	if err != nil {
		logrus.Fatal(err)
	}
	s := scanner.New(scanner.Options{
		Dir:        conf.ScanDir,
		Format:     format,
		Device:     conf.ScannerIP,
		Resolution: conf.DPI,
	}, driver, scanner.NewCommandRunner(conf.ScanTimeout))

	svc := scans.NewService(s, conf.ScanDir, format)
	r := scans.NewRouter(svc)

	server := &http.Server{
		Addr:              net.JoinHostPort(conf.BindAddress, strconv.Itoa(conf.Port)),
		Handler:           middleware.RegisterMiddleware(middleware.NormalizePath(r)),
		ReadHeaderTimeout: constants.ReadHeaderTimeoutSec * time.Second,
	}

	idle := make(chan struct{})
	go func() {
		defer close(idle)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logrus.Info("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeoutSecs*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logrus.Errorf("Server shutdown error: %v", err)
		}
	}()

	logrus.WithFields(logrus.Fields{
		"scan_dir": conf.ScanDir,
		"driver":   conf.Driver,
		"format":   format,
	}).Infof("Server starting on %s", server.Addr)
	err = server.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		logrus.Fatal(err)
	}
	<-idle
}
