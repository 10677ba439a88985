package scanner

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
)

type Options struct {
	Dir        string
	Format     Format
	Device     string
	Resolution string
}

// Scanner runs one scan per call: reserve a prefix, invoke the tool,
// report what it produced.
type Scanner struct {
	opts      Options
	allocator *Allocator
	driver    Driver
	runner    Runner
}

type Outcome struct {
	Prefix   string
	Filename string
}

// CommandError is returned when the external tool fails, could not be
// started or was killed. Result carries the captured output.
type CommandError struct {
	Message string
	Result  *Result
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %v (exit code %d)", e.Message, e.Result.Err, e.Result.ExitCode)
}

func (e *CommandError) Unwrap() error {
	return e.Result.Err
}

func New(opts Options, driver Driver, runner Runner) *Scanner {
	return &Scanner{
		opts:      opts,
		allocator: NewAllocator(opts.Dir, opts.Format),
		driver:    driver,
		runner:    runner,
	}
}

func (s *Scanner) Scan(ctx context.Context) (outcome *Outcome, err error) {
	reservation, err := s.allocator.Reserve()
	if err != nil {
		return nil, fmt.Errorf("allocating prefix: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if releaseErr := reservation.Release(); releaseErr != nil {
			logrus.Errorf("Error releasing reservation %s: %v", reservation.Path, releaseErr)
		}
	}()

	job := Job{
		Prefix:     reservation.Prefix,
		Dir:        s.opts.Dir,
		OutputPath: reservation.Path,
		Format:     s.opts.Format,
		Device:     s.opts.Device,
		Resolution: s.opts.Resolution,
	}
	inv, err := s.driver.Prepare(job)
	if err != nil {
		return nil, err
	}
	defer inv.Cleanup()

	logrus.WithField("prefix", job.Prefix).Infof("Starting scan on %s", job.Device)
	result := s.runner.Run(ctx, inv.Program, inv.Args...)
	if result.Err != nil {
		msg := "Error while scanning"
		if result.TimedOut {
			msg = "Scan timed out"
		}
		return nil, &CommandError{Message: msg, Result: result}
	}

	filename, err := s.driver.Output(job)
	if err != nil {
		return nil, err
	}
	s.checkType(filepath.Join(s.opts.Dir, filename))
	return &Outcome{Prefix: job.Prefix, Filename: filename}, nil
}

func (s *Scanner) checkType(path string) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		logrus.Warnf("Could not detect type of %s: %v", path, err)
		return
	}
	for m := mtype; m != nil; m = m.Parent() {
		if s.opts.Format.Accepts(m.String()) {
			return
		}
	}
	logrus.WithFields(logrus.Fields{
		"file":     path,
		"detected": mtype.String(),
		"expected": s.opts.Format.MIMEType(),
	}).Warn("scanned file does not match the configured format")
}
