package scanner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"scanserver/constants"
	"strings"
)

var ErrNoOutput = errors.New("scan finished without producing a file")

// Job describes one scan request.
type Job struct {
	Prefix     string
	Dir        string
	OutputPath string
	Format     Format
	Device     string
	Resolution string
}

// Invocation is a prepared external command. Cleanup removes whatever the
// driver created to run it and is safe to call more than once.
type Invocation struct {
	Program string
	Args    []string
	Cleanup func()
}

// Driver adapts a Job to one specific scanning tool.
type Driver interface {
	Prepare(job Job) (*Invocation, error)
	// Output returns the name of the file the tool produced for job.
	Output(job Job) (string, error)
}

func NewDriver(name, command, templatePath string) (Driver, error) {
	switch name {
	case constants.DriverScanimage:
		return &ScanimageDriver{Command: command}, nil
	case constants.DriverEpsonScan2:
		return NewEpsonScan2Driver(command, templatePath)
	}
	return nil, fmt.Errorf("unknown scan driver %q", name)
}

// ScanimageDriver passes every parameter on the command line and writes
// straight to the reserved path.
type ScanimageDriver struct {
	Command string
}

func (d *ScanimageDriver) Prepare(job Job) (*Invocation, error) {
	return &Invocation{
		Program: d.Command,
		Args: []string{
			"--device-name=" + job.Device,
			"--format=" + string(job.Format),
			"--output-file=" + job.OutputPath,
			"--resolution=" + job.Resolution,
		},
		Cleanup: func() {},
	}, nil
}

func (d *ScanimageDriver) Output(job Job) (string, error) {
	info, err := os.Stat(job.OutputPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoOutput, err)
	}
	if info.Size() == 0 {
		return "", ErrNoOutput
	}
	return filepath.Base(job.OutputPath), nil
}

// EpsonScan2Driver renders an epsonscan2 settings file per job. The
// template is never modified.
type EpsonScan2Driver struct {
	Command  string
	template string
}

func NewEpsonScan2Driver(command, templatePath string) (*EpsonScan2Driver, error) {
	content, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, fmt.Errorf("reading scan config template: %w", err)
	}
	return &EpsonScan2Driver{Command: command, template: string(content)}, nil
}

// Render substitutes the placeholders of the settings template.
func (d *EpsonScan2Driver) Render(job Job) string {
	return strings.NewReplacer(
		"RESULT_FOLDER", job.Dir,
		"SCANNER_IP", job.Device,
		"PREFIX", job.Prefix,
		"DPI", job.Resolution,
	).Replace(d.template)
}

func (d *EpsonScan2Driver) Prepare(job Job) (*Invocation, error) {
	tmp, err := os.MkdirTemp("", "epsonscan2-"+job.Prefix+"-")
	if err != nil {
		return nil, err
	}
	cleanup := func() { _ = os.RemoveAll(tmp) }
	settings := filepath.Join(tmp, "scan_config.SF2")
	err = os.WriteFile(settings, []byte(d.Render(job)), 0o600)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("writing scan config: %w", err)
	}
	return &Invocation{
		Program: d.Command,
		Args:    []string{"--scan", job.Device, settings},
		Cleanup: cleanup,
	}, nil
}

// Output moves the first non-empty file carrying the job prefix onto the
// reserved path, since epsonscan2 chooses its own file names. The file must
// already have the extension of the configured format.
func (d *EpsonScan2Driver) Output(job Job) (string, error) {
	names, err := entriesWithPrefix(job.Dir, job.Prefix)
	if err != nil {
		return "", err
	}
	reserved := filepath.Base(job.OutputPath)
	for _, name := range names {
		info, err := os.Stat(filepath.Join(job.Dir, name))
		if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
			continue
		}
		if name == reserved {
			return name, nil
		}
		if !strings.EqualFold(filepath.Ext(name), job.Format.Extension()) {
			return "", fmt.Errorf("%w: %s does not match format %s", ErrNoOutput, name, job.Format)
		}
		err = os.Rename(filepath.Join(job.Dir, name), job.OutputPath)
		if err != nil {
			return "", fmt.Errorf("moving %s into place: %w", name, err)
		}
		return reserved, nil
	}
	return "", ErrNoOutput
}
