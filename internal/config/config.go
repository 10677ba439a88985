package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"scanserver/constants"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ScannerIP          string        `envconfig:"SCANNER_IP" required:"true" validate:"required"`
	DPI                string        `envconfig:"DPI" default:"300" validate:"required"`
	Format             string        `envconfig:"SCAN_FORMAT" default:"pdf" validate:"oneof=pnm tiff png jpeg pdf"`
	ScanDir            string        `envconfig:"SCAN_DIR"`
	Driver             string        `envconfig:"SCAN_DRIVER" default:"scanimage" validate:"oneof=scanimage epsonscan2"`
	ScanCommand        string        `envconfig:"SCAN_COMMAND"`
	ScanConfigTemplate string        `envconfig:"SCAN_CONFIG_TEMPLATE" default:"scan_config.SF2"`
	ScanTimeout        time.Duration `envconfig:"SCAN_TIMEOUT" default:"2m" validate:"gt=0"`
	BindAddress        string        `envconfig:"BIND_ADDRESS" default:"0.0.0.0"`
	Port               int           `default:"8080" validate:"gt=0,lte=65535"`
	LogLevel           string        `envconfig:"LOG_LEVEL" default:"info"`
	SentryDSN          string        `envconfig:"SENTRY_DSN"`
}

// Load resolves the configuration from the environment and prepares the
// output directory. Any error returned here is meant to stop the process.
func Load() (*Config, error) {
	conf := &Config{}
	err := envconfig.Process("", conf)
	if err != nil {
		return nil, err
	}
	conf.Format = strings.ToLower(conf.Format)
	err = validator.New().Struct(conf)
	if err != nil {
		return nil, err
	}
	if conf.ScanDir == "" {
		conf.ScanDir, err = defaultScanDir()
		if err != nil {
			return nil, err
		}
	}
	if conf.ScanCommand == "" {
		conf.ScanCommand = defaultCommand(conf.Driver)
	}
	if conf.Driver == constants.DriverEpsonScan2 {
		if _, err := os.Stat(conf.ScanConfigTemplate); err != nil {
			return nil, fmt.Errorf("scan config template %s: %w", conf.ScanConfigTemplate, err)
		}
	}
	err = EnsureDir(conf.ScanDir)
	if err != nil {
		return nil, err
	}
	return conf, nil
}

// EnsureDir creates path if it is missing and fails if something other
// than a directory already lives there.
func EnsureDir(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return os.MkdirAll(path, 0o755)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s has to be a dir and not a file", path)
	}
	return nil
}

func defaultScanDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(exe), constants.ScanDirName), nil
}

func defaultCommand(driver string) string {
	if driver == constants.DriverEpsonScan2 {
		return constants.EpsonScan2Command
	}
	return constants.ScanimageCommand
}
