package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"scanserver/constants"
	"strings"
	"sync"

	"github.com/labstack/gommon/random"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

var ErrPrefixSpaceExhausted = errors.New("could not find an unused prefix")

// Allocator hands out filename prefixes that are unique within one
// directory. The directory listing and the placeholder creation happen
// under one lock, so concurrent scans never share a prefix.
type Allocator struct {
	dir      string
	ext      string
	mu       sync.Mutex
	generate func() string
}

// Reservation claims a prefix by holding a placeholder file at Path.
type Reservation struct {
	Prefix string
	Path   string
}

func NewAllocator(dir string, format Format) *Allocator {
	return &Allocator{
		dir: dir,
		ext: format.Extension(),
		generate: func() string {
			return random.New().String(constants.PrefixLength, random.Lowercase)
		},
	}
}

func (a *Allocator) Reserve() (*Reservation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for attempt := 0; attempt < constants.MaxPrefixAttempts; attempt++ {
		prefix := a.generate()
		taken, err := a.inUse(prefix)
		if err != nil {
			return nil, err
		}
		if taken {
			logrus.WithField("prefix", prefix).Debug("prefix already in use, retrying")
			continue
		}
		path := filepath.Join(a.dir, prefix+a.ext)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reserving %s: %w", path, err)
		}
		if err = f.Close(); err != nil {
			return nil, err
		}
		return &Reservation{Prefix: prefix, Path: path}, nil
	}
	return nil, ErrPrefixSpaceExhausted
}

func (a *Allocator) inUse(prefix string) (bool, error) {
	matches, err := entriesWithPrefix(a.dir, prefix)
	if err != nil {
		return false, err
	}
	return len(matches) > 0, nil
}

// Release drops the placeholder unless something has been written to it.
func (r *Reservation) Release() error {
	info, err := os.Stat(r.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Size() > 0 {
		return nil
	}
	return os.Remove(r.Path)
}

// entriesWithPrefix returns the names of directory entries starting with
// prefix, in the filename order os.ReadDir yields.
func entriesWithPrefix(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	matches := lo.Filter(entries, func(e fs.DirEntry, _ int) bool {
		return strings.HasPrefix(e.Name(), prefix)
	})
	return lo.Map(matches, func(e fs.DirEntry, _ int) string { return e.Name() }), nil
}
