// Package filestore opens durable files relative to a root directory.
package filestore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrInvalidName is returned for names that escape the root directory.
var ErrInvalidName = errors.New("filestore: invalid file name")

// Flag selects how a file is opened.
type Flag struct {
	Read     bool
	Write    bool
	Create   bool
	Truncate bool
}

// Info describes an open file.
type Info struct {
	Size int64
}

// File is an open handle.
type File interface {
	Stat() (Info, error)
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// FS opens files by name.
type FS interface {
	Open(name string, flag Flag) (File, error)
}

// OSFS is an FS backed by a directory on disk.
type OSFS struct {
	dir string

	once    sync.Once
	initErr error
}

// NewOS returns an FS rooted at dir. The directory is created on first Open.
func NewOS(dir string) *OSFS {
	return &OSFS{dir: dir}
}

// Dir returns the root directory.
func (o *OSFS) Dir() string {
	return o.dir
}

// Path returns the on-disk path for name.
func (o *OSFS) Path(name string) (string, error) {
	clean := filepath.Clean(name)
	if name == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(o.dir, clean), nil
}

// Open opens name under the root directory.
func (o *OSFS) Open(name string, flag Flag) (File, error) {
	path, err := o.Path(name)
	if err != nil {
		return nil, err
	}

	o.once.Do(func() {
		if err := os.MkdirAll(o.dir, 0o755); err != nil {
			o.initErr = fmt.Errorf("create file store dir: %w", err)
		}
	})
	if o.initErr != nil {
		return nil, o.initErr
	}

	f, err := os.OpenFile(path, osFlag(flag), 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return &osFile{f: f}, nil
}

func osFlag(flag Flag) int {
	var mode int
	switch {
	case flag.Read && flag.Write:
		mode = os.O_RDWR
	case flag.Write:
		mode = os.O_WRONLY
	default:
		mode = os.O_RDONLY
	}
	if flag.Create {
		mode |= os.O_CREATE
	}
	if flag.Truncate {
		mode |= os.O_TRUNC
	}
	return mode
}

type osFile struct {
	f *os.File
}

func (o *osFile) Stat() (Info, error) {
	st, err := o.f.Stat()
	if err != nil {
		return Info{}, err
	}
	return Info{Size: st.Size()}, nil
}

func (o *osFile) Read(p []byte) (int, error)  { return o.f.Read(p) }
func (o *osFile) Write(p []byte) (int, error) { return o.f.Write(p) }
func (o *osFile) Close() error                { return o.f.Close() }

// IsNotExist reports whether err means the file is missing.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
