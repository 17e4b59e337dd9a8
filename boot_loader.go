// boot_loader.go - Boot ROM image resolution and loading

package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FileResolver maps a configured image name to a readable stream.
// A missing file is reported as ErrFileNotFound.
type FileResolver interface {
	Resolve(name string) (io.ReadCloser, error)
}

// SearchPathResolver looks a name up in a list of directories, in order.
// Names containing a path separator are opened as given.
type SearchPathResolver struct {
	Dirs []string
}

func (s SearchPathResolver) Resolve(name string) (io.ReadCloser, error) {
	if name == "" {
		return nil, fmt.Errorf("empty name: %w", ErrFileNotFound)
	}
	if filepath.IsAbs(name) || filepath.Base(name) != name || len(s.Dirs) == 0 {
		return openResolved(name)
	}
	for _, dir := range s.Dirs {
		f, err := openResolved(filepath.Join(dir, name))
		if errors.Is(err, ErrFileNotFound) {
			continue
		}
		return f, err
	}
	return nil, fmt.Errorf("%s not in %v: %w", name, s.Dirs, ErrFileNotFound)
}

func openResolved(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrFileNotFound)
	}
	if err != nil {
		return nil, err
	}
	if st, err := f.Stat(); err == nil && st.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory: %w", path, ErrFileNotFound)
	}
	return f, nil
}

// FSResolver resolves names inside an fs.FS.
type FSResolver struct {
	FS fs.FS
}

func (r FSResolver) Resolve(name string) (io.ReadCloser, error) {
	f, err := r.FS.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrFileNotFound)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// LoadBootImage copies the named image to offset 0 of the ROM region.
// The region is only written once the whole image has been read and fits,
// so on any error it is left as it was.
func LoadBootImage(resolver FileResolver, name string, rom *Region) (int, error) {
	if rom == nil || rom.Kind != RegionROM {
		return 0, errors.New("boot image: target is not a ROM region")
	}

	rc, err := resolver.Resolve(name)
	if errors.Is(err, ErrFileNotFound) {
		return 0, &ImageNotFoundError{Name: name, Err: err}
	}
	if err != nil {
		return 0, fmt.Errorf("boot image %s: %w", name, err)
	}
	defer rc.Close()

	if st, ok := rc.(interface{ Stat() (fs.FileInfo, error) }); ok {
		if info, err := st.Stat(); err == nil && info.Mode().IsRegular() && info.Size() > int64(rom.Size) {
			return 0, &ImageTooLargeError{Name: name, Size: info.Size(), Limit: rom.Size}
		}
	}

	// One byte past the limit is enough to tell an oversized stream.
	image, err := io.ReadAll(io.LimitReader(rc, int64(rom.Size)+1))
	if err != nil {
		return 0, fmt.Errorf("boot image %s: reading: %w", name, err)
	}
	if len(image) > int(rom.Size) {
		return 0, &ImageTooLargeError{Name: name, Size: -1, Limit: rom.Size}
	}

	if err := rom.Seed(image); err != nil {
		return 0, fmt.Errorf("boot image %s: %w", name, err)
	}
	return len(image), nil
}
