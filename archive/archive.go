// Package archive reads mod archives (zip, 7z, rar) through one small interface.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var ErrEntryNotFound = errors.New("entry not found in archive")

// FormatError is returned by Open for an unsupported archive extension.
type FormatError struct {
	Format string
}

func (e FormatError) Error() string {
	return fmt.Sprintf("unsupported archive format %q", e.Format)
}

// Entry is one item of an archive. Name always uses forward slashes and
// directories end in "/". OutputPath is filled in by install path resolution.
type Entry struct {
	Name       string `json:"entryName"`
	IsDir      bool   `json:"isDirectory"`
	Size       int64  `json:"size"`
	OutputPath string `json:"outputPath,omitempty"`
}

// Ext returns the lower-case extension of the entry without the dot.
func (e Entry) Ext() string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(e.Name)), ".")
}

type Reader interface {
	// Entries lists the archive in stored order.
	Entries() ([]Entry, error)
	// Open opens a single file entry.
	Open(name string) (io.ReadCloser, error)
	// Walk visits every entry in stored order; r is nil for directories.
	Walk(fn func(e Entry, r io.Reader) error) error
	Close() error
}

// Open picks a reader from the file extension.
func Open(file string) (Reader, error) {
	ext := strings.ToLower(filepath.Ext(file))
	switch ext {
	case ".zip":
		return openZip(file)
	case ".7z":
		return openSevenZip(file)
	case ".rar":
		return openRar(file)
	default:
		return nil, FormatError{Format: ext}
	}
}

// ReadEntry returns the full contents of a file entry.
func ReadEntry(r Reader, name string) ([]byte, error) {
	rc, err := r.Open(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Progress describes one extracted entry.
type Progress struct {
	Entry      string
	OutputPath string
	Index      int
	Total      int
}

type ExtractOptions struct {
	Overwrite bool
	// Ignored entry names are not written.
	Ignored []string
	// OutputName maps an entry name to its path under the destination.
	// Defaults to the entry name.
	OutputName func(name string) string
	Progress   func(Progress)
}

// ExtractAll writes every entry of r under dest.
func ExtractAll(r Reader, dest string, opts ExtractOptions) error {
	entries, err := r.Entries()
	if err != nil {
		return err
	}
	ignored := make(map[string]bool, len(opts.Ignored))
	for _, name := range opts.Ignored {
		ignored[name] = true
	}

	index := 0
	return r.Walk(func(e Entry, src io.Reader) error {
		index++
		if ignored[e.Name] {
			return nil
		}
		name := e.Name
		if opts.OutputName != nil {
			name = opts.OutputName(e.Name)
		}
		target, err := safeJoin(dest, name)
		if err != nil {
			return err
		}

		if e.IsDir {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		} else {
			if !opts.Overwrite {
				if _, err := os.Stat(target); err == nil {
					return nil
				}
			}
			if err := writeFile(target, src); err != nil {
				return fmt.Errorf("extract %s: %w", e.Name, err)
			}
		}

		if opts.Progress != nil {
			opts.Progress(Progress{Entry: e.Name, OutputPath: target, Index: index, Total: len(entries)})
		}
		return nil
	})
}

func writeFile(target string, src io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// safeJoin joins name under dest, rejecting names that climb out of it.
func safeJoin(dest, name string) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(name, `\`, "/"))
	if clean == "/" {
		return dest, nil
	}
	target := filepath.Join(dest, filepath.FromSlash(clean))
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("entry %q escapes %s", name, dest)
	}
	return target, nil
}

func normalizeName(name string, isDir bool) string {
	name = strings.ReplaceAll(name, `\`, "/")
	if isDir && !strings.HasSuffix(name, "/") {
		name += "/"
	}
	return name
}
