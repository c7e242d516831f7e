package archive

import (
	"archive/zip"
	"fmt"
	"io"

	"github.com/bodgit/sevenzip"
	"github.com/nwaples/rardecode/v2"
)

type zipReader struct {
	rc *zip.ReadCloser
}

func openZip(file string) (*zipReader, error) {
	rc, err := zip.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("open zip archive: %w", err)
	}
	return &zipReader{rc: rc}, nil
}

func (z *zipReader) Entries() ([]Entry, error) {
	out := make([]Entry, 0, len(z.rc.File))
	for _, f := range z.rc.File {
		isDir := f.FileInfo().IsDir()
		out = append(out, Entry{
			Name:  normalizeName(f.Name, isDir),
			IsDir: isDir,
			Size:  int64(f.UncompressedSize64),
		})
	}
	return out, nil
}

func (z *zipReader) Open(name string) (io.ReadCloser, error) {
	for _, f := range z.rc.File {
		if normalizeName(f.Name, f.FileInfo().IsDir()) == name {
			return f.Open()
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
}

func (z *zipReader) Walk(fn func(Entry, io.Reader) error) error {
	for _, f := range z.rc.File {
		isDir := f.FileInfo().IsDir()
		e := Entry{Name: normalizeName(f.Name, isDir), IsDir: isDir, Size: int64(f.UncompressedSize64)}
		if isDir {
			if err := fn(e, nil); err != nil {
				return err
			}
			continue
		}
		r, err := f.Open()
		if err != nil {
			return err
		}
		err = fn(e, r)
		r.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (z *zipReader) Close() error { return z.rc.Close() }

type sevenZipReader struct {
	rc *sevenzip.ReadCloser
}

func openSevenZip(file string) (*sevenZipReader, error) {
	rc, err := sevenzip.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("open 7z archive: %w", err)
	}
	return &sevenZipReader{rc: rc}, nil
}

func (s *sevenZipReader) Entries() ([]Entry, error) {
	out := make([]Entry, 0, len(s.rc.File))
	for _, f := range s.rc.File {
		isDir := f.FileInfo().IsDir()
		out = append(out, Entry{
			Name:  normalizeName(f.Name, isDir),
			IsDir: isDir,
			Size:  int64(f.UncompressedSize),
		})
	}
	return out, nil
}

func (s *sevenZipReader) Open(name string) (io.ReadCloser, error) {
	for _, f := range s.rc.File {
		if normalizeName(f.Name, f.FileInfo().IsDir()) == name {
			return f.Open()
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
}

func (s *sevenZipReader) Walk(fn func(Entry, io.Reader) error) error {
	for _, f := range s.rc.File {
		isDir := f.FileInfo().IsDir()
		e := Entry{Name: normalizeName(f.Name, isDir), IsDir: isDir, Size: int64(f.UncompressedSize)}
		if isDir {
			if err := fn(e, nil); err != nil {
				return err
			}
			continue
		}
		r, err := f.Open()
		if err != nil {
			return err
		}
		err = fn(e, r)
		r.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *sevenZipReader) Close() error { return s.rc.Close() }

// rarReader reopens the archive for every pass since rar is read sequentially.
type rarReader struct {
	file string
}

func openRar(file string) (*rarReader, error) {
	rc, err := rardecode.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("open rar archive: %w", err)
	}
	rc.Close()
	return &rarReader{file: file}, nil
}

func (r *rarReader) Entries() ([]Entry, error) {
	var out []Entry
	err := r.Walk(func(e Entry, _ io.Reader) error {
		out = append(out, e)
		return nil
	})
	return out, err
}

func (r *rarReader) Open(name string) (io.ReadCloser, error) {
	rc, err := rardecode.OpenReader(r.file)
	if err != nil {
		return nil, err
	}
	for {
		hdr, err := rc.Next()
		if err == io.EOF {
			rc.Close()
			return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
		}
		if err != nil {
			rc.Close()
			return nil, err
		}
		if normalizeName(hdr.Name, hdr.IsDir) == name {
			return rc, nil
		}
	}
}

func (r *rarReader) Walk(fn func(Entry, io.Reader) error) error {
	rc, err := rardecode.OpenReader(r.file)
	if err != nil {
		return err
	}
	defer rc.Close()
	for {
		hdr, err := rc.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		e := Entry{Name: normalizeName(hdr.Name, hdr.IsDir), IsDir: hdr.IsDir, Size: hdr.UnPackedSize}
		var src io.Reader
		if !hdr.IsDir {
			src = rc
		}
		if err := fn(e, src); err != nil {
			return err
		}
	}
}

func (r *rarReader) Close() error { return nil }
