package fileutils

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// BackupSuffix is appended to binary assets saved before an install overwrites them.
const BackupSuffix = ".bak"

// WriteCounter counts bytes passing through an io.TeeReader and reports them.
// Total is zero or negative when the size is not known.
type WriteCounter struct {
	Total      int64
	Size       int64
	OnProgress func(size, total int64, percentage float64)
}

func (wc *WriteCounter) Write(p []byte) (int, error) {
	n := len(p)
	wc.Size += int64(n)
	wc.PrintProgress()
	return n, nil
}

// Percentage is -1 while the total is unknown.
func (wc WriteCounter) Percentage() float64 {
	if wc.Total <= 0 {
		return -1
	}
	return float64(wc.Size) / float64(wc.Total) * 100
}

func (wc WriteCounter) PrintProgress() {
	if wc.OnProgress != nil {
		wc.OnProgress(wc.Size, wc.Total, wc.Percentage())
	}
}

func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// BackupFile copies path to path.bak.
func BackupFile(path string) (string, error) {
	backup := path + BackupSuffix
	if err := CopyFile(path, backup); err != nil {
		return "", fmt.Errorf("backup %s: %w", path, err)
	}
	return backup, nil
}

// RestoreBackup copies path.bak back over path and removes the backup.
// A missing backup is an error.
func RestoreBackup(path string) error {
	backup := path + BackupSuffix
	if err := CopyFile(backup, path); err != nil {
		return fmt.Errorf("restore %s: %w", path, err)
	}
	return os.Remove(backup)
}

// CopyTree copies every file under src into dst, overwriting existing files.
func CopyTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return CopyFile(p, target)
	})
}
