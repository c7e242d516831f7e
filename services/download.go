package services

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/mrnavastar/uemodman/events"
	"github.com/mrnavastar/uemodman/util"
	"github.com/mrnavastar/uemodman/util/fileutils"
	"go.uber.org/zap"
)

// IsDownloaded reports whether the archive of file is in the cache.
func (e *Engine) IsDownloaded(cacheDir string, file util.File) bool {
	return file.FileName != "" && fileutils.Exists(filepath.Join(cacheDir, file.FileName))
}

// Download fetches one mod archive into the cache and records it in the
// cache manifest. Progress is published as download-mod-file events.
func (e *Engine) Download(ctx context.Context, cacheDir, fileURL string, mod util.Mod, file util.File) error {
	if cacheDir == "" || fileURL == "" || mod.ModID == 0 || file.FileName == "" {
		return ErrMissingInput
	}
	if e.IsDownloaded(cacheDir, file) {
		return fmt.Errorf("%w: %s", ErrAlreadyDownloaded, file.FileName)
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return err
	}

	dest := filepath.Join(cacheDir, file.FileName)
	err := e.client.Download(ctx, fileURL, dest, func(received, total int64, percentage float64) {
		e.publish(events.DownloadModFile, events.Progress{
			ModID:      mod.ModID,
			FileID:     file.FileID,
			FileName:   file.FileName,
			OutputPath: dest,
			Received:   received,
			Total:      total,
			Percentage: percentage,
		})
	})
	if err != nil {
		return err
	}
	if err := fileutils.AddCacheEntry(cacheDir, e.remoteGameID, mod, file); err != nil {
		return err
	}
	e.log.Info("downloaded mod", zap.Int("mod_id", mod.ModID), zap.String("file", file.FileName))
	return nil
}

// DownloadFile fetches fileURL into dir, naming it after the last path
// segment of the URL, and returns the written path.
func (e *Engine) DownloadFile(ctx context.Context, dir, fileURL string) (string, error) {
	return e.downloadFile(ctx, dir, fileURL, func(p events.Progress) {
		e.publish(events.DownloadFile, p)
	})
}

func (e *Engine) downloadFile(ctx context.Context, dir, fileURL string, onProgress func(events.Progress)) (string, error) {
	name, err := fileNameFromURL(fileURL)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	dest := filepath.Join(dir, name)
	err = e.client.Download(ctx, fileURL, dest, func(received, total int64, percentage float64) {
		onProgress(events.Progress{
			FileName:   name,
			OutputPath: dest,
			Received:   received,
			Total:      total,
			Percentage: percentage,
		})
	})
	if err != nil {
		return "", err
	}
	return dest, nil
}

func fileNameFromURL(fileURL string) (string, error) {
	u, err := url.Parse(fileURL)
	if err != nil {
		return "", err
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("%w: no file name in %q", ErrMissingInput, fileURL)
	}
	return name, nil
}

// RemoveFromCache deletes a cached archive and its cache manifest entry.
func (e *Engine) RemoveFromCache(cacheDir string, mod util.Mod, file util.File) error {
	if cacheDir == "" || file.FileName == "" {
		return ErrMissingInput
	}
	if err := fileutils.RemoveCacheEntry(cacheDir, e.remoteGameID, mod, &file); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(cacheDir, file.FileName))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
