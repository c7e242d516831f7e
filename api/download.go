package api

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mrnavastar/uemodman/util/fileutils"
	"go.uber.org/zap"
)

// ProgressFunc receives the bytes written so far. total is -1 and percentage
// is -1 when the server sent no content length.
type ProgressFunc func(received, total int64, percentage float64)

// Download streams url into dest. A partial file is removed on failure.
func (c *Client) Download(ctx context.Context, url, dest string, onProgress ProgressFunc) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return fmt.Errorf("failed to get '%s' (%d)", url, resp.StatusCode())
	}

	total := int64(-1)
	if resp.RawResponse != nil && resp.RawResponse.ContentLength > 0 {
		total = resp.RawResponse.ContentLength
	}

	file, err := os.Create(dest)
	if err != nil {
		return err
	}

	counter := &fileutils.WriteCounter{Total: total, OnProgress: onProgress}
	if _, err := io.Copy(file, io.TeeReader(body, counter)); err != nil {
		file.Close()
		os.Remove(dest)
		return fmt.Errorf("download %s: %w", url, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(dest)
		return err
	}
	c.log.Debug("download complete", zap.String("url", url), zap.String("dest", dest), zap.Int64("bytes", counter.Size))
	return nil
}
