// Package archive downloads release archives and unpacks zip and tar.gz
// files into a destination tree.
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const userAgent = "vilehvh/1.0"

// ProgressFunc observes bytes written so far and the expected total (0 when
// the server sent no Content-Length).
type ProgressFunc func(done, total int64)

// DownloadOptions tunes Download.
type DownloadOptions struct {
	Client   *http.Client
	Checksum string
	Progress ProgressFunc
}

// Download fetches downloadURL into dest via a temp file in the same
// directory; dest only appears once the body is fully written and verified.
func Download(ctx context.Context, downloadURL, dest string, opts DownloadOptions) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("prepare download destination: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", downloadURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("download %s: unexpected status %s", downloadURL, resp.Status)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(dest), "download-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	var w io.Writer = tmpFile
	if opts.Progress != nil {
		w = &countingWriter{w: tmpFile, total: resp.ContentLength, fn: opts.Progress}
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		tmpFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if opts.Checksum != "" {
		match, err := VerifyChecksum(tmpPath, opts.Checksum)
		if err != nil {
			return err
		}
		if !match {
			return fmt.Errorf("checksum mismatch for %s", downloadURL)
		}
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("finalize download: %w", err)
	}
	return nil
}

// FileName infers the archive file name from the last URL path segment.
func FileName(downloadURL string) (string, error) {
	parsed, err := url.Parse(downloadURL)
	if err != nil {
		return "", fmt.Errorf("parse download url: %w", err)
	}
	base := path.Base(parsed.Path)
	if base == "." || base == "" || base == "/" {
		return "", fmt.Errorf("infer archive name from url: %s", downloadURL)
	}
	return base, nil
}

// VerifyChecksum compares the file's sha256 with expected (hex, any case).
func VerifyChecksum(path, expected string) (bool, error) {
	sum, err := Checksum(path)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(sum, expected), nil
}

// Checksum returns the hex sha256 of a file.
func Checksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for checksum: %w", err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

type countingWriter struct {
	w     io.Writer
	done  int64
	total int64
	fn    ProgressFunc
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.done += int64(n)
	c.fn(c.done, c.total)
	return n, err
}
