package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"quizforge-backend/internal/models"
)

// ProgressFunc receives download progress. totalBytes is -1 when the
// upstream does not announce a length.
type ProgressFunc func(bytesDownloaded, totalBytes int64)

type Downloader struct {
	httpClient *http.Client
	timeout    time.Duration
}

func NewDownloader(timeout time.Duration) *Downloader {
	return &Downloader{
		httpClient: &http.Client{},
		timeout:    timeout,
	}
}

// Download streams the candidate's URL to destPath under a hard wall-clock
// timeout. On any failure, including timeout, the partial file is removed.
func (d *Downloader) Download(ctx context.Context, candidate *models.StreamCandidate, destPath string, progress ProgressFunc) error {
	if candidate == nil || candidate.URL == "" {
		return fmt.Errorf("stream candidate has no URL")
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate.URL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", desktopUserAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return d.wrapTimeout(ctx, fmt.Errorf("failed to open stream: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	total := resp.ContentLength
	var downloaded int64
	buf := make([]byte, 64*1024)

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				out.Close()
				os.Remove(destPath)
				return fmt.Errorf("failed to write stream: %w", writeErr)
			}
			downloaded += int64(n)
			if progress != nil {
				progress(downloaded, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			out.Close()
			os.Remove(destPath)
			return d.wrapTimeout(ctx, fmt.Errorf("stream read failed: %w", readErr))
		}
	}

	if err := out.Close(); err != nil {
		os.Remove(destPath)
		return err
	}

	if downloaded == 0 {
		os.Remove(destPath)
		return fmt.Errorf("stream produced no data")
	}

	return nil
}

func (d *Downloader) wrapTimeout(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Stage: "audio download", Err: err}
	}
	return err
}
