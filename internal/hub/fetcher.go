// Package hub downloads model assets from a model hub into a local cache,
// reporting byte-level progress per file.
package hub

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelvinpraises/vidrune/internal/worker"
)

// Fetcher resolves model files against a hub base URL and caches them on
// disk. Already-cached files report an immediate done event.
type Fetcher struct {
	baseURL    string
	cacheDir   string
	httpClient *http.Client
}

func NewFetcher(baseURL, cacheDir string) *Fetcher {
	return &Fetcher{
		baseURL:  strings.TrimRight(baseURL, "/"),
		cacheDir: cacheDir,
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
	}
}

// CachePath returns where a model file lives on disk.
func (f *Fetcher) CachePath(modelID, file string) string {
	return filepath.Join(f.cacheDir, filepath.FromSlash(modelID), filepath.FromSlash(file))
}

// Fetch downloads every named file of the model, emitting
// initiate/progress/done events per file.
func (f *Fetcher) Fetch(ctx context.Context, modelID string, files []string, progress func(worker.ProgressEvent)) error {
	emit := func(ev worker.ProgressEvent) {
		if progress != nil {
			progress(ev)
		}
	}

	for _, file := range files {
		if err := f.fetchOne(ctx, modelID, file, emit); err != nil {
			return fmt.Errorf("fetch %s/%s: %w", modelID, file, err)
		}
	}
	return nil
}

func (f *Fetcher) fetchOne(ctx context.Context, modelID, file string, emit func(worker.ProgressEvent)) error {
	dest := f.CachePath(modelID, file)

	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		emit(worker.ProgressEvent{Status: worker.StatusInitiate, File: file, Total: info.Size()})
		emit(worker.ProgressEvent{Status: worker.StatusDone, File: file, Total: info.Size()})
		return nil
	}

	url := fmt.Sprintf("%s/%s/resolve/main/%s", f.baseURL, modelID, file)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	total := resp.ContentLength
	emit(worker.ProgressEvent{Status: worker.StatusInitiate, File: file, Total: total})

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	tmp := dest + ".partial"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}

	var loaded int64
	buf := make([]byte, 256*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				out.Close()
				os.Remove(tmp)
				return writeErr
			}
			loaded += int64(n)
			emit(worker.ProgressEvent{Status: worker.StatusProgress, File: file, Loaded: loaded, Total: total})
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			out.Close()
			os.Remove(tmp)
			return readErr
		}
	}

	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		return err
	}

	emit(worker.ProgressEvent{Status: worker.StatusDone, File: file, Loaded: loaded, Total: total})
	return nil
}
