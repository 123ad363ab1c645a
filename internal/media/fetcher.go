package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/phrazzld/mediatask/internal/redact"
)

// Fetcher downloads source media into dir and returns the local path
type Fetcher interface {
	Fetch(ctx context.Context, source, dir string) (string, error)
}

// HTTPFetcher fetches http(s) URLs and local files
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
	logger   *slog.Logger
}

// NewHTTPFetcher creates a fetcher with a per-request timeout and size limit.
// A maxBytes of zero or less disables the limit.
func NewHTTPFetcher(timeout time.Duration, maxBytes int64, logger *slog.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
		logger:   logger.With("component", "media_fetcher"),
	}
}

// Fetch downloads source into dir. Sources may be http(s) URLs, file://
// URLs or absolute paths.
func (f *HTTPFetcher) Fetch(ctx context.Context, source, dir string) (string, error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedSource, err)
	}

	switch {
	case u.Scheme == "http" || u.Scheme == "https":
		return f.fetchHTTP(ctx, u, dir)
	case u.Scheme == "file":
		return f.copyLocal(u.Path, dir)
	case u.Scheme == "" && filepath.IsAbs(source):
		return f.copyLocal(source, dir)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSource, source)
	}
}

func (f *HTTPFetcher) fetchHTTP(ctx context.Context, u *url.URL, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		// *url.Error repeats the full URL, signature and all
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return "", fmt.Errorf("failed to fetch %s: %w", redact.URL(u.String()), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &FetchError{URL: redact.URL(u.String()), StatusCode: resp.StatusCode}
	}
	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}

	dst := filepath.Join(dir, sourceName(path.Base(u.Path)))
	n, err := f.writeLimited(dst, resp.Body)
	if err != nil {
		return "", err
	}

	f.logger.InfoContext(ctx, "fetched media",
		"url", redact.URL(u.String()),
		"bytes", n,
		"content_type", resp.Header.Get("Content-Type"))
	return dst, nil
}

func (f *HTTPFetcher) copyLocal(src, dir string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	dst := filepath.Join(dir, sourceName(filepath.Base(src)))
	if _, err := f.writeLimited(dst, in); err != nil {
		return "", err
	}
	return dst, nil
}

// writeLimited copies r to dst, failing once more than maxBytes are read
func (f *HTTPFetcher) writeLimited(dst string, r io.Reader) (int64, error) {
	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if f.maxBytes > 0 {
		r = io.LimitReader(r, f.maxBytes+1)
	}
	n, err := io.Copy(out, r)
	if err != nil {
		return n, fmt.Errorf("failed to write %s: %w", dst, err)
	}
	if f.maxBytes > 0 && n > f.maxBytes {
		return n, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxBytes)
	}
	return n, out.Close()
}

// sourceName keeps the extension of the remote name so transcoders and
// MIME detection can use it
func sourceName(base string) string {
	ext := strings.ToLower(filepath.Ext(base))
	if ext == "" || len(ext) > 8 {
		return "source"
	}
	return "source" + ext
}
