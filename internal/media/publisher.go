package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Publisher makes a finished artifact available and returns its URL
type Publisher interface {
	Publish(ctx context.Context, src, name string) (string, error)
}

// DirPublisher moves artifacts into a directory served under BaseURL
type DirPublisher struct {
	Dir     string
	BaseURL string
}

// NewDirPublisher creates dir if needed and returns a publisher for it
func NewDirPublisher(dir, baseURL string) (*DirPublisher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir %s: %w", dir, err)
	}
	return &DirPublisher{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Publish copies src into the output directory as name. The artifact is
// written under a temporary name and renamed, so readers never see a
// partial file.
func (p *DirPublisher) Publish(ctx context.Context, src, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to open artifact: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(p.Dir, ".publish-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("failed to set artifact mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(p.Dir, name)); err != nil {
		return "", fmt.Errorf("failed to publish artifact: %w", err)
	}

	return p.BaseURL + "/" + name, nil
}
