package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/melbahja/got"
)

// Download fetches the media at rawURL into a new directory under dir and opens it as a File.
// Every call gets its own directory, so URLs sharing a base name never overwrite each other.
// An empty mimeType is detected from the downloaded content.
func Download(ctx context.Context, client *http.Client, rawURL, dir, mimeType string) (*File, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse media url: %w", err)
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" {
		name = "media"
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}
	mediaDir, err := os.MkdirTemp(dir, "media-")
	if err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}
	dest := filepath.Join(mediaDir, name)

	downloader := got.New()
	if client != nil {
		downloader.Client = client
	}
	if err := downloader.Do(got.NewDownload(ctx, rawURL, dest)); err != nil {
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}

	return OpenFile(dest, mimeType)
}
