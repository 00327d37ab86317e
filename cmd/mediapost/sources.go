package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/bitrise-io/go-mediaupload/media/source"
	"github.com/bitrise-io/go-mediaupload/media/upload"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bmatcuk/doublestar/v4"
)

// mediaFlag collects every -media argument.
type mediaFlag []string

func (f *mediaFlag) String() string {
	return strings.Join(*f, ",")
}

func (f *mediaFlag) Set(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("empty media argument")
	}
	*f = append(*f, value)
	return nil
}

type sourceOpener struct {
	s3Params    source.S3Params
	downloadDir string
	logger      log.Logger

	s3Client source.ObjectAPI
	tempDir  string
}

// open resolves every argument to media sources, in argument order.
// Local paths are glob patterns; s3:// and http(s):// arguments name one object each.
// On error, the sources opened so far are closed.
func (o *sourceOpener) open(ctx context.Context, args []string) ([]upload.Source, error) {
	var sources []upload.Source
	for _, arg := range args {
		opened, err := o.openArg(ctx, arg)
		if err != nil {
			closeSources(sources, o.logger)
			return nil, err
		}
		sources = append(sources, opened...)
	}
	return sources, nil
}

func (o *sourceOpener) openArg(ctx context.Context, arg string) ([]upload.Source, error) {
	u, err := url.Parse(arg)
	if err == nil {
		switch u.Scheme {
		case "s3":
			src, err := o.openS3(ctx, u)
			if err != nil {
				return nil, err
			}
			return []upload.Source{src}, nil
		case "http", "https":
			src, err := o.download(ctx, arg)
			if err != nil {
				return nil, err
			}
			return []upload.Source{src}, nil
		}
	}

	matches, err := doublestar.FilepathGlob(arg)
	if err != nil {
		return nil, fmt.Errorf("expand %s: %w", arg, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no media matches %s", arg)
	}

	var sources []upload.Source
	for _, match := range matches {
		src, err := source.OpenFile(match, "")
		if err != nil {
			closeSources(sources, o.logger)
			return nil, err
		}
		o.logger.Debugf("Media %s (%s)", match, src.MimeType())
		sources = append(sources, src)
	}
	return sources, nil
}

func (o *sourceOpener) openS3(ctx context.Context, u *url.URL) (upload.Source, error) {
	if o.s3Client == nil {
		client, err := source.NewS3Client(ctx, o.s3Params)
		if err != nil {
			return nil, err
		}
		o.s3Client = client
	}
	return source.OpenS3(ctx, o.s3Client, u.Host, strings.TrimPrefix(u.Path, "/"), "")
}

func (o *sourceOpener) download(ctx context.Context, rawURL string) (upload.Source, error) {
	dir := o.downloadDir
	if dir == "" {
		if o.tempDir == "" {
			tmp, err := os.MkdirTemp("", "mediapost")
			if err != nil {
				return nil, fmt.Errorf("create download dir: %w", err)
			}
			o.tempDir = tmp
		}
		dir = o.tempDir
	}
	o.logger.Printf("Downloading %s", rawURL)
	return source.Download(ctx, nil, rawURL, dir, "")
}

// cleanup removes the temporary download directory. A configured download dir is kept.
func (o *sourceOpener) cleanup() {
	if o.tempDir == "" {
		return
	}
	if err := os.RemoveAll(o.tempDir); err != nil {
		o.logger.Warnf("Failed to remove download dir: %s", err)
	}
	o.tempDir = ""
}

func closeSources(sources []upload.Source, logger log.Logger) {
	for _, src := range sources {
		if closer, ok := src.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				logger.Warnf("Failed to close media source: %s", err)
			}
		}
	}
}
