package source

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/gabriel-vasile/mimetype"
)

// File is a media source backed by a local file.
type File struct {
	*os.File
	path     string
	size     int64
	mimeType string
}

// OpenFile opens the media file at path. An empty mimeType is detected from the file's content.
// The path may be relative or start with ~.
func OpenFile(path, mimeType string) (*File, error) {
	absPath, err := pathutil.NewPathModifier().AbsPath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path %s: %w", path, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, absPath)
		}
		return nil, fmt.Errorf("stat %s: %w", absPath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", absPath)
	}

	if mimeType == "" {
		detected, err := mimetype.DetectFile(absPath)
		if err != nil {
			return nil, fmt.Errorf("detect media type of %s: %w", absPath, err)
		}
		mimeType = detected.String()
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return &File{
		File:     file,
		path:     absPath,
		size:     info.Size(),
		mimeType: mimeType,
	}, nil
}

// Path returns the absolute path of the file.
func (f *File) Path() string {
	return f.path
}

// Size ...
func (f *File) Size() int64 {
	return f.size
}

// MimeType ...
func (f *File) MimeType() string {
	return f.mimeType
}
