// Package source provides media sources for the uploader: in-memory bytes,
// local files, S3 objects and remote URLs downloaded to disk.
package source

import (
	"bytes"
	"errors"
)

// ErrNotFound is returned when the referenced media does not exist.
var ErrNotFound = errors.New("media not found")

// Bytes is an in-memory media source.
type Bytes struct {
	*bytes.Reader
	size     int64
	mimeType string
}

// NewBytes creates a media source reading data.
func NewBytes(data []byte, mimeType string) *Bytes {
	return &Bytes{
		Reader:   bytes.NewReader(data),
		size:     int64(len(data)),
		mimeType: mimeType,
	}
}

// Size ...
func (b *Bytes) Size() int64 {
	return b.size
}

// MimeType ...
func (b *Bytes) MimeType() string {
	return b.mimeType
}

// Close ...
func (b *Bytes) Close() error {
	return nil
}
