// Package post creates posts that reference uploaded media.
//
// Posters of different API versions share one upload.Uploader through a Publisher
// instead of each carrying its own copy of the upload machinery.
package post

import (
	"context"
	"fmt"

	"github.com/bitrise-io/go-mediaupload/media/upload"
	"github.com/bitrise-io/go-utils/v2/log"
)

// Message is the content of a new post.
type Message struct {
	Text     string
	MediaIDs []string
}

// Status is a created post.
type Status struct {
	ID   string
	Text string
}

// Poster creates one post. Posting is not idempotent, so implementations never retry.
type Poster interface {
	Post(ctx context.Context, message Message) (Status, error)
}

// MediaUploader uploads one media source and returns its ready media handle.
type MediaUploader interface {
	Upload(ctx context.Context, src upload.Source) (string, error)
}

// Publisher uploads media and creates a post referencing it.
type Publisher struct {
	uploader MediaUploader
	poster   Poster
	logger   log.Logger
}

// NewPublisher ...
func NewPublisher(uploader MediaUploader, poster Poster, logger log.Logger) *Publisher {
	return &Publisher{
		uploader: uploader,
		poster:   poster,
		logger:   logger,
	}
}

// Publish uploads every source in order, then posts text with all media handles.
// Nothing is posted if any upload fails.
func (p *Publisher) Publish(ctx context.Context, text string, sources ...upload.Source) (Status, error) {
	mediaIDs := make([]string, 0, len(sources))
	for i, src := range sources {
		p.logger.Printf("Uploading media %d/%d", i+1, len(sources))

		handle, err := p.uploader.Upload(ctx, src)
		if err != nil {
			return Status{}, fmt.Errorf("upload media %d: %w", i+1, err)
		}
		mediaIDs = append(mediaIDs, handle)
	}

	status, err := p.poster.Post(ctx, Message{Text: text, MediaIDs: mediaIDs})
	if err != nil {
		return Status{}, err
	}
	p.logger.Donef("Post %s created", status.ID)

	return status, nil
}
