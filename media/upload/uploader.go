package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bitrise-io/go-mediaupload/media/retry"
	"github.com/bitrise-io/go-mediaupload/media/transport"
	"github.com/bitrise-io/go-utils/v2/analytics"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/cenkalti/backoff/v4"
)

// Uploader uploads media and returns ready media handles.
// Video goes through a chunked Session, everything else through one single-shot request.
// An Uploader is safe for concurrent use; every Upload runs its own session.
type Uploader struct {
	transport transport.Transport
	config    Config
	logger    log.Logger
	tracker   uploadTracker

	// timer replaces the real backoff and poll timer in tests.
	timer backoff.Timer
}

// NewUploader creates an Uploader sending requests through t. tracker may be nil.
func NewUploader(t transport.Transport, config Config, logger log.Logger, tracker analytics.Tracker) (*Uploader, error) {
	if t == nil {
		return nil, fmt.Errorf("transport must not be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Uploader{
		transport: t,
		config:    config,
		logger:    logger,
		tracker:   newUploadTracker(tracker),
	}, nil
}

// IsChunked reports whether media of the given MIME type needs the chunked upload.
func IsChunked(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "video/")
}

// Upload uploads src and returns its media handle once the server reports it ready.
func (u *Uploader) Upload(ctx context.Context, src Source) (string, error) {
	start := time.Now()

	if !IsChunked(src.MimeType()) {
		handle, err := u.uploadSimple(ctx, src)
		if err != nil {
			u.tracker.logFailed(false, src, err)
			return "", err
		}
		u.tracker.logCompleted(false, src, 1, time.Since(start))
		return handle, nil
	}

	session := newSession(u.transport, u.config, u.policy(), u.logger)
	handle, err := session.Run(ctx, src)
	if err != nil {
		u.tracker.logFailed(true, src, err)
		return "", err
	}
	u.tracker.logCompleted(true, src, session.Segments(), time.Since(start))

	return handle, nil
}

// Wait blocks until every enqueued analytics event is sent.
func (u *Uploader) Wait() {
	u.tracker.wait()
}

func (u *Uploader) uploadSimple(ctx context.Context, src Source) (string, error) {
	data := make([]byte, src.Size())
	if _, err := io.ReadFull(src, data); err != nil {
		return "", fmt.Errorf("%s: read media: %w", PhaseSimple, err)
	}

	form := transport.NewForm().AddFile("media", "blob", data)
	if u.config.SimpleCategory != "" {
		form.Add("media_category", u.config.SimpleCategory)
	}

	u.logger.Infof("Uploading %s in one request", src.MimeType())

	resp, err := send(ctx, u.transport, u.policy(), u.logger, phaseCall{
		phase:    PhaseSimple,
		segment:  -1,
		path:     u.config.UploadPath,
		form:     form,
		expected: statusSimple,
	})
	if err != nil {
		return "", err
	}

	media, err := decodeMediaResponse(resp.Body)
	if err == nil && media.handle() == "" {
		err = errors.New("response has no media id")
	}
	if err != nil {
		return "", violation(PhaseSimple, "", resp, err)
	}

	u.logger.Donef("Media %s uploaded", media.handle())

	return media.handle(), nil
}

func (u *Uploader) policy() retry.Policy {
	policy := u.config.retryPolicy()
	policy.Timer = u.timer
	return policy
}
