package upload

import (
	"fmt"
	"time"

	"github.com/bitrise-io/go-mediaupload/media/chunk"
	"github.com/bitrise-io/go-mediaupload/media/retry"
	"github.com/go-playground/validator/v10"
)

const (
	// DefaultUploadPath is the media upload endpoint shared by every command.
	DefaultUploadPath = "/1.1/media/upload.json"
	// DefaultPollInterval is used when the server does not suggest a wait.
	DefaultPollInterval = 5 * time.Second
	// DefaultSimpleCategory is the media_category of single-shot uploads.
	DefaultSimpleCategory = "tweet_image"
)

// Config holds the tunables of an upload.
type Config struct {
	// UploadPath is the path of the upload endpoint on the transport's origin.
	UploadPath string `validate:"required,startswith=/"`

	// MaxChunkSize is the maximum size of one APPEND payload in bytes.
	// Default: 5 MiB
	MaxChunkSize int64 `validate:"gt=0"`

	// MaxAttempts is the attempt budget of every phase call.
	// Default: 3
	MaxAttempts int `validate:"gte=1"`

	// BaseBackoff is the wait after the first failed attempt; it doubles after every further failure.
	// Default: 1 second
	BaseBackoff time.Duration

	// PollInterval is the wait between STATUS calls when the server does not suggest one.
	// Default: 5 seconds
	PollInterval time.Duration

	// SimpleCategory is sent as media_category with single-shot uploads.
	SimpleCategory string

	// ChunkedCategory is sent as media_category with INIT when not empty (e.g. tweet_video).
	ChunkedCategory string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		UploadPath:     DefaultUploadPath,
		MaxChunkSize:   chunk.DefaultSize,
		MaxAttempts:    retry.DefaultMaxAttempts,
		BaseBackoff:    retry.DefaultBaseWait,
		PollInterval:   DefaultPollInterval,
		SimpleCategory: DefaultSimpleCategory,
	}
}

// Validate reports the first invalid field of the configuration.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid upload config: %w", err)
	}
	if c.BaseBackoff < 0 {
		return fmt.Errorf("invalid upload config: negative base backoff %s", c.BaseBackoff)
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("invalid upload config: negative poll interval %s", c.PollInterval)
	}
	return nil
}

func (c Config) retryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.MaxAttempts,
		BaseWait:    c.BaseBackoff,
	}
}
