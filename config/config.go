// Package config reads the media upload settings from the environment.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bitrise-io/go-mediaupload/media/source"
	"github.com/bitrise-io/go-mediaupload/media/upload"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/docker/go-units"
	"github.com/go-playground/validator/v10"
)

// Environment keys.
const (
	UploadBaseURLKey   = "MEDIA_UPLOAD_BASE_URL"
	APIBaseURLKey      = "MEDIA_API_BASE_URL"
	AccessTokenKey     = "MEDIA_ACCESS_TOKEN"
	APIVersionKey      = "MEDIA_API_VERSION"
	ChunkSizeKey       = "MEDIA_CHUNK_SIZE"
	MaxAttemptsKey     = "MEDIA_MAX_ATTEMPTS"
	RetryBackoffKey    = "MEDIA_RETRY_BACKOFF"
	PollIntervalKey    = "MEDIA_POLL_INTERVAL"
	ChunkedCategoryKey = "MEDIA_CHUNKED_CATEGORY"
	DownloadDirKey     = "MEDIA_DOWNLOAD_DIR"
	VerboseKey         = "MEDIA_VERBOSE"
	AnalyticsKey       = "MEDIA_ANALYTICS"

	S3RegionKey          = "MEDIA_S3_REGION"
	S3EndpointKey        = "MEDIA_S3_ENDPOINT"
	S3AccessKeyIDKey     = "MEDIA_S3_ACCESS_KEY_ID"
	S3SecretAccessKeyKey = "MEDIA_S3_SECRET_ACCESS_KEY"
)

// API versions of the post caller.
const (
	APIVersionV1 = "v1"
	APIVersionV2 = "v2"
)

const (
	defaultUploadBaseURL = "https://upload.twitter.com"
	defaultAPIBaseURL    = "https://api.twitter.com"
	defaultS3Region      = "us-east-1"
)

// Settings ...
type Settings struct {
	UploadBaseURL string `validate:"required,url"`
	APIBaseURL    string `validate:"required,url"`
	AccessToken   string `validate:"required"`
	APIVersion    string `validate:"oneof=v1 v2"`
	DownloadDir   string
	Verbose       bool
	Analytics     bool

	Upload upload.Config
	S3     source.S3Params
}

// Load reads the settings from repository, falling back to defaults for unset keys.
func Load(repository env.Repository) (Settings, error) {
	settings := Settings{
		UploadBaseURL: valueOr(repository, UploadBaseURLKey, defaultUploadBaseURL),
		APIBaseURL:    valueOr(repository, APIBaseURLKey, defaultAPIBaseURL),
		AccessToken:   strings.TrimSpace(repository.Get(AccessTokenKey)),
		APIVersion:    strings.ToLower(valueOr(repository, APIVersionKey, APIVersionV2)),
		DownloadDir:   repository.Get(DownloadDirKey),
		Upload:        upload.DefaultConfig(),
		S3: source.S3Params{
			Region:          valueOr(repository, S3RegionKey, defaultS3Region),
			Endpoint:        repository.Get(S3EndpointKey),
			AccessKeyID:     repository.Get(S3AccessKeyIDKey),
			SecretAccessKey: repository.Get(S3SecretAccessKeyKey),
		},
	}

	if s := repository.Get(ChunkSizeKey); s != "" {
		size, err := units.RAMInBytes(s)
		if err != nil {
			return Settings{}, fmt.Errorf("parse %s: %w", ChunkSizeKey, err)
		}
		settings.Upload.MaxChunkSize = size
	}

	if s := repository.Get(MaxAttemptsKey); s != "" {
		attempts, err := strconv.Atoi(s)
		if err != nil {
			return Settings{}, fmt.Errorf("parse %s: %w", MaxAttemptsKey, err)
		}
		settings.Upload.MaxAttempts = attempts
	}

	var err error
	if settings.Upload.BaseBackoff, err = durationOr(repository, RetryBackoffKey, settings.Upload.BaseBackoff); err != nil {
		return Settings{}, err
	}
	if settings.Upload.PollInterval, err = durationOr(repository, PollIntervalKey, settings.Upload.PollInterval); err != nil {
		return Settings{}, err
	}

	settings.Upload.ChunkedCategory = repository.Get(ChunkedCategoryKey)

	if settings.Verbose, err = boolOr(repository, VerboseKey, false); err != nil {
		return Settings{}, err
	}
	if settings.Analytics, err = boolOr(repository, AnalyticsKey, false); err != nil {
		return Settings{}, err
	}

	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}

	return settings, nil
}

// Validate ...
func (s Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return s.Upload.Validate()
}

func valueOr(repository env.Repository, key, fallback string) string {
	if value := strings.TrimSpace(repository.Get(key)); value != "" {
		return value
	}
	return fallback
}

func durationOr(repository env.Repository, key string, fallback time.Duration) (time.Duration, error) {
	s := repository.Get(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func boolOr(repository env.Repository, key string, fallback bool) (bool, error) {
	s := repository.Get(key)
	if s == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}
