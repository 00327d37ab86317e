// Package analytics builds the tracker that reports media upload outcomes.
package analytics

import (
	"github.com/bitrise-io/go-utils/v2/analytics"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/google/uuid"
)

// TrackerFactory creates a tracker that attaches properties to every event.
type TrackerFactory func(log.Logger, ...analytics.Properties) analytics.Tracker

const (
	// RunIDEnvKey groups the events of one run when set.
	RunIDEnvKey = "MEDIA_UPLOAD_RUN_ID"
	// RunID is the property holding the run id.
	RunID = "upload_run_id"
	// APIVersion is the property holding the post API version.
	APIVersion = "api_version"
)

// NewUploadTracker creates a tracker tagged with the run id and API version.
// Without MEDIA_UPLOAD_RUN_ID a random run id is generated.
func NewUploadTracker(repository env.Repository, logger log.Logger, apiVersion string, trackerFactory TrackerFactory) analytics.Tracker {
	runID := repository.Get(RunIDEnvKey)
	if runID == "" {
		runID = uuid.New().String()
	}
	return trackerFactory(logger, analytics.Properties{RunID: runID, APIVersion: apiVersion})
}

// NewDefaultUploadTracker ...
func NewDefaultUploadTracker(repository env.Repository, logger log.Logger, apiVersion string) analytics.Tracker {
	return NewUploadTracker(repository, logger, apiVersion, analytics.NewDefaultTracker)
}
