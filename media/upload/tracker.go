package upload

import (
	"errors"
	"time"

	"github.com/bitrise-io/go-utils/v2/analytics"
)

type uploadTracker struct {
	tracker analytics.Tracker
}

func newUploadTracker(tracker analytics.Tracker) uploadTracker {
	return uploadTracker{tracker: tracker}
}

func (t uploadTracker) logCompleted(chunked bool, src Source, segments int, took time.Duration) {
	if t.tracker == nil {
		return
	}
	properties := analytics.Properties{
		"chunked":           chunked,
		"media_type":        src.MimeType(),
		"upload_size_bytes": src.Size(),
		"segment_count":     segments,
		"upload_time_s":     took.Truncate(time.Second).Seconds(),
	}
	t.tracker.Enqueue("media_upload_completed", properties)
}

func (t uploadTracker) logFailed(chunked bool, src Source, err error) {
	if t.tracker == nil {
		return
	}
	properties := analytics.Properties{
		"chunked":           chunked,
		"media_type":        src.MimeType(),
		"upload_size_bytes": src.Size(),
	}

	var uploadErr *Error
	if errors.As(err, &uploadErr) {
		properties["phase"] = string(uploadErr.Phase)
		properties["status_code"] = uploadErr.Status
		properties["attempts"] = uploadErr.Attempts
		properties["error_kind"] = uploadErr.Kind.Error()
	}
	t.tracker.Enqueue("media_upload_failed", properties)
}

func (t uploadTracker) wait() {
	if t.tracker != nil {
		t.tracker.Wait()
	}
}
