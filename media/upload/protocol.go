package upload

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	commandInit     = "INIT"
	commandAppend   = "APPEND"
	commandFinalize = "FINALIZE"
	commandStatus   = "STATUS"
)

// Success statuses of the upload commands.
const (
	statusInit     = http.StatusAccepted
	statusAppend   = http.StatusNoContent
	statusFinalize = http.StatusCreated
	statusStatus   = http.StatusOK
	statusSimple   = http.StatusOK
)

// ProcessingState is the server-side processing state of a finalized upload.
type ProcessingState string

// Processing states.
const (
	StatePending          ProcessingState = "pending"
	StateInProgress       ProcessingState = "in_progress"
	StateSucceeded        ProcessingState = "succeeded"
	StateProcessingFailed ProcessingState = "failed"
)

// ProcessingInfo is the asynchronous processing status attached to a finalized upload.
type ProcessingInfo struct {
	State ProcessingState `json:"state"`
	// CheckAfterSecs is the server's suggested wait before the next STATUS call.
	CheckAfterSecs  *int             `json:"check_after_secs,omitempty"`
	ProgressPercent int              `json:"progress_percent,omitempty"`
	Error           *ProcessingError `json:"error,omitempty"`
}

// Wait returns the suggested wait, or fallback if the server did not suggest one.
func (i ProcessingInfo) Wait(fallback time.Duration) time.Duration {
	if i.CheckAfterSecs == nil || *i.CheckAfterSecs < 0 {
		return fallback
	}
	return time.Duration(*i.CheckAfterSecs) * time.Second
}

// ProcessingError is the server's explanation of a failed processing.
type ProcessingError struct {
	Code    int    `json:"code"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (e ProcessingError) String() string {
	if e.Name == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

type mediaResponse struct {
	MediaID        json.RawMessage `json:"media_id"`
	MediaIDString  string          `json:"media_id_string"`
	ProcessingInfo *ProcessingInfo `json:"processing_info"`
}

func (r mediaResponse) handle() string {
	if r.MediaIDString != "" {
		return r.MediaIDString
	}
	if len(r.MediaID) == 0 {
		return ""
	}

	var id string
	if err := json.Unmarshal(r.MediaID, &id); err == nil {
		return id
	}
	var number json.Number
	if err := json.Unmarshal(r.MediaID, &number); err == nil {
		return number.String()
	}
	return ""
}

func decodeMediaResponse(body []byte) (mediaResponse, error) {
	var resp mediaResponse
	if len(body) == 0 {
		return resp, fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return mediaResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

func formatSize(n int64) string {
	return strconv.FormatInt(n, 10)
}
