package upload

import (
	"context"
	"fmt"
	"time"

	"github.com/bitrise-io/go-mediaupload/media/retry"
	"github.com/bitrise-io/go-mediaupload/media/transport"
	"github.com/cenkalti/backoff/v4"
)

// poller waits for the asynchronous processing of a finalized upload.
// The protocol puts no bound on how long processing may take; ctx is the only limit.
type poller struct {
	session  *Session
	interval time.Duration
	timer    backoff.Timer
}

func (p poller) await(ctx context.Context, handle string, info ProcessingInfo) error {
	logger := p.session.logger

	switch info.State {
	case StateSucceeded:
		return nil
	case StatePending, StateInProgress:
	default:
		return processingFailed(PhaseFinalize, handle, info, transport.Response{})
	}

	for polls := 1; ; polls++ {
		wait := info.Wait(p.interval)
		logger.Printf("Media %s is %s (%d%%), checking again in %s", handle, info.State, info.ProgressPercent, wait)

		if err := retry.Sleep(ctx, p.timer, wait); err != nil {
			return fmt.Errorf("%s (media %s): %w", PhaseStatus, handle, err)
		}

		next, resp, err := p.status(ctx, handle)
		if err != nil {
			return err
		}
		logger.Debugf("STATUS #%d: %s", polls, next.State)

		switch next.State {
		case StateSucceeded:
			return nil
		case StateInProgress:
			info = next
		default:
			// pending after pending/in_progress would be a backwards transition.
			return processingFailed(PhaseStatus, handle, next, resp)
		}
	}
}

func (p poller) status(ctx context.Context, handle string) (ProcessingInfo, transport.Response, error) {
	form := transport.NewForm().
		Add("command", commandStatus).
		Add("media_id", handle)

	resp, err := p.session.call(ctx, PhaseStatus, -1, form, statusStatus)
	if err != nil {
		return ProcessingInfo{}, resp, err
	}

	media, err := decodeMediaResponse(resp.Body)
	if err == nil && media.ProcessingInfo == nil {
		err = fmt.Errorf("response has no processing info")
	}
	if err != nil {
		return ProcessingInfo{}, resp, violation(PhaseStatus, handle, resp, err)
	}

	return *media.ProcessingInfo, resp, nil
}

func processingFailed(phase Phase, handle string, info ProcessingInfo, resp transport.Response) *Error {
	err := newError(ErrProcessingFailed, phase, handle)
	err.Status = resp.StatusCode
	err.Body = resp.Body
	err.Detail = info.Error
	if info.Error == nil {
		err.Err = fmt.Errorf("state %q", info.State)
	}
	return err
}
