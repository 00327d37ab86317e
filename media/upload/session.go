package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/bitrise-io/go-mediaupload/media/chunk"
	"github.com/bitrise-io/go-mediaupload/media/retry"
	"github.com/bitrise-io/go-mediaupload/media/transport"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
)

// Source is the media to upload. The core reads it sequentially, exactly once.
type Source interface {
	io.Reader
	Size() int64
	MimeType() string
}

// State is the lifecycle state of a Session.
type State int

// Session states.
const (
	StateIdle State = iota
	StateInitiated
	StateAppending
	StateFinalizing
	StateAwaitingProcessing
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitiated:
		return "initiated"
	case StateAppending:
		return "appending"
	case StateFinalizing:
		return "finalizing"
	case StateAwaitingProcessing:
		return "awaiting processing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session drives one chunked upload: INIT, APPEND for every segment, FINALIZE and,
// if the server processes the media asynchronously, STATUS polling.
// A Session is not safe for concurrent use and cannot be reused after it concluded.
type Session struct {
	config    Config
	transport transport.Transport
	policy    retry.Policy
	logger    log.Logger

	state    State
	handle   string
	segments int
}

// NewSession creates a session sending its requests through t.
func NewSession(t transport.Transport, config Config, logger log.Logger) *Session {
	return newSession(t, config, config.retryPolicy(), logger)
}

func newSession(t transport.Transport, config Config, policy retry.Policy, logger log.Logger) *Session {
	return &Session{
		config:    config,
		transport: t,
		policy:    policy,
		logger:    logger,
		state:     StateIdle,
	}
}

// State returns the session's current state.
func (s *Session) State() State {
	return s.state
}

// Handle returns the media handle issued by INIT, or an empty string.
func (s *Session) Handle() string {
	return s.handle
}

// Segments returns the number of segments appended so far.
func (s *Session) Segments() int {
	return s.segments
}

// Run uploads src and waits until the server reports it ready. It returns the media handle.
func (s *Session) Run(ctx context.Context, src Source) (string, error) {
	handle, err := s.Start(ctx, src)
	if err != nil {
		return "", err
	}

	if err := s.AppendAll(ctx, src, handle); err != nil {
		return "", err
	}

	info, err := s.Finalize(ctx, handle)
	if err != nil {
		return "", err
	}

	if info != nil {
		if err := s.AwaitProcessing(ctx, handle, *info); err != nil {
			return "", err
		}
	}

	return handle, nil
}

// Start sends INIT and returns the media handle.
func (s *Session) Start(ctx context.Context, src Source) (string, error) {
	if err := s.expect(StateIdle); err != nil {
		return "", err
	}

	form := transport.NewForm().
		Add("command", commandInit).
		Add("total_bytes", formatSize(src.Size())).
		Add("media_type", src.MimeType())
	if s.config.ChunkedCategory != "" {
		form.Add("media_category", s.config.ChunkedCategory)
	}

	s.logger.Infof("Initializing upload of %s (%s)", units.HumanSizeWithPrecision(float64(src.Size()), 3), src.MimeType())

	resp, err := s.call(ctx, PhaseInit, -1, form, statusInit)
	if err != nil {
		return "", s.fail(err)
	}

	media, err := decodeMediaResponse(resp.Body)
	if err == nil && media.handle() == "" {
		err = fmt.Errorf("response has no media id")
	}
	if err != nil {
		return "", s.fail(violation(PhaseInit, "", resp, err))
	}

	s.handle = media.handle()
	s.state = StateInitiated
	s.logger.Debugf("Media ID: %s", s.handle)

	return s.handle, nil
}

// AppendAll sends every segment of src in index order.
func (s *Session) AppendAll(ctx context.Context, src Source, handle string) error {
	if err := s.expect(StateInitiated); err != nil {
		return err
	}
	if handle != s.handle {
		return fmt.Errorf("%w: media %s belongs to another session", ErrInvalidState, handle)
	}

	plan, err := chunk.NewPlan(src.Size(), s.config.MaxChunkSize)
	if err != nil {
		return s.fail(err)
	}

	s.state = StateAppending
	s.logger.Infof("Uploading %s in %d segment(s) of up to %s",
		units.HumanSizeWithPrecision(float64(plan.Total()), 3), plan.Count(), units.HumanSizeWithPrecision(float64(plan.ChunkSize()), 3))

	reader := plan.NewReader(src)
	for {
		segment, payload, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return s.fail(fmt.Errorf("%s (media %s): %w", PhaseAppend, handle, err))
		}

		form := transport.NewForm().
			Add("command", commandAppend).
			Add("media_id", handle).
			Add("segment_index", strconv.Itoa(segment.Index)).
			AddFile("media", "blob", payload)

		start := time.Now()
		if _, err := s.call(ctx, PhaseAppend, segment.Index, form, statusAppend); err != nil {
			return s.fail(err)
		}
		s.segments++
		s.logger.Debugf("Segment %d/%d uploaded in %s", segment.Index+1, plan.Count(), time.Since(start).Round(time.Millisecond))
	}

	s.state = StateFinalizing

	return nil
}

// Finalize sends FINALIZE. The returned processing info is nil when the media is ready right away.
func (s *Session) Finalize(ctx context.Context, handle string) (*ProcessingInfo, error) {
	if err := s.expect(StateFinalizing); err != nil {
		return nil, err
	}

	form := transport.NewForm().
		Add("command", commandFinalize).
		Add("media_id", handle)

	resp, err := s.call(ctx, PhaseFinalize, -1, form, statusFinalize)
	if err != nil {
		return nil, s.fail(err)
	}

	// An empty body carries no processing info; anything else must be valid JSON.
	var media mediaResponse
	if len(resp.Body) > 0 {
		media, err = decodeMediaResponse(resp.Body)
		if err != nil {
			return nil, s.fail(violation(PhaseFinalize, handle, resp, err))
		}
	}

	if media.ProcessingInfo == nil {
		s.state = StateCompleted
		s.logger.Donef("Media %s uploaded", handle)
		return nil, nil
	}

	s.state = StateAwaitingProcessing
	return media.ProcessingInfo, nil
}

// AwaitProcessing polls STATUS until the server reports a terminal processing state.
func (s *Session) AwaitProcessing(ctx context.Context, handle string, info ProcessingInfo) error {
	if err := s.expect(StateAwaitingProcessing); err != nil {
		return err
	}

	p := poller{
		session:  s,
		interval: s.config.PollInterval,
		timer:    s.policy.Timer,
	}
	if err := p.await(ctx, handle, info); err != nil {
		return s.fail(err)
	}

	s.state = StateCompleted
	s.logger.Donef("Media %s uploaded and processed", handle)

	return nil
}

// call sends one phase request through the retry policy and returns the successful response.
func (s *Session) call(ctx context.Context, phase Phase, segment int, form *transport.Form, expected int) (transport.Response, error) {
	return send(ctx, s.transport, s.policy, s.logger, phaseCall{
		phase:    phase,
		handle:   s.handle,
		segment:  segment,
		path:     s.config.UploadPath,
		form:     form,
		expected: expected,
	})
}

func (s *Session) expect(state State) error {
	if s.state == StateFailed {
		return ErrSessionFailed
	}
	if s.state != state {
		return fmt.Errorf("%w: session is %s, expected %s", ErrInvalidState, s.state, state)
	}
	return nil
}

func (s *Session) fail(err error) error {
	s.state = StateFailed
	return err
}

type phaseCall struct {
	phase    Phase
	handle   string
	segment  int
	path     string
	form     *transport.Form
	expected int
}

// send runs a phase call: any transport failure or status other than the expected
// one is retried until the policy's budget is used up.
func send(ctx context.Context, t transport.Transport, policy retry.Policy, logger log.Logger, c phaseCall) (transport.Response, error) {
	req, err := c.form.Request(c.path)
	if err != nil {
		return transport.Response{}, fmt.Errorf("%s: %w", c.phase, err)
	}

	policy.Notify = func(err error, attempt int, wait time.Duration) {
		logger.Warnf("%s attempt %d/%d failed: %s, retrying in %s", c.phase, attempt+1, policy.MaxAttempts, err, wait)
	}

	var resp transport.Response
	attempts, err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		r, err := t.Send(ctx, req)
		if err != nil {
			callErr := newError(ErrTransport, c.phase, c.handle)
			callErr.Segment = c.segment
			callErr.Err = err
			return callErr
		}
		if r.StatusCode != c.expected {
			callErr := newError(ErrUnexpectedStatus, c.phase, c.handle)
			callErr.Segment = c.segment
			callErr.Status = r.StatusCode
			callErr.Body = r.Body
			return callErr
		}
		resp = r
		return nil
	})
	if err != nil {
		var callErr *Error
		if errors.As(err, &callErr) {
			callErr.Attempts = attempts
			return transport.Response{}, callErr
		}
		return transport.Response{}, fmt.Errorf("%s: %w", c.phase, err)
	}

	return resp, nil
}

func violation(phase Phase, handle string, resp transport.Response, cause error) *Error {
	err := newError(ErrProtocolViolation, phase, handle)
	err.Status = resp.StatusCode
	err.Body = resp.Body
	err.Err = cause
	return err
}
