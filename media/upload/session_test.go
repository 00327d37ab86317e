package upload

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/bitrise-io/go-mediaupload/media/transport"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mib = 1024 * 1024

func newTestSession(t *fakeTransport, timer *recordingTimer) *Session {
	config := DefaultConfig()
	policy := config.retryPolicy()
	policy.Timer = timer
	return newSession(t, config, policy, log.NewLogger())
}

func testData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func TestSession_Run_EndToEnd(t *testing.T) {
	fake := happyTransport()
	timer := &recordingTimer{}
	session := newTestSession(fake, timer)
	data := testData(12 * mib)

	handle, err := session.Run(context.Background(), newMemorySource(data, "video/mp4"))
	require.NoError(t, err)

	assert.Equal(t, "710511363345354753", handle)
	assert.Equal(t, StateCompleted, session.State())
	assert.Equal(t, 1, fake.count(commandInit))
	assert.Equal(t, 3, fake.count(commandAppend))
	assert.Equal(t, 1, fake.count(commandFinalize))
	assert.Equal(t, 0, fake.count(commandStatus))
	assert.Empty(t, timer.recorded())

	init := fake.callsOf(commandInit)[0]
	assert.Equal(t, strconv.Itoa(12*mib), init.Fields["total_bytes"])
	assert.Equal(t, "video/mp4", init.Fields["media_type"])
	assert.NotContains(t, init.Fields, "media_category")

	var uploaded []byte
	wantLengths := []int{5 * mib, 5 * mib, 2 * mib}
	for i, call := range fake.callsOf(commandAppend) {
		assert.Equal(t, strconv.Itoa(i), call.Fields["segment_index"])
		assert.Equal(t, handle, call.Fields["media_id"])
		assert.Len(t, call.Media, wantLengths[i])
		uploaded = append(uploaded, call.Media...)
	}
	assert.True(t, bytes.Equal(data, uploaded), "appended payloads differ from the source")

	finalize := fake.callsOf(commandFinalize)[0]
	assert.Equal(t, handle, finalize.Fields["media_id"])
}

func TestSession_Run_EmptySource(t *testing.T) {
	fake := happyTransport()
	session := newTestSession(fake, &recordingTimer{})

	_, err := session.Run(context.Background(), newMemorySource(nil, "video/mp4"))
	require.NoError(t, err)

	appends := fake.callsOf(commandAppend)
	require.Len(t, appends, 1)
	assert.Equal(t, "0", appends[0].Fields["segment_index"])
	assert.Empty(t, appends[0].Media)
}

func TestSession_Start_ChunkedCategory(t *testing.T) {
	fake := happyTransport()
	config := DefaultConfig()
	config.ChunkedCategory = "tweet_video"
	session := NewSession(fake, config, log.NewLogger())

	_, err := session.Start(context.Background(), newMemorySource([]byte("abc"), "video/mp4"))
	require.NoError(t, err)

	assert.Equal(t, "tweet_video", fake.callsOf(commandInit)[0].Fields["media_category"])
	assert.Equal(t, StateInitiated, session.State())
}

func TestSession_Start_RetryExhaustion(t *testing.T) {
	fake := newFakeTransport().on(commandInit, always(http.StatusServiceUnavailable, "over capacity"))
	timer := &recordingTimer{}
	session := newTestSession(fake, timer)

	_, err := session.Run(context.Background(), newMemorySource(testData(10), "video/mp4"))
	require.Error(t, err)

	var uploadErr *Error
	require.True(t, errors.As(err, &uploadErr))
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))
	assert.Equal(t, PhaseInit, uploadErr.Phase)
	assert.Equal(t, "", uploadErr.Handle)
	assert.Equal(t, http.StatusServiceUnavailable, uploadErr.Status)
	assert.Equal(t, "over capacity", string(uploadErr.Body))
	assert.Equal(t, 3, uploadErr.Attempts)
	assert.EqualError(t, err, "INIT: unexpected status: HTTP 503: over capacity (after 3 attempts)")

	assert.Equal(t, 3, fake.count(commandInit))
	assert.Equal(t, 0, fake.count(commandAppend))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, timer.recorded())
	assert.Equal(t, StateFailed, session.State())

	_, err = session.Run(context.Background(), newMemorySource(testData(10), "video/mp4"))
	assert.Equal(t, ErrSessionFailed, err)
	assert.Equal(t, 3, fake.count(commandInit))
}

func TestSession_Start_TransportFailuresUseTheSameBudget(t *testing.T) {
	fake := newFakeTransport().on(commandInit, func(recordedCall, int) (transport.Response, error) {
		return transport.Response{}, errors.New("dial tcp: connection refused")
	})
	timer := &recordingTimer{}
	session := newTestSession(fake, timer)

	_, err := session.Start(context.Background(), newMemorySource(testData(10), "video/mp4"))

	assert.True(t, errors.Is(err, ErrTransport))
	assert.Equal(t, 3, fake.count(commandInit))
	assert.Len(t, timer.recorded(), 2)
}

func TestSession_Start_MissingMediaID(t *testing.T) {
	fake := newFakeTransport().on(commandInit, always(http.StatusAccepted, `{"expires_after_secs":86400}`))
	timer := &recordingTimer{}
	session := newTestSession(fake, timer)

	_, err := session.Start(context.Background(), newMemorySource(testData(10), "video/mp4"))

	assert.True(t, errors.Is(err, ErrProtocolViolation))
	assert.Equal(t, 1, fake.count(commandInit))
	assert.Empty(t, timer.recorded())
	assert.Equal(t, StateFailed, session.State())
}

func TestSession_AppendAll_Recovery(t *testing.T) {
	fake := happyTransport().on(commandAppend, func(call recordedCall, n int) (transport.Response, error) {
		// segment 1 fails twice before it is accepted
		if call.Fields["segment_index"] == "1" && n < 3 {
			return respond(http.StatusInternalServerError, "internal error"), nil
		}
		return respond(http.StatusNoContent, ""), nil
	})
	timer := &recordingTimer{}
	session := newTestSession(fake, timer)
	data := testData(12)
	session.config.MaxChunkSize = 5

	_, err := session.Run(context.Background(), newMemorySource(data, "video/mp4"))
	require.NoError(t, err)

	var indices []string
	for _, call := range fake.callsOf(commandAppend) {
		indices = append(indices, call.Fields["segment_index"])
	}
	assert.Equal(t, []string{"0", "1", "1", "1", "2"}, indices)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, timer.recorded())

	retried := fake.callsOf(commandAppend)[1:4]
	for _, call := range retried {
		assert.Equal(t, data[5:10], call.Media)
	}
}

func TestSession_AppendAll_Exhaustion(t *testing.T) {
	fake := happyTransport().on(commandAppend, func(call recordedCall, n int) (transport.Response, error) {
		if call.Fields["segment_index"] == "1" {
			return respond(http.StatusBadRequest, `{"errors":[{"code":324}]}`), nil
		}
		return respond(http.StatusNoContent, ""), nil
	})
	session := newTestSession(fake, &recordingTimer{})
	session.config.MaxChunkSize = 4

	_, err := session.Run(context.Background(), newMemorySource(testData(12), "video/mp4"))

	var uploadErr *Error
	require.True(t, errors.As(err, &uploadErr))
	assert.Equal(t, PhaseAppend, uploadErr.Phase)
	assert.Equal(t, 1, uploadErr.Segment)
	assert.Equal(t, "710511363345354753", uploadErr.Handle)
	assert.Equal(t, http.StatusBadRequest, uploadErr.Status)
	assert.Equal(t, 4, fake.count(commandAppend))
	assert.Equal(t, 0, fake.count(commandFinalize))
}

func TestSession_AppendAll_ShortSource(t *testing.T) {
	fake := happyTransport()
	session := newTestSession(fake, &recordingTimer{})
	src := newMemorySource(testData(4), "video/mp4")
	src.size = 10

	_, err := session.Run(context.Background(), src)

	assert.Error(t, err)
	assert.Equal(t, 0, fake.count(commandAppend))
	assert.Equal(t, StateFailed, session.State())
}

func TestSession_Finalize_UnexpectedStatus(t *testing.T) {
	fake := happyTransport().on(commandFinalize, always(http.StatusBadRequest, "invalid media"))
	session := newTestSession(fake, &recordingTimer{})

	handle, err := session.Run(context.Background(), newMemorySource(testData(10), "video/mp4"))

	assert.Empty(t, handle)
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))
	assert.Equal(t, 3, fake.count(commandFinalize))
	assert.Equal(t, StateFailed, session.State())
}

func TestSession_PhasesOutOfOrder(t *testing.T) {
	session := newTestSession(happyTransport(), &recordingTimer{})

	_, err := session.Finalize(context.Background(), "1")
	assert.True(t, errors.Is(err, ErrInvalidState))

	err = session.AppendAll(context.Background(), newMemorySource(nil, "video/mp4"), "1")
	assert.True(t, errors.Is(err, ErrInvalidState))

	assert.Equal(t, StateIdle, session.State())
}

func TestSession_AppendAll_ForeignHandle(t *testing.T) {
	session := newTestSession(happyTransport(), &recordingTimer{})
	src := newMemorySource(testData(3), "video/mp4")

	_, err := session.Start(context.Background(), src)
	require.NoError(t, err)

	err = session.AppendAll(context.Background(), src, "other")
	assert.True(t, errors.Is(err, ErrInvalidState))
}
