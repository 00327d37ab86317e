package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/bitrise-io/go-mediaupload/media/transport"
	"github.com/bitrise-io/go-utils/v2/analytics"
	"github.com/stretchr/testify/mock"
)

// recordedCall is one decoded multipart request.
type recordedCall struct {
	Command string
	Fields  map[string]string
	Media   []byte
}

type handlerFunc func(call recordedCall, n int) (transport.Response, error)

// fakeTransport decodes upload commands and answers them with scripted handlers.
// n passed to a handler is the 0-based number of earlier calls of the same command.
type fakeTransport struct {
	mu       sync.Mutex
	calls    []recordedCall
	counts   map[string]int
	handlers map[string]handlerFunc
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		counts:   map[string]int{},
		handlers: map[string]handlerFunc{},
	}
}

func (f *fakeTransport) on(command string, h handlerFunc) *fakeTransport {
	f.handlers[command] = h
	return f
}

func (f *fakeTransport) Send(_ context.Context, req transport.Request) (transport.Response, error) {
	call, err := decodeCall(req)
	if err != nil {
		return transport.Response{}, err
	}

	command := call.Command
	if command == "" {
		command = string(PhaseSimple)
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	n := f.counts[command]
	f.counts[command]++
	h, ok := f.handlers[command]
	f.mu.Unlock()

	if !ok {
		return respond(http.StatusNotImplemented, "no handler for "+command), nil
	}
	return h(call, n)
}

func (f *fakeTransport) count(command string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[command]
}

func (f *fakeTransport) callsOf(command string) []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	var calls []recordedCall
	for _, call := range f.calls {
		if call.Command == command {
			calls = append(calls, call)
		}
	}
	return calls
}

func decodeCall(req transport.Request) (recordedCall, error) {
	httpReq, err := http.NewRequest(req.Method, "http://media.test"+req.Path, bytes.NewReader(req.Body))
	if err != nil {
		return recordedCall{}, err
	}
	httpReq.Header = req.Header
	if err := httpReq.ParseMultipartForm(64 << 20); err != nil {
		return recordedCall{}, fmt.Errorf("parse multipart form: %w", err)
	}

	call := recordedCall{Fields: map[string]string{}}
	for name, values := range httpReq.MultipartForm.Value {
		call.Fields[name] = values[0]
	}
	call.Command = call.Fields["command"]

	if files := httpReq.MultipartForm.File["media"]; len(files) > 0 {
		file, err := files[0].Open()
		if err != nil {
			return recordedCall{}, err
		}
		defer file.Close()
		if call.Media, err = io.ReadAll(file); err != nil {
			return recordedCall{}, err
		}
	}

	return call, nil
}

func respond(status int, body string) transport.Response {
	return transport.Response{StatusCode: status, Body: []byte(body)}
}

func always(status int, body string) handlerFunc {
	return func(recordedCall, int) (transport.Response, error) {
		return respond(status, body), nil
	}
}

func sequence(responses ...transport.Response) handlerFunc {
	return func(_ recordedCall, n int) (transport.Response, error) {
		if n >= len(responses) {
			return respond(http.StatusInternalServerError, "unexpected call"), nil
		}
		return responses[n], nil
	}
}

func happyTransport() *fakeTransport {
	return newFakeTransport().
		on(commandInit, always(http.StatusAccepted, `{"media_id":710511363345354753,"media_id_string":"710511363345354753"}`)).
		on(commandAppend, always(http.StatusNoContent, "")).
		on(commandFinalize, always(http.StatusCreated, `{"media_id_string":"710511363345354753"}`))
}

// recordingTimer fires immediately and records every requested wait.
type recordingTimer struct {
	mu    sync.Mutex
	waits []time.Duration
	c     chan time.Time
}

func (t *recordingTimer) Start(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.waits = append(t.waits, d)
	t.c = make(chan time.Time, 1)
	t.c <- time.Now()
}

func (t *recordingTimer) Stop() {}

func (t *recordingTimer) C() <-chan time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.c
}

func (t *recordingTimer) recorded() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.waits...)
}

type memorySource struct {
	*bytes.Reader
	size     int64
	mimeType string
}

func newMemorySource(data []byte, mimeType string) *memorySource {
	return &memorySource{Reader: bytes.NewReader(data), size: int64(len(data)), mimeType: mimeType}
}

func (s *memorySource) Size() int64      { return s.size }
func (s *memorySource) MimeType() string { return s.mimeType }

type mockTracker struct {
	mock.Mock
}

func (m *mockTracker) Enqueue(eventName string, properties ...analytics.Properties) {
	m.Called(eventName, properties)
}

func (m *mockTracker) Wait() {
	m.Called()
}
