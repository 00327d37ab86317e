// Package transport sends single signed requests to the media service.
package transport

import (
	"context"
	"fmt"
	"net/http"
)

// Request is one request to the media service. Body is kept in memory so the
// same request can be sent again by a retrying caller.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// Response is the status code and fully read body of one response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// String renders the response the way error messages show it.
func (r Response) String() string {
	return fmt.Sprintf("HTTP %d: %s", r.StatusCode, r.Body)
}

// Transport signs and sends one request. Implementations must be safe for
// concurrent use by multiple upload sessions.
type Transport interface {
	Send(ctx context.Context, req Request) (Response, error)
}

// Signer adds credentials to an outgoing request.
type Signer interface {
	Sign(req *http.Request) error
}

// SignerFunc adapts a function to the Signer interface.
type SignerFunc func(req *http.Request) error

// Sign ...
func (f SignerFunc) Sign(req *http.Request) error {
	return f(req)
}

// BearerToken returns a Signer which sets a bearer Authorization header.
func BearerToken(token string) Signer {
	return SignerFunc(func(req *http.Request) error {
		if token == "" {
			return fmt.Errorf("access token is empty")
		}
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
		return nil
	})
}
