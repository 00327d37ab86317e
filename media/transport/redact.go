package transport

import (
	"net/http"
)

const redacted = "[REDACTED]"

// secretHeaders are never written to logs.
var secretHeaders = []string{"Authorization", "Proxy-Authorization", "Cookie"}

// redactedRequest returns a copy of req safe to dump into logs.
func redactedRequest(req *http.Request) *http.Request {
	clone := req.Clone(req.Context())
	for _, key := range secretHeaders {
		if clone.Header.Get(key) != "" {
			clone.Header.Set(key, redacted)
		}
	}
	return clone
}
