package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"strings"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// HTTPClient is a Transport sending requests to one origin.
//
// It makes exactly one attempt per Send: the attempt budget of an upload phase
// belongs to the caller's retry policy, so transport failures and unexpected
// statuses are counted the same way.
type HTTPClient struct {
	httpClient *retryablehttp.Client
	baseURL    string
	signer     Signer
	logger     log.Logger
}

// NewHTTPClient creates a Transport for baseURL. signer may be nil for unsigned requests.
func NewHTTPClient(baseURL string, signer Signer, logger log.Logger) *HTTPClient {
	client := retryhttp.NewClient(logger)
	client.RetryMax = 0
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return newHTTPClient(client, baseURL, signer, logger)
}

func newHTTPClient(client *retryablehttp.Client, baseURL string, signer Signer, logger log.Logger) *HTTPClient {
	return &HTTPClient{
		httpClient: client,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		signer:     signer,
		logger:     logger,
	}
}

// Send ...
func (c *HTTPClient) Send(ctx context.Context, request Request) (Response, error) {
	url := c.baseURL + request.Path

	req, err := retryablehttp.NewRequestWithContext(ctx, request.Method, url, request.Body)
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	for k, values := range request.Header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.ContentLength = int64(len(request.Body))

	if c.signer != nil {
		if err := c.signer.Sign(req.Request); err != nil {
			return Response{}, fmt.Errorf("sign request: %w", err)
		}
	}

	dump, err := httputil.DumpRequest(redactedRequest(req.Request), false)
	if err != nil {
		c.logger.Warnf("error while dumping request: %s", err)
	}
	c.logger.Debugf("Request dump: %s", string(dump))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if resp != nil {
			c.closeBody(resp.Body)
		}
		return Response{}, err
	}
	defer c.closeBody(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read response body: %w", err)
	}

	dump, err = httputil.DumpResponse(&http.Response{
		Status:     resp.Status,
		StatusCode: resp.StatusCode,
		Proto:      resp.Proto,
		ProtoMajor: resp.ProtoMajor,
		ProtoMinor: resp.ProtoMinor,
		Header:     resp.Header,
		Body:       io.NopCloser(bytes.NewReader(body)),
	}, true)
	if err != nil {
		c.logger.Warnf("error while dumping response: %s", err)
	}
	c.logger.Debugf("Response dump: %s", string(dump))

	return Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func (c *HTTPClient) closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		c.logger.Printf("close response body: %s", err)
	}
}
