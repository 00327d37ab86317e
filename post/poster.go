package post

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bitrise-io/go-mediaupload/media/transport"
)

const (
	// V1Path is the status update endpoint of API v1.1.
	V1Path = "/1.1/statuses/update.json"
	// V2Path is the post creation endpoint of API v2.
	V2Path = "/2/tweets"
	// UserAgent is sent with v2 requests.
	UserAgent = "go-mediaupload/1.0"
)

// V1Poster creates posts with a form-style status update.
type V1Poster struct {
	transport transport.Transport
}

// NewV1Poster ...
func NewV1Poster(t transport.Transport) *V1Poster {
	return &V1Poster{transport: t}
}

type v1Status struct {
	IDStr string `json:"id_str"`
	Text  string `json:"text"`
}

// Post ...
func (p *V1Poster) Post(ctx context.Context, message Message) (Status, error) {
	query := url.Values{}
	query.Set("status", message.Text)
	if len(message.MediaIDs) > 0 {
		query.Set("media_ids", strings.Join(message.MediaIDs, ","))
	}

	resp, err := p.transport.Send(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   V1Path + "?" + query.Encode(),
	})
	if err != nil {
		return Status{}, fmt.Errorf("create post: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Status{}, fmt.Errorf("create post: %s", resp)
	}

	var status v1Status
	if err := json.Unmarshal(resp.Body, &status); err != nil {
		return Status{}, fmt.Errorf("decode post: %w", err)
	}

	return Status{ID: status.IDStr, Text: status.Text}, nil
}

// V2Poster creates posts with a JSON body.
type V2Poster struct {
	transport transport.Transport
}

// NewV2Poster ...
func NewV2Poster(t transport.Transport) *V2Poster {
	return &V2Poster{transport: t}
}

type v2Media struct {
	MediaIDs []string `json:"media_ids"`
}

type v2Request struct {
	Text  string   `json:"text"`
	Media *v2Media `json:"media,omitempty"`
}

type v2Response struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

// Post ...
func (p *V2Poster) Post(ctx context.Context, message Message) (Status, error) {
	request := v2Request{Text: message.Text}
	if len(message.MediaIDs) > 0 {
		request.Media = &v2Media{MediaIDs: message.MediaIDs}
	}

	body, err := json.Marshal(request)
	if err != nil {
		return Status{}, err
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("User-Agent", UserAgent)

	resp, err := p.transport.Send(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   V2Path,
		Header: header,
		Body:   body,
	})
	if err != nil {
		return Status{}, fmt.Errorf("create post: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return Status{}, fmt.Errorf("create post: %s", resp)
	}

	var response v2Response
	if err := json.Unmarshal(resp.Body, &response); err != nil {
		return Status{}, fmt.Errorf("decode post: %w", err)
	}

	return Status{ID: response.Data.ID, Text: response.Data.Text}, nil
}
