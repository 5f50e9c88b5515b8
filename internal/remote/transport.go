package remote

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

// Request is the minimal outbound call shape the executor works
// against. Nothing here is specific to any one provider.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
	// Timeout bounds one attempt. Remote media/text processing is slow;
	// callers set this well above interactive timeouts.
	Timeout time.Duration
}

// Response is the transport-level result of one attempt.
type Response struct {
	StatusCode int
	Body       []byte
}

// Transport issues one outbound request. The HTTP implementation is the
// production one; tests substitute fakes.
type Transport interface {
	Send(ctx context.Context, req Request) (Response, error)
}

type HTTPTransport struct {
	Client *http.Client
}

func NewHTTPTransport() *HTTPTransport {
	return &HTTPTransport{Client: &http.Client{}}
}

func (t *HTTPTransport) Send(ctx context.Context, req Request) (Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return Response{}, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := t.Client.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, err
	}
	return Response{StatusCode: resp.StatusCode, Body: body}, nil
}
