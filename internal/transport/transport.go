// Package transport is the narrow HTTP contract the core consumes (spec.md
// §2, L8): GET the flag bundle, POST the event payload, and hold a
// long-lived streaming GET open with a progress watchdog. Everything above
// this package is transport-agnostic; everything below it is "the HTTP
// client," an external collaborator per spec.md §1.
package transport

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"time"

	cleanhttp "github.com/hashicorp/go-cleanhttp"
)

// Response is the minimal result of a non-streaming request.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Requester issues a bounded-lifetime HTTP request and returns its result.
// Implementations apply request_timeout_ms/connect_timeout_ms.
type Requester interface {
	Do(ctx context.Context, method, url string, headers http.Header, body []byte) (Response, error)
}

// ChunkHandler receives each chunk of bytes read from a streaming response
// body, in order, as they arrive.
type ChunkHandler func(chunk []byte)

// StreamResult describes how a streaming connection ended.
type StreamResult struct {
	StatusCode int   // 0 if the request never got a response (pure transport error)
	Err        error // non-nil for transport-level failures (including watchdog aborts)
	Duration   time.Duration
}

// Streamer issues a long-lived streaming GET/REPORT request, invoking onChunk
// for every read, and enforces a read-timeout watchdog: if no new bytes
// arrive within readTimeout, the request is aborted and StreamResult.Err is
// set (spec.md §4.3's "read-timeout watchdog").
type Streamer interface {
	Stream(ctx context.Context, method, url string, headers http.Header, body []byte, readTimeout time.Duration, onChunk ChunkHandler) StreamResult
}

// HTTPTransport is the default Requester+Streamer, built on net/http with a
// go-cleanhttp-constructed client (per-instance Transport, not
// http.DefaultTransport, to avoid the shared-state connection-pool pitfalls
// go-cleanhttp exists to prevent).
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport builds an HTTPTransport. requestTimeout bounds
// non-streaming requests end-to-end; connectTimeout bounds the dial/TLS
// handshake for all requests including streaming ones (streaming requests
// must not have their overall Client.Timeout set, since that would cut the
// connection off at a fixed wall-clock point regardless of activity).
func NewHTTPTransport(requestTimeout, connectTimeout time.Duration) *HTTPTransport {
	transport := cleanhttp.DefaultPooledTransport()
	if connectTimeout > 0 {
		dialer := &net.Dialer{Timeout: connectTimeout}
		transport.DialContext = dialer.DialContext
	}
	return &HTTPTransport{
		client: &http.Client{
			Transport: transport,
			Timeout:   requestTimeout,
		},
	}
}

// Do implements Requester.
func (t *HTTPTransport) Do(ctx context.Context, method, url string, headers http.Header, body []byte) (Response, error) {
	req, err := newRequest(ctx, method, url, headers, body)
	if err != nil {
		return Response{}, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, err
	}
	return Response{StatusCode: resp.StatusCode, Body: data, Headers: resp.Header}, nil
}

// Stream implements Streamer using a dedicated client whose Timeout is zero
// (streaming responses are, by design, never "complete" within a fixed
// window); the read-timeout watchdog below substitutes for Client.Timeout.
func (t *HTTPTransport) Stream(
	ctx context.Context,
	method, url string,
	headers http.Header,
	body []byte,
	readTimeout time.Duration,
	onChunk ChunkHandler,
) StreamResult {
	start := time.Now()
	req, err := newRequest(ctx, method, url, headers, body)
	if err != nil {
		return StreamResult{Err: err, Duration: time.Since(start)}
	}

	streamClient := *t.client
	streamClient.Timeout = 0

	resp, err := streamClient.Do(req)
	if err != nil {
		return StreamResult{Err: err, Duration: time.Since(start)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return StreamResult{StatusCode: resp.StatusCode, Duration: time.Since(start)}
	}

	result := watchBody(ctx, resp.Body, readTimeout, onChunk)
	result.StatusCode = resp.StatusCode
	result.Duration = time.Since(start)
	return result
}

func newRequest(ctx context.Context, method, url string, headers http.Header, body []byte) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	for k, vv := range headers {
		req.Header[k] = vv
	}
	return req, nil
}
