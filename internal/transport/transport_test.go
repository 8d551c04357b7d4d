package transport_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flagcore/flagcore-go/internal/transport"
)

func TestDoRoundTripsMethodHeadersAndBody(t *testing.T) {
	var gotMethod, gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		buf := make([]byte, 64)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	tr := transport.NewHTTPTransport(5*time.Second, 5*time.Second)
	headers := http.Header{"Authorization": []string{"secret"}}
	resp, err := tr.Do(context.Background(), http.MethodPost, srv.URL, headers, []byte("payload"))

	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "ok", string(resp.Body))
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "secret", gotAuth)
	assert.Equal(t, "payload", gotBody)
}

func TestStreamDeliversChunksInOrderThenCleanEOF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "chunk1")
		flusher.Flush()
		fmt.Fprint(w, "chunk2")
		flusher.Flush()
	}))
	defer srv.Close()

	tr := transport.NewHTTPTransport(0, 5*time.Second)
	var received []string
	result := tr.Stream(context.Background(), http.MethodGet, srv.URL, nil, nil, 5*time.Second, func(chunk []byte) {
		received = append(received, string(chunk))
	})

	assert.NoError(t, result.Err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, []string{"chunk1", "chunk2"}, received)
}

func TestStreamReportsNonOKStatusWithoutInvokingWatchdog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tr := transport.NewHTTPTransport(0, 5*time.Second)
	result := tr.Stream(context.Background(), http.MethodGet, srv.URL, nil, nil, time.Second, func([]byte) {})

	assert.NoError(t, result.Err)
	assert.Equal(t, http.StatusUnauthorized, result.StatusCode)
}

func TestStreamReadTimeoutFiresWhenNoDataArrives(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.(http.Flusher).Flush() // sends headers, no body, ever
		<-r.Context().Done()
	}))
	defer srv.Close()

	tr := transport.NewHTTPTransport(0, 5*time.Second)
	result := tr.Stream(context.Background(), http.MethodGet, srv.URL, nil, nil, 50*time.Millisecond, func([]byte) {})

	assert.ErrorIs(t, result.Err, transport.ErrReadTimeout)
}
