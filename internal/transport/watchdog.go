package transport

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrReadTimeout is returned (wrapped in StreamResult.Err) when no bytes
// arrive within the configured read timeout.
var ErrReadTimeout = errors.New("transport: stream read timeout: no data received")

// watchBody reads body in a background goroutine, feeding chunks to onChunk,
// while the calling goroutine watches a timer that resets on every chunk.
// If the timer fires before the next chunk (or EOF) arrives, the body is
// closed to unblock the reader, and the result reports ErrReadTimeout — this
// is the "read-timeout watchdog" of spec.md §4.3, implemented as a single
// cooperative cancellation point rather than mixing socket-shutdown tricks
// with condition variables (spec.md §9's guidance on worker cancellation).
func watchBody(ctx context.Context, body io.ReadCloser, readTimeout time.Duration, onChunk ChunkHandler) StreamResult {
	type readResult struct {
		n   int
		err error
	}

	buf := make([]byte, 32*1024)
	chunks := make(chan readResult, 1)
	done := make(chan struct{})
	defer close(done)

	doRead := func() {
		n, err := body.Read(buf)
		select {
		case chunks <- readResult{n: n, err: err}:
		case <-done:
		}
	}
	go doRead()

	if readTimeout <= 0 {
		readTimeout = 5 * time.Minute
	}
	timer := time.NewTimer(readTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			body.Close()
			return StreamResult{Err: ctx.Err()}

		case <-timer.C:
			body.Close()
			return StreamResult{Err: ErrReadTimeout}

		case r := <-chunks:
			if r.n > 0 {
				chunk := make([]byte, r.n)
				copy(chunk, buf[:r.n])
				onChunk(chunk)
			}
			if r.err != nil {
				if errors.Is(r.err, io.EOF) {
					return StreamResult{}
				}
				return StreamResult{Err: r.err}
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(readTimeout)
			go doRead()
		}
	}
}
