package events_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flagcore/flagcore-go/internal/events"
	"github.com/flagcore/flagcore-go/internal/ldlog"
	"github.com/flagcore/flagcore-go/internal/ldvalue"
)

type fakeSender struct {
	mu         sync.Mutex
	statuses   []int
	errs       []error
	calls      []string
	call       int
}

func (s *fakeSender) PostEvents(_ context.Context, _ []byte, payloadID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.call
	s.call++
	s.calls = append(s.calls, payloadID)
	if idx < len(s.statuses) {
		return s.statuses[idx], s.errs[idx]
	}
	return 200, nil
}

func (s *fakeSender) payloadIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

func TestWorkerRetriesOnceWithSamePayloadIDThenGivesUp(t *testing.T) {
	sender := &fakeSender{statuses: []int{503, 503}, errs: []error{nil, nil}}
	proc := events.New(events.Config{Capacity: 10}, ldlog.NewDisabledLoggers())
	proc.Identify("u", ldvalue.Null(), 1000)

	w := events.NewWorker(proc, sender, time.Hour, ldlog.NewDisabledLoggers())
	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()

	w.Flush()
	time.Sleep(50 * time.Millisecond)
	w.Stop()
	<-done

	ids := sender.payloadIDs()
	require.Len(t, ids, 2, "one initial attempt plus exactly one retry")
	assert.Equal(t, ids[0], ids[1], "retry must reuse the same payload id")
}

func TestWorkerDoesNotRetryOnSuccessOrNonTransientFailure(t *testing.T) {
	sender := &fakeSender{statuses: []int{400}, errs: []error{nil}}
	proc := events.New(events.Config{Capacity: 10}, ldlog.NewDisabledLoggers())
	proc.Identify("u", ldvalue.Null(), 1000)

	w := events.NewWorker(proc, sender, time.Hour, ldlog.NewDisabledLoggers())
	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()

	w.Flush()
	time.Sleep(50 * time.Millisecond)
	w.Stop()
	<-done

	assert.Len(t, sender.payloadIDs(), 1, "a non-transient 400 must not be retried")
}

func TestWorkerFlushesOnStopEvenWithoutExplicitFlushSignal(t *testing.T) {
	sender := &fakeSender{}
	proc := events.New(events.Config{Capacity: 10}, ldlog.NewDisabledLoggers())
	proc.Track("u", ldvalue.Null(), "user", "evt", ldvalue.Null(), false, nil, 1000)

	w := events.NewWorker(proc, sender, time.Hour, ldlog.NewDisabledLoggers())
	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()

	w.Stop()
	<-done

	assert.Len(t, sender.payloadIDs(), 1, "Stop must perform one final flush")
}

func TestWorkerFlushIsNoOpWhenNothingPending(t *testing.T) {
	sender := &fakeSender{}
	proc := events.New(events.Config{Capacity: 10}, ldlog.NewDisabledLoggers())

	w := events.NewWorker(proc, sender, time.Hour, ldlog.NewDisabledLoggers())
	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()

	w.Flush()
	time.Sleep(50 * time.Millisecond)
	w.Stop()
	<-done

	assert.Empty(t, sender.payloadIDs())
}
