package datasource

import (
	"context"

	"github.com/flagcore/flagcore-go/internal/gate"
)

// Control is the slice of client-lifecycle state the polling and streaming
// workers consult on every loop iteration (spec.md §4.3/§4.4). It is
// supplied by the client orchestrator (L13), which is the only component
// that owns the full state machine.
type Control struct {
	// Terminated reports whether the client has reached a terminal state
	// (failed or shutting-down); the worker should exit when this is true.
	Terminated func() bool
	// Offline reports whether the client is in offline mode.
	Offline func() bool
	// Background reports whether background mode is active.
	Background func() bool
	// StreamingEnabled reports the configured streaming/polling choice.
	StreamingEnabled func() bool
	// DisableBackgroundUpdating reports the configured flag of the same name.
	DisableBackgroundUpdating func() bool
	// MarkFailed transitions the client to the failed state (401/403).
	MarkFailed func()
	// UserJSON returns the current user encoded as JSON, for building
	// request URLs/bodies. It is re-read on every request so identify()
	// mid-flight is picked up by the next iteration.
	UserJSON func() []byte
	// WakeGate is broadcast by close()/identify() to interrupt a sleeping
	// worker. A streaming worker blocked on an open connection does not
	// observe it; that connection is interrupted through ConnContext.
	WakeGate *gate.Gate
	// ConnContext returns the context to use for the next streaming
	// connection attempt, if set. Entering background mode or an identify
	// cancels the context this returns, so an already-open connection is torn down
	// immediately instead of running until it times out on its own. If
	// nil, the streaming worker falls back to the context passed to Run.
	ConnContext func() context.Context
}
