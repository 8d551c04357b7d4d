package gate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/flagcore/flagcore-go/internal/gate"
)

func TestWaitReturnsTrueWhenBroadcastBeforeTimeout(t *testing.T) {
	g := gate.New()
	go func() {
		time.Sleep(10 * time.Millisecond)
		g.Broadcast()
	}()

	woken := g.Wait(time.Second)
	assert.True(t, woken)
}

func TestWaitReturnsFalseOnTimeout(t *testing.T) {
	g := gate.New()
	woken := g.Wait(10 * time.Millisecond)
	assert.False(t, woken)
}

func TestWaitZeroDurationReturnsFalseImmediately(t *testing.T) {
	g := gate.New()
	start := time.Now()
	woken := g.Wait(0)
	assert.False(t, woken)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestGateReArmsAfterEachBroadcast(t *testing.T) {
	g := gate.New()

	g.Broadcast()
	// First wait should see the gate already re-armed, not the stale closed channel.
	woken := g.Wait(20 * time.Millisecond)
	assert.False(t, woken)

	go func() {
		time.Sleep(10 * time.Millisecond)
		g.Broadcast()
	}()
	woken = g.Wait(time.Second)
	assert.True(t, woken)
}

func TestBroadcastWakesAllCurrentWaiters(t *testing.T) {
	g := gate.New()
	results := make(chan bool, 3)
	for i := 0; i < 3; i++ {
		go func() { results <- g.Wait(time.Second) }()
	}
	time.Sleep(10 * time.Millisecond)
	g.Broadcast()

	for i := 0; i < 3; i++ {
		assert.True(t, <-results)
	}
}
