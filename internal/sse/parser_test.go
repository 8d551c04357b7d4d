package sse_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flagcore/flagcore-go/internal/sse"
)

type capturedEvent struct {
	name, data string
}

func feedAll(t *testing.T, p *sse.Parser, chunks ...string) {
	t.Helper()
	for _, c := range chunks {
		require.NoError(t, p.Feed([]byte(c)))
	}
}

func TestParserDispatchesSimpleEvent(t *testing.T) {
	var got []capturedEvent
	p := sse.New(func(event, data string) {
		got = append(got, capturedEvent{event, data})
	}, nil)

	feedAll(t, p, "event: put\ndata: {\"a\":1}\n\n")

	require.Len(t, got, 1)
	assert.Equal(t, "put", got[0].name)
	assert.Equal(t, `{"a":1}`, got[0].data)
}

func TestParserJoinsMultiLineData(t *testing.T) {
	var got []capturedEvent
	p := sse.New(func(event, data string) {
		got = append(got, capturedEvent{event, data})
	}, nil)

	feedAll(t, p, "event: patch\ndata: line1\ndata: line2\n\n")

	require.Len(t, got, 1)
	assert.Equal(t, "line1\nline2", got[0].data)
}

func TestParserIgnoresCommentsAndUnknownFields(t *testing.T) {
	var got []capturedEvent
	p := sse.New(func(event, data string) {
		got = append(got, capturedEvent{event, data})
	}, nil)

	feedAll(t, p, ":this is a comment\nretry: 5000\nevent: ping\ndata: {}\n\n")

	require.Len(t, got, 1)
	assert.Equal(t, "ping", got[0].name)
}

func TestParserHandlesPartialChunksAcrossFeedCalls(t *testing.T) {
	var got []capturedEvent
	p := sse.New(func(event, data string) {
		got = append(got, capturedEvent{event, data})
	}, nil)

	feedAll(t, p, "eve", "nt: put\nda", "ta: {\"x\":", "1}\n\n")

	require.Len(t, got, 1)
	assert.Equal(t, "put", got[0].name)
	assert.Equal(t, `{"x":1}`, got[0].data)
}

func TestParserDropsEventMissingNameOrData(t *testing.T) {
	var got []capturedEvent
	var warnings []string
	p := sse.New(func(event, data string) {
		got = append(got, capturedEvent{event, data})
	}, func(msg string) {
		warnings = append(warnings, msg)
	})

	feedAll(t, p, "data: orphaned\n\n")

	assert.Empty(t, got)
	assert.NotEmpty(t, warnings)
}

func TestParserTreatsCRLFAsLineEnding(t *testing.T) {
	var got []capturedEvent
	p := sse.New(func(event, data string) {
		got = append(got, capturedEvent{event, data})
	}, nil)

	feedAll(t, p, "event: put\r\ndata: ok\r\n\r\n")

	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].data)
}

func TestParserEnforcesMaxEventSize(t *testing.T) {
	p := sse.New(func(event, data string) {}, nil)
	p.SetMaxEventBytes(16)

	err := p.Feed([]byte("event: put\ndata: this line alone exceeds the sixteen byte cap\n"))
	assert.ErrorIs(t, err, sse.ErrEventTooLarge)
}
