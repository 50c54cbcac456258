package diagnostics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSinkWritesJSON(t *testing.T) {
	out := &syncBuffer{}
	sink := NewSink(out, 4)

	ctx, cancel := context.WithCancel(context.Background())
	go sink.Run(ctx)

	sink.Report(ctx, "error writing new message", errors.New("connection refused"),
		"message_id", "m1", "user_id", "u1")
	cancel()
	<-sink.Done()

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, "error", got["level"])
	assert.Equal(t, "error writing new message", got["message"])
	assert.Equal(t, "connection refused", got["error"])
	assert.Equal(t, "m1", got["message_id"])
	assert.Equal(t, "u1", got["user_id"])
	assert.Equal(t, "diagnostics", got["component"])
	assert.Contains(t, got, "time")
}

func TestSinkNeverBlocks(t *testing.T) {
	sink := NewSink(&syncBuffer{}, 2)

	// Run is not started, so the third report has nowhere to go.
	for range 3 {
		sink.Report(context.Background(), "boom", errors.New("x"))
	}

	assert.Len(t, sink.queue, 2)
}

func TestSinkFlushesOnShutdown(t *testing.T) {
	out := &syncBuffer{}
	sink := NewSink(out, 8)

	for range 5 {
		sink.Report(context.Background(), "queued", nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink.Run(ctx)

	assert.Equal(t, 5, strings.Count(out.String(), `"queued"`))
}
