package drift_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.driftcloud.dev/drift"
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

func TestLogMuxFollow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	defer cancel()

	out := &syncBuffer{}

	mux := drift.NewLogMux(ctx, out)

	sources := map[string]io.Reader{
		"backend":  strings.NewReader("backend line one\nbackend line two\n"),
		"frontend": strings.NewReader("frontend line one\n"),
	}

	require.NoError(t, mux.Follow(ctx, sources))

	assert.Eventually(t, func() bool {
		s := out.String()

		return strings.Contains(s, "backend line one") &&
			strings.Contains(s, "backend line two") &&
			strings.Contains(s, "frontend line one")
	}, time.Second, 10*time.Millisecond)

	// Every line carries its source prefix
	assert.Contains(t, out.String(), "backend")
	assert.Contains(t, out.String(), "frontend")
}

func TestLogStreamWriteAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	out := &syncBuffer{}

	mux := drift.NewLogMux(ctx, out)

	s := mux.Stream("backend")

	cancel()

	// A write against a cancelled mux must return instead of blocking
	done := make(chan struct{})

	go func() {
		s.Write([]byte("late line\n"))

		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("write blocked after the mux context was cancelled")
	}
}

func TestLogStreamDuplicatePanics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	defer cancel()

	mux := drift.NewLogMux(ctx, io.Discard)

	mux.Stream("backend")

	assert.Panics(t, func() { mux.Stream("backend") })
}
