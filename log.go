package drift

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/sync/errgroup"
)

// LogMux merges the log feeds of a deployment (backend, frontend) onto one
// writer. Lines from a given feed are prefixed with the feed's name in a
// distinct color, and interleaving of partial lines is minimized.
type LogMux struct {
	w       io.Writer
	wc      chan []byte
	done    chan struct{}
	timeout time.Duration
	mu      sync.Mutex
	streams map[string]*LogStream
}

// LogStream is one named feed of the multiplexer. A stream should not be
// shared across goroutines.
type LogStream struct {
	name    string
	timeout time.Duration
	// log line prefix, possibly with ANSI escape sequences
	prefix string
	mu     sync.Mutex
	// buffer for partial lines
	buf bytes.Buffer
	// channel to send completed writes
	wc chan<- []byte
	// closed when the mux stops draining
	done <-chan struct{}
	// timer to flush partial lines
	t *time.Timer
}

// NewLogMux allocates a LogMux writing merged output to w until ctx is done.
func NewLogMux(ctx context.Context, w io.Writer) *LogMux {
	m := &LogMux{
		w:       w,
		wc:      make(chan []byte),
		done:    make(chan struct{}),
		timeout: time.Millisecond * 10,
		streams: make(map[string]*LogStream),
	}

	go m.drain(ctx)

	return m
}

// drain receives writes from the streams and flushes them to the writer.
// Closing done on exit unblocks any stream mid-send, so writers cannot hang
// after the mux context is cancelled.
func (m *LogMux) drain(ctx context.Context) {
	defer close(m.done)

	for {
		select {
		case <-ctx.Done():
			return
		case buf := <-m.wc:
			m.w.Write(buf)
		}
	}
}

// Stream registers an additional feed. If a stream already exists for name,
// Stream panics.
func (m *LogMux) Stream(name string) *LogStream {
	m.mu.Lock()

	defer m.mu.Unlock()

	if _, exists := m.streams[name]; exists {
		panic(fmt.Errorf("stream %s already exists", name))
	}

	s := &LogStream{
		name:    name,
		wc:      m.wc,
		done:    m.done,
		timeout: m.timeout,
	}

	m.streams[name] = s

	m.refreshPrefixes()

	return s
}

// Follow copies each named source into its own stream until every source is
// exhausted or one fails.
func (m *LogMux) Follow(ctx context.Context, sources map[string]io.Reader) error {
	eg, _ := errgroup.WithContext(ctx)

	for name, src := range sources {
		s := m.Stream(name)
		src := src

		eg.Go(func() error {
			scanner := bufio.NewScanner(src)

			for scanner.Scan() {
				if _, err := s.Write(append(scanner.Bytes(), '\n')); err != nil {
					return err
				}
			}

			return scanner.Err()
		})
	}

	return eg.Wait()
}

// refreshPrefixes redistributes the stream colors across the color space
// and re-renders the prefixes at a common width. Expects the mux lock to be
// held already when called.
func (m *LogMux) refreshPrefixes() {
	pal := colorful.FastHappyPalette(len(m.streams))

	maxlen := 0

	for _, s := range m.streams {
		if len(s.name) > maxlen {
			maxlen = len(s.name)
		}
	}

	i := 0

	for _, s := range m.streams {
		style := lipgloss.NewStyle().
			Foreground(lipgloss.Color(pal[i].Hex())).
			BorderStyle(lipgloss.NormalBorder()).
			PaddingRight((maxlen - len(s.name)) + 2).
			MarginRight(2).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			BorderRight(true)

		s.prefix = style.Render(s.name)

		i++
	}
}

// Write implements io.Writer for a log stream. Complete lines are emitted
// immediately; a partial line is held briefly in case the rest follows.
func (s *LogStream) Write(p []byte) (n int, err error) {
	s.mu.Lock()

	defer s.mu.Unlock()

	if s.t != nil {
		s.t.Stop()
	}

	n, err = s.buf.Write(p)

	if !bytes.ContainsRune(p, '\n') {
		s.t = time.AfterFunc(s.timeout, s.flushPartial)

		return n, err
	}

	for {
		line, err := s.buf.ReadBytes('\n')

		if err != nil {
			// Put the partial tail back and wait for the rest
			s.buf.Write(line)

			if len(line) > 0 {
				s.t = time.AfterFunc(s.timeout, s.flushPartial)
			}

			break
		}

		if !s.send(line) {
			return n, err
		}
	}

	return n, err
}

// send emits one prefixed line, reporting false when the mux has stopped
// draining.
func (s *LogStream) send(line []byte) bool {
	select {
	case s.wc <- []byte(s.prefix):
	case <-s.done:
		return false
	}

	select {
	case s.wc <- line:
	case <-s.done:
		return false
	}

	return true
}

func (s *LogStream) flushPartial() {
	s.mu.Lock()

	defer s.mu.Unlock()

	if s.buf.Len() == 0 {
		return
	}

	line := append(s.buf.Bytes(), '\n')

	s.buf.Reset()

	s.send(line)
}
