package observe

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sink receives run events. Emit must not block the run hot path for long;
// slow downstreams belong behind an AsyncSink.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

type SinkFunc func(ctx context.Context, event Event) error

func (f SinkFunc) Emit(ctx context.Context, event Event) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type NoopSink struct{}

func (NoopSink) Emit(context.Context, Event) error { return nil }

// NewLogSink emits events as structured log records.
func NewLogSink(logger *slog.Logger) Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return SinkFunc(func(ctx context.Context, event Event) error {
		logger.LogAttrs(ctx, slog.LevelInfo, string(event.Type),
			slog.String("run_id", event.RunID),
			slog.String("session_id", event.SessionID),
			slog.String("tool", event.Tool),
			slog.String("detail", event.Detail),
		)
		return nil
	})
}

// MultiSink fans one event out to several sinks, stopping at the first error.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink builds a sink over the non-nil members of sinks. A single
// member is returned unwrapped; an empty set collapses to NoopSink.
func NewMultiSink(sinks ...Sink) Sink {
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	switch len(kept) {
	case 0:
		return NoopSink{}
	case 1:
		return kept[0]
	}
	return &MultiSink{sinks: kept}
}

func (m *MultiSink) Emit(ctx context.Context, event Event) error {
	if m == nil {
		return nil
	}
	for _, sink := range m.sinks {
		if err := sink.Emit(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

const defaultAsyncBuffer = 256

// AsyncSink decouples event producers from a slow downstream. Events are
// dropped when the buffer is full rather than blocking the run.
type AsyncSink struct {
	downstream Sink
	queue      chan Event
	mu         sync.RWMutex
	closed     bool
	wg         sync.WaitGroup
}

func NewAsyncSink(downstream Sink, buffer int) *AsyncSink {
	if downstream == nil {
		downstream = NoopSink{}
	}
	if buffer <= 0 {
		buffer = defaultAsyncBuffer
	}
	s := &AsyncSink{
		downstream: downstream,
		queue:      make(chan Event, buffer),
	}
	s.wg.Add(1)
	go s.drain()
	return s
}

func (s *AsyncSink) Emit(ctx context.Context, event Event) error {
	if s == nil {
		return nil
	}
	event.Normalize()
	// The read lock holds Close's queue close back until the send below
	// has either happened or been dropped, so Emit never races the close.
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil // closing, drop silently
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case s.queue <- event:
		return nil
	default:
		// Buffer full: drop rather than stall the run.
		return nil
	}
}

// Close stops accepting events, flushes the queue, and waits for the drain
// goroutine. Safe to call more than once and against concurrent Emit.
func (s *AsyncSink) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *AsyncSink) drain() {
	defer s.wg.Done()
	for event := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = s.downstream.Emit(ctx, event)
		cancel()
	}
}
