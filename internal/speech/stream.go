// Package speech produces synthesized caller-facing audio as a cancellable stream.
package speech

import (
	"context"
	"sync"

	"call-screener/internal/metrics"
)

// Stream is a lazy, finite sequence of audio chunks. It is not restartable.
//
// Consumers range over Chunks and then read Err. Close may be called at any time
// (typically on client disconnect); it releases the upstream connection and stops
// the producer.
type Stream struct {
	chunks chan []byte
	done   chan struct{}

	errMu sync.Mutex
	err   error

	closeOnce   sync.Once
	releaseOnce sync.Once
	releaseMu   sync.Mutex
	release     []func()
	released    bool
}

func newStream() *Stream {
	return &Stream{
		chunks: make(chan []byte, 32),
		done:   make(chan struct{}),
	}
}

// Chunks is closed once the producer is exhausted, fails, or the stream is closed.
func (s *Stream) Chunks() <-chan []byte {
	return s.chunks
}

// Err is meaningful after Chunks has been drained.
func (s *Stream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close stops the stream and releases upstream resources. It is idempotent.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.runRelease()
	})
	return nil
}

// Done is closed when the consumer closed the stream.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// onRelease registers f to run exactly once when the stream is closed or the
// producer finishes, whichever happens first. If that already happened f runs now.
func (s *Stream) onRelease(f func()) {
	s.releaseMu.Lock()
	if s.released {
		s.releaseMu.Unlock()
		f()
		return
	}
	s.release = append(s.release, f)
	s.releaseMu.Unlock()
}

func (s *Stream) runRelease() {
	s.releaseOnce.Do(func() {
		s.releaseMu.Lock()
		fns := s.release
		s.release = nil
		s.released = true
		s.releaseMu.Unlock()
		// LIFO, like defer.
		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
	})
}

// send hands a chunk to the consumer. It returns false once the consumer closed
// the stream or ctx ended.
func (s *Stream) send(ctx context.Context, chunk []byte) bool {
	select {
	case s.chunks <- chunk:
		metrics.SynthesisBytesTotal.Add(float64(len(chunk)))
		return true
	case <-s.done:
		return false
	case <-ctx.Done():
		return false
	}
}

func (s *Stream) fail(err error) {
	if err == nil {
		return
	}
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
}

// finish is called by the producer exactly once.
func (s *Stream) finish() {
	close(s.chunks)
	s.runRelease()
}

func (s *Stream) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
