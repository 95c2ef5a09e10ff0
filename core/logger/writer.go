package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// asyncWriter moves sink I/O off the logging goroutines. One goroutine owns the buffered
// sinks; callers hand it copies of their lines or flush requests.
type asyncWriter struct {
	ops     chan writeOp
	stopped chan struct{}
	close   sync.Once
	closed  atomic.Bool

	mu  sync.Mutex
	err error // first sink error; sticky
}

// writeOp is either a line to write or, when ack is set, a flush request.
type writeOp struct {
	line []byte
	ack  chan error
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 << 10
	}
	var sinks []*bufio.Writer
	for _, w := range writers {
		if w != nil {
			sinks = append(sinks, bufio.NewWriterSize(w, bufSize))
		}
	}
	w := &asyncWriter{
		ops:     make(chan writeOp, 256),
		stopped: make(chan struct{}),
	}
	go w.run(sinks)
	return w
}

func (w *asyncWriter) run(sinks []*bufio.Writer) {
	defer close(w.stopped)
	flush := func() error {
		var errs []error
		for _, s := range sinks {
			if err := s.Flush(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	for op := range w.ops {
		if op.ack != nil {
			op.ack <- flush()
			continue
		}
		for _, s := range sinks {
			if _, err := s.Write(op.line); err != nil {
				w.fail(err)
				break
			}
		}
		// Lines go out immediately unless more are already queued.
		if len(w.ops) == 0 {
			if err := flush(); err != nil {
				w.fail(err)
			}
		}
	}
	if err := flush(); err != nil {
		w.fail(err)
	}
}

// Write queues a copy of p. It blocks while the queue is full so no line is dropped.
// Lines written after Close are discarded.
func (w *asyncWriter) Write(p []byte) error {
	if w.closed.Load() {
		return nil
	}
	if err := w.failed(); err != nil {
		return err
	}
	if len(p) > 0 {
		w.ops <- writeOp{line: append([]byte(nil), p...)}
	}
	return nil
}

// Flush returns once every line queued before the call has reached the sinks.
func (w *asyncWriter) Flush() error {
	if err := w.failed(); err != nil {
		return err
	}
	ack := make(chan error, 1)
	w.ops <- writeOp{ack: ack}
	return <-ack
}

// Close drains the queue, flushes and reports the first write error.
func (w *asyncWriter) Close() error {
	w.close.Do(func() {
		w.closed.Store(true)
		close(w.ops)
	})
	<-w.stopped
	return w.failed()
}

func (w *asyncWriter) fail(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = err
	}
}

func (w *asyncWriter) failed() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}
