package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

const sinkBufSize = 64 * 1024

// sinkWriter decouples log producers from sink IO. A single goroutine owns
// the sinks; Write hands over a copy of the rendered line and returns.
type sinkWriter struct {
	queue chan []byte
	flush chan chan error
	done  chan struct{}
	once  sync.Once

	mu  sync.Mutex
	out []*bufio.Writer
	err error
}

func newSinkWriter(outputs []io.Writer) *sinkWriter {
	w := &sinkWriter{
		queue: make(chan []byte, 256),
		flush: make(chan chan error),
		done:  make(chan struct{}),
	}
	for _, o := range outputs {
		if o != nil {
			w.out = append(w.out, bufio.NewWriterSize(o, sinkBufSize))
		}
	}
	go w.run()
	return w
}

func (w *sinkWriter) run() {
	for {
		select {
		case line, ok := <-w.queue:
			if !ok {
				w.flushSinks()
				close(w.done)
				return
			}
			w.writeLine(line)
		case ack := <-w.flush:
			ack <- w.flushSinks()
		}
	}
}

// Write queues one rendered line. A full queue blocks the caller instead
// of dropping the line.
func (w *sinkWriter) Write(p []byte) error {
	if err := w.firstErr(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	w.queue <- append([]byte(nil), p...)
	return nil
}

// Flush forces buffered content out to every sink and waits for it.
func (w *sinkWriter) Flush() error {
	if err := w.firstErr(); err != nil {
		return err
	}
	ack := make(chan error, 1)
	w.flush <- ack
	return <-ack
}

// Close drains the queue, flushes the sinks and reports the first write
// error seen over the writer's lifetime.
func (w *sinkWriter) Close() error {
	w.once.Do(func() { close(w.queue) })
	<-w.done
	return w.firstErr()
}

func (w *sinkWriter) writeLine(line []byte) {
	if len(line) == 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, sink := range w.out {
		if _, err := sink.Write(line); err != nil {
			w.record(err)
			return
		}
		if err := sink.Flush(); err != nil {
			w.record(err)
			return
		}
	}
}

func (w *sinkWriter) flushSinks() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	for _, sink := range w.out {
		if err := sink.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// record keeps the earliest error. Callers must hold mu.
func (w *sinkWriter) record(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *sinkWriter) firstErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}
