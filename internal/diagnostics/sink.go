// Package diagnostics collects error reports from failed external writes.
package diagnostics

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/johndosdos/friendlychat/internal/metrics"
)

const DefaultBuffer = 256

type report struct {
	at  time.Time
	msg string
	err error
	kv  []any
}

// Sink writes reports as JSON lines on its own goroutine. Report never
// blocks; when the buffer is full the report is dropped and counted.
type Sink struct {
	logger zerolog.Logger
	queue  chan report
	done   chan struct{}
}

func NewSink(w io.Writer, buffer int) *Sink {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Sink{
		logger: zerolog.New(w).With().Str("component", "diagnostics").Logger(),
		queue:  make(chan report, buffer),
		done:   make(chan struct{}),
	}
}

func (s *Sink) Report(ctx context.Context, msg string, err error, kv ...any) {
	r := report{at: time.Now(), msg: msg, err: err, kv: kv}
	select {
	case s.queue <- r:
		metrics.DiagnosticsReport(false)
	default:
		metrics.DiagnosticsReport(true)
	}
}

// Run drains the queue until ctx is cancelled, then flushes what is
// left and returns.
func (s *Sink) Run(ctx context.Context) {
	defer close(s.done)

	for {
		select {
		case r := <-s.queue:
			s.write(r)
		case <-ctx.Done():
			for {
				select {
				case r := <-s.queue:
					s.write(r)
				default:
					return
				}
			}
		}
	}
}

// Done is closed once Run has flushed and returned.
func (s *Sink) Done() <-chan struct{} {
	return s.done
}

func (s *Sink) write(r report) {
	ev := s.logger.Error().Time(zerolog.TimestampFieldName, r.at)
	if r.err != nil {
		ev = ev.Err(r.err)
	}
	if len(r.kv) > 0 {
		ev = ev.Fields(r.kv)
	}
	ev.Msg(r.msg)
}
