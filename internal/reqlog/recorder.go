package reqlog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/uis-platform/uisapi/internal/config"
	"github.com/uis-platform/uisapi/internal/logfile"
)

const timeLayout = "2006-01-02 15:04:05"

// Recorder formats buffered entries and appends them to a sink one line at a
// time. Lines of different requests may interleave; lines of one request keep
// their order.
type Recorder struct {
	sink      io.Writer
	component string
	now       func() time.Time
}

// NewRecorder returns a Recorder writing to sink. component is the name shown
// in every line.
func NewRecorder(sink io.Writer, component string) *Recorder {
	return &Recorder{sink: sink, component: component, now: time.Now}
}

// Setup opens the rotating log file described by cfg and returns the recorder
// bound to it. It is called once at startup; Close releases the file.
func Setup(cfg config.LogConfig) (*Recorder, error) {
	sink, err := logfile.Open(cfg.FilePath, cfg.MaxBytes, cfg.BackupCount)
	if err != nil {
		return nil, err
	}
	return NewRecorder(sink, cfg.Component), nil
}

// Format renders e as "<time> - <component> - <LEVEL> - <message>\n" followed
// by the detail lines, if any. The base line is always exactly one line: a
// message spanning several lines keeps its first line there and the rest goes
// ahead of the detail.
func (r *Recorder) Format(e Entry, requestID string) []byte {
	msg, detail := splitMessage(e.Message, e.Detail)
	var b bytes.Buffer
	b.WriteString(r.now().Format(timeLayout))
	b.WriteString(" - ")
	b.WriteString(r.component)
	b.WriteString(" - ")
	b.WriteString(e.Level.String())
	b.WriteString(" - ")
	if requestID != "" {
		b.WriteString("[")
		b.WriteString(requestID)
		b.WriteString("] ")
	}
	b.WriteString(msg)
	b.WriteByte('\n')
	if detail != "" {
		b.WriteString(detail)
		if !strings.HasSuffix(detail, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.Bytes()
}

func splitMessage(msg, detail string) (string, string) {
	msg = strings.TrimRight(msg, "\r\n")
	i := strings.IndexAny(msg, "\r\n")
	if i < 0 {
		return msg, detail
	}
	rest := strings.TrimLeft(msg[i:], "\r\n")
	if detail != "" {
		rest += "\n" + detail
	}
	return strings.TrimRight(msg[:i], "\r"), rest
}

// Flush writes the entries of buf in order and then resets it. A failed write
// does not stop the remaining entries; all failures are returned joined.
func (r *Recorder) Flush(buf *Buffer) error {
	if buf == nil {
		return nil
	}
	defer buf.Reset()
	var errs []error
	for _, e := range buf.Entries() {
		if _, err := r.sink.Write(r.Format(e, buf.ID())); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("reqlog: %d of %d entries not written: %w", len(errs), buf.Len(), errors.Join(errs...))
	}
	return nil
}

// Rotate forces a rotation when the sink supports it.
func (r *Recorder) Rotate() error {
	if rs, ok := r.sink.(interface{ Rotate() error }); ok {
		return rs.Rotate()
	}
	return nil
}

// Close releases the sink when it is closable.
func (r *Recorder) Close() error {
	if c, ok := r.sink.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
