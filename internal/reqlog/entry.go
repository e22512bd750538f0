// Package reqlog collects the log narrative of one request and writes it to
// the rotating request log when the request finishes.
package reqlog

import (
	"context"
	"fmt"
)

// Level of a request log entry.
type Level int

const (
	LevelInfo Level = iota
	LevelError
)

func (l Level) String() string {
	if l == LevelError {
		return "ERROR"
	}
	return "INFO"
}

// Entry is one line of a request's narrative. Detail holds fault or stack
// text and is rendered on the lines following the message.
type Entry struct {
	Level   Level
	Message string
	Detail  string
}

// Buffer is the ordered narrative of a single request. It is owned by the
// request that created it and is not safe for concurrent use. All methods
// accept a nil receiver so callers deep in the stack can record without
// checking whether a buffer was attached.
type Buffer struct {
	id      string
	entries []Entry
}

// NewBuffer returns an empty buffer tagged with the request id.
func NewBuffer(requestID string) *Buffer {
	return &Buffer{id: requestID}
}

// ID returns the request id the buffer was created with.
func (b *Buffer) ID() string {
	if b == nil {
		return ""
	}
	return b.id
}

func (b *Buffer) Add(e Entry) {
	if b == nil {
		return
	}
	b.entries = append(b.entries, e)
}

func (b *Buffer) Info(msg string) { b.Add(Entry{Level: LevelInfo, Message: msg}) }

func (b *Buffer) Infof(format string, args ...any) { b.Info(fmt.Sprintf(format, args...)) }

// Error records an error-level entry; detail may be empty.
func (b *Buffer) Error(msg, detail string) {
	b.Add(Entry{Level: LevelError, Message: msg, Detail: detail})
}

func (b *Buffer) Errorf(format string, args ...any) { b.Error(fmt.Sprintf(format, args...), "") }

// Entries returns the recorded entries in insertion order.
func (b *Buffer) Entries() []Entry {
	if b == nil {
		return nil
	}
	return b.entries
}

func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.entries)
}

// Reset drops all entries.
func (b *Buffer) Reset() {
	if b == nil {
		return
	}
	b.entries = nil
}

type ctxKey struct{}

// NewContext returns ctx carrying buf.
func NewContext(ctx context.Context, buf *Buffer) context.Context {
	return context.WithValue(ctx, ctxKey{}, buf)
}

// FromContext returns the buffer attached to ctx, or nil.
func FromContext(ctx context.Context) *Buffer {
	buf, _ := ctx.Value(ctxKey{}).(*Buffer)
	return buf
}
