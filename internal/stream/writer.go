package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Emitter receives search events. Implementations must be safe for concurrent
// use by pipeline workers.
type Emitter interface {
	Emit(evt Event) error
}

// Format selects the framing used by Writer.
type Format int

const (
	// FormatSSE frames each event as "data: <json>\n\n".
	FormatSSE Format = iota
	// FormatJSONLines writes one JSON object per line.
	FormatJSONLines
)

// Writer serializes events onto an io.Writer and flushes after each one when
// the destination supports it. The first write failure (usually a client
// disconnect) is sticky and returned by every later Emit.
type Writer struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	format  Format
	err     error
	count   int
}

// NewWriter wraps w using the given framing.
func NewWriter(w io.Writer, format Format) *Writer {
	flusher, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: flusher, format: format}
}

// Emit encodes and writes one event.
func (s *Writer) Emit(evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	var frame []byte
	switch s.format {
	case FormatJSONLines:
		frame = append(payload, '\n')
	default:
		frame = make([]byte, 0, len(payload)+8)
		frame = append(frame, "data: "...)
		frame = append(frame, payload...)
		frame = append(frame, '\n', '\n')
	}
	if _, err := s.w.Write(frame); err != nil {
		s.err = fmt.Errorf("write event: %w", err)
		return s.err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	s.count++
	return nil
}

// Count returns the number of events written successfully.
func (s *Writer) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Err returns the sticky write error, if any.
func (s *Writer) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
