// Package relay re-frames chat deltas for downstream consumers: plain
// newline-delimited text, or Server-Sent Events.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/nikhilbhutani/aiservices/internal/llm"
	"github.com/nikhilbhutani/aiservices/internal/monitoring"
)

type framing interface {
	headers(h http.Header)
	delta(content string) []byte
	done() []byte
	failure(err error) []byte
}

// Relay writes a chunk stream to an HTTP response, flushing after every
// write.
type Relay struct {
	name string
	framing
}

var (
	Plain = Relay{name: "plain", framing: plainFraming{}}
	SSE   = Relay{name: "sse", framing: sseFraming{}}
)

func (r Relay) Name() string { return r.name }

// Stream copies chunks to w until the stream ends, fails, or ctx is done.
// Upstream failures are written in the relay's error framing and returned.
func (r Relay) Stream(ctx context.Context, w http.ResponseWriter, chunks <-chan llm.StreamChunk) error {
	r.headers(w.Header())
	w.WriteHeader(http.StatusOK)
	flush(w)

	deltas := monitoring.ChatStreamDeltasTotal.WithLabelValues(r.name)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-chunks:
			if !ok {
				return r.write(w, r.done())
			}
			if c.Error != nil {
				if err := r.write(w, r.failure(c.Error)); err != nil {
					return errors.Join(c.Error, err)
				}
				return c.Error
			}
			if c.Content != "" {
				if err := r.write(w, r.delta(c.Content)); err != nil {
					return err
				}
				deltas.Inc()
			}
			if c.Done {
				return r.write(w, r.done())
			}
		}
	}
}

// Fail reports an error that happened before any chunk was produced, using
// the same framing a mid-stream failure would.
func (r Relay) Fail(w http.ResponseWriter, err error) error {
	r.headers(w.Header())
	w.WriteHeader(http.StatusOK)
	return r.write(w, r.failure(err))
}

func (r Relay) write(w http.ResponseWriter, b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("write %s relay: %w", r.name, err)
	}
	flush(w)
	return nil
}

func flush(w http.ResponseWriter) {
	// Writers that cannot flush still receive every byte on completion.
	_ = http.NewResponseController(w).Flush()
}

type plainFraming struct{}

func (plainFraming) headers(h http.Header) {
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

func (plainFraming) delta(content string) []byte { return []byte(content + "\n") }

func (plainFraming) done() []byte { return nil }

func (plainFraming) failure(err error) []byte { return []byte("Error: " + err.Error()) }

type sseFraming struct{}

// SetupSSEHeaders prepares w for an event stream.
func SetupSSEHeaders(w http.ResponseWriter) {
	sseFraming{}.headers(w.Header())
}

func (sseFraming) headers(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

func (sseFraming) delta(content string) []byte {
	return dataFrame(map[string]string{"content": content})
}

func (sseFraming) done() []byte { return []byte("data: [DONE]\n\n") }

func (sseFraming) failure(err error) []byte {
	return dataFrame(map[string]string{"error": err.Error()})
}

func dataFrame(v any) []byte {
	var buf bytes.Buffer
	buf.WriteString("data: ")
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil
	}
	// Encode ends with a newline; SSE needs a blank line after the data.
	buf.WriteByte('\n')
	return buf.Bytes()
}

// WriteEvent writes v as one SSE data frame and flushes.
func WriteEvent(w http.ResponseWriter, v any) error {
	b := dataFrame(v)
	if b == nil {
		return fmt.Errorf("encode event %T", v)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	flush(w)
	return nil
}
