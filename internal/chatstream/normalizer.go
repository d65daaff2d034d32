// Package chatstream turns the inference service's newline-framed chat
// stream into plain content deltas.
package chatstream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
)

type State int

const (
	StateStreaming State = iota
	StateDone
)

type Action int

const (
	// ActionSkip means the line carried nothing to forward.
	ActionSkip Action = iota
	// ActionYield means the line carried a content delta.
	ActionYield
	// ActionStop means the stream has ended; no further line is read.
	ActionStop
)

// Sentinel tokens the upstream uses to mark end of stream.
var doneTokens = map[string]struct{}{
	"[DONE]": {},
	"done":   {},
	"DONE":   {},
}

type frame struct {
	Message *struct {
		Content *string `json:"content"`
	} `json:"message"`
}

// Normalizer decides, line by line, whether to forward, skip or stop.
// A Normalizer is not safe for concurrent use.
type Normalizer struct {
	state   State
	skipped int
}

func NewNormalizer() *Normalizer {
	return &Normalizer{state: StateStreaming}
}

func (n *Normalizer) State() State { return n.state }

// Skipped reports how many non-empty lines failed to parse.
func (n *Normalizer) Skipped() int { return n.skipped }

func (n *Normalizer) Feed(line string) (string, Action) {
	if n.state == StateDone {
		return "", ActionStop
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return "", ActionSkip
	}
	line = strings.TrimPrefix(line, "data: ")

	if _, ok := doneTokens[line]; ok {
		n.state = StateDone
		return "", ActionStop
	}

	var f frame
	if err := json.Unmarshal([]byte(line), &f); err != nil {
		n.skipped++
		slog.Debug("skipping malformed stream line", "line", truncate(line, 120), "error", err)
		return "", ActionSkip
	}
	if f.Message == nil || f.Message.Content == nil {
		return "", ActionSkip
	}

	return *f.Message.Content, ActionYield
}

// Scan feeds every line of r through n and passes each delta to yield.
// It returns nil at a sentinel or EOF, the yield error if yield fails,
// and the context error if ctx ends first.
func (n *Normalizer) Scan(ctx context.Context, r io.Reader, yield func(string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		content, action := n.Feed(scanner.Text())
		switch action {
		case ActionStop:
			return nil
		case ActionYield:
			if err := yield(content); err != nil {
				return err
			}
		}
	}

	return scanner.Err()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
