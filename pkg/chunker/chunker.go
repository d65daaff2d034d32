package chunker

import (
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/nikhilbhutani/aiservices/pkg/tokenizer"
)

var ErrConfiguration = errors.New("invalid chunker configuration")

// Config sizes the sliding window in characters (runes).
type Config struct {
	Size    int
	Overlap int
}

func DefaultConfig() Config {
	return Config{
		Size:    1000,
		Overlap: 200,
	}
}

func (c Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: size must be positive, got %d", ErrConfiguration, c.Size)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", ErrConfiguration, c.Overlap)
	}
	if c.Size-c.Overlap <= 0 {
		return fmt.Errorf("%w: overlap %d must be smaller than size %d", ErrConfiguration, c.Overlap, c.Size)
	}
	return nil
}

// Step is the distance between consecutive window starts.
func (c Config) Step() int {
	return c.Size - c.Overlap
}

type Chunk struct {
	Index    int
	Text     string
	Start    int // rune offset, inclusive
	End      int // rune offset, exclusive
	Metadata map[string]any
}

type Chunker struct {
	cfg Config
}

func New(cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg}, nil
}

func (c *Chunker) Config() Config {
	return c.cfg
}

// Chunk splits text into overlapping windows. The supplied metadata is
// copied into every chunk alongside chunk_start, chunk_end and token_count.
// Windows that are only whitespace are dropped but still advance the cursor.
func (c *Chunker) Chunk(text string, metadata map[string]any) []Chunk {
	runes := []rune(text)
	total := len(runes)
	step := c.cfg.Step()

	var chunks []Chunk
	for start := 0; start < total; start += step {
		end := min(start+c.cfg.Size, total)

		content := string(runes[start:end])
		if strings.TrimSpace(content) != "" {
			meta := make(map[string]any, len(metadata)+3)
			maps.Copy(meta, metadata)
			meta["chunk_start"] = start
			meta["chunk_end"] = end
			meta["token_count"] = tokenizer.CountTokens(content)

			chunks = append(chunks, Chunk{
				Index:    len(chunks),
				Text:     content,
				Start:    start,
				End:      end,
				Metadata: meta,
			})
		}

		// Anything after this would sit inside the overlap we just emitted.
		if end == total {
			break
		}
	}

	return chunks
}

// WindowCount returns how many windows Chunk visits for a text of n runes,
// before whitespace-only windows are discarded.
func (c Config) WindowCount(n int) int {
	if n <= 0 {
		return 0
	}
	if n <= c.Overlap {
		return 1
	}
	step := c.Step()
	return (n - c.Overlap + step - 1) / step
}
