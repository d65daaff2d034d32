// Package id issues time-ordered 64-bit identifiers for stored records.
package id

import (
	"errors"
	"sync"
	"time"
)

const (
	// 2024-01-01T00:00:00Z in Unix milliseconds.
	epoch int64 = 1704067200000

	nodeBits     = 10
	sequenceBits = 12

	MaxNode     int64 = 1<<nodeBits - 1
	maxSequence int64 = 1<<sequenceBits - 1

	timeShift = nodeBits + sequenceBits
)

var ErrInvalidNode = errors.New("node must be between 0 and 1023")

// Generator packs milliseconds since epoch, a node number and a per-ms
// sequence into one int64. Safe for concurrent use.
type Generator struct {
	mu       sync.Mutex
	node     int64
	lastMs   int64
	sequence int64
	now      func() int64
}

func NewGenerator(node int64) (*Generator, error) {
	if node < 0 || node > MaxNode {
		return nil, ErrInvalidNode
	}
	return &Generator{
		node: node,
		now:  func() int64 { return time.Now().UnixMilli() },
	}, nil
}

func (g *Generator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now()
	if ms < g.lastMs {
		// Clock went backwards; keep issuing from the last timestamp.
		ms = g.lastMs
	}

	if ms == g.lastMs {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			for ms <= g.lastMs {
				ms = g.now()
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastMs = ms

	return (ms-epoch)<<timeShift | g.node<<sequenceBits | g.sequence
}

// Node extracts the node number from an id.
func Node(id int64) int64 {
	return (id >> sequenceBits) & MaxNode
}

// Time extracts the issue time from an id.
func Time(id int64) time.Time {
	return time.UnixMilli(id>>timeShift + epoch).UTC()
}
