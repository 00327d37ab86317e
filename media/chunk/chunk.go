// Package chunk splits a sequential byte source into ordered, bounded-size segments.
package chunk

import (
	"errors"
	"fmt"
	"io"
)

// DefaultSize is the default maximum segment size (5 MiB).
const DefaultSize int64 = 5 * 1024 * 1024

// Segment describes one contiguous slice of the source.
type Segment struct {
	Index  int
	Offset int64
	Length int64
}

// Plan describes how a source of a known total size is split into segments.
// It is pure computation and can be iterated any number of times.
type Plan struct {
	total     int64
	chunkSize int64
	count     int
}

// NewPlan creates a plan covering [0, total) with segments of at most chunkSize bytes.
func NewPlan(total, chunkSize int64) (Plan, error) {
	if total < 0 {
		return Plan{}, fmt.Errorf("total size must not be negative, got %d", total)
	}
	if chunkSize <= 0 {
		return Plan{}, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}

	// The upload protocol needs at least one APPEND, even for an empty source.
	count := 1
	if total > 0 {
		count = int((total-1)/chunkSize + 1)
	}

	return Plan{
		total:     total,
		chunkSize: chunkSize,
		count:     count,
	}, nil
}

// Count returns the number of segments.
func (p Plan) Count() int {
	return p.count
}

// Total returns the total number of bytes covered by the plan.
func (p Plan) Total() int64 {
	return p.total
}

// ChunkSize returns the maximum segment size.
func (p Plan) ChunkSize() int64 {
	return p.chunkSize
}

// Segment returns the descriptor of the segment at the given index.
func (p Plan) Segment(index int) (Segment, error) {
	if index < 0 || index >= p.count {
		return Segment{}, fmt.Errorf("segment index %d out of range [0, %d)", index, p.count)
	}

	offset := int64(index) * p.chunkSize
	length := p.chunkSize
	if remaining := p.total - offset; remaining < length {
		length = remaining
	}

	return Segment{
		Index:  index,
		Offset: offset,
		Length: length,
	}, nil
}

// NewReader returns a Reader which yields the plan's segments from r.
func (p Plan) NewReader(r io.Reader) *Reader {
	return &Reader{plan: p, src: r}
}

// Reader reads segment payloads from a sequential source, strictly in index order.
// Every byte of the source is read exactly once.
type Reader struct {
	plan Plan
	src  io.Reader
	next int
}

// Next reads the next segment's payload. It returns io.EOF once every segment has been read.
func (r *Reader) Next() (Segment, []byte, error) {
	if r.next >= r.plan.count {
		return Segment{}, nil, io.EOF
	}

	segment, err := r.plan.Segment(r.next)
	if err != nil {
		return Segment{}, nil, err
	}

	payload := make([]byte, segment.Length)
	n, err := io.ReadFull(r.src, payload)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Segment{}, nil, fmt.Errorf("segment %d: source ended after %d of %d bytes", segment.Index, n, segment.Length)
		}
		return Segment{}, nil, fmt.Errorf("read segment %d: %w", segment.Index, err)
	}

	r.next++

	return segment, payload, nil
}
