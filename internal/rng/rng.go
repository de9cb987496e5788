// Package rng provides the deterministic generator handed to every state transition.
package rng

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
)

// Generator yields integers in an inclusive range. Two generators built from the
// same seed and stream index produce the same sequence.
type Generator interface {
	Next(min, max int) int
}

// Seeded draws from an HMAC-SHA256 byte stream keyed by the block seed.
// Each 32-byte round is HMAC(seed, "<stream>:<round>").
type Seeded struct {
	seed   []byte
	stream int
	round  int
	cursor int
	buffer [32]byte
}

// New returns the generator for input number stream of the block with the given seed
func New(seed string, stream int) *Seeded {
	return &Seeded{
		seed:   []byte(seed),
		stream: stream,
		cursor: 32,
	}
}

func (s *Seeded) nextByte() byte {
	if s.cursor >= 32 {
		h := hmac.New(sha256.New, s.seed)
		fmt.Fprintf(h, "%d:%d", s.stream, s.round)
		copy(s.buffer[:], h.Sum(nil))
		s.round++
		s.cursor = 0
	}
	b := s.buffer[s.cursor]
	s.cursor++
	return b
}

// Float returns a value in [0, 1) built from the next four bytes
func (s *Seeded) Float() float64 {
	b0 := s.nextByte()
	b1 := s.nextByte()
	b2 := s.nextByte()
	b3 := s.nextByte()

	return float64(b0)/256.0 +
		float64(b1)/(256.0*256.0) +
		float64(b2)/(256.0*256.0*256.0) +
		float64(b3)/(256.0*256.0*256.0*256.0)
}

// Next returns an integer in [min, max]. A reversed range is swapped.
func (s *Seeded) Next(min, max int) int {
	if min > max {
		min, max = max, min
	}
	span := float64(max) - float64(min) + 1
	v := min + int(s.Float()*span)
	if v > max {
		v = max
	}
	return v
}

// Draw is one recorded call to Next
type Draw struct {
	Min, Max, Value int
}

// Recorder wraps a generator and keeps every draw, in order
type Recorder struct {
	inner Generator
	draws []Draw
}

// NewRecorder wraps g
func NewRecorder(g Generator) *Recorder {
	return &Recorder{inner: g}
}

// Next delegates to the wrapped generator and records the call
func (r *Recorder) Next(min, max int) int {
	v := r.inner.Next(min, max)
	r.draws = append(r.draws, Draw{Min: min, Max: max, Value: v})
	return v
}

// Draws returns the calls made so far
func (r *Recorder) Draws() []Draw {
	out := make([]Draw, len(r.draws))
	copy(out, r.draws)
	return out
}

// Scripted returns preset values in order, clamped to the requested range.
// Once the script runs out it returns min.
type Scripted struct {
	values []int
	pos    int
}

// NewScripted returns a generator that replays values
func NewScripted(values ...int) *Scripted {
	return &Scripted{values: values}
}

// Next returns the next scripted value clamped into [min, max]
func (s *Scripted) Next(min, max int) int {
	if s.pos >= len(s.values) {
		return min
	}
	v := s.values[s.pos]
	s.pos++
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Remaining reports how many scripted values are still unused
func (s *Scripted) Remaining() int {
	return len(s.values) - s.pos
}
