// Package idgen provides identifier generation for orchestrator entities.
package idgen

import "github.com/google/uuid"

// Generator creates unique identifiers. Injected as a capability so tests
// can substitute deterministic sequences.
type Generator interface {
	NewID() string
}

// UUIDGenerator generates RFC 4122 v4 identifiers.
type UUIDGenerator struct{}

// NewID returns a new random UUID string.
func (UUIDGenerator) NewID() string {
	return uuid.New().String()
}

// Sequential is a test double that returns deterministic, incrementing ids
// with the given prefix (e.g. "task-1", "task-2", ...).
type Sequential struct {
	Prefix string
	n      int
}

// NewID returns the next id in the sequence.
func (s *Sequential) NewID() string {
	s.n++
	return s.Prefix + itoa(s.n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
