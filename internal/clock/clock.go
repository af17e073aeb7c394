// Package clock supplies timestamps and identifiers to the ticket core so
// that tests can control both.
package clock

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Precision matches the resolution of PostgreSQL timestamptz columns, so
// a value read back from the store equals the value written.
const Precision = time.Microsecond

// Clock abstracts the current time.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces globally unique opaque identifiers.
type IDGenerator interface {
	NewID() string
}

type realClock struct{}

// Real returns the wall clock in UTC.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time {
	return time.Now().UTC().Truncate(Precision)
}

// Fake is a manually advanced clock.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake returns a Fake clock pinned at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start.UTC().Truncate(Precision)}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d).Truncate(Precision)
}

// Set pins the clock at t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t.UTC().Truncate(Precision)
}

type uuidGenerator struct{}

// UUIDs returns a generator of random UUIDv4 strings.
func UUIDs() IDGenerator { return uuidGenerator{} }

func (uuidGenerator) NewID() string { return uuid.NewString() }

// Sequence yields prefix-1, prefix-2, ... and is meant for tests.
type Sequence struct {
	mu     sync.Mutex
	prefix string
	next   int
}

// NewSequence builds a deterministic generator.
func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

func (s *Sequence) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return s.prefix + "-" + strconv.Itoa(s.next)
}
