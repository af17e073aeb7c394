package clock

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealTruncatesToStorePrecision(t *testing.T) {
	now := Real().Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.Zero(t, now.Nanosecond()%int(time.Microsecond))
}

func TestFakeAdvance(t *testing.T) {
	start := time.Date(2024, 3, 10, 1, 30, 0, 0, time.UTC)
	f := NewFake(start)
	assert.Equal(t, start, f.Now())

	f.Advance(90 * time.Minute)
	assert.Equal(t, start.Add(90*time.Minute), f.Now())

	f.Set(start)
	assert.Equal(t, start, f.Now())
}

func TestIDGenerators(t *testing.T) {
	id := UUIDs().NewID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.NotEqual(t, id, UUIDs().NewID())

	seq := NewSequence("c")
	assert.Equal(t, "c-1", seq.NewID())
	assert.Equal(t, "c-2", seq.NewID())
}
