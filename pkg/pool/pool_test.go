package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/datahub/errors"
)

func TestPool_GetPutRoundTrip(t *testing.T) {
	p := New("test", 2, func() int { return 0 }, func(v int) {})

	a, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, 0, a)
	assert.Equal(t, 1, p.Available())

	p.Put(a)
	assert.Equal(t, 2, p.Available())
}

func TestPool_ExhaustionReturnsNoMemory(t *testing.T) {
	p := New("test", 1, func() int { return 1 }, nil)

	_, err := p.Get()
	require.NoError(t, err)

	_, err = p.Get()
	require.Error(t, err)
	assert.Equal(t, errors.KindNoMemory, errors.KindOf(err))
}

func TestPool_PutBeyondCapacityIsDropped(t *testing.T) {
	p := New("test", 1, func() int { return 0 }, nil)

	v, err := p.Get()
	require.NoError(t, err)
	p.Put(v)

	// Free list already at capacity 1; a second Put must not grow it.
	p.Put(v)
	assert.Equal(t, 1, p.Available())
}

func TestPool_ResetFnAppliedOnPut(t *testing.T) {
	resetCalls := 0
	p := New("test", 1, func() int { return 0 }, func(int) { resetCalls++ })

	v, err := p.Get()
	require.NoError(t, err)
	p.Put(v)

	assert.Equal(t, 1, resetCalls)
}
