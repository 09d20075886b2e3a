package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() StringPoolConfig {
	return StringPoolConfig{
		SmallBytes: 16, MediumBytes: 64, LargeBytes: 256,
		SmallCount: 2, MediumCount: 2, LargeCount: 1,
	}
}

func TestStringPool_GetPicksSmallestCoveringClass(t *testing.T) {
	sp := NewStringPool(testConfig())

	buf, class, err := sp.Get(10)
	require.NoError(t, err)
	assert.Equal(t, ClassSmall, class)
	assert.Len(t, buf, 10)

	sp.Put(buf, class)
}

func TestStringPool_DonatesDownFromLargerClassOnExhaustion(t *testing.T) {
	sp := NewStringPool(testConfig())

	// Drain the small tier entirely.
	first, c1, err := sp.Get(8)
	require.NoError(t, err)
	second, c2, err := sp.Get(8)
	require.NoError(t, err)
	assert.Equal(t, ClassSmall, c1)
	assert.Equal(t, ClassSmall, c2)

	// Third request for a small-sized buffer must donate from medium.
	third, class, err := sp.Get(8)
	require.NoError(t, err)
	assert.Equal(t, ClassSmall, class, "requested class is recorded as small even though served from medium")

	sp.Put(first, c1)
	sp.Put(second, c2)
	sp.Put(third, class)
}

func TestStringPool_ExhaustionAcrossAllClassesIsNoMemory(t *testing.T) {
	sp := NewStringPool(testConfig())

	var got [][]byte
	var classes []StringClass
	for i := 0; i < 5; i++ { // 2 small + 2 medium + 1 large = 5 total slots
		buf, class, err := sp.Get(8)
		require.NoError(t, err)
		got = append(got, buf)
		classes = append(classes, class)
	}

	_, _, err := sp.Get(8)
	require.Error(t, err)

	for i, buf := range got {
		sp.Put(buf, classes[i])
	}
}

func TestStringPool_Stats(t *testing.T) {
	sp := NewStringPool(testConfig())

	stats := sp.Stats()
	assert.Equal(t, [2]int{2, 2}, stats["small"])
	assert.Equal(t, [2]int{2, 2}, stats["medium"])
	assert.Equal(t, [2]int{1, 1}, stats["large"])
}
