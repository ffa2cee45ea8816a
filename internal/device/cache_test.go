package device

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-shellshock/internal/types"
)

func TestCachedDeviceHitsAndMisses(t *testing.T) {
	c := NewCachedDevice(NewMemoryDevice(16), 4)

	_, err := c.ReadBlock(3)
	require.NoError(t, err)
	_, err = c.ReadBlock(3)
	require.NoError(t, err)

	stats := c.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 0.5, stats.HitRate)
	assert.Equal(t, 1, stats.Cached)
}

func TestCachedDeviceWriteThrough(t *testing.T) {
	mem := NewMemoryDevice(16)
	c := NewCachedDevice(mem, 4)

	data := bytes.Repeat([]byte{0x5A}, types.BlockSize)
	require.NoError(t, c.WriteBlock(2, data))

	onDisk, err := mem.ReadBlock(2)
	require.NoError(t, err)
	assert.Equal(t, data, onDisk)

	cached, err := c.ReadBlock(2)
	require.NoError(t, err)
	assert.Equal(t, data, cached)
	assert.Equal(t, int64(1), c.GetStats().Hits, "written block should be served from cache")
}

func TestCachedDeviceReturnsCopies(t *testing.T) {
	c := NewCachedDevice(NewMemoryDevice(16), 4)

	data := bytes.Repeat([]byte{0x01}, types.BlockSize)
	require.NoError(t, c.WriteBlock(1, data))
	data[0] = 0xFF

	got, err := c.ReadBlock(1)
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), got[0])

	got[1] = 0xEE
	again, err := c.ReadBlock(1)
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), again[1])
}

func TestCachedDeviceEviction(t *testing.T) {
	c := NewCachedDevice(NewMemoryDevice(16), 2)

	for _, addr := range []types.Paddr{1, 2, 1, 3} {
		_, err := c.ReadBlock(addr)
		require.NoError(t, err)
	}

	stats := c.GetStats()
	assert.Equal(t, 2, stats.Cached)
	assert.Equal(t, int64(1), stats.Evictions)

	// 2 was least recently used
	_, err := c.ReadBlock(1)
	require.NoError(t, err)
	_, err = c.ReadBlock(2)
	require.NoError(t, err)
	stats = c.GetStats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(4), stats.Misses)
}

func TestCachedDeviceReset(t *testing.T) {
	mem := NewMemoryDevice(16)
	c := NewCachedDevice(mem, 4)

	require.NoError(t, c.WriteBlock(1, bytes.Repeat([]byte{0x7F}, types.BlockSize)))
	require.NoError(t, c.Reset(32))

	assert.Equal(t, uint64(32), c.TotalBlocks())
	assert.Equal(t, 0, c.GetStats().Cached)

	got, err := c.ReadBlock(1)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, types.BlockSize), got)
}

func TestCachedDeviceReadOnlyWrite(t *testing.T) {
	mem := NewMemoryDevice(16)
	mem.SetReadOnly(true)
	c := NewCachedDevice(mem, 4)

	assert.True(t, c.IsReadOnly())
	assert.Error(t, c.WriteBlock(1, make([]byte, types.BlockSize)))
	assert.Equal(t, 0, c.GetStats().Cached)
}
