package space

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-shellshock/internal/device"
	"github.com/deploymenttheory/go-shellshock/internal/types"
)

func newTestStore(t *testing.T, g types.Geometry) (*device.MemoryDevice, *SuperblockManager, *BlockStore) {
	t.Helper()
	dev := device.NewMemoryDevice(uint64(g.TotalBlocks))
	sb, err := FormatSuperblock(dev, g, types.UUID{1})
	require.NoError(t, err)
	store, err := FormatBlockStore(dev, sb, nil)
	require.NoError(t, err)
	return dev, sb, store
}

func TestBlockStore_AllocateLowestFirst(t *testing.T) {
	g := types.DefaultGeometry()
	_, sb, store := newTestStore(t, g)
	dataStart := g.Layout().DataStart

	assert.Equal(t, g.TotalBlocks-uint32(dataStart), store.FreeBlocks())
	assert.Equal(t, store.FreeBlocks(), store.DataBlocks())

	a, err := store.AllocateBlock()
	require.NoError(t, err)
	b, err := store.AllocateBlock()
	require.NoError(t, err)
	assert.Equal(t, dataStart, a)
	assert.Equal(t, dataStart+1, b)

	require.NoError(t, store.FreeBlock(a))
	c, err := store.AllocateBlock()
	require.NoError(t, err)
	assert.Equal(t, a, c, "freed block should be reused first")

	assert.Equal(t, store.FreeBlocks(), sb.Superblock().SbFreeBlocks, "superblock counter tracks the bitmap")
}

func TestBlockStore_AllocatedBlocksAreZeroed(t *testing.T) {
	_, _, store := newTestStore(t, types.DefaultGeometry())

	addr, err := store.AllocateBlock()
	require.NoError(t, err)
	require.NoError(t, store.WriteBlock(addr, bytes.Repeat([]byte{'x'}, types.BlockSize)))
	require.NoError(t, store.FreeBlock(addr))

	again, err := store.AllocateBlock()
	require.NoError(t, err)
	require.Equal(t, addr, again)

	data, err := store.ReadBlock(again)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, types.BlockSize), data)
}

func TestBlockStore_Exhaustion(t *testing.T) {
	g := types.DefaultGeometry()
	g.TotalBlocks = 140
	_, _, store := newTestStore(t, g)

	n := store.FreeBlocks()
	for i := uint32(0); i < n; i++ {
		_, err := store.AllocateBlock()
		require.NoError(t, err)
	}
	_, err := store.AllocateBlock()
	assert.True(t, errors.Is(err, types.ErrNoSpace), "got %v", err)
	assert.Equal(t, uint32(0), store.FreeBlocks())
}

func TestBlockStore_RejectsMetadataAndDoubleFree(t *testing.T) {
	_, sb, store := newTestStore(t, types.DefaultGeometry())

	assert.Error(t, store.FreeBlock(0), "superblock is not a data block")
	assert.Error(t, store.FreeBlock(sb.Layout().DataStart), "block was never allocated")
	assert.True(t, store.IsAllocated(sb.Layout().InodeTableStart))

	addr, err := store.AllocateBlock()
	require.NoError(t, err)
	require.NoError(t, store.FreeBlock(addr))
	assert.Error(t, store.FreeBlock(addr))
	assert.Error(t, store.WriteBlock(addr, make([]byte, types.BlockSize)), "write to free block")
}

func TestBlockStore_Reload(t *testing.T) {
	dev, _, store := newTestStore(t, types.DefaultGeometry())

	var addrs []types.Paddr
	for i := 0; i < 5; i++ {
		addr, err := store.AllocateBlock()
		require.NoError(t, err)
		addrs = append(addrs, addr)
	}
	require.NoError(t, store.FreeBlock(addrs[2]))

	sb, err := LoadSuperblock(dev)
	require.NoError(t, err)
	reloaded, err := LoadBlockStore(dev, sb, nil)
	require.NoError(t, err)

	assert.Equal(t, store.FreeBlocks(), reloaded.FreeBlocks())
	assert.Equal(t, store.FreeBlocks(), sb.Superblock().SbFreeBlocks)
	assert.True(t, reloaded.IsAllocated(addrs[0]))
	assert.False(t, reloaded.IsAllocated(addrs[2]))
}
