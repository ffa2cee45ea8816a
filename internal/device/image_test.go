package device

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-shellshock/internal/types"
)

func TestCreateImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk")

	d, err := CreateImage(path, 64, nil)
	require.NoError(t, err, "failed to create image")
	defer d.Close()

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(64*types.BlockSize), info.Size())
	assert.Equal(t, uint64(64), d.TotalBlocks())
	assert.Equal(t, uint32(types.BlockSize), d.BlockSize())
	assert.False(t, d.IsReadOnly())

	block, err := d.ReadBlock(63)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, types.BlockSize), block, "new image should be zero filled")
}

func TestImageReadWriteBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk")
	d, err := CreateImage(path, 16, nil)
	require.NoError(t, err)

	data := bytes.Repeat([]byte{0xAB}, types.BlockSize)
	require.NoError(t, d.WriteBlock(5, data))

	got, err := d.ReadBlock(5)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	stats := d.GetStats()
	assert.Equal(t, int64(1), stats.BlocksWritten)
	assert.Equal(t, int64(1), stats.BlocksRead)
	require.NoError(t, d.Close())

	// contents survive reopening
	d, err = OpenImage(path, true, nil)
	require.NoError(t, err)
	defer d.Close()

	got, err = d.ReadBlock(5)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Error(t, d.WriteBlock(5, data), "read-only image must reject writes")
}

func TestImageBounds(t *testing.T) {
	d, err := CreateImage(filepath.Join(t.TempDir(), "disk"), 4, nil)
	require.NoError(t, err)
	defer d.Close()

	_, err = d.ReadBlock(4)
	assert.Error(t, err)
	assert.Error(t, d.WriteBlock(4, make([]byte, types.BlockSize)))
	assert.Error(t, d.WriteBlock(0, make([]byte, 10)), "partial block writes are rejected")
}

func TestCreateImageResetsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0xFF}, 3*types.BlockSize), 0o644))

	d, err := CreateImage(path, 8, nil)
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, uint64(8), d.TotalBlocks())
	block, err := d.ReadBlock(0)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, types.BlockSize), block, "old contents should be wiped")
	assert.Equal(t, int64(1), d.GetStats().Resets)
}

func TestOpenImage_BadSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk")
	require.NoError(t, os.WriteFile(path, make([]byte, 700), 0o644))

	_, err := OpenImage(path, false, nil)
	assert.Error(t, err)
}

func TestOpenImage_Missing(t *testing.T) {
	_, err := OpenImage(filepath.Join(t.TempDir(), "nope"), false, nil)
	assert.Error(t, err)
}
