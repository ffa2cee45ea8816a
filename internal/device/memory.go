package device

import (
	"fmt"

	"github.com/deploymenttheory/go-shellshock/internal/types"
)

// MemoryDevice is a block device held entirely in memory. It backs scratch
// volumes and tests.
type MemoryDevice struct {
	data     []byte
	readOnly bool
}

// NewMemoryDevice returns a zero-filled in-memory device of totalBlocks blocks
func NewMemoryDevice(totalBlocks uint64) *MemoryDevice {
	return &MemoryDevice{data: make([]byte, totalBlocks*types.BlockSize)}
}

// ReadBlock returns a copy of the block at address
func (m *MemoryDevice) ReadBlock(address types.Paddr) ([]byte, error) {
	if uint64(address) >= m.TotalBlocks() {
		return nil, fmt.Errorf("block %d out of range (%d blocks)", address, m.TotalBlocks())
	}
	off := int(address) * types.BlockSize
	buf := make([]byte, types.BlockSize)
	copy(buf, m.data[off:off+types.BlockSize])
	return buf, nil
}

// WriteBlock stores a full block at address
func (m *MemoryDevice) WriteBlock(address types.Paddr, data []byte) error {
	if m.readOnly {
		return fmt.Errorf("write to block %d: device is read-only", address)
	}
	if uint64(address) >= m.TotalBlocks() {
		return fmt.Errorf("block %d out of range (%d blocks)", address, m.TotalBlocks())
	}
	if len(data) != types.BlockSize {
		return fmt.Errorf("block write of %d bytes, want %d", len(data), types.BlockSize)
	}
	copy(m.data[int(address)*types.BlockSize:], data)
	return nil
}

// Reset wipes the device and resizes it
func (m *MemoryDevice) Reset(totalBlocks uint64) error {
	m.data = make([]byte, totalBlocks*types.BlockSize)
	return nil
}

// SetReadOnly makes subsequent writes fail
func (m *MemoryDevice) SetReadOnly(readOnly bool) {
	m.readOnly = readOnly
}

func (m *MemoryDevice) BlockSize() uint32 { return types.BlockSize }

func (m *MemoryDevice) TotalBlocks() uint64 { return uint64(len(m.data) / types.BlockSize) }

func (m *MemoryDevice) IsReadOnly() bool { return m.readOnly }

func (m *MemoryDevice) Close() error { return nil }
