// File: internal/interfaces/block_device.go
package interfaces

import (
	"io"

	"github.com/deploymenttheory/go-shellshock/internal/types"
)

// BlockDeviceReader provides methods for reading from block devices
type BlockDeviceReader interface {
	// ReadBlock reads a single block at the specified address
	ReadBlock(address types.Paddr) ([]byte, error)

	// BlockSize returns the size of a single block in bytes
	BlockSize() uint32

	// TotalBlocks returns the total number of blocks on the device
	TotalBlocks() uint64
}

// BlockDeviceWriter provides methods for writing to block devices
type BlockDeviceWriter interface {
	// WriteBlock writes a single block at the specified address
	WriteBlock(address types.Paddr, data []byte) error

	// IsReadOnly checks if the device is read-only
	IsReadOnly() bool
}

// BlockDevice represents a complete block device interface
type BlockDevice interface {
	BlockDeviceReader
	BlockDeviceWriter
	io.Closer
}

// FormattableDevice is a block device whose backing image can be wiped and
// resized, as mkfs does.
type FormattableDevice interface {
	BlockDevice

	// Reset zeroes the device and resizes it to totalBlocks blocks
	Reset(totalBlocks uint64) error
}
