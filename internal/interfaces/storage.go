// File: internal/interfaces/storage.go
package interfaces

import "github.com/deploymenttheory/go-shellshock/internal/types"

// BlockAllocator hands out and reclaims data blocks
type BlockAllocator interface {
	// AllocateBlock returns a zero-filled data block, or types.ErrNoSpace
	AllocateBlock() (types.Paddr, error)

	// FreeBlock returns a data block to the free set
	FreeBlock(address types.Paddr) error

	// ReadBlock reads a block
	ReadBlock(address types.Paddr) ([]byte, error)

	// WriteBlock writes a full block
	WriteBlock(address types.Paddr, data []byte) error

	// FreeBlocks returns the number of unallocated data blocks
	FreeBlocks() uint32
}

// InodeStore reads and persists inode records
type InodeStore interface {
	// Get returns the inode record for id
	Get(id types.InodeID) (*types.InodeT, error)

	// Put persists the inode record for id
	Put(id types.InodeID, inode *types.InodeT) error
}

// FileData provides byte-range access to the content of an inode
type FileData interface {
	// ReadAt reads len(p) bytes at offset, returning io.EOF on a short read
	ReadAt(id types.InodeID, p []byte, offset uint64) (int, error)

	// WriteAt writes p at offset, growing the file and zero-filling any gap
	WriteAt(id types.InodeID, p []byte, offset uint64) (int, error)

	// Truncate grows or shrinks the file to size bytes
	Truncate(id types.InodeID, size uint64) error
}
