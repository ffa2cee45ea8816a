package types

import (
	"errors"
	"fmt"
)

// Geometry describes the shape of a volume. Everything except BlockSize can
// be chosen at format time and is recorded in the superblock.
type Geometry struct {
	// Total number of blocks in the image, metadata included.
	TotalBlocks uint32

	// Number of inode slots. Slot 0 is the root directory.
	InodeCount uint32

	// Number of direct block pointers held in each inode.
	DirectPointers uint32

	// Width in bytes of a block pointer (2 or 4). Decides how many pointers
	// fit in the single indirect block.
	PointerWidth uint32

	// Size of the open file descriptor pool.
	MaxHandles int
}

// Default geometry values.
const (
	DefaultTotalBlocks    uint32 = 2048
	DefaultInodeCount     uint32 = 2048
	DefaultDirectPointers uint32 = 8
	DefaultPointerWidth   uint32 = 2
	DefaultMaxHandles     int    = 256
)

// inodeHeaderSize covers type, pad, link count and size.
const inodeHeaderSize = 8

// DefaultGeometry returns the geometry of a 1 MiB ShellShock volume.
func DefaultGeometry() Geometry {
	return Geometry{
		TotalBlocks:    DefaultTotalBlocks,
		InodeCount:     DefaultInodeCount,
		DirectPointers: DefaultDirectPointers,
		PointerWidth:   DefaultPointerWidth,
		MaxHandles:     DefaultMaxHandles,
	}
}

// InodeSize returns the size of one on-disk inode record: the smallest power
// of two that holds the header and all block pointers.
func (g Geometry) InodeSize() uint32 {
	need := inodeHeaderSize + (g.DirectPointers+1)*g.PointerWidth
	size := uint32(1)
	for size < need {
		size <<= 1
	}
	return size
}

// InodesPerBlock returns how many inode records share one block.
func (g Geometry) InodesPerBlock() uint32 {
	return BlockSize / g.InodeSize()
}

// IndirectCapacity returns the number of block pointers in the indirect block.
func (g Geometry) IndirectCapacity() uint32 {
	return BlockSize / g.PointerWidth
}

// MaxFileBlocks returns the number of data blocks a single inode can address.
func (g Geometry) MaxFileBlocks() uint32 {
	return g.DirectPointers + g.IndirectCapacity()
}

// MaxFileSize returns the largest file size in bytes.
func (g Geometry) MaxFileSize() uint64 {
	return uint64(g.MaxFileBlocks()) * BlockSize
}

// ImageSize returns the size of the backing image in bytes.
func (g Geometry) ImageSize() int64 {
	return int64(g.TotalBlocks) * BlockSize
}

// Layout computes the block regions of a volume with this geometry.
func (g Geometry) Layout() Layout {
	bitsPerBlock := uint32(BlockSize * 8)
	l := Layout{InodeBitmapStart: 1}
	l.InodeBitmapBlocks = ceilDiv(g.InodeCount, bitsPerBlock)
	l.BlockBitmapStart = l.InodeBitmapStart + Paddr(l.InodeBitmapBlocks)
	l.BlockBitmapBlocks = ceilDiv(g.TotalBlocks, bitsPerBlock)
	l.InodeTableStart = l.BlockBitmapStart + Paddr(l.BlockBitmapBlocks)
	l.InodeTableBlocks = ceilDiv(g.InodeCount, g.InodesPerBlock())
	l.DataStart = l.InodeTableStart + Paddr(l.InodeTableBlocks)
	return l
}

// Validate checks that the geometry can be laid out and addressed.
func (g Geometry) Validate() error {
	if g.PointerWidth != 2 && g.PointerWidth != 4 {
		return fmt.Errorf("pointer width must be 2 or 4 bytes, got %d", g.PointerWidth)
	}
	if g.DirectPointers == 0 {
		return errors.New("at least one direct pointer is required")
	}
	if g.InodeSize() > BlockSize {
		return fmt.Errorf("inode record of %d bytes does not fit in a %d byte block", g.InodeSize(), BlockSize)
	}
	if g.InodeCount < 2 {
		return fmt.Errorf("inode count must be at least 2, got %d", g.InodeCount)
	}
	// directory entries store inode ids in 16 bits
	if g.InodeCount > 1<<16 {
		return fmt.Errorf("inode count %d exceeds the directory entry limit of %d", g.InodeCount, 1<<16)
	}
	if g.PointerWidth == 2 && g.TotalBlocks > 1<<16 {
		return fmt.Errorf("%d blocks cannot be addressed with 16-bit pointers", g.TotalBlocks)
	}
	if g.MaxHandles <= 0 {
		return fmt.Errorf("max handles must be positive, got %d", g.MaxHandles)
	}
	layout := g.Layout()
	if uint32(layout.DataStart) >= g.TotalBlocks {
		return fmt.Errorf("%d blocks leave no room for data after %d metadata blocks", g.TotalBlocks, layout.DataStart)
	}
	return nil
}

// Layout lists where each region of the volume starts and how long it is.
type Layout struct {
	// Start and length of the inode allocation bitmap.
	InodeBitmapStart  Paddr
	InodeBitmapBlocks uint32

	// Start and length of the block allocation bitmap.
	BlockBitmapStart  Paddr
	BlockBitmapBlocks uint32

	// Start and length of the inode table.
	InodeTableStart  Paddr
	InodeTableBlocks uint32

	// First data block.
	DataStart Paddr
}

// BlocksFor returns the number of blocks needed to hold size bytes.
func BlocksFor(size uint64) uint32 {
	return uint32((size + BlockSize - 1) / BlockSize)
}

func ceilDiv(a, b uint32) uint32 {
	return (a + b - 1) / b
}
