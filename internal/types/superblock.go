package types

// SuperblockSize is the number of bytes of block 0 used by the superblock.
const SuperblockSize = 88

// SuperblockT is the volume header stored in block 0.
type SuperblockT struct {
	// Signature identifying a formatted volume. Always Magic.
	SbMagic [4]byte

	// On-disk layout version.
	SbVersion uint32

	// Block size in bytes. Always BlockSize.
	SbBlockSize uint32

	// Total number of blocks in the image.
	SbTotalBlocks uint32

	// Number of inode slots, root included.
	SbInodeCount uint32

	// Number of direct pointers per inode.
	SbDirectPointers uint32

	// Width in bytes of a block pointer.
	SbPointerWidth uint32

	// Size in bytes of one inode record.
	SbInodeSize uint32

	// Inode bitmap region.
	SbInodeBitmapStart  Paddr
	SbInodeBitmapBlocks uint32

	// Block bitmap region.
	SbBlockBitmapStart  Paddr
	SbBlockBitmapBlocks uint32

	// Inode table region.
	SbInodeTableStart  Paddr
	SbInodeTableBlocks uint32

	// First data block.
	SbDataStart Paddr

	// Number of unallocated data blocks.
	SbFreeBlocks uint32

	// Number of unallocated inodes.
	SbFreeInodes uint32

	// Inode of the root directory.
	SbRootInode InodeID

	// Volume identifier generated by mkfs.
	SbUUID UUID
}

// Geometry rebuilds the geometry recorded in the superblock. The handle pool
// size is not part of the on-disk format and is left at its default.
func (sb *SuperblockT) Geometry() Geometry {
	return Geometry{
		TotalBlocks:    sb.SbTotalBlocks,
		InodeCount:     sb.SbInodeCount,
		DirectPointers: sb.SbDirectPointers,
		PointerWidth:   sb.SbPointerWidth,
		MaxHandles:     DefaultMaxHandles,
	}
}

// Layout returns the block regions recorded in the superblock.
func (sb *SuperblockT) Layout() Layout {
	return Layout{
		InodeBitmapStart:  sb.SbInodeBitmapStart,
		InodeBitmapBlocks: sb.SbInodeBitmapBlocks,
		BlockBitmapStart:  sb.SbBlockBitmapStart,
		BlockBitmapBlocks: sb.SbBlockBitmapBlocks,
		InodeTableStart:   sb.SbInodeTableStart,
		InodeTableBlocks:  sb.SbInodeTableBlocks,
		DataStart:         sb.SbDataStart,
	}
}

// NewSuperblock builds the superblock of a freshly formatted volume.
func NewSuperblock(g Geometry, id UUID) *SuperblockT {
	l := g.Layout()
	return &SuperblockT{
		SbMagic:             Magic,
		SbVersion:           FormatVersion,
		SbBlockSize:         BlockSize,
		SbTotalBlocks:       g.TotalBlocks,
		SbInodeCount:        g.InodeCount,
		SbDirectPointers:    g.DirectPointers,
		SbPointerWidth:      g.PointerWidth,
		SbInodeSize:         g.InodeSize(),
		SbInodeBitmapStart:  l.InodeBitmapStart,
		SbInodeBitmapBlocks: l.InodeBitmapBlocks,
		SbBlockBitmapStart:  l.BlockBitmapStart,
		SbBlockBitmapBlocks: l.BlockBitmapBlocks,
		SbInodeTableStart:   l.InodeTableStart,
		SbInodeTableBlocks:  l.InodeTableBlocks,
		SbDataStart:         l.DataStart,
		SbFreeBlocks:        g.TotalBlocks - uint32(l.DataStart),
		SbFreeInodes:        g.InodeCount - 1,
		SbRootInode:         RootInode,
		SbUUID:              id,
	}
}
