package layout

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-shellshock/internal/types"
)

// SuperblockReader parses the volume header stored in block 0
type SuperblockReader struct {
	superblock *types.SuperblockT
	data       []byte
	endian     binary.ByteOrder
}

// NewSuperblockReader creates a new superblock reader.
// A block without the volume signature yields types.ErrNotFormatted.
func NewSuperblockReader(data []byte, endian binary.ByteOrder) (*SuperblockReader, error) {
	if len(data) < types.SuperblockSize {
		return nil, fmt.Errorf("data too small for superblock: %d bytes, need at least %d", len(data), types.SuperblockSize)
	}

	sb, err := parseSuperblock(data, endian)
	if err != nil {
		return nil, err
	}

	return &SuperblockReader{
		superblock: sb,
		data:       data,
		endian:     endian,
	}, nil
}

// parseSuperblock parses raw bytes into a SuperblockT structure
func parseSuperblock(data []byte, endian binary.ByteOrder) (*types.SuperblockT, error) {
	sb := &types.SuperblockT{}
	offset := 0

	copy(sb.SbMagic[:], data[offset:offset+4])
	offset += 4
	if !bytes.Equal(sb.SbMagic[:], types.Magic[:]) {
		return nil, fmt.Errorf("bad superblock magic %q: %w", sb.SbMagic[:], types.ErrNotFormatted)
	}

	next := func() uint32 {
		v := endian.Uint32(data[offset : offset+4])
		offset += 4
		return v
	}

	sb.SbVersion = next()
	sb.SbBlockSize = next()
	sb.SbTotalBlocks = next()
	sb.SbInodeCount = next()
	sb.SbDirectPointers = next()
	sb.SbPointerWidth = next()
	sb.SbInodeSize = next()
	sb.SbInodeBitmapStart = types.Paddr(next())
	sb.SbInodeBitmapBlocks = next()
	sb.SbBlockBitmapStart = types.Paddr(next())
	sb.SbBlockBitmapBlocks = next()
	sb.SbInodeTableStart = types.Paddr(next())
	sb.SbInodeTableBlocks = next()
	sb.SbDataStart = types.Paddr(next())
	sb.SbFreeBlocks = next()
	sb.SbFreeInodes = next()
	sb.SbRootInode = types.InodeID(next())
	copy(sb.SbUUID[:], data[offset:offset+16])

	if sb.SbVersion != types.FormatVersion {
		return nil, fmt.Errorf("unsupported layout version %d", sb.SbVersion)
	}
	if sb.SbBlockSize != types.BlockSize {
		return nil, fmt.Errorf("unsupported block size %d, want %d", sb.SbBlockSize, types.BlockSize)
	}
	if err := sb.Geometry().Validate(); err != nil {
		return nil, fmt.Errorf("invalid geometry in superblock: %w", err)
	}
	if sb.Layout() != sb.Geometry().Layout() {
		return nil, fmt.Errorf("superblock regions do not match its geometry")
	}

	return sb, nil
}

// Superblock returns the parsed superblock
func (r *SuperblockReader) Superblock() *types.SuperblockT {
	return r.superblock
}

// TotalBlocks returns the number of blocks in the image
func (r *SuperblockReader) TotalBlocks() uint32 {
	return r.superblock.SbTotalBlocks
}

// FreeBlocks returns the number of unallocated data blocks
func (r *SuperblockReader) FreeBlocks() uint32 {
	return r.superblock.SbFreeBlocks
}

// FreeInodes returns the number of unallocated inodes
func (r *SuperblockReader) FreeInodes() uint32 {
	return r.superblock.SbFreeInodes
}

// EncodeSuperblock serializes sb into a full block.
func EncodeSuperblock(sb *types.SuperblockT, endian binary.ByteOrder) []byte {
	data := make([]byte, types.BlockSize)
	offset := 0

	copy(data[offset:offset+4], sb.SbMagic[:])
	offset += 4

	put := func(v uint32) {
		endian.PutUint32(data[offset:offset+4], v)
		offset += 4
	}

	put(sb.SbVersion)
	put(sb.SbBlockSize)
	put(sb.SbTotalBlocks)
	put(sb.SbInodeCount)
	put(sb.SbDirectPointers)
	put(sb.SbPointerWidth)
	put(sb.SbInodeSize)
	put(uint32(sb.SbInodeBitmapStart))
	put(sb.SbInodeBitmapBlocks)
	put(uint32(sb.SbBlockBitmapStart))
	put(sb.SbBlockBitmapBlocks)
	put(uint32(sb.SbInodeTableStart))
	put(sb.SbInodeTableBlocks)
	put(uint32(sb.SbDataStart))
	put(sb.SbFreeBlocks)
	put(sb.SbFreeInodes)
	put(uint32(sb.SbRootInode))
	copy(data[offset:offset+16], sb.SbUUID[:])

	return data
}
