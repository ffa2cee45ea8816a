package layout

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-shellshock/internal/types"
)

// ParseInode decodes one inode record laid out for geometry g.
//
//	u8  type
//	u8  pad
//	u16 link count
//	u32 size
//	direct pointers, then the indirect pointer, g.PointerWidth bytes each
func ParseInode(data []byte, g types.Geometry, endian binary.ByteOrder) (*types.InodeT, error) {
	size := int(g.InodeSize())
	if len(data) < size {
		return nil, fmt.Errorf("data too small for inode: %d bytes, need at least %d", len(data), size)
	}

	ino := types.NewInode(types.InodeType(data[0]), g)
	ino.LinkCount = endian.Uint16(data[2:4])
	ino.Size = endian.Uint32(data[4:8])

	offset := 8
	width := int(g.PointerWidth)
	for i := range ino.Direct {
		ino.Direct[i] = readPointer(data[offset:offset+width], endian)
		offset += width
	}
	ino.Indirect = readPointer(data[offset:offset+width], endian)

	return ino, nil
}

// EncodeInode writes ino into dst using the record layout of geometry g.
func EncodeInode(dst []byte, ino *types.InodeT, g types.Geometry, endian binary.ByteOrder) error {
	size := int(g.InodeSize())
	if len(dst) < size {
		return fmt.Errorf("buffer too small for inode: %d bytes, need at least %d", len(dst), size)
	}
	if len(ino.Direct) != int(g.DirectPointers) {
		return fmt.Errorf("inode has %d direct pointers, geometry expects %d", len(ino.Direct), g.DirectPointers)
	}

	clear(dst[:size])
	dst[0] = byte(ino.Type)
	endian.PutUint16(dst[2:4], ino.LinkCount)
	endian.PutUint32(dst[4:8], ino.Size)

	offset := 8
	width := int(g.PointerWidth)
	for _, p := range ino.Direct {
		if err := writePointer(dst[offset:offset+width], p, endian); err != nil {
			return err
		}
		offset += width
	}
	return writePointer(dst[offset:offset+width], ino.Indirect, endian)
}

func readPointer(data []byte, endian binary.ByteOrder) types.Paddr {
	switch len(data) {
	case 2:
		return types.Paddr(endian.Uint16(data))
	default:
		return types.Paddr(endian.Uint32(data))
	}
}

func writePointer(dst []byte, p types.Paddr, endian binary.ByteOrder) error {
	switch len(dst) {
	case 2:
		if p > 0xFFFF {
			return fmt.Errorf("block %d does not fit a 16-bit pointer", p)
		}
		endian.PutUint16(dst, uint16(p))
	default:
		endian.PutUint32(dst, uint32(p))
	}
	return nil
}
