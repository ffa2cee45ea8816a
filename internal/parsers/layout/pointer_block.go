package layout

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-shellshock/internal/types"
)

// PointerBlock is a view over an indirect block: an array of block pointers.
type PointerBlock struct {
	data   []byte
	width  int
	endian binary.ByteOrder
}

// NewPointerBlock wraps a block buffer. The buffer is modified in place by Set.
func NewPointerBlock(data []byte, width uint32, endian binary.ByteOrder) (*PointerBlock, error) {
	if width != 2 && width != 4 {
		return nil, fmt.Errorf("unsupported pointer width %d", width)
	}
	if len(data) != types.BlockSize {
		return nil, fmt.Errorf("pointer block must be %d bytes, got %d", types.BlockSize, len(data))
	}
	return &PointerBlock{data: data, width: int(width), endian: endian}, nil
}

// Len returns the number of pointer slots.
func (b *PointerBlock) Len() uint32 {
	return uint32(len(b.data) / b.width)
}

// Get returns the pointer stored in slot.
func (b *PointerBlock) Get(slot uint32) types.Paddr {
	off := int(slot) * b.width
	return readPointer(b.data[off:off+b.width], b.endian)
}

// Set stores p in slot.
func (b *PointerBlock) Set(slot uint32, p types.Paddr) error {
	if slot >= b.Len() {
		return fmt.Errorf("pointer slot %d out of range (%d slots)", slot, b.Len())
	}
	off := int(slot) * b.width
	return writePointer(b.data[off:off+b.width], p, b.endian)
}

// Bytes returns the underlying block.
func (b *PointerBlock) Bytes() []byte {
	return b.data
}
