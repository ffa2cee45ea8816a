package space

import (
	"fmt"

	"github.com/diskfs/go-diskfs/util/bitmap"

	"github.com/deploymenttheory/go-shellshock/internal/interfaces"
	"github.com/deploymenttheory/go-shellshock/internal/types"
)

// Bitmap is an allocation bitmap stored in a run of consecutive blocks.
// Every change is written through to the block holding the changed bit.
type Bitmap struct {
	dev    interfaces.BlockDevice
	start  types.Paddr
	blocks uint32
	size   int
	bits   *bitmap.Bitmap
	free   int
}

// regionBits is the number of bits held by a bitmap region of n blocks.
func regionBits(n uint32) int {
	return int(n) * types.BlockSize * 8
}

// FormatBitmap writes a bitmap of size tracked bits to the region, with
// reserved bits marked used. Bits past size are marked used so they are
// never handed out.
func FormatBitmap(dev interfaces.BlockDevice, start types.Paddr, blocks uint32, size int, reserved []int) (*Bitmap, error) {
	if size > regionBits(blocks) {
		return nil, fmt.Errorf("bitmap of %d bits does not fit in %d blocks", size, blocks)
	}

	b := &Bitmap{
		dev:    dev,
		start:  start,
		blocks: blocks,
		size:   size,
		bits:   bitmap.NewBits(regionBits(blocks)),
		free:   size,
	}
	for i := size; i < regionBits(blocks); i++ {
		if err := b.bits.Set(i); err != nil {
			return nil, err
		}
	}
	for _, i := range reserved {
		if i < 0 || i >= size {
			return nil, fmt.Errorf("reserved bit %d outside bitmap of %d bits", i, size)
		}
		set, err := b.bits.IsSet(i)
		if err != nil {
			return nil, err
		}
		if set {
			continue
		}
		if err := b.bits.Set(i); err != nil {
			return nil, err
		}
		b.free--
	}

	raw := b.bits.ToBytes()
	for n := uint32(0); n < blocks; n++ {
		off := int(n) * types.BlockSize
		if err := dev.WriteBlock(start+types.Paddr(n), raw[off:off+types.BlockSize]); err != nil {
			return nil, fmt.Errorf("failed to write bitmap block %d: %w", start+types.Paddr(n), err)
		}
	}
	return b, nil
}

// LoadBitmap reads a bitmap region written by FormatBitmap.
func LoadBitmap(dev interfaces.BlockDevice, start types.Paddr, blocks uint32, size int) (*Bitmap, error) {
	if size > regionBits(blocks) {
		return nil, fmt.Errorf("bitmap of %d bits does not fit in %d blocks", size, blocks)
	}

	raw := make([]byte, 0, int(blocks)*types.BlockSize)
	for n := uint32(0); n < blocks; n++ {
		data, err := dev.ReadBlock(start + types.Paddr(n))
		if err != nil {
			return nil, fmt.Errorf("failed to read bitmap block %d: %w", start+types.Paddr(n), err)
		}
		raw = append(raw, data...)
	}

	b := &Bitmap{
		dev:    dev,
		start:  start,
		blocks: blocks,
		size:   size,
		bits:   bitmap.NewBits(regionBits(blocks)),
	}
	b.bits.FromBytes(raw)

	for i := 0; i < size; i++ {
		set, err := b.bits.IsSet(i)
		if err != nil {
			return nil, err
		}
		if !set {
			b.free++
		}
	}
	return b, nil
}

// Allocate marks the lowest clear bit as used and returns it.
func (b *Bitmap) Allocate() (int, bool, error) {
	i := b.bits.FirstFree(0)
	if i < 0 || i >= b.size {
		return 0, false, nil
	}
	if err := b.bits.Set(i); err != nil {
		return 0, false, err
	}
	if err := b.flush(i); err != nil {
		b.bits.Clear(i)
		return 0, false, err
	}
	b.free--
	return i, true, nil
}

// Release clears bit i. Clearing a bit that is already clear is an error.
func (b *Bitmap) Release(i int) error {
	if i < 0 || i >= b.size {
		return fmt.Errorf("bit %d outside bitmap of %d bits", i, b.size)
	}
	set, err := b.bits.IsSet(i)
	if err != nil {
		return err
	}
	if !set {
		return fmt.Errorf("bit %d is already free", i)
	}
	if err := b.bits.Clear(i); err != nil {
		return err
	}
	if err := b.flush(i); err != nil {
		b.bits.Set(i)
		return err
	}
	b.free++
	return nil
}

// IsSet reports whether bit i is marked used.
func (b *Bitmap) IsSet(i int) bool {
	if i < 0 || i >= b.size {
		return false
	}
	set, err := b.bits.IsSet(i)
	return err == nil && set
}

// Free returns the number of clear bits.
func (b *Bitmap) Free() int {
	return b.free
}

// Size returns the number of tracked bits.
func (b *Bitmap) Size() int {
	return b.size
}

// flush writes the block holding bit i.
func (b *Bitmap) flush(i int) error {
	bitsPerBlock := types.BlockSize * 8
	n := i / bitsPerBlock
	raw := b.bits.ToBytes()
	off := n * types.BlockSize
	addr := b.start + types.Paddr(n)
	if err := b.dev.WriteBlock(addr, raw[off:off+types.BlockSize]); err != nil {
		return fmt.Errorf("failed to write bitmap block %d: %w", addr, err)
	}
	return nil
}
