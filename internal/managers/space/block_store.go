package space

import (
	"fmt"
	"log/slog"

	"github.com/deploymenttheory/go-shellshock/internal/interfaces"
	"github.com/deploymenttheory/go-shellshock/internal/types"
)

// BlockStore allocates data blocks from the block bitmap and performs block
// I/O on them. Metadata blocks in front of the data region are marked used
// at format time and are never handed out.
type BlockStore struct {
	dev    interfaces.BlockDevice
	bitmap *Bitmap
	sb     *SuperblockManager
	log    *slog.Logger
	zero   []byte
}

// FormatBlockStore writes an empty block bitmap for the volume described by sb
func FormatBlockStore(dev interfaces.BlockDevice, sb *SuperblockManager, log *slog.Logger) (*BlockStore, error) {
	g := sb.Geometry()
	l := sb.Layout()

	reserved := make([]int, 0, l.DataStart)
	for i := 0; i < int(l.DataStart); i++ {
		reserved = append(reserved, i)
	}

	bm, err := FormatBitmap(dev, l.BlockBitmapStart, l.BlockBitmapBlocks, int(g.TotalBlocks), reserved)
	if err != nil {
		return nil, fmt.Errorf("failed to format block bitmap: %w", err)
	}
	return newBlockStore(dev, bm, sb, log), nil
}

// LoadBlockStore reads the block bitmap of a formatted volume
func LoadBlockStore(dev interfaces.BlockDevice, sb *SuperblockManager, log *slog.Logger) (*BlockStore, error) {
	g := sb.Geometry()
	l := sb.Layout()

	bm, err := LoadBitmap(dev, l.BlockBitmapStart, l.BlockBitmapBlocks, int(g.TotalBlocks))
	if err != nil {
		return nil, fmt.Errorf("failed to load block bitmap: %w", err)
	}
	for i := 0; i < int(l.DataStart); i++ {
		if !bm.IsSet(i) {
			return nil, fmt.Errorf("metadata block %d is marked free", i)
		}
	}
	return newBlockStore(dev, bm, sb, log), nil
}

func newBlockStore(dev interfaces.BlockDevice, bm *Bitmap, sb *SuperblockManager, log *slog.Logger) *BlockStore {
	if log == nil {
		log = slog.Default()
	}
	return &BlockStore{
		dev:    dev,
		bitmap: bm,
		sb:     sb,
		log:    log,
		zero:   make([]byte, types.BlockSize),
	}
}

// AllocateBlock returns the lowest free data block, zero-filled
func (s *BlockStore) AllocateBlock() (types.Paddr, error) {
	i, ok, err := s.bitmap.Allocate()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, types.ErrNoSpace
	}

	addr := types.Paddr(i)
	if err := s.dev.WriteBlock(addr, s.zero); err != nil {
		s.bitmap.Release(i)
		return 0, fmt.Errorf("failed to zero block %d: %w", addr, err)
	}
	if err := s.syncSuperblock(); err != nil {
		return 0, err
	}

	s.log.Debug("block allocated", slog.Uint64("block", uint64(addr)))
	return addr, nil
}

// FreeBlock zeroes a data block and returns it to the free pool
func (s *BlockStore) FreeBlock(addr types.Paddr) error {
	if !s.isDataBlock(addr) {
		return fmt.Errorf("block %d is not a data block", addr)
	}
	if !s.bitmap.IsSet(int(addr)) {
		return fmt.Errorf("block %d is already free", addr)
	}
	if err := s.dev.WriteBlock(addr, s.zero); err != nil {
		return fmt.Errorf("failed to zero block %d: %w", addr, err)
	}
	if err := s.bitmap.Release(int(addr)); err != nil {
		return err
	}

	s.log.Debug("block freed", slog.Uint64("block", uint64(addr)))
	return s.syncSuperblock()
}

// ReadBlock reads an allocated data block
func (s *BlockStore) ReadBlock(addr types.Paddr) ([]byte, error) {
	if !s.isDataBlock(addr) {
		return nil, fmt.Errorf("block %d is not a data block", addr)
	}
	return s.dev.ReadBlock(addr)
}

// WriteBlock writes an allocated data block
func (s *BlockStore) WriteBlock(addr types.Paddr, data []byte) error {
	if !s.isDataBlock(addr) {
		return fmt.Errorf("block %d is not a data block", addr)
	}
	if !s.bitmap.IsSet(int(addr)) {
		return fmt.Errorf("write to unallocated block %d", addr)
	}
	return s.dev.WriteBlock(addr, data)
}

// FreeBlocks returns the number of unallocated data blocks
func (s *BlockStore) FreeBlocks() uint32 {
	return uint32(s.bitmap.Free())
}

// IsAllocated reports whether addr is marked used in the block bitmap
func (s *BlockStore) IsAllocated(addr types.Paddr) bool {
	return s.bitmap.IsSet(int(addr))
}

// DataBlocks returns the number of blocks in the data region
func (s *BlockStore) DataBlocks() uint32 {
	return uint32(s.bitmap.Size()) - uint32(s.sb.Layout().DataStart)
}

func (s *BlockStore) isDataBlock(addr types.Paddr) bool {
	return addr >= s.sb.Layout().DataStart && int(addr) < s.bitmap.Size()
}

func (s *BlockStore) syncSuperblock() error {
	return s.sb.SetFreeCounts(s.FreeBlocks(), s.sb.Superblock().SbFreeInodes)
}

var _ interfaces.BlockAllocator = (*BlockStore)(nil)
