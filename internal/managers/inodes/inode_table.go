package inodes

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/deploymenttheory/go-shellshock/internal/interfaces"
	"github.com/deploymenttheory/go-shellshock/internal/managers/space"
	"github.com/deploymenttheory/go-shellshock/internal/parsers/layout"
	"github.com/deploymenttheory/go-shellshock/internal/types"
)

// InodeTable manages the inode bitmap and the fixed-size inode records that
// follow it. Slot 0 is the root directory and is reserved at format time.
type InodeTable struct {
	dev    interfaces.BlockDevice
	sb     *space.SuperblockManager
	bitmap *space.Bitmap
	geom   types.Geometry
	layout types.Layout
	log    *slog.Logger
}

// Format writes an empty inode bitmap with the root slot reserved and zeroes
// the inode table
func Format(dev interfaces.BlockDevice, sb *space.SuperblockManager, log *slog.Logger) (*InodeTable, error) {
	g := sb.Geometry()
	l := sb.Layout()

	bm, err := space.FormatBitmap(dev, l.InodeBitmapStart, l.InodeBitmapBlocks, int(g.InodeCount), []int{int(types.RootInode)})
	if err != nil {
		return nil, fmt.Errorf("failed to format inode bitmap: %w", err)
	}

	zero := make([]byte, types.BlockSize)
	for n := uint32(0); n < l.InodeTableBlocks; n++ {
		if err := dev.WriteBlock(l.InodeTableStart+types.Paddr(n), zero); err != nil {
			return nil, fmt.Errorf("failed to clear inode table: %w", err)
		}
	}

	t := newInodeTable(dev, sb, bm, log)
	return t, t.syncSuperblock()
}

// Load reads the inode bitmap of a formatted volume
func Load(dev interfaces.BlockDevice, sb *space.SuperblockManager, log *slog.Logger) (*InodeTable, error) {
	g := sb.Geometry()
	l := sb.Layout()

	bm, err := space.LoadBitmap(dev, l.InodeBitmapStart, l.InodeBitmapBlocks, int(g.InodeCount))
	if err != nil {
		return nil, fmt.Errorf("failed to load inode bitmap: %w", err)
	}
	if !bm.IsSet(int(types.RootInode)) {
		return nil, fmt.Errorf("root inode is not allocated")
	}
	return newInodeTable(dev, sb, bm, log), nil
}

func newInodeTable(dev interfaces.BlockDevice, sb *space.SuperblockManager, bm *space.Bitmap, log *slog.Logger) *InodeTable {
	if log == nil {
		log = slog.Default()
	}
	return &InodeTable{
		dev:    dev,
		sb:     sb,
		bitmap: bm,
		geom:   sb.Geometry(),
		layout: sb.Layout(),
		log:    log,
	}
}

// Allocate reserves the lowest free inode and initializes it as an empty
// object of type t with no links
func (t *InodeTable) Allocate(typ types.InodeType) (types.InodeID, *types.InodeT, error) {
	i, ok, err := t.bitmap.Allocate()
	if err != nil {
		return 0, nil, err
	}
	if !ok {
		return 0, nil, types.ErrNoInodes
	}

	id := types.InodeID(i)
	ino := types.NewInode(typ, t.geom)
	if err := t.Put(id, ino); err != nil {
		t.bitmap.Release(i)
		return 0, nil, err
	}
	if err := t.syncSuperblock(); err != nil {
		return 0, nil, err
	}

	t.log.Debug("inode allocated", slog.Uint64("inode", uint64(id)), slog.String("type", typ.String()))
	return id, ino, nil
}

// Get reads the inode record for id
func (t *InodeTable) Get(id types.InodeID) (*types.InodeT, error) {
	block, off, err := t.locate(id)
	if err != nil {
		return nil, err
	}
	data, err := t.dev.ReadBlock(block)
	if err != nil {
		return nil, fmt.Errorf("failed to read inode %d: %w", id, err)
	}
	ino, err := layout.ParseInode(data[off:off+t.geom.InodeSize()], t.geom, binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("inode %d: %w", id, err)
	}
	return ino, nil
}

// Put writes the inode record for id
func (t *InodeTable) Put(id types.InodeID, ino *types.InodeT) error {
	block, off, err := t.locate(id)
	if err != nil {
		return err
	}
	data, err := t.dev.ReadBlock(block)
	if err != nil {
		return fmt.Errorf("failed to read inode %d: %w", id, err)
	}
	if err := layout.EncodeInode(data[off:off+t.geom.InodeSize()], ino, t.geom, binary.LittleEndian); err != nil {
		return fmt.Errorf("inode %d: %w", id, err)
	}
	if err := t.dev.WriteBlock(block, data); err != nil {
		return fmt.Errorf("failed to write inode %d: %w", id, err)
	}
	return nil
}

// Link increments the link count of id and returns the new count
func (t *InodeTable) Link(id types.InodeID) (uint16, error) {
	ino, err := t.Get(id)
	if err != nil {
		return 0, err
	}
	if ino.LinkCount == ^uint16(0) {
		return 0, fmt.Errorf("inode %d: too many links", id)
	}
	ino.LinkCount++
	return ino.LinkCount, t.Put(id, ino)
}

// Unlink decrements the link count of id and returns the new count. The
// inode is not released; callers decide when its storage can go.
func (t *InodeTable) Unlink(id types.InodeID) (uint16, error) {
	ino, err := t.Get(id)
	if err != nil {
		return 0, err
	}
	if ino.LinkCount == 0 {
		return 0, fmt.Errorf("inode %d has no links", id)
	}
	ino.LinkCount--
	return ino.LinkCount, t.Put(id, ino)
}

// Release clears the record for id and returns the slot to the free pool.
// Data blocks must already have been freed.
func (t *InodeTable) Release(id types.InodeID) error {
	if id == types.RootInode {
		return fmt.Errorf("the root inode cannot be released")
	}
	if !t.IsAllocated(id) {
		return fmt.Errorf("inode %d is not allocated", id)
	}
	if err := t.Put(id, types.NewInode(types.InodeTypeFree, t.geom)); err != nil {
		return err
	}
	if err := t.bitmap.Release(int(id)); err != nil {
		return err
	}

	t.log.Debug("inode released", slog.Uint64("inode", uint64(id)))
	return t.syncSuperblock()
}

// IsAllocated reports whether id is marked used in the inode bitmap
func (t *InodeTable) IsAllocated(id types.InodeID) bool {
	return t.bitmap.IsSet(int(id))
}

// AllocatedIDs lists every allocated inode in ascending order
func (t *InodeTable) AllocatedIDs() []types.InodeID {
	ids := make([]types.InodeID, 0, t.bitmap.Size()-t.bitmap.Free())
	for i := 0; i < t.bitmap.Size(); i++ {
		if t.bitmap.IsSet(i) {
			ids = append(ids, types.InodeID(i))
		}
	}
	return ids
}

// FreeInodes returns the number of unallocated inodes
func (t *InodeTable) FreeInodes() uint32 {
	return uint32(t.bitmap.Free())
}

// Count returns the number of inode slots, root included
func (t *InodeTable) Count() uint32 {
	return t.geom.InodeCount
}

func (t *InodeTable) locate(id types.InodeID) (types.Paddr, uint32, error) {
	if uint32(id) >= t.geom.InodeCount {
		return 0, 0, fmt.Errorf("inode %d out of range (%d inodes)", id, t.geom.InodeCount)
	}
	perBlock := t.geom.InodesPerBlock()
	block := t.layout.InodeTableStart + types.Paddr(uint32(id)/perBlock)
	off := (uint32(id) % perBlock) * t.geom.InodeSize()
	return block, off, nil
}

func (t *InodeTable) syncSuperblock() error {
	return t.sb.SetFreeCounts(t.sb.Superblock().SbFreeBlocks, t.FreeInodes())
}

var _ interfaces.InodeStore = (*InodeTable)(nil)
