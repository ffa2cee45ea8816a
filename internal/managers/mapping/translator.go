package mapping

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"

	"github.com/deploymenttheory/go-shellshock/internal/interfaces"
	"github.com/deploymenttheory/go-shellshock/internal/parsers/layout"
	"github.com/deploymenttheory/go-shellshock/internal/types"
)

// Translator maps file offsets to data blocks through an inode's direct
// pointers and its single indirect block. Files are never sparse: every
// block below the size is allocated, and bytes past the size read as zero.
type Translator struct {
	inodes interfaces.InodeStore
	blocks interfaces.BlockAllocator
	geom   types.Geometry
	log    *slog.Logger
}

// NewTranslator creates a translator over the given inode store and block
// allocator
func NewTranslator(inodes interfaces.InodeStore, blocks interfaces.BlockAllocator, g types.Geometry, log *slog.Logger) *Translator {
	if log == nil {
		log = slog.Default()
	}
	return &Translator{inodes: inodes, blocks: blocks, geom: g, log: log}
}

// Map returns the data block holding byte offset of file id. Touching an
// offset at or past the end of file grows the file to cover it.
func (t *Translator) Map(id types.InodeID, offset uint64) (types.Paddr, error) {
	if offset >= t.geom.MaxFileSize() {
		return 0, types.ErrFileTooLarge
	}
	ino, err := t.inodes.Get(id)
	if err != nil {
		return 0, err
	}
	if offset >= uint64(ino.Size) {
		if err := t.grow(id, ino, offset+1); err != nil {
			return 0, err
		}
	}
	return t.BlockAt(ino, uint32(offset/types.BlockSize))
}

// BlockAt returns the data block at logical block index of ino. A null
// address means the block is not allocated.
func (t *Translator) BlockAt(ino *types.InodeT, index uint32) (types.Paddr, error) {
	r := t.newResolver(ino)
	return r.get(index)
}

// BlocksAllocated returns the number of blocks held by ino, counting the
// indirect block.
func (t *Translator) BlocksAllocated(ino *types.InodeT) uint32 {
	n := ino.DataBlocks()
	if !ino.Indirect.IsNull() {
		n++
	}
	return n
}

// ReportedSize is the size printed by stat: the content plus the indirect
// block when one is materialized.
func (t *Translator) ReportedSize(ino *types.InodeT) uint64 {
	size := uint64(ino.Size)
	if !ino.Indirect.IsNull() {
		size += types.BlockSize
	}
	return size
}

// Blocks lists the data blocks of ino in logical order, followed by the
// indirect block if present
func (t *Translator) Blocks(ino *types.InodeT) ([]types.Paddr, error) {
	r := t.newResolver(ino)
	n := ino.DataBlocks()
	out := make([]types.Paddr, 0, n+1)
	for i := uint32(0); i < n; i++ {
		p, err := r.get(i)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if !ino.Indirect.IsNull() {
		out = append(out, ino.Indirect)
	}
	return out, nil
}

// ReadAt reads up to len(p) bytes of file id starting at offset. A read that
// stops at end of file returns io.EOF with the bytes read so far.
func (t *Translator) ReadAt(id types.InodeID, p []byte, offset uint64) (int, error) {
	ino, err := t.inodes.Get(id)
	if err != nil {
		return 0, err
	}

	size := uint64(ino.Size)
	if offset >= size {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}

	want := uint64(len(p))
	if offset+want > size {
		want = size - offset
	}

	r := t.newResolver(ino)
	var done uint64
	for done < want {
		pos := offset + done
		index := uint32(pos / types.BlockSize)
		within := pos % types.BlockSize

		addr, err := r.get(index)
		if err != nil {
			return int(done), err
		}
		if addr.IsNull() {
			return int(done), fmt.Errorf("inode %d: block %d below size is not allocated", id, index)
		}
		data, err := t.blocks.ReadBlock(addr)
		if err != nil {
			return int(done), err
		}
		done += uint64(copy(p[done:want], data[within:]))
	}

	if done < uint64(len(p)) {
		return int(done), io.EOF
	}
	return int(done), nil
}

// WriteAt writes p to file id at offset, growing the file first if the write
// ends past the current size. Growth is checked up front so a write that
// cannot fit changes nothing.
func (t *Translator) WriteAt(id types.InodeID, p []byte, offset uint64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	end := offset + uint64(len(p))
	if end > t.geom.MaxFileSize() {
		return 0, types.ErrFileTooLarge
	}

	ino, err := t.inodes.Get(id)
	if err != nil {
		return 0, err
	}
	if end > uint64(ino.Size) {
		if err := t.grow(id, ino, end); err != nil {
			return 0, err
		}
	}

	r := t.newResolver(ino)
	var done uint64
	for done < uint64(len(p)) {
		pos := offset + done
		index := uint32(pos / types.BlockSize)
		within := pos % types.BlockSize

		addr, err := r.get(index)
		if err != nil {
			return int(done), err
		}
		data, err := t.blocks.ReadBlock(addr)
		if err != nil {
			return int(done), err
		}
		n := copy(data[within:], p[done:])
		if err := t.blocks.WriteBlock(addr, data); err != nil {
			return int(done), err
		}
		done += uint64(n)
	}
	return int(done), nil
}

// Truncate sets the size of file id, allocating zeroed blocks to grow it or
// freeing blocks to shrink it
func (t *Translator) Truncate(id types.InodeID, size uint64) error {
	if size > t.geom.MaxFileSize() {
		return types.ErrFileTooLarge
	}

	ino, err := t.inodes.Get(id)
	if err != nil {
		return err
	}

	switch {
	case size > uint64(ino.Size):
		return t.grow(id, ino, size)
	case size < uint64(ino.Size):
		return t.shrink(id, ino, size)
	}
	return nil
}

// TruncateGrow extends file id to size bytes. The new range reads as zeros.
func (t *Translator) TruncateGrow(id types.InodeID, size uint64) error {
	ino, err := t.inodes.Get(id)
	if err != nil {
		return err
	}
	if size < uint64(ino.Size) {
		return fmt.Errorf("grow inode %d from %d to %d bytes: %w", id, ino.Size, size, types.ErrInvalidArgument)
	}
	if size > t.geom.MaxFileSize() {
		return types.ErrFileTooLarge
	}
	if size == uint64(ino.Size) {
		return nil
	}
	return t.grow(id, ino, size)
}

// TruncateShrink cuts file id down to size bytes, freeing blocks that are no
// longer reachable and the indirect block once it is empty
func (t *Translator) TruncateShrink(id types.InodeID, size uint64) error {
	ino, err := t.inodes.Get(id)
	if err != nil {
		return err
	}
	if size > uint64(ino.Size) {
		return fmt.Errorf("shrink inode %d from %d to %d bytes: %w", id, ino.Size, size, types.ErrInvalidArgument)
	}
	if size == uint64(ino.Size) {
		return nil
	}
	return t.shrink(id, ino, size)
}

// Release frees every block held by file id and sets its size to zero
func (t *Translator) Release(id types.InodeID) error {
	return t.Truncate(id, 0)
}

// grow extends ino to size bytes. ino is updated in place and persisted.
func (t *Translator) grow(id types.InodeID, ino *types.InodeT, size uint64) error {
	oldBlocks := ino.DataBlocks()
	newBlocks := types.BlocksFor(size)

	need := newBlocks - oldBlocks
	if newBlocks > t.geom.DirectPointers && ino.Indirect.IsNull() {
		need++
	}
	if need > t.blocks.FreeBlocks() {
		return types.ErrNoSpace
	}

	saved := cloneInode(ino)
	var allocated []types.Paddr
	rollback := func(cause error) error {
		for _, p := range allocated {
			if err := t.blocks.FreeBlock(p); err != nil {
				t.log.Error("rollback failed to free block", slog.Uint64("block", uint64(p)), slog.Any("error", err))
			}
		}
		*ino = *saved
		return cause
	}

	r := t.newResolver(ino)
	for index := oldBlocks; index < newBlocks; index++ {
		if index >= t.geom.DirectPointers && r.ino.Indirect.IsNull() {
			addr, err := t.blocks.AllocateBlock()
			if err != nil {
				return rollback(err)
			}
			allocated = append(allocated, addr)
			r.attachIndirect(addr)
		}
		addr, err := t.blocks.AllocateBlock()
		if err != nil {
			return rollback(err)
		}
		allocated = append(allocated, addr)
		if err := r.set(index, addr); err != nil {
			return rollback(err)
		}
	}
	if err := r.flush(); err != nil {
		return rollback(err)
	}

	ino.Size = uint32(size)
	if err := t.inodes.Put(id, ino); err != nil {
		return rollback(err)
	}

	t.log.Debug("file grown", slog.Uint64("inode", uint64(id)), slog.Uint64("size", size), slog.Int("new_blocks", len(allocated)))
	return nil
}

// shrink cuts ino down to size bytes. The tail of the new last block is
// zeroed so a later grow reads zeros.
func (t *Translator) shrink(id types.InodeID, ino *types.InodeT, size uint64) error {
	oldBlocks := ino.DataBlocks()
	newBlocks := types.BlocksFor(size)

	r := t.newResolver(ino)
	for index := newBlocks; index < oldBlocks; index++ {
		addr, err := r.get(index)
		if err != nil {
			return err
		}
		if !addr.IsNull() {
			if err := t.blocks.FreeBlock(addr); err != nil {
				return err
			}
		}
		if err := r.set(index, 0); err != nil {
			return err
		}
	}

	if newBlocks <= t.geom.DirectPointers && !ino.Indirect.IsNull() {
		if err := t.blocks.FreeBlock(ino.Indirect); err != nil {
			return err
		}
		r.detachIndirect()
	} else if err := r.flush(); err != nil {
		return err
	}

	if tail := size % types.BlockSize; tail != 0 {
		addr, err := r.get(newBlocks - 1)
		if err != nil {
			return err
		}
		data, err := t.blocks.ReadBlock(addr)
		if err != nil {
			return err
		}
		clear(data[tail:])
		if err := t.blocks.WriteBlock(addr, data); err != nil {
			return err
		}
	}

	ino.Size = uint32(size)
	if err := t.inodes.Put(id, ino); err != nil {
		return err
	}

	t.log.Debug("file shrunk", slog.Uint64("inode", uint64(id)), slog.Uint64("size", size), slog.Uint64("freed_blocks", uint64(oldBlocks-newBlocks)))
	return nil
}

func cloneInode(ino *types.InodeT) *types.InodeT {
	c := *ino
	c.Direct = append([]types.Paddr(nil), ino.Direct...)
	return &c
}

// resolver walks the pointers of one inode, loading the indirect block at
// most once
type resolver struct {
	t     *Translator
	ino   *types.InodeT
	ind   *layout.PointerBlock
	dirty bool
}

func (t *Translator) newResolver(ino *types.InodeT) *resolver {
	return &resolver{t: t, ino: ino}
}

func (r *resolver) indirect() (*layout.PointerBlock, error) {
	if r.ind != nil {
		return r.ind, nil
	}
	if r.ino.Indirect.IsNull() {
		return nil, nil
	}
	data, err := r.t.blocks.ReadBlock(r.ino.Indirect)
	if err != nil {
		return nil, fmt.Errorf("failed to read indirect block %d: %w", r.ino.Indirect, err)
	}
	pb, err := layout.NewPointerBlock(data, r.t.geom.PointerWidth, binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	r.ind = pb
	return pb, nil
}

func (r *resolver) get(index uint32) (types.Paddr, error) {
	d := r.t.geom.DirectPointers
	if index < d {
		return r.ino.Direct[index], nil
	}
	if index >= r.t.geom.MaxFileBlocks() {
		return 0, types.ErrFileTooLarge
	}
	pb, err := r.indirect()
	if err != nil || pb == nil {
		return 0, err
	}
	return pb.Get(index - d), nil
}

func (r *resolver) set(index uint32, p types.Paddr) error {
	d := r.t.geom.DirectPointers
	if index < d {
		r.ino.Direct[index] = p
		return nil
	}
	pb, err := r.indirect()
	if err != nil {
		return err
	}
	if pb == nil {
		return fmt.Errorf("block index %d needs an indirect block", index)
	}
	if err := pb.Set(index-d, p); err != nil {
		return err
	}
	r.dirty = true
	return nil
}

// attachIndirect installs a freshly allocated, zeroed indirect block.
func (r *resolver) attachIndirect(addr types.Paddr) {
	r.ino.Indirect = addr
	pb, _ := layout.NewPointerBlock(make([]byte, types.BlockSize), r.t.geom.PointerWidth, binary.LittleEndian)
	r.ind = pb
	r.dirty = true
}

func (r *resolver) detachIndirect() {
	r.ino.Indirect = 0
	r.ind = nil
	r.dirty = false
}

func (r *resolver) flush() error {
	if !r.dirty || r.ind == nil {
		return nil
	}
	if err := r.t.blocks.WriteBlock(r.ino.Indirect, r.ind.Bytes()); err != nil {
		return fmt.Errorf("failed to write indirect block %d: %w", r.ino.Indirect, err)
	}
	r.dirty = false
	return nil
}
