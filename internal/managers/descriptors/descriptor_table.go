package descriptors

import (
	"github.com/deploymenttheory/go-shellshock/internal/types"
)

// Descriptor is one open file: the inode it refers to, the access mode and
// the cursor used by read and write
type Descriptor struct {
	Handle int
	Inode  types.InodeID
	Mode   types.OpenMode
	Cursor uint64
}

// Table is a bounded pool of open descriptors. Handles are small integers
// and the lowest free one is always handed out first.
type Table struct {
	slots []*Descriptor
	open  int
}

// NewTable creates a table with room for size descriptors
func NewTable(size int) *Table {
	return &Table{slots: make([]*Descriptor, size)}
}

// Open allocates the lowest free handle for inode in the given mode
func (t *Table) Open(inode types.InodeID, mode types.OpenMode) (*Descriptor, error) {
	if !mode.Valid() {
		return nil, types.ErrBadMode
	}
	for h, d := range t.slots {
		if d == nil {
			d = &Descriptor{Handle: h, Inode: inode, Mode: mode}
			t.slots[h] = d
			t.open++
			return d, nil
		}
	}
	return nil, types.ErrNoHandles
}

// Get returns the open descriptor for handle
func (t *Table) Get(handle int) (*Descriptor, error) {
	if handle < 0 || handle >= len(t.slots) || t.slots[handle] == nil {
		return nil, types.ErrInvalidHandle
	}
	return t.slots[handle], nil
}

// Close releases handle and returns the descriptor it held
func (t *Table) Close(handle int) (*Descriptor, error) {
	d, err := t.Get(handle)
	if err != nil {
		return nil, err
	}
	t.slots[handle] = nil
	t.open--
	return d, nil
}

// Seek sets the cursor of handle to an absolute offset
func (t *Table) Seek(handle int, offset uint64) error {
	d, err := t.Get(handle)
	if err != nil {
		return err
	}
	d.Cursor = offset
	return nil
}

// Advance moves the cursor of handle forward by n bytes
func (t *Table) Advance(handle int, n uint64) error {
	d, err := t.Get(handle)
	if err != nil {
		return err
	}
	d.Cursor += n
	return nil
}

// OpenCount returns the number of descriptors referring to inode
func (t *Table) OpenCount(inode types.InodeID) int {
	n := 0
	for _, d := range t.slots {
		if d != nil && d.Inode == inode {
			n++
		}
	}
	return n
}

// Len returns the number of open descriptors
func (t *Table) Len() int {
	return t.open
}

// Cap returns the size of the handle pool
func (t *Table) Cap() int {
	return len(t.slots)
}

// Full reports whether every handle is in use
func (t *Table) Full() bool {
	return t.open == len(t.slots)
}

// Reset closes every descriptor
func (t *Table) Reset() {
	clear(t.slots)
	t.open = 0
}
