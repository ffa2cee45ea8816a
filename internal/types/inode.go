package types

import "fmt"

// InodeType is the kind of object an inode describes.
type InodeType uint8

const (
	// InodeTypeFree marks an unallocated inode slot.
	InodeTypeFree InodeType = 0

	// InodeTypeFile marks a regular file.
	InodeTypeFile InodeType = 1

	// InodeTypeDirectory marks a directory. Its content is an array of
	// directory entries.
	InodeTypeDirectory InodeType = 2
)

// String returns the name printed by stat.
func (t InodeType) String() string {
	switch t {
	case InodeTypeFree:
		return "FREE"
	case InodeTypeFile:
		return "FILE"
	case InodeTypeDirectory:
		return "DIRECTORY"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// InodeT is the in-memory form of an inode record.
type InodeT struct {
	// Kind of object.
	Type InodeType

	// Number of directory entries that reference this inode.
	LinkCount uint16

	// Logical size in bytes.
	Size uint32

	// Direct block pointers. Length is Geometry.DirectPointers.
	Direct []Paddr

	// Single indirect block pointer, null until the file needs more than
	// len(Direct) blocks.
	Indirect Paddr
}

// NewInode returns an empty inode of the given type for geometry g.
func NewInode(t InodeType, g Geometry) *InodeT {
	return &InodeT{
		Type:   t,
		Direct: make([]Paddr, g.DirectPointers),
	}
}

// IsDirectory reports whether the inode is a directory.
func (i *InodeT) IsDirectory() bool {
	return i.Type == InodeTypeDirectory
}

// IsFile reports whether the inode is a regular file.
func (i *InodeT) IsFile() bool {
	return i.Type == InodeTypeFile
}

// DataBlocks returns the number of data blocks the current size needs.
func (i *InodeT) DataBlocks() uint32 {
	return BlocksFor(uint64(i.Size))
}

// StatT is the information reported by stat.
type StatT struct {
	// Inode number.
	Inode InodeID `json:"inode" yaml:"inode"`

	// Kind of object.
	Type string `json:"type" yaml:"type"`

	// Number of directory entries referencing the inode.
	LinkCount uint16 `json:"link_count" yaml:"link_count"`

	// Size on disk as reported by stat: the content plus the indirect
	// pointer block when one is materialized.
	Size uint64 `json:"size" yaml:"size"`

	// Logical content length in bytes.
	Bytes uint64 `json:"bytes" yaml:"bytes"`

	// Data and indirect blocks held by the inode.
	Blocks uint32 `json:"blocks" yaml:"blocks"`
}
