// Package types holds the on-disk structures and constants of a ShellShock volume.
package types

// General-Purpose Types
// Basic types that are used by every layer of the volume.

// BlockSize is the size of every block on the volume, in bytes.
// It is fixed at compile time; the rest of the geometry is configurable.
const BlockSize = 512

// Paddr represents the physical address of an on-disk block.
// Address 0 holds the superblock and is never a data block, so a zero Paddr
// in an inode or indirect block means "not allocated".
type Paddr uint32

// IsNull reports whether the address is the null block pointer.
func (p Paddr) IsNull() bool {
	return p == 0
}

// InodeID identifies an inode within the inode table.
type InodeID uint32

// RootInode is the inode of the root directory. It is reserved at format time
// and never handed out by the inode allocator.
const RootInode InodeID = 0

// Magic is the signature stored at the start of the superblock.
var Magic = [4]byte{'!', 'C', 'F', 'S'}

// FormatVersion is the on-disk layout version written by mkfs.
const FormatVersion uint32 = 1

// UUID represents a universally unique identifier.
type UUID [16]byte
