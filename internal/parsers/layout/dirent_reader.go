package layout

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-shellshock/internal/types"
)

// ParseDirEntry decodes one directory entry: a NUL-padded name followed by
// a 16-bit inode id.
func ParseDirEntry(data []byte, endian binary.ByteOrder) (types.DirEntryT, error) {
	if len(data) < types.DirEntrySize {
		return types.DirEntryT{}, fmt.Errorf("data too small for directory entry: %d bytes, need %d", len(data), types.DirEntrySize)
	}

	name := data[:types.NameMax]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}

	return types.DirEntryT{
		Name:  string(name),
		Inode: types.InodeID(endian.Uint16(data[types.NameMax:types.DirEntrySize])),
	}, nil
}

// ParseDirEntries decodes a directory's whole content, holes included.
func ParseDirEntries(data []byte, endian binary.ByteOrder) ([]types.DirEntryT, error) {
	if len(data)%types.DirEntrySize != 0 {
		return nil, fmt.Errorf("directory size %d is not a multiple of %d", len(data), types.DirEntrySize)
	}

	entries := make([]types.DirEntryT, 0, len(data)/types.DirEntrySize)
	for off := 0; off < len(data); off += types.DirEntrySize {
		e, err := ParseDirEntry(data[off:off+types.DirEntrySize], endian)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// EncodeDirEntry writes e into dst. A hole is written as all zeroes.
func EncodeDirEntry(dst []byte, e types.DirEntryT, endian binary.ByteOrder) error {
	if len(dst) < types.DirEntrySize {
		return fmt.Errorf("buffer too small for directory entry: %d bytes, need %d", len(dst), types.DirEntrySize)
	}
	if len(e.Name) > types.NameMax {
		return fmt.Errorf("name %q longer than %d bytes: %w", e.Name, types.NameMax, types.ErrInvalidName)
	}
	if e.Inode > 0xFFFF {
		return fmt.Errorf("inode %d does not fit a directory entry", e.Inode)
	}

	clear(dst[:types.DirEntrySize])
	copy(dst[:types.NameMax], e.Name)
	endian.PutUint16(dst[types.NameMax:types.DirEntrySize], uint16(e.Inode))
	return nil
}

// ValidateName checks that name can be stored as a user-created entry.
func ValidateName(name string) error {
	switch {
	case name == "", name == types.DotName, name == types.DotDotName:
		return fmt.Errorf("%q: %w", name, types.ErrInvalidName)
	case len(name) > types.NameMax:
		return fmt.Errorf("%q is longer than %d bytes: %w", name, types.NameMax, types.ErrInvalidName)
	case bytes.ContainsAny([]byte(name), "/\x00"):
		return fmt.Errorf("%q contains '/' or NUL: %w", name, types.ErrInvalidName)
	}
	return nil
}
