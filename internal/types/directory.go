package types

// Directory entries
// A directory is a regular file whose content is an array of fixed-size entries.

const (
	// NameMax is the size of the name field of a directory entry.
	NameMax = 32

	// DirEntrySize is the on-disk size of one directory entry: the name
	// field followed by a 16-bit inode id.
	DirEntrySize = NameMax + 2

	// DotName and DotDotName are the self and parent entries present in
	// every directory from creation.
	DotName    = "."
	DotDotName = ".."
)

// DirEntryT is one directory entry. An entry with an empty name is a hole
// left behind by a removal.
type DirEntryT struct {
	// Entry name, at most NameMax bytes.
	Name string `json:"name" yaml:"name"`

	// Inode the entry points to.
	Inode InodeID `json:"inode" yaml:"inode"`
}

// IsHole reports whether the slot is unused.
func (d DirEntryT) IsHole() bool {
	return d.Name == ""
}
