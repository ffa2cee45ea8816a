package types

// OpenMode is the access mode of a file descriptor.
type OpenMode uint8

const (
	ModeRead      OpenMode = 1
	ModeWrite     OpenMode = 2
	ModeReadWrite OpenMode = 3
)

// CanRead reports whether the mode allows reads.
func (m OpenMode) CanRead() bool {
	return m&ModeRead != 0
}

// CanWrite reports whether the mode allows writes.
func (m OpenMode) CanWrite() bool {
	return m&ModeWrite != 0
}

// Valid reports whether m is one of the three open modes.
func (m OpenMode) Valid() bool {
	return m >= ModeRead && m <= ModeReadWrite
}
