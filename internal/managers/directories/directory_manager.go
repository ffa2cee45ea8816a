package directories

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"

	"github.com/deploymenttheory/go-shellshock/internal/interfaces"
	"github.com/deploymenttheory/go-shellshock/internal/parsers/layout"
	"github.com/deploymenttheory/go-shellshock/internal/types"
)

// Manager reads and edits directory contents. A directory is stored as a
// regular byte stream of fixed-size entries; all access goes through the
// file data layer.
type Manager struct {
	inodes interfaces.InodeStore
	data   interfaces.FileData
	log    *slog.Logger
}

// NewManager creates a directory manager
func NewManager(inodes interfaces.InodeStore, data interfaces.FileData, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{inodes: inodes, data: data, log: log}
}

// Init writes the "." and ".." entries of an empty directory
func (m *Manager) Init(dir, parent types.InodeID) error {
	ino, err := m.directory(dir)
	if err != nil {
		return err
	}
	if ino.Size != 0 {
		return fmt.Errorf("directory %d is not empty", dir)
	}

	buf := make([]byte, 2*types.DirEntrySize)
	if err := layout.EncodeDirEntry(buf, types.DirEntryT{Name: types.DotName, Inode: dir}, binary.LittleEndian); err != nil {
		return err
	}
	if err := layout.EncodeDirEntry(buf[types.DirEntrySize:], types.DirEntryT{Name: types.DotDotName, Inode: parent}, binary.LittleEndian); err != nil {
		return err
	}
	_, err = m.data.WriteAt(dir, buf, 0)
	return err
}

// Lookup returns the inode that name refers to in dir
func (m *Manager) Lookup(dir types.InodeID, name string) (types.InodeID, error) {
	entries, err := m.entries(dir)
	if err != nil {
		return 0, err
	}
	if slot := find(entries, name); slot >= 0 {
		return entries[slot].Inode, nil
	}
	return 0, types.ErrNotFound
}

// Insert adds an entry for id under name. The first hole is reused;
// otherwise the entry is appended.
func (m *Manager) Insert(dir types.InodeID, name string, id types.InodeID) error {
	if err := layout.ValidateName(name); err != nil {
		return err
	}
	entries, err := m.entries(dir)
	if err != nil {
		return err
	}
	if find(entries, name) >= 0 {
		return types.ErrNameExists
	}

	slot := len(entries)
	for i, e := range entries {
		if e.IsHole() {
			slot = i
			break
		}
	}

	buf := make([]byte, types.DirEntrySize)
	if err := layout.EncodeDirEntry(buf, types.DirEntryT{Name: name, Inode: id}, binary.LittleEndian); err != nil {
		return err
	}
	if _, err := m.data.WriteAt(dir, buf, uint64(slot)*types.DirEntrySize); err != nil {
		return err
	}

	m.log.Debug("directory entry added", slog.Uint64("dir", uint64(dir)), slog.String("name", name), slog.Int("slot", slot))
	return nil
}

// Remove deletes the entry for name and returns the inode it pointed to.
// Trailing holes are cut off so the last slot is never a hole.
func (m *Manager) Remove(dir types.InodeID, name string) (types.InodeID, error) {
	if name == types.DotName || name == types.DotDotName {
		return 0, types.ErrInvalidArgument
	}
	entries, err := m.entries(dir)
	if err != nil {
		return 0, err
	}
	slot := find(entries, name)
	if slot < 0 {
		return 0, types.ErrNotFound
	}
	id := entries[slot].Inode

	if slot == len(entries)-1 {
		last := slot - 1
		for last >= 0 && entries[last].IsHole() {
			last--
		}
		if err := m.data.Truncate(dir, uint64(last+1)*types.DirEntrySize); err != nil {
			return 0, err
		}
	} else {
		hole := make([]byte, types.DirEntrySize)
		if _, err := m.data.WriteAt(dir, hole, uint64(slot)*types.DirEntrySize); err != nil {
			return 0, err
		}
	}

	m.log.Debug("directory entry removed", slog.Uint64("dir", uint64(dir)), slog.String("name", name), slog.Int("slot", slot))
	return id, nil
}

// List returns the entries of dir in slot order, skipping holes
func (m *Manager) List(dir types.InodeID) ([]types.DirEntryT, error) {
	entries, err := m.entries(dir)
	if err != nil {
		return nil, err
	}
	out := entries[:0]
	for _, e := range entries {
		if !e.IsHole() {
			out = append(out, e)
		}
	}
	return out, nil
}

// IsEmpty reports whether dir holds nothing but "." and ".."
func (m *Manager) IsEmpty(dir types.InodeID) (bool, error) {
	entries, err := m.List(dir)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Name != types.DotName && e.Name != types.DotDotName {
			return false, nil
		}
	}
	return true, nil
}

func (m *Manager) directory(dir types.InodeID) (*types.InodeT, error) {
	ino, err := m.inodes.Get(dir)
	if err != nil {
		return nil, err
	}
	if !ino.IsDirectory() {
		return nil, types.ErrNotADirectory
	}
	return ino, nil
}

// entries reads every slot of dir, holes included
func (m *Manager) entries(dir types.InodeID) ([]types.DirEntryT, error) {
	ino, err := m.directory(dir)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, ino.Size)
	if n, err := m.data.ReadAt(dir, buf, 0); err != nil && !(err == io.EOF && n == len(buf)) {
		return nil, fmt.Errorf("failed to read directory %d: %w", dir, err)
	}
	return layout.ParseDirEntries(buf, binary.LittleEndian)
}

func find(entries []types.DirEntryT, name string) int {
	if name == "" {
		return -1
	}
	for i, e := range entries {
		if e.Name == name {
			return i
		}
	}
	return -1
}
