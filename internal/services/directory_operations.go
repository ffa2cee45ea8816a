package services

import (
	"errors"
	"log/slog"

	"github.com/deploymenttheory/go-shellshock/internal/parsers/layout"
	"github.com/deploymenttheory/go-shellshock/internal/types"
)

// Mkdir creates an empty directory at p holding only "." and ".."
func (fs *FileSystemService) Mkdir(p string) error {
	if err := fs.ready(); err != nil {
		return types.NewOpError("mkdir", p, err)
	}
	parent, name, err := fs.resolveParent(p)
	if err != nil {
		return types.NewOpError("mkdir", p, err)
	}
	if err := layout.ValidateName(name); err != nil {
		return types.NewOpError("mkdir", p, err)
	}
	if _, err := fs.dirs.Lookup(parent, name); err == nil {
		return types.NewOpError("mkdir", p, types.ErrNameExists)
	} else if !errors.Is(err, types.ErrNotFound) {
		return types.NewOpError("mkdir", p, err)
	}

	id, ino, err := fs.inodes.Allocate(types.InodeTypeDirectory)
	if err != nil {
		return types.NewOpError("mkdir", p, err)
	}
	ino.LinkCount = 2
	if err := fs.inodes.Put(id, ino); err != nil {
		return types.NewOpError("mkdir", p, fs.rollbackInode(id, err))
	}
	if err := fs.dirs.Init(id, parent); err != nil {
		return types.NewOpError("mkdir", p, fs.rollbackInode(id, err))
	}
	if err := fs.dirs.Insert(parent, name, id); err != nil {
		return types.NewOpError("mkdir", p, fs.rollbackInode(id, err))
	}
	if _, err := fs.inodes.Link(parent); err != nil {
		return types.NewOpError("mkdir", p, err)
	}

	fs.log.Debug("directory created", slog.String("path", fs.absPath(p)), slog.Uint64("inode", uint64(id)))
	return nil
}

// Rmdir removes the empty directory at p. The root, "." and ".." cannot be
// removed, nor can the current directory.
func (fs *FileSystemService) Rmdir(p string) error {
	if err := fs.ready(); err != nil {
		return types.NewOpError("rmdir", p, err)
	}
	parent, name, err := fs.resolveParent(p)
	if err != nil {
		return types.NewOpError("rmdir", p, err)
	}
	if name == types.DotName || name == types.DotDotName {
		return types.NewOpError("rmdir", p, types.ErrInvalidArgument)
	}
	id, err := fs.dirs.Lookup(parent, name)
	if err != nil {
		return types.NewOpError("rmdir", p, err)
	}
	if id == types.RootInode {
		return types.NewOpError("rmdir", p, types.ErrInvalidArgument)
	}
	ino, err := fs.inodes.Get(id)
	if err != nil {
		return types.NewOpError("rmdir", p, err)
	}
	if !ino.IsDirectory() {
		return types.NewOpError("rmdir", p, types.ErrNotADirectory)
	}
	if id == fs.cwd {
		return types.NewOpError("rmdir", p, types.ErrFileBusy)
	}
	empty, err := fs.dirs.IsEmpty(id)
	if err != nil {
		return types.NewOpError("rmdir", p, err)
	}
	if !empty {
		return types.NewOpError("rmdir", p, types.ErrDirectoryNotEmpty)
	}

	if _, err := fs.dirs.Remove(parent, name); err != nil {
		return types.NewOpError("rmdir", p, err)
	}
	if err := fs.reclaim(id); err != nil {
		return types.NewOpError("rmdir", p, err)
	}
	if _, err := fs.inodes.Unlink(parent); err != nil {
		return types.NewOpError("rmdir", p, err)
	}

	fs.log.Debug("directory removed", slog.String("path", fs.absPath(p)), slog.Uint64("inode", uint64(id)))
	return nil
}

// Cd makes the directory at p the current directory
func (fs *FileSystemService) Cd(p string) error {
	if err := fs.ready(); err != nil {
		return types.NewOpError("cd", p, err)
	}
	id, err := fs.resolve(p)
	if err != nil {
		return types.NewOpError("cd", p, err)
	}
	ino, err := fs.inodes.Get(id)
	if err != nil {
		return types.NewOpError("cd", p, err)
	}
	if !ino.IsDirectory() {
		return types.NewOpError("cd", p, types.ErrNotADirectory)
	}

	fs.cwd = id
	fs.cwdPath = fs.absPath(p)
	return nil
}

// Ls lists the names in the current directory, or in p when it is not
// empty, in slot order starting with "." and ".."
func (fs *FileSystemService) Ls(p string) ([]string, error) {
	if err := fs.ready(); err != nil {
		return nil, types.NewOpError("ls", p, err)
	}
	dir := fs.cwd
	if p != "" {
		id, err := fs.resolve(p)
		if err != nil {
			return nil, types.NewOpError("ls", p, err)
		}
		dir = id
	}

	entries, err := fs.dirs.List(dir)
	if err != nil {
		return nil, types.NewOpError("ls", p, err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names, nil
}

// Pwd returns the absolute path of the current directory
func (fs *FileSystemService) Pwd() string {
	return fs.cwdPath
}
