package services

import (
	"errors"
	"io"
	"log/slog"
	"strconv"

	"github.com/deploymenttheory/go-shellshock/internal/device"
	"github.com/deploymenttheory/go-shellshock/internal/parsers/layout"
	"github.com/deploymenttheory/go-shellshock/internal/types"
)

// Create makes a new file of size bytes whose byte i is 'A' + i%10. Nothing
// is left behind if the file cannot be created in full.
func (fs *FileSystemService) Create(p string, size uint64) error {
	if err := fs.ready(); err != nil {
		return types.NewOpError("create", p, err)
	}
	if size > fs.Geometry().MaxFileSize() {
		return types.NewOpError("create", p, types.ErrFileTooLarge)
	}
	parent, name, err := fs.resolveParent(p)
	if err != nil {
		return types.NewOpError("create", p, err)
	}
	id, err := fs.createFile(parent, name, size)
	if err != nil {
		return types.NewOpError("create", p, err)
	}

	fs.log.Debug("file created", slog.String("path", fs.absPath(p)), slog.Uint64("inode", uint64(id)), slog.Uint64("size", size))
	return nil
}

// createFile allocates, fills and links a new file into parent.
func (fs *FileSystemService) createFile(parent types.InodeID, name string, size uint64) (types.InodeID, error) {
	if err := layout.ValidateName(name); err != nil {
		return 0, err
	}
	if _, err := fs.dirs.Lookup(parent, name); err == nil {
		return 0, types.ErrNameExists
	} else if !errors.Is(err, types.ErrNotFound) {
		return 0, err
	}

	id, ino, err := fs.inodes.Allocate(types.InodeTypeFile)
	if err != nil {
		return 0, err
	}
	ino.LinkCount = 1
	if err := fs.inodes.Put(id, ino); err != nil {
		return 0, fs.rollbackInode(id, err)
	}

	if size > 0 {
		content := make([]byte, size)
		for i := range content {
			content[i] = byte('A' + i%10)
		}
		if _, err := fs.data.WriteAt(id, content, 0); err != nil {
			return 0, fs.rollbackInode(id, err)
		}
	}

	if err := fs.dirs.Insert(parent, name, id); err != nil {
		return 0, fs.rollbackInode(id, err)
	}
	return id, nil
}

// rollbackInode frees a half-built inode and returns cause.
func (fs *FileSystemService) rollbackInode(id types.InodeID, cause error) error {
	if err := fs.reclaim(id); err != nil {
		fs.log.Error("rollback failed", slog.Uint64("inode", uint64(id)), slog.Any("error", err))
	}
	return cause
}

// Open returns a descriptor for the file at p, creating an empty file when
// nothing exists there yet
func (fs *FileSystemService) Open(p string, mode types.OpenMode) (int, error) {
	if err := fs.ready(); err != nil {
		return 0, types.NewOpError("open", p, err)
	}
	if !mode.Valid() {
		return 0, types.NewOpError("open", p, types.ErrBadMode)
	}
	if fs.handles.Full() {
		return 0, types.NewOpError("open", p, types.ErrNoHandles)
	}

	id, err := fs.resolve(p)
	if errors.Is(err, types.ErrNotFound) {
		parent, name, perr := fs.resolveParent(p)
		if perr != nil {
			return 0, types.NewOpError("open", p, perr)
		}
		id, err = fs.createFile(parent, name, 0)
	}
	if err != nil {
		return 0, types.NewOpError("open", p, err)
	}

	ino, err := fs.inodes.Get(id)
	if err != nil {
		return 0, types.NewOpError("open", p, err)
	}
	if ino.IsDirectory() {
		return 0, types.NewOpError("open", p, types.ErrIsADirectory)
	}

	d, err := fs.handles.Open(id, mode)
	if err != nil {
		return 0, types.NewOpError("open", p, err)
	}
	fs.log.Debug("file opened", slog.String("path", fs.absPath(p)), slog.Int("handle", d.Handle), slog.Uint64("inode", uint64(id)))
	return d.Handle, nil
}

// Close releases handle. An unlinked file is reclaimed when its last
// descriptor closes.
func (fs *FileSystemService) Close(handle int) error {
	d, err := fs.handles.Close(handle)
	if err != nil {
		return types.NewOpError("close", strconv.Itoa(handle), err)
	}
	if _, ok := fs.pending[d.Inode]; ok && fs.handles.OpenCount(d.Inode) == 0 {
		if err := fs.reclaim(d.Inode); err != nil {
			return types.NewOpError("close", strconv.Itoa(handle), err)
		}
	}
	return nil
}

// Read returns up to n bytes from the handle's cursor and advances it. Reads
// stop at end of file.
func (fs *FileSystemService) Read(handle int, n int) ([]byte, error) {
	op := strconv.Itoa(handle)
	if n < 0 {
		return nil, types.NewOpError("read", op, types.ErrInvalidArgument)
	}
	d, err := fs.handles.Get(handle)
	if err != nil {
		return nil, types.NewOpError("read", op, err)
	}
	if !d.Mode.CanRead() {
		return nil, types.NewOpError("read", op, types.ErrBadMode)
	}

	ino, err := fs.inodes.Get(d.Inode)
	if err != nil {
		return nil, types.NewOpError("read", op, err)
	}
	if remain := uint64(ino.Size) - min(d.Cursor, uint64(ino.Size)); uint64(n) > remain {
		n = int(remain)
	}

	buf := make([]byte, n)
	got, err := fs.data.ReadAt(d.Inode, buf, d.Cursor)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, types.NewOpError("read", op, err)
	}
	d.Cursor += uint64(got)
	return buf[:got], nil
}

// Write writes data at the handle's cursor and advances it. Writing past the
// end grows the file, zero-filling any gap.
func (fs *FileSystemService) Write(handle int, data []byte) (int, error) {
	op := strconv.Itoa(handle)
	d, err := fs.handles.Get(handle)
	if err != nil {
		return 0, types.NewOpError("write", op, err)
	}
	if !d.Mode.CanWrite() {
		return 0, types.NewOpError("write", op, types.ErrBadMode)
	}

	n, err := fs.data.WriteAt(d.Inode, data, d.Cursor)
	d.Cursor += uint64(n)
	if err != nil {
		return n, types.NewOpError("write", op, err)
	}
	return n, nil
}

// Lseek sets the handle's cursor to offset. Seeking past the end is allowed.
func (fs *FileSystemService) Lseek(handle int, offset int64) error {
	op := strconv.Itoa(handle)
	if offset < 0 {
		return types.NewOpError("lseek", op, types.ErrInvalidArgument)
	}
	if err := fs.handles.Seek(handle, uint64(offset)); err != nil {
		return types.NewOpError("lseek", op, err)
	}
	return nil
}

// Link adds dst as another name for the file at src
func (fs *FileSystemService) Link(src, dst string) error {
	if err := fs.ready(); err != nil {
		return types.NewOpError("link", src, err)
	}
	id, err := fs.resolve(src)
	if err != nil {
		return types.NewOpError("link", src, err)
	}
	ino, err := fs.inodes.Get(id)
	if err != nil {
		return types.NewOpError("link", src, err)
	}
	if ino.IsDirectory() {
		return types.NewOpError("link", src, types.ErrIsADirectory)
	}

	parent, name, err := fs.resolveParent(dst)
	if err != nil {
		return types.NewOpError("link", dst, err)
	}
	if _, err := fs.inodes.Link(id); err != nil {
		return types.NewOpError("link", src, err)
	}
	if err := fs.dirs.Insert(parent, name, id); err != nil {
		if _, uerr := fs.inodes.Unlink(id); uerr != nil {
			fs.log.Error("rollback failed", slog.Uint64("inode", uint64(id)), slog.Any("error", uerr))
		}
		return types.NewOpError("link", dst, err)
	}
	return nil
}

// Unlink removes the name p. When the last name of a file goes, its storage
// is reclaimed at once, or after its last descriptor closes.
func (fs *FileSystemService) Unlink(p string) error {
	if err := fs.ready(); err != nil {
		return types.NewOpError("unlink", p, err)
	}
	parent, name, err := fs.resolveParent(p)
	if err != nil {
		return types.NewOpError("unlink", p, err)
	}
	if name == types.DotName || name == types.DotDotName {
		return types.NewOpError("unlink", p, types.ErrIsADirectory)
	}
	id, err := fs.dirs.Lookup(parent, name)
	if err != nil {
		return types.NewOpError("unlink", p, err)
	}
	ino, err := fs.inodes.Get(id)
	if err != nil {
		return types.NewOpError("unlink", p, err)
	}
	if ino.IsDirectory() {
		return types.NewOpError("unlink", p, types.ErrIsADirectory)
	}

	open := fs.handles.OpenCount(id)
	if ino.LinkCount <= 1 && open > 0 && fs.opts.UnlinkPolicy == device.UnlinkPolicyFail {
		return types.NewOpError("unlink", p, types.ErrFileBusy)
	}

	if _, err := fs.dirs.Remove(parent, name); err != nil {
		return types.NewOpError("unlink", p, err)
	}
	links, err := fs.inodes.Unlink(id)
	if err != nil {
		return types.NewOpError("unlink", p, err)
	}
	if links > 0 {
		return nil
	}

	if open > 0 {
		fs.pending[id] = struct{}{}
		fs.log.Debug("reclaim deferred until last close", slog.Uint64("inode", uint64(id)), slog.Int("open", open))
		return nil
	}
	if err := fs.reclaim(id); err != nil {
		return types.NewOpError("unlink", p, err)
	}
	return nil
}

// Stat describes the object at p
func (fs *FileSystemService) Stat(p string) (*types.StatT, error) {
	if err := fs.ready(); err != nil {
		return nil, types.NewOpError("stat", p, err)
	}
	id, err := fs.resolve(p)
	if err != nil {
		return nil, types.NewOpError("stat", p, err)
	}
	ino, err := fs.inodes.Get(id)
	if err != nil {
		return nil, types.NewOpError("stat", p, err)
	}

	return &types.StatT{
		Inode:     id,
		Type:      ino.Type.String(),
		LinkCount: ino.LinkCount,
		Size:      fs.data.ReportedSize(ino),
		Bytes:     uint64(ino.Size),
		Blocks:    fs.data.BlocksAllocated(ino),
	}, nil
}

// Cat returns the whole content of the file at p. It goes through a
// read-only descriptor, so it fails like open does when none is free.
func (fs *FileSystemService) Cat(p string) ([]byte, error) {
	if err := fs.ready(); err != nil {
		return nil, types.NewOpError("cat", p, err)
	}
	id, err := fs.resolve(p)
	if err != nil {
		return nil, types.NewOpError("cat", p, err)
	}
	ino, err := fs.inodes.Get(id)
	if err != nil {
		return nil, types.NewOpError("cat", p, err)
	}
	if ino.IsDirectory() {
		return nil, types.NewOpError("cat", p, types.ErrIsADirectory)
	}

	d, err := fs.handles.Open(id, types.ModeRead)
	if err != nil {
		return nil, types.NewOpError("cat", p, err)
	}
	content, rerr := fs.Read(d.Handle, int(ino.Size))
	if err := fs.Close(d.Handle); err != nil && rerr == nil {
		rerr = err
	}
	if rerr != nil {
		return nil, rerr
	}
	return content, nil
}
