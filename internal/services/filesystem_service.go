package services

import (
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/deploymenttheory/go-shellshock/internal/device"
	"github.com/deploymenttheory/go-shellshock/internal/interfaces"
	"github.com/deploymenttheory/go-shellshock/internal/managers/descriptors"
	"github.com/deploymenttheory/go-shellshock/internal/managers/directories"
	"github.com/deploymenttheory/go-shellshock/internal/managers/inodes"
	"github.com/deploymenttheory/go-shellshock/internal/managers/mapping"
	"github.com/deploymenttheory/go-shellshock/internal/managers/space"
	"github.com/deploymenttheory/go-shellshock/internal/types"
)

// Options configures a FileSystemService
type Options struct {
	// Geometry used by Format. MaxHandles also sizes the descriptor pool
	// of a mounted volume.
	Geometry types.Geometry

	// UnlinkPolicy decides what unlink does to a file that is still open:
	// device.UnlinkPolicyDefer keeps its storage until the last close,
	// device.UnlinkPolicyFail refuses with types.ErrFileBusy.
	UnlinkPolicy string

	// Logger receives debug and warning records. Defaults to slog.Default().
	Logger *slog.Logger
}

// FileSystemService is one mounted ShellShock volume: the storage managers
// wired over a block device, plus the per-session state (open descriptors,
// current directory, files waiting for their last close).
type FileSystemService struct {
	dev  interfaces.FormattableDevice
	opts Options
	log  *slog.Logger

	sb      *space.SuperblockManager
	blocks  *space.BlockStore
	inodes  *inodes.InodeTable
	data    *mapping.Translator
	dirs    *directories.Manager
	handles *descriptors.Table

	cwd     types.InodeID
	cwdPath string

	// unlinked files that still have open descriptors
	pending map[types.InodeID]struct{}
}

// NewFileSystemService creates a service over dev. The volume must be
// mounted or formatted before use.
func NewFileSystemService(dev interfaces.FormattableDevice, opts Options) (*FileSystemService, error) {
	if dev == nil {
		return nil, fmt.Errorf("device cannot be nil")
	}
	if opts.Geometry == (types.Geometry{}) {
		opts.Geometry = types.DefaultGeometry()
	}
	if err := opts.Geometry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid geometry: %w", err)
	}
	switch opts.UnlinkPolicy {
	case "":
		opts.UnlinkPolicy = device.UnlinkPolicyDefer
	case device.UnlinkPolicyDefer, device.UnlinkPolicyFail:
	default:
		return nil, fmt.Errorf("unknown unlink policy %q", opts.UnlinkPolicy)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &FileSystemService{
		dev:     dev,
		opts:    opts,
		log:     log,
		handles: descriptors.NewTable(opts.Geometry.MaxHandles),
		pending: make(map[types.InodeID]struct{}),
	}, nil
}

// Format wipes the device and writes an empty volume with a root directory.
// All descriptors are dropped and the current directory returns to the root.
func (fs *FileSystemService) Format() error {
	g := fs.opts.Geometry
	if fs.dev.IsReadOnly() {
		return types.NewOpError("mkfs", "", fmt.Errorf("device is read-only"))
	}
	if err := fs.dev.Reset(uint64(g.TotalBlocks)); err != nil {
		return types.NewOpError("mkfs", "", err)
	}

	sb, err := space.FormatSuperblock(fs.dev, g, types.UUID(uuid.New()))
	if err != nil {
		return types.NewOpError("mkfs", "", err)
	}
	blocks, err := space.FormatBlockStore(fs.dev, sb, fs.log)
	if err != nil {
		return types.NewOpError("mkfs", "", err)
	}
	table, err := inodes.Format(fs.dev, sb, fs.log)
	if err != nil {
		return types.NewOpError("mkfs", "", err)
	}
	fs.attach(sb, blocks, table)

	root := types.NewInode(types.InodeTypeDirectory, g)
	root.LinkCount = 2
	if err := fs.inodes.Put(types.RootInode, root); err != nil {
		return types.NewOpError("mkfs", "", err)
	}
	if err := fs.dirs.Init(types.RootInode, types.RootInode); err != nil {
		return types.NewOpError("mkfs", "", err)
	}

	fs.log.Debug("volume formatted",
		slog.Uint64("blocks", uint64(g.TotalBlocks)),
		slog.Uint64("inodes", uint64(g.InodeCount)),
		slog.String("uuid", uuid.UUID(sb.Superblock().SbUUID).String()))
	return nil
}

// Mount loads an existing volume from the device and reclaims orphaned
// inodes left by a session that exited with unlinked files still open.
// An unformatted device yields types.ErrNotFormatted.
func (fs *FileSystemService) Mount() error {
	sb, err := space.LoadSuperblock(fs.dev)
	if err != nil {
		return types.NewOpError("mount", "", err)
	}
	blocks, err := space.LoadBlockStore(fs.dev, sb, fs.log)
	if err != nil {
		return types.NewOpError("mount", "", err)
	}
	table, err := inodes.Load(fs.dev, sb, fs.log)
	if err != nil {
		return types.NewOpError("mount", "", err)
	}
	fs.attach(sb, blocks, table)

	if fs.dev.IsReadOnly() {
		fs.log.Debug("read-only mount, orphaned inodes are left in place")
	} else if err := fs.sweepOrphans(); err != nil {
		return types.NewOpError("mount", "", err)
	}

	fs.log.Debug("volume mounted",
		slog.Uint64("free_blocks", uint64(blocks.FreeBlocks())),
		slog.Uint64("free_inodes", uint64(table.FreeInodes())))
	return nil
}

// MountOrFormat mounts the volume, formatting the device first when it does
// not hold one
func (fs *FileSystemService) MountOrFormat() error {
	err := fs.Mount()
	if errors.Is(err, types.ErrNotFormatted) {
		fs.log.Info("no volume found, formatting")
		return fs.Format()
	}
	return err
}

// Geometry returns the geometry of the mounted volume
func (fs *FileSystemService) Geometry() types.Geometry {
	if fs.sb == nil {
		return fs.opts.Geometry
	}
	g := fs.sb.Geometry()
	g.MaxHandles = fs.opts.Geometry.MaxHandles
	return g
}

// Superblock returns a copy of the in-memory superblock
func (fs *FileSystemService) Superblock() (*types.SuperblockT, error) {
	if err := fs.ready(); err != nil {
		return nil, err
	}
	sb := *fs.sb.Superblock()
	return &sb, nil
}

func (fs *FileSystemService) attach(sb *space.SuperblockManager, blocks *space.BlockStore, table *inodes.InodeTable) {
	g := sb.Geometry()
	fs.sb = sb
	fs.blocks = blocks
	fs.inodes = table
	fs.data = mapping.NewTranslator(table, blocks, g, fs.log)
	fs.dirs = directories.NewManager(table, fs.data, fs.log)
	fs.handles.Reset()
	fs.cwd = types.RootInode
	fs.cwdPath = "/"
	clear(fs.pending)
}

func (fs *FileSystemService) ready() error {
	if fs.sb == nil {
		return types.ErrNotFormatted
	}
	return nil
}

// sweepOrphans reclaims allocated inodes that no directory references.
func (fs *FileSystemService) sweepOrphans() error {
	for _, id := range fs.inodes.AllocatedIDs() {
		if id == types.RootInode {
			continue
		}
		ino, err := fs.inodes.Get(id)
		if err != nil {
			return err
		}
		if ino.LinkCount != 0 {
			continue
		}
		fs.log.Warn("reclaiming orphaned inode", slog.Uint64("inode", uint64(id)), slog.Uint64("size", uint64(ino.Size)))
		if err := fs.reclaim(id); err != nil {
			return err
		}
	}
	return nil
}

// reclaim frees the blocks and the inode of a file with no links left.
func (fs *FileSystemService) reclaim(id types.InodeID) error {
	if err := fs.data.Release(id); err != nil {
		return err
	}
	if err := fs.inodes.Release(id); err != nil {
		return err
	}
	delete(fs.pending, id)
	fs.log.Debug("inode reclaimed", slog.Uint64("inode", uint64(id)))
	return nil
}

// resolve walks p from the root or the current directory.
func (fs *FileSystemService) resolve(p string) (types.InodeID, error) {
	if p == "" {
		return 0, types.ErrNotFound
	}
	cur := fs.cwd
	if strings.HasPrefix(p, "/") {
		cur = types.RootInode
	}
	for _, name := range strings.Split(p, "/") {
		if name == "" {
			continue
		}
		next, err := fs.dirs.Lookup(cur, name)
		if err != nil {
			return 0, err
		}
		cur = next
	}
	return cur, nil
}

// resolveParent splits p into the directory holding its last component and
// that component's name.
func (fs *FileSystemService) resolveParent(p string) (types.InodeID, string, error) {
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" {
		return 0, "", types.ErrInvalidArgument
	}

	dir, name := ".", trimmed
	if i := strings.LastIndexByte(trimmed, '/'); i >= 0 {
		dir, name = trimmed[:i], trimmed[i+1:]
		if dir == "" {
			dir = "/"
		}
	}

	parent, err := fs.resolve(dir)
	if err != nil {
		return 0, "", err
	}
	ino, err := fs.inodes.Get(parent)
	if err != nil {
		return 0, "", err
	}
	if !ino.IsDirectory() {
		return 0, "", types.ErrNotADirectory
	}
	return parent, name, nil
}

// absPath returns the absolute form of p relative to the current directory.
func (fs *FileSystemService) absPath(p string) string {
	if strings.HasPrefix(p, "/") {
		return path.Clean(p)
	}
	return path.Join(fs.cwdPath, p)
}
