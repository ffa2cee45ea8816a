package services

import (
	"fmt"
	"log/slog"

	"github.com/deploymenttheory/go-shellshock/internal/types"
)

// Usage reports block, inode and descriptor usage of the mounted volume
func (fs *FileSystemService) Usage() (*types.UsageT, error) {
	if err := fs.ready(); err != nil {
		return nil, types.NewOpError("df", "", err)
	}
	g := fs.sb.Geometry()
	data := fs.blocks.DataBlocks()
	free := fs.blocks.FreeBlocks()
	freeInodes := fs.inodes.FreeInodes()

	return &types.UsageT{
		TotalBlocks:   g.TotalBlocks,
		DataBlocks:    data,
		FreeBlocks:    free,
		UsedBlocks:    data - free,
		TotalInodes:   g.InodeCount,
		FreeInodes:    freeInodes,
		UsedInodes:    g.InodeCount - freeInodes,
		OpenHandles:   fs.handles.Len(),
		MaxHandles:    fs.handles.Cap(),
		PendingInodes: len(fs.pending),
	}, nil
}

// Check walks the directory tree from the root and cross-checks it against
// the inode and block bitmaps and the superblock counters
func (fs *FileSystemService) Check() (*types.CheckReportT, error) {
	if err := fs.ready(); err != nil {
		return nil, types.NewOpError("check", "", err)
	}

	c := &checker{
		fs:      fs,
		report:  &types.CheckReportT{},
		refs:    make(map[types.InodeID]int),
		links:   make(map[types.InodeID]uint16),
		claimed: make(map[types.Paddr]types.InodeID),
	}
	if err := c.walk(); err != nil {
		return nil, types.NewOpError("check", "", err)
	}
	for id := range fs.pending {
		if err := c.inspect(id); err != nil {
			return nil, types.NewOpError("check", "", err)
		}
	}
	c.compareLinks()
	c.compareBitmaps()

	for _, p := range c.report.Problems {
		fs.log.Warn("check", slog.String("problem", p))
	}
	return c.report, nil
}

type checker struct {
	fs      *FileSystemService
	report  *types.CheckReportT
	refs    map[types.InodeID]int
	links   map[types.InodeID]uint16
	claimed map[types.Paddr]types.InodeID
}

func (c *checker) problem(format string, args ...any) {
	c.report.Problems = append(c.report.Problems, fmt.Sprintf(format, args...))
}

// walk visits every directory reachable from the root, counting the
// entries that reference each inode.
func (c *checker) walk() error {
	if err := c.inspect(types.RootInode); err != nil {
		return err
	}
	queue := []types.InodeID{types.RootInode}
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		entries, err := c.fs.dirs.List(dir)
		if err != nil {
			return fmt.Errorf("directory %d: %w", dir, err)
		}
		for _, e := range entries {
			c.refs[e.Inode]++
			if e.Name == types.DotName || e.Name == types.DotDotName {
				continue
			}
			if _, seen := c.links[e.Inode]; seen {
				continue
			}
			if !c.fs.inodes.IsAllocated(e.Inode) {
				c.problem("entry %q in directory %d points to free inode %d", e.Name, dir, e.Inode)
				continue
			}
			if err := c.inspect(e.Inode); err != nil {
				return err
			}
			ino, err := c.fs.inodes.Get(e.Inode)
			if err != nil {
				return err
			}
			if ino.IsDirectory() {
				queue = append(queue, e.Inode)
			}
		}
	}
	return nil
}

// inspect records an inode's link count and claims its blocks.
func (c *checker) inspect(id types.InodeID) error {
	ino, err := c.fs.inodes.Get(id)
	if err != nil {
		return err
	}
	c.links[id] = ino.LinkCount
	c.report.InodesChecked++

	if ino.Type != types.InodeTypeFile && ino.Type != types.InodeTypeDirectory {
		c.problem("inode %d has type %s", id, ino.Type)
	}
	g := c.fs.sb.Geometry()
	if needs := ino.DataBlocks() > g.DirectPointers; needs != !ino.Indirect.IsNull() {
		c.problem("inode %d: indirect block present=%t but %d data blocks", id, !ino.Indirect.IsNull(), ino.DataBlocks())
	}

	blocks, err := c.fs.data.Blocks(ino)
	if err != nil {
		return fmt.Errorf("inode %d: %w", id, err)
	}
	for _, b := range blocks {
		switch {
		case b.IsNull():
			c.problem("inode %d: hole below its size", id)
			continue
		case !c.fs.blocks.IsAllocated(b):
			c.problem("inode %d uses block %d which is marked free", id, b)
		}
		if owner, dup := c.claimed[b]; dup {
			c.problem("block %d is used by inode %d and inode %d", b, owner, id)
			continue
		}
		c.claimed[b] = id
		c.report.BlocksChecked++
	}
	return nil
}

func (c *checker) compareLinks() {
	for id, links := range c.links {
		if _, pending := c.fs.pending[id]; pending {
			continue
		}
		if refs := c.refs[id]; int(links) != refs {
			c.problem("inode %d has link count %d but %d directory references", id, links, refs)
		}
	}
	for _, id := range c.fs.inodes.AllocatedIDs() {
		if _, seen := c.links[id]; !seen {
			c.problem("inode %d is allocated but unreachable", id)
		}
	}
}

func (c *checker) compareBitmaps() {
	sb := c.fs.sb.Superblock()
	if sb.SbFreeBlocks != c.fs.blocks.FreeBlocks() {
		c.problem("superblock free blocks %d, bitmap has %d", sb.SbFreeBlocks, c.fs.blocks.FreeBlocks())
	}
	if sb.SbFreeInodes != c.fs.inodes.FreeInodes() {
		c.problem("superblock free inodes %d, bitmap has %d", sb.SbFreeInodes, c.fs.inodes.FreeInodes())
	}

	used := c.fs.blocks.DataBlocks() - c.fs.blocks.FreeBlocks()
	if int(used) != len(c.claimed) {
		c.problem("%d data blocks marked used but %d are referenced", used, len(c.claimed))
	}
}
