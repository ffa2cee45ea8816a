package inspect

import (
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/deploymenttheory/go-shellshock/internal/device"
	"github.com/deploymenttheory/go-shellshock/internal/services"
	"github.com/deploymenttheory/go-shellshock/internal/types"
	"github.com/deploymenttheory/go-shellshock/pkg/app"
)

// Handle opens the image, mounts it and gathers the report
func Handle(ctx *app.Context, req *Request) (*Response, error) {
	startTime := time.Now()

	// 1. Validate request
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx.Log(fmt.Sprintf("Inspecting %s", req.Target.String()))

	// 2. Mount
	dev, err := device.OpenImage(req.Target.ImagePath, req.Target.ReadOnly, ctx.Logger())
	if err != nil {
		return nil, app.NewError(app.ErrCodeImageAccess, "failed to open image", err)
	}
	defer dev.Close()

	fs, err := services.NewFileSystemService(dev, services.Options{Logger: ctx.Logger()})
	if err != nil {
		return nil, app.NewError(app.ErrCodeImageAccess, "failed to create filesystem service", err)
	}
	if err := fs.Mount(); err != nil {
		if errors.Is(err, types.ErrNotFormatted) {
			return nil, app.NewError(app.ErrCodeNotFormatted, "image does not hold a ShellShock volume", err)
		}
		return nil, app.NewError(app.ErrCodeImageAccess, "failed to mount image", err)
	}

	response, err := Collect(fs, req)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(req.Target.ImagePath)
	if err == nil {
		response.Image = ImageInfo{Path: req.Target.ImagePath, SizeBytes: info.Size()}
	}
	response.InspectTime = time.Since(startTime)

	ctx.Log(fmt.Sprintf("Inspection completed in %v", response.InspectTime))
	return response, nil
}

// Collect builds a report from an already mounted volume
func Collect(fs *services.FileSystemService, req *Request) (*Response, error) {
	sb, err := fs.Superblock()
	if err != nil {
		return nil, app.NewError(app.ErrCodeNotFormatted, "volume is not mounted", err)
	}
	usage, err := fs.Usage()
	if err != nil {
		return nil, app.NewError(app.ErrCodeImageAccess, "failed to read usage", err)
	}

	response := &Response{
		Volume: volumeInfo(sb),
		Usage:  *usage,
	}

	if req.ListEntries {
		entries, err := walk(fs, "/", 1, req.MaxDepth)
		if err != nil {
			return nil, app.NewError(app.ErrCodeImageAccess, "failed to walk directory tree", err)
		}
		response.Entries = entries
	}

	if req.RunCheck {
		report, err := fs.Check()
		if err != nil {
			return nil, app.NewError(app.ErrCodeCheckFailed, "consistency check could not run", err)
		}
		response.Check = report
	}
	return response, nil
}

func volumeInfo(sb *types.SuperblockT) VolumeInfo {
	return VolumeInfo{
		UUID:           uuid.UUID(sb.SbUUID).String(),
		Version:        sb.SbVersion,
		BlockSize:      sb.SbBlockSize,
		TotalBlocks:    sb.SbTotalBlocks,
		InodeCount:     sb.SbInodeCount,
		DirectPointers: sb.SbDirectPointers,
		PointerWidth:   sb.SbPointerWidth,
		InodeSize:      sb.SbInodeSize,
		MaxFileSize:    sb.Geometry().MaxFileSize(),
		InodeBitmap:    Region{Start: uint32(sb.SbInodeBitmapStart), Blocks: sb.SbInodeBitmapBlocks},
		BlockBitmap:    Region{Start: uint32(sb.SbBlockBitmapStart), Blocks: sb.SbBlockBitmapBlocks},
		InodeTable:     Region{Start: uint32(sb.SbInodeTableStart), Blocks: sb.SbInodeTableBlocks},
		DataStart:      uint32(sb.SbDataStart),
	}
}

// walk lists dir and everything below it in slot order, depth first.
func walk(fs *services.FileSystemService, dir string, depth, maxDepth int) ([]EntryResult, error) {
	names, err := fs.Ls(dir)
	if err != nil {
		return nil, err
	}

	var out []EntryResult
	for _, name := range names {
		if name == types.DotName || name == types.DotDotName {
			continue
		}
		p := path.Join(dir, name)
		st, err := fs.Stat(p)
		if err != nil {
			return nil, err
		}
		out = append(out, EntryResult{
			Path:      p,
			Inode:     uint32(st.Inode),
			Type:      st.Type,
			LinkCount: st.LinkCount,
			Size:      st.Bytes,
			Blocks:    st.Blocks,
		})

		if st.Type == types.InodeTypeDirectory.String() && (maxDepth == 0 || depth < maxDepth) {
			sub, err := walk(fs, p, depth+1, maxDepth)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
	}
	return out, nil
}
