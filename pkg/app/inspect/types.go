package inspect

import (
	"fmt"
	"time"

	"github.com/deploymenttheory/go-shellshock/internal/types"
	"github.com/deploymenttheory/go-shellshock/pkg/app"
)

// Request represents an image inspection request
type Request struct {
	Target app.ImageTarget

	// Walk the directory tree and list every entry
	ListEntries bool

	// Run the consistency checker
	RunCheck bool

	// Stop the tree walk below this depth; 0 means unlimited
	MaxDepth int
}

// Response represents inspection results
type Response struct {
	Image       ImageInfo           `json:"image" yaml:"image"`
	Volume      VolumeInfo          `json:"volume" yaml:"volume"`
	Usage       types.UsageT        `json:"usage" yaml:"usage"`
	Entries     []EntryResult       `json:"entries,omitempty" yaml:"entries,omitempty"`
	Check       *types.CheckReportT `json:"check,omitempty" yaml:"check,omitempty"`
	InspectTime time.Duration       `json:"inspect_time" yaml:"inspect_time"`
}

// ImageInfo describes the backing file
type ImageInfo struct {
	Path      string `json:"path" yaml:"path"`
	SizeBytes int64  `json:"size_bytes" yaml:"size_bytes"`
}

// VolumeInfo is the superblock in report form
type VolumeInfo struct {
	UUID           string `json:"uuid" yaml:"uuid"`
	Version        uint32 `json:"version" yaml:"version"`
	BlockSize      uint32 `json:"block_size" yaml:"block_size"`
	TotalBlocks    uint32 `json:"total_blocks" yaml:"total_blocks"`
	InodeCount     uint32 `json:"inode_count" yaml:"inode_count"`
	DirectPointers uint32 `json:"direct_pointers" yaml:"direct_pointers"`
	PointerWidth   uint32 `json:"pointer_width" yaml:"pointer_width"`
	InodeSize      uint32 `json:"inode_size" yaml:"inode_size"`
	MaxFileSize    uint64 `json:"max_file_size" yaml:"max_file_size"`
	InodeBitmap    Region `json:"inode_bitmap" yaml:"inode_bitmap"`
	BlockBitmap    Region `json:"block_bitmap" yaml:"block_bitmap"`
	InodeTable     Region `json:"inode_table" yaml:"inode_table"`
	DataStart      uint32 `json:"data_start" yaml:"data_start"`
}

// Region is a run of blocks
type Region struct {
	Start  uint32 `json:"start" yaml:"start"`
	Blocks uint32 `json:"blocks" yaml:"blocks"`
}

// String formats the region as an inclusive block range
func (r Region) String() string {
	if r.Blocks == 0 {
		return "-"
	}
	if r.Blocks == 1 {
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.Start+r.Blocks-1)
}

// EntryResult is one object found while walking the tree
type EntryResult struct {
	Path      string `json:"path" yaml:"path"`
	Inode     uint32 `json:"inode" yaml:"inode"`
	Type      string `json:"type" yaml:"type"`
	LinkCount uint16 `json:"link_count" yaml:"link_count"`
	Size      uint64 `json:"size" yaml:"size"`
	Blocks    uint32 `json:"blocks" yaml:"blocks"`
}

// FormatSize returns a human-readable size string
func (e *EntryResult) FormatSize() string {
	return formatBytes(int64(e.Size))
}
