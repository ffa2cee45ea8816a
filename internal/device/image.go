package device

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/diskfs/go-diskfs/backend"
	"github.com/diskfs/go-diskfs/backend/file"

	"github.com/deploymenttheory/go-shellshock/internal/interfaces"
	"github.com/deploymenttheory/go-shellshock/internal/types"
)

// ImageDevice provides block access to a volume stored in a flat image file
type ImageDevice struct {
	storage     backend.Storage
	writable    backend.WritableFile
	path        string
	totalBlocks uint64
	readOnly    bool
	stats       *ImageStatistics
	log         *slog.Logger
}

// ImageStatistics tracks image access statistics
type ImageStatistics struct {
	blocksRead    int64
	blocksWritten int64
	resets        int64
	mu            sync.RWMutex
}

// StatsSnapshot is a point-in-time copy of the access counters
type StatsSnapshot struct {
	BlocksRead    int64 `json:"blocks_read" yaml:"blocks_read"`
	BlocksWritten int64 `json:"blocks_written" yaml:"blocks_written"`
	Resets        int64 `json:"resets" yaml:"resets"`
}

// OpenImage opens an existing image file. Its size must be a whole number of blocks.
func OpenImage(path string, readOnly bool, log *slog.Logger) (*ImageDevice, error) {
	storage, err := file.OpenFromPath(path, readOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	info, err := storage.Stat()
	if err != nil {
		storage.Close()
		return nil, fmt.Errorf("failed to stat image: %w", err)
	}
	if info.Size()%types.BlockSize != 0 {
		storage.Close()
		return nil, fmt.Errorf("image size %d is not a multiple of %d", info.Size(), types.BlockSize)
	}

	return newImageDevice(storage, path, uint64(info.Size())/types.BlockSize, readOnly, log)
}

// CreateImage creates a zero-filled image of totalBlocks blocks. An existing
// file at path is reset to that size.
func CreateImage(path string, totalBlocks uint64, log *slog.Logger) (*ImageDevice, error) {
	if _, err := os.Stat(path); err == nil {
		d, err := OpenImage(path, false, log)
		if err != nil {
			return nil, err
		}
		if err := d.Reset(totalBlocks); err != nil {
			d.Close()
			return nil, err
		}
		return d, nil
	}

	storage, err := file.CreateFromPath(path, int64(totalBlocks)*types.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create image: %w", err)
	}
	return newImageDevice(storage, path, totalBlocks, false, log)
}

func newImageDevice(storage backend.Storage, path string, totalBlocks uint64, readOnly bool, log *slog.Logger) (*ImageDevice, error) {
	if log == nil {
		log = slog.Default()
	}

	d := &ImageDevice{
		storage:     storage,
		path:        path,
		totalBlocks: totalBlocks,
		readOnly:    readOnly,
		stats:       &ImageStatistics{},
		log:         log.With(slog.String("image", path)),
	}

	if !readOnly {
		w, err := storage.Writable()
		if err != nil {
			storage.Close()
			return nil, fmt.Errorf("image is not writable: %w", err)
		}
		d.writable = w
	}

	d.log.Debug("image opened", slog.Uint64("blocks", totalBlocks), slog.Bool("read_only", readOnly))
	return d, nil
}

// ReadBlock reads a single block
func (d *ImageDevice) ReadBlock(address types.Paddr) ([]byte, error) {
	if uint64(address) >= d.totalBlocks {
		return nil, fmt.Errorf("block %d out of range (%d blocks)", address, d.totalBlocks)
	}

	buf := make([]byte, types.BlockSize)
	n, err := d.storage.ReadAt(buf, int64(address)*types.BlockSize)
	if err != nil && !(errors.Is(err, io.EOF) && n == len(buf)) {
		return nil, fmt.Errorf("failed to read block %d: %w", address, err)
	}
	if n != len(buf) {
		return nil, fmt.Errorf("short read of block %d: %d bytes", address, n)
	}

	d.stats.mu.Lock()
	d.stats.blocksRead++
	d.stats.mu.Unlock()

	return buf, nil
}

// WriteBlock writes a single block. data must be exactly one block long.
func (d *ImageDevice) WriteBlock(address types.Paddr, data []byte) error {
	if d.readOnly {
		return fmt.Errorf("write to block %d: image is read-only", address)
	}
	if uint64(address) >= d.totalBlocks {
		return fmt.Errorf("block %d out of range (%d blocks)", address, d.totalBlocks)
	}
	if len(data) != types.BlockSize {
		return fmt.Errorf("block write of %d bytes, want %d", len(data), types.BlockSize)
	}

	n, err := d.writable.WriteAt(data, int64(address)*types.BlockSize)
	if err != nil {
		return fmt.Errorf("failed to write block %d: %w", address, err)
	}
	if n != len(data) {
		return fmt.Errorf("short write of block %d: %d bytes", address, n)
	}

	d.stats.mu.Lock()
	d.stats.blocksWritten++
	d.stats.mu.Unlock()

	return nil
}

// Reset wipes the image and resizes it to totalBlocks blocks
func (d *ImageDevice) Reset(totalBlocks uint64) error {
	if d.readOnly {
		return fmt.Errorf("reset: image is read-only")
	}

	f, err := d.storage.Sys()
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("failed to wipe image: %w", err)
	}
	if err := f.Truncate(int64(totalBlocks) * types.BlockSize); err != nil {
		return fmt.Errorf("failed to resize image: %w", err)
	}
	d.totalBlocks = totalBlocks

	d.stats.mu.Lock()
	d.stats.resets++
	d.stats.mu.Unlock()

	d.log.Debug("image reset", slog.Uint64("blocks", totalBlocks))
	return nil
}

// BlockSize returns the block size
func (d *ImageDevice) BlockSize() uint32 {
	return types.BlockSize
}

// TotalBlocks returns the number of blocks in the image
func (d *ImageDevice) TotalBlocks() uint64 {
	return d.totalBlocks
}

// IsReadOnly reports whether the image was opened read-only
func (d *ImageDevice) IsReadOnly() bool {
	return d.readOnly
}

// Path returns the image file path
func (d *ImageDevice) Path() string {
	return d.path
}

// Close closes the image file
func (d *ImageDevice) Close() error {
	if d.storage != nil {
		return d.storage.Close()
	}
	return nil
}

// GetStats returns current image access statistics
func (d *ImageDevice) GetStats() StatsSnapshot {
	d.stats.mu.RLock()
	defer d.stats.mu.RUnlock()
	return StatsSnapshot{
		BlocksRead:    d.stats.blocksRead,
		BlocksWritten: d.stats.blocksWritten,
		Resets:        d.stats.resets,
	}
}

var (
	_ interfaces.FormattableDevice = (*ImageDevice)(nil)
	_ interfaces.FormattableDevice = (*MemoryDevice)(nil)
)
