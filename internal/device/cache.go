package device

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/deploymenttheory/go-shellshock/internal/interfaces"
	"github.com/deploymenttheory/go-shellshock/internal/types"
)

// DefaultCacheBlocks is the cache size used when none is configured
const DefaultCacheBlocks = 256

// CachedDevice is a write-through LRU block cache in front of another device.
type CachedDevice struct {
	dev      interfaces.FormattableDevice
	blocks   *lru.Cache[types.Paddr, []byte]
	capacity int

	// Statistics
	hits      int64
	misses    int64
	evictions int64

	mu sync.Mutex
}

// CacheStats is a point-in-time copy of the cache counters
type CacheStats struct {
	Cached    int     `json:"cached" yaml:"cached"`
	Capacity  int     `json:"capacity" yaml:"capacity"`
	Hits      int64   `json:"hits" yaml:"hits"`
	Misses    int64   `json:"misses" yaml:"misses"`
	HitRate   float64 `json:"hit_rate" yaml:"hit_rate"`
	Evictions int64   `json:"evictions" yaml:"evictions"`
}

// NewCachedDevice wraps dev with a cache holding up to capacity blocks.
// A capacity of zero or less selects DefaultCacheBlocks.
func NewCachedDevice(dev interfaces.FormattableDevice, capacity int) *CachedDevice {
	if capacity <= 0 {
		capacity = DefaultCacheBlocks
	}
	// lru.New only fails for a non-positive size
	blocks, _ := lru.New[types.Paddr, []byte](capacity)
	return &CachedDevice{
		dev:      dev,
		blocks:   blocks,
		capacity: capacity,
	}
}

// ReadBlock returns a copy of the block, from the cache when present
func (c *CachedDevice) ReadBlock(address types.Paddr) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if data, ok := c.blocks.Get(address); ok {
		c.hits++
		return clone(data), nil
	}
	c.misses++

	data, err := c.dev.ReadBlock(address)
	if err != nil {
		return nil, err
	}
	c.put(address, data)
	return clone(data), nil
}

// WriteBlock writes through to the device, then refreshes the cached copy
func (c *CachedDevice) WriteBlock(address types.Paddr, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.dev.WriteBlock(address, data); err != nil {
		// the device may hold either version now
		c.blocks.Remove(address)
		return err
	}
	c.put(address, clone(data))
	return nil
}

// Reset empties the cache and resets the underlying device
func (c *CachedDevice) Reset(totalBlocks uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.blocks.Purge()
	if err := c.dev.Reset(totalBlocks); err != nil {
		return fmt.Errorf("cached device: %w", err)
	}
	return nil
}

// BlockSize returns the block size of the underlying device
func (c *CachedDevice) BlockSize() uint32 {
	return c.dev.BlockSize()
}

// TotalBlocks returns the block count of the underlying device
func (c *CachedDevice) TotalBlocks() uint64 {
	return c.dev.TotalBlocks()
}

// IsReadOnly reports whether the underlying device is read-only
func (c *CachedDevice) IsReadOnly() bool {
	return c.dev.IsReadOnly()
}

// Close drops the cache and closes the underlying device
func (c *CachedDevice) Close() error {
	c.mu.Lock()
	c.blocks.Purge()
	c.mu.Unlock()
	return c.dev.Close()
}

// GetStats returns current cache statistics
func (c *CachedDevice) GetStats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Cached:    c.blocks.Len(),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

// put stores data, which the cache now owns. Caller holds mu.
func (c *CachedDevice) put(address types.Paddr, data []byte) {
	if c.blocks.Add(address, data) {
		c.evictions++
	}
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

var _ interfaces.FormattableDevice = (*CachedDevice)(nil)
