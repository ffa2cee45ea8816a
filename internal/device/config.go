package device

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/deploymenttheory/go-shellshock/internal/types"
)

// Unlink policies for files that still have open descriptors.
const (
	UnlinkPolicyDefer = "defer"
	UnlinkPolicyFail  = "fail"
)

// ImageConfig holds configuration for the backing disk image and the volume
// geometry used when it is formatted
type ImageConfig struct {
	ImagePath      string `mapstructure:"image_path"`
	TotalBlocks    uint32 `mapstructure:"total_blocks"`
	InodeCount     uint32 `mapstructure:"inode_count"`
	DirectPointers uint32 `mapstructure:"direct_pointers"`
	PointerWidth   uint32 `mapstructure:"pointer_width"`
	MaxHandles     int    `mapstructure:"max_handles"`
	CacheBlocks    int    `mapstructure:"cache_blocks"`
	UnlinkPolicy   string `mapstructure:"unlink_policy"`
	LogLevel       string `mapstructure:"log_level"`
}

// LoadImageConfig loads image configuration using Viper. An explicit
// configFile takes precedence over the search paths.
func LoadImageConfig(configFile string) (*ImageConfig, error) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("shellshock")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("$HOME/.shellshock")
		viper.AddConfigPath("/etc/shellshock")
	}

	// Set defaults
	viper.SetDefault("image_path", "disk")
	viper.SetDefault("total_blocks", types.DefaultTotalBlocks)
	viper.SetDefault("inode_count", types.DefaultInodeCount)
	viper.SetDefault("direct_pointers", types.DefaultDirectPointers)
	viper.SetDefault("pointer_width", types.DefaultPointerWidth)
	viper.SetDefault("max_handles", types.DefaultMaxHandles)
	viper.SetDefault("cache_blocks", DefaultCacheBlocks)
	viper.SetDefault("unlink_policy", UnlinkPolicyDefer)
	viper.SetDefault("log_level", "warn")

	// Allow environment variables
	viper.SetEnvPrefix("SHELLSHOCK")
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	var config ImageConfig
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// DefaultImageConfig returns the configuration used when nothing is set
func DefaultImageConfig() *ImageConfig {
	g := types.DefaultGeometry()
	return &ImageConfig{
		ImagePath:      "disk",
		TotalBlocks:    g.TotalBlocks,
		InodeCount:     g.InodeCount,
		DirectPointers: g.DirectPointers,
		PointerWidth:   g.PointerWidth,
		MaxHandles:     g.MaxHandles,
		CacheBlocks:    DefaultCacheBlocks,
		UnlinkPolicy:   UnlinkPolicyDefer,
		LogLevel:       "warn",
	}
}

// Geometry returns the volume geometry described by the configuration
func (c *ImageConfig) Geometry() types.Geometry {
	return types.Geometry{
		TotalBlocks:    c.TotalBlocks,
		InodeCount:     c.InodeCount,
		DirectPointers: c.DirectPointers,
		PointerWidth:   c.PointerWidth,
		MaxHandles:     c.MaxHandles,
	}
}

// Validate checks the geometry and policy values
func (c *ImageConfig) Validate() error {
	if c.ImagePath == "" {
		return fmt.Errorf("image path is required")
	}
	if err := c.Geometry().Validate(); err != nil {
		return fmt.Errorf("invalid geometry: %w", err)
	}
	if c.CacheBlocks < 0 {
		return fmt.Errorf("cache_blocks must not be negative, got %d", c.CacheBlocks)
	}
	switch c.UnlinkPolicy {
	case UnlinkPolicyDefer, UnlinkPolicyFail:
	default:
		return fmt.Errorf("unknown unlink policy %q (want %q or %q)", c.UnlinkPolicy, UnlinkPolicyDefer, UnlinkPolicyFail)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLogLevel maps a configured level name to a slog level
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning", "":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, fmt.Errorf("unknown log level %q", level)
	}
}
