package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-shellshock/internal/device"
	"github.com/deploymenttheory/go-shellshock/internal/services"
	"github.com/deploymenttheory/go-shellshock/pkg/app"
	"github.com/deploymenttheory/go-shellshock/pkg/shell"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive ShellShock session on the image",
	Long: `Read commands from standard input and apply them to the image.

The image is created when it does not exist, and formatted when it does not
hold a volume. Commands:

  mkfs
  create <name> <size>
  open <name> <mode>          mode 1=read 2=write 3=read/write
  close <handle>
  read <handle> <size>
  write <handle> <string>
  lseek <handle> <offset>
  link <src> <dst>
  unlink <name>
  mkdir <name>
  rmdir <name>
  cd <name>
  ls
  stat <name>
  cat <name>
  pwd
  df
  exit

Examples:
  # Interactive session on ./disk
  shellshock

  # Scripted session on another image
  shellshock shell --image vol.img < script.txt`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command, args []string) error {
	log := appCtx.Logger()
	path := imageConfig.ImagePath

	image, err := openOrCreateImage(path, uint64(imageConfig.TotalBlocks))
	if err != nil {
		return app.NewError(app.ErrCodeImageAccess, fmt.Sprintf("failed to open image %s", path), err)
	}
	dev := device.NewCachedDevice(image, imageConfig.CacheBlocks)
	defer func() {
		cache, disk := dev.GetStats(), image.GetStats()
		log.Debug("session closed",
			slog.Int64("cache_hits", cache.Hits),
			slog.Int64("cache_misses", cache.Misses),
			slog.Int64("blocks_read", disk.BlocksRead),
			slog.Int64("blocks_written", disk.BlocksWritten))
		dev.Close()
	}()

	fsys, err := services.NewFileSystemService(dev, services.Options{
		Geometry:     imageConfig.Geometry(),
		UnlinkPolicy: imageConfig.UnlinkPolicy,
		Logger:       log,
	})
	if err != nil {
		return err
	}
	if err := fsys.MountOrFormat(); err != nil {
		return app.NewError(app.ErrCodeImageAccess, "failed to mount volume", err)
	}

	appCtx.Log(fmt.Sprintf("Mounted %s", path))
	return shell.New(fsys, os.Stdin, os.Stdout, log).Run()
}

// openOrCreateImage opens an existing image read-write, or creates a zeroed
// one of totalBlocks blocks
func openOrCreateImage(path string, totalBlocks uint64) (*device.ImageDevice, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return device.OpenImage(path, false, appCtx.Logger())
	case errors.Is(err, fs.ErrNotExist):
		return device.CreateImage(path, totalBlocks, appCtx.Logger())
	default:
		return nil, err
	}
}
