package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-shellshock/internal/device"
	"github.com/deploymenttheory/go-shellshock/internal/services"
	"github.com/deploymenttheory/go-shellshock/pkg/app"
)

var mkfsCmd = &cobra.Command{
	Use:   "mkfs",
	Short: "Format the image with an empty volume",
	Long: `Create or wipe the image and write an empty volume holding only the root
directory. Geometry comes from the configuration file or SHELLSHOCK_* variables.

Examples:
  shellshock mkfs --image disk
  SHELLSHOCK_POINTER_WIDTH=4 shellshock mkfs --image wide.img`,
	Args: cobra.NoArgs,
	RunE: runMkfs,
}

func init() {
	rootCmd.AddCommand(mkfsCmd)
}

func runMkfs(cmd *cobra.Command, args []string) error {
	g := imageConfig.Geometry()
	path := imageConfig.ImagePath

	dev, err := device.CreateImage(path, uint64(g.TotalBlocks), appCtx.Logger())
	if err != nil {
		return app.NewError(app.ErrCodeImageAccess, fmt.Sprintf("failed to create image %s", path), err)
	}
	defer dev.Close()

	fsys, err := services.NewFileSystemService(dev, services.Options{Geometry: g, Logger: appCtx.Logger()})
	if err != nil {
		return err
	}
	if err := fsys.Format(); err != nil {
		return app.NewError(app.ErrCodeImageAccess, "failed to format volume", err)
	}

	if !appCtx.Quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Formatted %s: %d blocks of %d bytes, %d inodes, max file size %d\n",
			path, g.TotalBlocks, dev.BlockSize(), g.InodeCount, g.MaxFileSize())
	}
	return nil
}
