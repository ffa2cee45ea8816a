package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Print the configuration after merging defaults, the config file,
SHELLSHOCK_* environment variables and flags.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Fprintf(out, "# %s\n", used)
		}

		encoder := yaml.NewEncoder(out)
		defer encoder.Close()
		encoder.SetIndent(2)
		return encoder.Encode(map[string]any{
			"image_path":      imageConfig.ImagePath,
			"total_blocks":    imageConfig.TotalBlocks,
			"inode_count":     imageConfig.InodeCount,
			"direct_pointers": imageConfig.DirectPointers,
			"pointer_width":   imageConfig.PointerWidth,
			"max_handles":     imageConfig.MaxHandles,
			"cache_blocks":    imageConfig.CacheBlocks,
			"unlink_policy":   imageConfig.UnlinkPolicy,
			"log_level":       imageConfig.LogLevel,
		})
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
