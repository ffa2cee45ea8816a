package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/deploymenttheory/go-shellshock/internal/device"
	"github.com/deploymenttheory/go-shellshock/pkg/app"
)

var (
	// Global flags
	imagePath    string
	configFile   string
	verbose      bool
	quiet        bool
	outputFormat string

	// Resolved in PersistentPreRunE
	imageConfig *device.ImageConfig
	appCtx      *app.Context
)

var rootCmd = &cobra.Command{
	Use:   "shellshock",
	Short: "Block-structured file system in a disk image file",
	Long: `shellshock keeps a small Unix-like file system (files, directories, hard
links) inside a single disk image file and drives it from a line-oriented shell.

Running without a subcommand starts the shell on the configured image. The image
is mounted when it already holds a volume and formatted otherwise.

Commands:
  shell       Interactive ShellShock session (default)
  mkfs        Format an image
  inspect     Report volume geometry, usage and contents
  check       Verify bitmaps, link counts and block ownership
  config      Show the effective configuration`,
	Version:           "0.0.3",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	RunE:              runShell,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&imagePath, "image", "i", "", "path to the disk image (default from config, \"disk\")")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default searches ./shellshock.yaml, ./config, $HOME/.shellshock, /etc/shellshock)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output except errors")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")

	// Flags override config file and environment
	_ = viper.BindPFlag("image_path", rootCmd.PersistentFlags().Lookup("image"))
}

// loadConfig resolves configuration and builds the application context
func loadConfig(cmd *cobra.Command, args []string) error {
	if err := app.ValidateOutputFormat(outputFormat); err != nil {
		return err
	}

	cfg, err := device.LoadImageConfig(configFile)
	if err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "failed to load configuration", err)
	}
	level, err := device.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid log level", err)
	}

	ctx := app.NewContext()
	ctx.Context = cmd.Context()
	ctx.OutputFormat = outputFormat
	ctx.Verbose = verbose
	ctx.Quiet = quiet
	ctx.LogLevel = level

	imageConfig = cfg
	appCtx = ctx
	return nil
}

// GetVerbose returns the verbose flag value
func GetVerbose() bool {
	return verbose
}

// GetQuiet returns the quiet flag value
func GetQuiet() bool {
	return quiet
}

// GetOutputFormat returns the output format
func GetOutputFormat() string {
	return outputFormat
}
