package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-shellshock/pkg/app"
	"github.com/deploymenttheory/go-shellshock/pkg/app/inspect"
)

var (
	inspectEntries bool
	inspectDepth   int
	inspectCheck   bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Report volume geometry, usage and contents",
	Long: `Open the image read-only and report the superblock, block and inode usage,
and optionally every file and directory in the tree.

Examples:
  shellshock inspect --image disk
  shellshock inspect --image disk --entries=false -o json
  shellshock inspect --image disk --depth 1 --check -o yaml`,
	Args: cobra.NoArgs,
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().BoolVar(&inspectEntries, "entries", true, "list every file and directory")
	inspectCmd.Flags().IntVar(&inspectDepth, "depth", 0, "maximum directory depth to list (0 = unlimited)")
	inspectCmd.Flags().BoolVar(&inspectCheck, "check", false, "run the consistency checker as well")
}

func runInspect(cmd *cobra.Command, args []string) error {
	req := &inspect.Request{
		Target:      app.ImageTarget{ImagePath: imageConfig.ImagePath, ReadOnly: true},
		ListEntries: inspectEntries,
		MaxDepth:    inspectDepth,
		RunCheck:    inspectCheck,
	}

	resp, err := inspect.Handle(appCtx, req)
	if err != nil {
		return err
	}
	return inspect.FormatOutput(cmd.OutOrStdout(), resp, appCtx.OutputFormat)
}
