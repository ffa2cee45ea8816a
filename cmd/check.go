package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-shellshock/pkg/app"
	"github.com/deploymenttheory/go-shellshock/pkg/app/inspect"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify bitmaps, link counts and block ownership",
	Long: `Walk the directory tree read-only and cross-check it against the inode
and block bitmaps and the superblock counters. Exits non-zero when problems
are found.

Examples:
  shellshock check --image disk
  shellshock check --image disk -o json`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	req := &inspect.Request{
		Target:   app.ImageTarget{ImagePath: imageConfig.ImagePath, ReadOnly: true},
		RunCheck: true,
	}

	resp, err := inspect.Handle(appCtx, req)
	if err != nil {
		return err
	}
	if err := inspect.FormatOutput(cmd.OutOrStdout(), resp, appCtx.OutputFormat); err != nil {
		return err
	}

	if !resp.Check.OK() {
		return app.NewError(app.ErrCodeCheckFailed, fmt.Sprintf("%d problems found", len(resp.Check.Problems)), nil)
	}
	return nil
}
