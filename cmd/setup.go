package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/termlog/internal/shell"
)

var setupCmd = &cobra.Command{
	Use:       "setup [zsh|bash]",
	Short:     "Install the prompt plugin that marks recorded terminals",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: shell.Supported,
	RunE: func(cmd *cobra.Command, args []string) error {
		name := shell.Detect()
		if len(args) == 1 {
			name = args[0]
		}
		if shell.IsInstalled(name) {
			cmd.Printf("  Plugin for %s already installed; rewriting it.\n", name)
		}
		if _, err := shell.Install(name, cmd.OutOrStdout()); err != nil {
			return fmt.Errorf("plugin install failed: %w", err)
		}
		cmd.Println("  Setup complete. Run 'termlog start' to record a session.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
