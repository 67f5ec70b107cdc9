package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var checkLatexCmd = &cobra.Command{
	Use:   "check-latex",
	Short: "Check that the LaTeX toolchain is installed",
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger := newLogger()
		defer logger.Sync()

		config, err := getConfig()
		if err != nil {
			logger.Fatal("getting a config", zap.Error(err))
		}

		status := newCompiler(config, logger).CheckToolchain(cmd.Context())
		if !status.Installed {
			return fmt.Errorf("%s is not installed or not in PATH", config.Latex.Binary)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", config.Latex.Binary, *status.Version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkLatexCmd)
}
