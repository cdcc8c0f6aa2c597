// -- cmd/run.go --
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/remedy/internal/engine"
	"github.com/xkilldash9x/remedy/internal/observability"
	"github.com/xkilldash9x/remedy/internal/scenario"
)

var interceptFlag bool

var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml> [more scenarios...]",
	Short: "Execute one or more YAML test scenarios.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()
		ctx := cmd.Context()

		for _, path := range args {
			s, err := scenario.Load(path)
			if err != nil {
				return err
			}

			// One engine per scenario keeps recordings and evidence isolated.
			eng, err := engine.New(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("starting browser for %s: %w", s.ID, err)
			}
			if interceptFlag {
				if err := eng.EnableInterception(); err != nil {
					eng.Close()
					return err
				}
			}

			runErr := scenario.NewRunner(eng, logger).Run(ctx, s)
			logger.Info("Evidence written.", zap.String("path", eng.Evidence().Root()))
			eng.Close()
			if runErr != nil {
				return runErr
			}
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&interceptFlag, "intercept", false, "route traffic through the interception rules")
	rootCmd.AddCommand(runCmd)
}
