package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func NewWorkerCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the newsletter delivery worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newEnvironment(opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			worker, err := rt.newWorker()
			if err != nil {
				return err
			}

			rt.logger.Info("delivery worker starting", zap.Int("concurrency", rt.settings.Worker.Concurrency))
			return worker.Run(cmd.Context())
		},
	}
}
