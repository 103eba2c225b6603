package cli

import (
	"github.com/spf13/cobra"

	"github.com/dallosh/analysis/engine/infra/server"
	"github.com/dallosh/analysis/pkg/logger"
)

func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Run the HTTP API, the event ingestor and the live task stream",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			srv, err := server.NewServer(ctx)
			if err != nil {
				return err
			}
			logger.FromContext(ctx).Info("Starting dallosh task service")
			return srv.Run()
		},
	}
}
