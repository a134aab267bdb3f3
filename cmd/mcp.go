package main

import (
	"github.com/armchr/junitmig/internal/mcp"

	"github.com/spf13/cobra"
)

func NewMCPCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the migration tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			svc, err := newService(cfg, nil, logger)
			if err != nil {
				return err
			}
			logger.Info("Starting MCP server on stdio")
			return mcp.NewServer(svc, logger).Run(cobraCmd.Context())
		},
	}
}
