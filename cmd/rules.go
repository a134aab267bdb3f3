package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/armchr/junitmig/internal/config"
	"github.com/armchr/junitmig/internal/model"
	"github.com/armchr/junitmig/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

func NewRulesCommand() *cobra.Command {
	var format string
	var patterns bool
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the available cleanups",
		Args:  cobra.NoArgs,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			svc := service.NewMigrationService(&config.Config{}, nil, nil, zap.NewNop())
			return writeRules(cobraCmd.OutOrStdout(), svc.Cleanups(patterns), format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, yaml or json")
	cmd.Flags().BoolVar(&patterns, "patterns", false, "list the pattern entries of every cleanup")
	return cmd
}

func writeRules(w io.Writer, infos []model.CleanupInfo, format string) error {
	switch format {
	case "yaml":
		data, err := yaml.Marshal(infos)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	case "table":
		for _, info := range infos {
			marker := " "
			if info.Default {
				marker = "*"
			}
			fmt.Fprintf(w, "%s %-32s %s\n", marker, info.ID, info.Description)
			for _, p := range info.Patterns {
				fmt.Fprintf(w, "      %s\n", p)
			}
		}
		return nil
	}
	return fmt.Errorf("unknown format %q", format)
}
