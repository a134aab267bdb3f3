package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/armchr/junitmig/internal/engine"
	"github.com/armchr/junitmig/internal/report"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type migrateOptions struct {
	cleanups    []string
	repo        string
	exclude     []string
	output      string
	maxFileSize string
	dryRun      bool
	force       bool
	jsonOut     bool
}

func NewMigrateCommand() *cobra.Command {
	opts := &migrateOptions{}
	cmd := &cobra.Command{
		Use:   "migrate [dir]",
		Short: "Rewrite the Java sources under a directory",
		Long: `Rewrite the Java sources under dir (default: the current directory), or under a
repository from the configuration with --repo. The files are written only when the
whole run succeeds and none of them has uncommitted changes in git.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return runMigrate(cobraCmd, args, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.cleanups, "cleanup", nil, "cleanup to enable (repeatable; default: the configured or default set)")
	cmd.Flags().StringVar(&opts.repo, "repo", "", "migrate a configured repository instead of dir")
	cmd.Flags().StringSliceVar(&opts.exclude, "exclude", nil, "glob of paths to leave alone, relative to the root (repeatable)")
	cmd.Flags().StringVar(&opts.output, "output", "", "result form with --json: text or edits")
	cmd.Flags().StringVar(&opts.maxFileSize, "max-file-size", "", "skip larger files (e.g. 512KB, 4MiB)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print diffs instead of writing files")
	cmd.Flags().BoolVar(&opts.force, "force", false, "write files even when they have uncommitted changes")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "print the run result as JSON instead of writing files")
	return cmd
}

func runMigrate(cobraCmd *cobra.Command, args []string, opts *migrateOptions) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if opts.maxFileSize != "" {
		size, err := humanize.ParseBytes(opts.maxFileSize)
		if err != nil {
			return fmt.Errorf("invalid --max-file-size %q: %w", opts.maxFileSize, err)
		}
		cfg.Migration.MaxFileBytes = int64(size)
	}
	output := engine.OutputMode(opts.output)
	if output == engine.OutputEdits && !opts.jsonOut {
		return fmt.Errorf("--output edits requires --json")
	}

	svc, err := newService(cfg, nil, logger)
	if err != nil {
		return err
	}

	root, exclude := ".", opts.exclude
	if len(args) == 1 {
		root = args[0]
	}
	if opts.repo != "" {
		repo, err := cfg.GetRepository(opts.repo)
		if err != nil {
			return err
		}
		root, exclude = repo.Path, append(append([]string(nil), repo.Exclude...), exclude...)
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return err
	}

	start := time.Now()
	files, err := svc.LoadSources(root, exclude)
	if err != nil {
		return err
	}
	sourceBytes := 0
	original := make(map[string]string, len(files))
	for _, f := range files {
		original[f.Path] = f.Content
		sourceBytes += len(f.Content)
	}

	resp, err := svc.Migrate(cobraCmd.Context(), root, files, opts.cleanups, output)
	if err != nil {
		return err
	}

	out := cobraCmd.OutOrStdout()
	switch {
	case opts.jsonOut:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case opts.dryRun || cfg.Migration.DryRun:
		for _, f := range resp.Files {
			fmt.Fprint(out, report.Diff(f.Path, original[f.Path], f.Text))
		}
	default:
		if err := svc.WriteFiles(root, resp.Files, opts.force); err != nil {
			return err
		}
		resp.Written = len(resp.Files) > 0
	}

	logger.Info("Migration finished",
		zap.String("root", root),
		zap.Int("changed", len(resp.Files)),
		zap.Bool("written", resp.Written))
	report.Summary(os.Stderr, resp, sourceBytes, time.Since(start))
	return nil
}
