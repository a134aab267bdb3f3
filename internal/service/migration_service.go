package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/armchr/junitmig/internal/catalog"
	"github.com/armchr/junitmig/internal/config"
	"github.com/armchr/junitmig/internal/engine"
	"github.com/armchr/junitmig/internal/ledger"
	"github.com/armchr/junitmig/internal/model"
	"github.com/armchr/junitmig/internal/model/ast"
	"github.com/armchr/junitmig/internal/parse"
	"github.com/armchr/junitmig/internal/util"
	"github.com/bmatcuk/doublestar"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// skippedDirs are never descended into when collecting sources.
var skippedDirs = map[string]bool{
	".git":         true,
	".gradle":      true,
	".idea":        true,
	"build":        true,
	"target":       true,
	"node_modules": true,
}

// ModifiedFilesError reports changed files that carry uncommitted work.
type ModifiedFilesError struct {
	Paths []string
}

func (e *ModifiedFilesError) Error() string {
	return fmt.Sprintf("%d files have uncommitted changes: %s", len(e.Paths), strings.Join(e.Paths, ", "))
}

type MigrationService struct {
	config  *config.Config
	ledger  *ledger.Ledger
	metrics *Metrics
	logger  *zap.Logger
}

// NewMigrationService wires a service. ledger and metrics may be nil.
func NewMigrationService(cfg *config.Config, l *ledger.Ledger, metrics *Metrics, logger *zap.Logger) *MigrationService {
	return &MigrationService{config: cfg, ledger: l, metrics: metrics, logger: logger}
}

func (ms *MigrationService) GetConfig() *config.Config {
	return ms.config
}

// Cleanups describes the catalog.
func (ms *MigrationService) Cleanups(withPatterns bool) []model.CleanupInfo {
	var out []model.CleanupInfo
	for _, c := range catalog.Cleanups() {
		info := model.CleanupInfo{ID: c.ID, Description: c.Description, Default: c.Default, CrossFile: c.CrossFile}
		if withPatterns {
			entries, err := catalog.Entries([]string{c.ID})
			if err == nil {
				for _, e := range entries {
					info.Patterns = append(info.Patterns, catalog.Describe(e))
				}
			}
		}
		out = append(out, info)
	}
	return out
}

// EnabledCleanups picks the requested cleanups, else the configured ones, else the
// catalog defaults.
func (ms *MigrationService) EnabledCleanups(requested []string) []string {
	switch {
	case len(requested) > 0:
		return requested
	case len(ms.config.Migration.Cleanups) > 0:
		return ms.config.Migration.Cleanups
	}
	return catalog.Default()
}

func (ms *MigrationService) workers() int {
	if ms.config.App.Workers > 0 {
		return ms.config.App.Workers
	}
	return runtime.NumCPU()
}

// LoadSources collects the Java files under root. Paths are relative to root, with
// forward slashes, and sorted.
func (ms *MigrationService) LoadSources(root string, exclude []string) ([]model.SourceFile, error) {
	migration := ms.config.Migration.GetDefaults()
	exclude = append(append([]string(nil), migration.Exclude...), exclude...)

	contents := util.NewSafeMap[[]byte]()
	skip := func(path string, isDir bool) bool {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return true
		}
		rel = filepath.ToSlash(rel)
		if isDir {
			if rel != "." && skippedDirs[filepath.Base(path)] {
				return true
			}
		} else if !strings.HasSuffix(path, ".java") {
			return true
		}
		for _, pattern := range exclude {
			if ok, _ := doublestar.Match(pattern, rel); ok {
				return true
			}
		}
		return false
	}

	err := util.WalkDirTree(root, func(path string) error {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.Size() > migration.MaxFileBytes {
			ms.logger.Warn("Skipping large file", zap.String("file", path), zap.Int64("size", info.Size()))
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := util.GetRelativePath(root, path)
		if err != nil {
			return err
		}
		contents.Set(filepath.ToSlash(rel), data)
		return nil
	}, skip, ms.logger, ms.workers())
	if err != nil {
		return nil, fmt.Errorf("failed to collect sources under %s: %w", root, err)
	}

	files := make([]model.SourceFile, 0, contents.Len())
	for _, rel := range contents.Keys() {
		data, _ := contents.Get(rel)
		files = append(files, model.SourceFile{Path: rel, Content: string(data)})
	}
	return files, nil
}

type parsed struct {
	unit *parse.Unit
	err  error
}

// Migrate runs the engine over files. scope names the ledger filter the run consults;
// an empty scope bypasses the ledger.
func (ms *MigrationService) Migrate(ctx context.Context, scope string, files []model.SourceFile, cleanups []string, output engine.OutputMode) (*model.MigrateResponse, error) {
	runID := uuid.NewString()
	logger := ms.logger.With(zap.String("run_id", runID))
	enabled := ms.EnabledCleanups(cleanups)
	fingerprint := catalog.Fingerprint(enabled)
	if output == "" {
		output = engine.OutputMode(ms.config.Migration.GetDefaults().Output)
	}

	start := time.Now()
	results := util.DoWorkList(indexes(len(files)), ms.workers(), func(i int) parsed {
		u, err := parse.ParseUnit(ast.FileID(i), files[i].Path, []byte(files[i].Content))
		return parsed{unit: u, err: err}
	})
	defer func() {
		for _, r := range results {
			if r.unit != nil {
				r.unit.Close()
			}
		}
	}()
	units := make([]*parse.Unit, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			ms.metrics.observe(nil, r.err, time.Since(start))
			return nil, r.err
		}
		units = append(units, r.unit)
	}

	opts := engine.Options{Workers: ms.workers(), Output: output}
	useLedger := ms.ledger != nil && scope != ""
	if useLedger {
		opts.Skip = func(u *parse.Unit) bool {
			return ms.ledger.Seen(scope, u.Source, fingerprint)
		}
	}

	logger.Info("Starting migration run",
		zap.Int("files", len(units)),
		zap.Strings("cleanups", enabled),
		zap.String("output", string(output)))

	res, err := engine.New(opts, logger).Run(ctx, units, enabled)
	ms.metrics.observe(res, err, time.Since(start))
	if err != nil {
		logger.Error("Migration run failed", zap.Error(err))
		return nil, err
	}

	if useLedger {
		ms.settle(scope, units, res, fingerprint, output)
	}

	return &model.MigrateResponse{
		RunID:    runID,
		Cleanups: enabled,
		Files:    res.Files,
		Warnings: res.Warnings,
		Scanned:  res.Scanned,
		Skipped:  res.Skipped,
		Edits:    res.EditCount(),
	}, nil
}

// settle records files the run leaves with nothing to do: unchanged files and, when the
// new text is known, changed ones. Files with warnings stay out, since a later run with
// more files may resolve them.
func (ms *MigrationService) settle(scope string, units []*parse.Unit, res *engine.Result, fingerprint string, output engine.OutputMode) {
	warned := make(map[string]bool)
	for _, w := range res.Warnings {
		warned[w.Path] = true
	}
	changed := make(map[string]bool)
	for _, f := range res.Files {
		changed[f.Path] = true
		if output == engine.OutputText && !warned[f.Path] {
			ms.ledger.Record(scope, []byte(f.Text), fingerprint)
		}
	}
	for _, u := range units {
		if !changed[u.Path] && !warned[u.Path] {
			ms.ledger.Record(scope, u.Source, fingerprint)
		}
	}
	if err := ms.ledger.Save(scope); err != nil {
		ms.logger.Warn("Failed to save ledger", zap.String("scope", scope), zap.Error(err))
	}
}

func indexes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// MigrateRepository migrates a configured repository and optionally writes the result.
func (ms *MigrationService) MigrateRepository(ctx context.Context, req model.MigrateRepositoryRequest) (*model.MigrateResponse, error) {
	repo, err := ms.config.GetRepository(req.RepoName)
	if err != nil {
		return nil, err
	}
	if repo.Disabled {
		return nil, fmt.Errorf("repository %s is disabled", repo.Name)
	}
	files, err := ms.LoadSources(repo.Path, repo.Exclude)
	if err != nil {
		return nil, err
	}
	resp, err := ms.Migrate(ctx, repo.Name, files, req.Cleanups, engine.OutputText)
	if err != nil {
		return nil, err
	}
	if req.Write {
		if err := ms.WriteFiles(repo.Path, resp.Files, req.Force); err != nil {
			return nil, err
		}
		resp.Written = true
	}
	return resp, nil
}

// WriteFiles writes the new text of every changed file under root. Unless force is set,
// nothing is written when a target has uncommitted changes in git.
func (ms *MigrationService) WriteFiles(root string, files []engine.FileResult, force bool) error {
	if !force {
		gitInfo, err := util.GetGitInfo(root)
		if err != nil {
			return err
		}
		var dirty []string
		for _, f := range files {
			if util.IsFileModified(gitInfo, filepath.Join(root, filepath.FromSlash(f.Path))) {
				dirty = append(dirty, f.Path)
			}
		}
		if len(dirty) > 0 {
			return &ModifiedFilesError{Paths: dirty}
		}
	}

	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f.Path))
		if err := writeFileAtomic(path, []byte(f.Text)); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.Path, err)
		}
		ms.logger.Info("Wrote migrated file", zap.String("file", f.Path))
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".junitmig-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), info.Mode().Perm()); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
