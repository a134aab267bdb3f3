package model

import (
	"github.com/armchr/junitmig/internal/engine"
)

// SourceFile is one Java compilation unit handed to a run.
type SourceFile struct {
	Path    string `json:"path" binding:"required"`
	Content string `json:"content"`
}

type MigrateRequest struct {
	Files    []SourceFile `json:"files" binding:"required,min=1,dive"`
	Cleanups []string     `json:"cleanups,omitempty"`
	Output   string       `json:"output,omitempty" binding:"omitempty,oneof=text edits"`
}

type MigrateRepositoryRequest struct {
	RepoName string   `json:"repo_name" binding:"required"`
	Cleanups []string `json:"cleanups,omitempty"`
	// Write applies the changes to the repository once the whole run succeeded.
	Write bool `json:"write"`
	Force bool `json:"force"` // write even over files with uncommitted changes
}

type MigrateResponse struct {
	RunID    string              `json:"run_id"`
	Cleanups []string            `json:"cleanups"`
	Files    []engine.FileResult `json:"files"`
	Warnings []engine.Warning    `json:"warnings,omitempty"`
	Scanned  int                 `json:"scanned"`
	Skipped  int                 `json:"skipped"`
	Edits    int                 `json:"edits"`
	Written  bool                `json:"written"`
}

type CleanupInfo struct {
	ID          string   `json:"id" yaml:"id"`
	Description string   `json:"description" yaml:"description"`
	Default     bool     `json:"default" yaml:"default"`
	CrossFile   bool     `json:"cross_file,omitempty" yaml:"cross_file,omitempty"`
	Patterns    []string `json:"patterns,omitempty" yaml:"patterns,omitempty"`
}
