package util

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitInfo contains git repository information
type GitInfo struct {
	HeadCommitSHA string
	ModifiedFiles map[string]bool // Set of files modified compared to HEAD (absolute paths)
	GitRootPath   string          // Absolute path to git repository root
	IsGitRepo     bool
}

// GetGitInfo retrieves git information for a repository path
func GetGitInfo(repoPath string) (*GitInfo, error) {
	info := &GitInfo{
		ModifiedFiles: make(map[string]bool),
	}

	cmd := exec.Command("git", "rev-parse", "--git-dir")
	cmd.Dir = repoPath
	if err := cmd.Run(); err != nil {
		info.IsGitRepo = false
		return info, nil
	}
	info.IsGitRepo = true

	cmd = exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = repoPath
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to get git root directory: %w", err)
	}
	info.GitRootPath = strings.TrimSpace(string(output))

	cmd = exec.Command("git", "rev-parse", "HEAD")
	cmd.Dir = repoPath
	if output, err = cmd.Output(); err == nil {
		info.HeadCommitSHA = strings.TrimSpace(string(output))
	}

	// modified, added and deleted files in the working directory and index, plus untracked ones
	for _, args := range [][]string{
		{"diff", "--name-only", "HEAD"},
		{"ls-files", "--others", "--exclude-standard"},
	} {
		cmd = exec.Command("git", args...)
		cmd.Dir = info.GitRootPath
		output, err = cmd.Output()
		if err != nil {
			if info.HeadCommitSHA == "" {
				// no commit yet: every file counts as modified
				continue
			}
			return nil, fmt.Errorf("failed to get modified files: %w", err)
		}
		for _, file := range strings.Split(strings.TrimSpace(string(output)), "\n") {
			if file != "" {
				info.ModifiedFiles[filepath.Join(info.GitRootPath, file)] = true
			}
		}
	}

	return info, nil
}

// IsFileModified checks if a file is modified compared to HEAD
func IsFileModified(gitInfo *GitInfo, filePath string) bool {
	if gitInfo == nil || !gitInfo.IsGitRepo {
		return false
	}
	if gitInfo.HeadCommitSHA == "" {
		return true
	}
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return false
	}
	return gitInfo.ModifiedFiles[abs]
}

// GetRelativePath returns the relative path of a file from the repository root
func GetRelativePath(repoPath, filePath string) (string, error) {
	relPath, err := filepath.Rel(repoPath, filePath)
	if err != nil {
		return "", fmt.Errorf("failed to get relative path: %w", err)
	}
	return relPath, nil
}
