package rag

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const maxFileSize = 256 * 1024

// sourceExtensions are the file types worth indexing. Everything else
// (binaries, lockfiles, vendored assets) is skipped.
var sourceExtensions = map[string]struct{}{
	".go": {}, ".py": {}, ".js": {}, ".ts": {}, ".tsx": {}, ".jsx": {},
	".rs": {}, ".java": {}, ".kt": {}, ".rb": {}, ".c": {}, ".h": {},
	".cpp": {}, ".cs": {}, ".sql": {}, ".sh": {}, ".yaml": {}, ".yml": {},
	".toml": {}, ".md": {},
}

var skippedDirs = map[string]struct{}{
	".git": {}, "node_modules": {}, "vendor": {}, "dist": {}, "build": {},
	"__pycache__": {}, ".venv": {},
}

// RepoFile is one source file read from a cloned repository.
type RepoFile struct {
	Path    string // relative to the repository root
	Content string
}

// Loader clones repositories into a local cache directory and reads their
// source files for indexing.
type Loader struct {
	cloneDir string
	logger   *slog.Logger
}

// NewLoader creates a loader that keeps clones under cloneDir.
func NewLoader(cloneDir string, logger *slog.Logger) *Loader {
	return &Loader{cloneDir: cloneDir, logger: logger}
}

// Sync clones the repository on first use and pulls on subsequent calls.
// It returns the local checkout path.
func (l *Loader) Sync(ctx context.Context, repoURL string) (string, error) {
	dir := filepath.Join(l.cloneDir, slugify(repoURL))

	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		cmd := exec.CommandContext(ctx, "git", "-C", dir, "pull", "--ff-only", "--quiet")
		if out, err := cmd.CombinedOutput(); err != nil {
			return "", fmt.Errorf("git pull %s: %s: %w", repoURL, strings.TrimSpace(string(out)), err)
		}
		return dir, nil
	}

	if err := os.MkdirAll(l.cloneDir, 0o755); err != nil {
		return "", fmt.Errorf("create clone dir: %w", err)
	}
	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "50", "--quiet", repoURL, dir)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("git clone %s: %s: %w", repoURL, strings.TrimSpace(string(out)), err)
	}
	return dir, nil
}

// Files reads every indexable source file from a checkout.
func (l *Loader) Files(dir string) ([]RepoFile, error) {
	var files []RepoFile

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if _, skip := skippedDirs[d.Name()]; skip {
				return filepath.SkipDir
			}
			return nil
		}

		if _, ok := sourceExtensions[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > maxFileSize {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", path, err)
		}

		files = append(files, RepoFile{Path: filepath.ToSlash(rel), Content: string(raw)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk checkout: %w", err)
	}

	return files, nil
}

// RecentActivity returns the subjects of the latest commits, newest first.
// Used to give the post generator something concrete to talk about.
func (l *Loader) RecentActivity(ctx context.Context, dir string, limit int) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "log",
		fmt.Sprintf("--max-count=%d", limit), "--pretty=format:%s")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git log: %w", err)
	}

	var subjects []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			subjects = append(subjects, line)
		}
	}
	return subjects, nil
}

// slugify turns a repository URL into a stable directory name.
func slugify(repoURL string) string {
	s := strings.TrimPrefix(repoURL, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimSuffix(s, ".git")
	s = strings.TrimRight(s, "/")
	return strings.Map(func(r rune) rune {
		switch {
		case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
