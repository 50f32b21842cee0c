// Package scanner finds the Dart sources of a project.
package scanner

import (
	"io/fs"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/panbanda/dartrefs/pkg/config"
)

// DartExt is the extension of Dart source files.
const DartExt = ".dart"

// Scanner finds Dart source files in a directory.
type Scanner struct {
	config *config.Config

	// gitignore patterns match paths relative to the repository root.
	gitMatcher gitignore.Matcher
	gitRoot    string
}

// NewScanner creates a new file scanner.
func NewScanner(cfg *config.Config) *Scanner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Scanner{config: cfg}
}

// IsDartFile reports whether path names a Dart source file.
func IsDartFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), DartExt)
}

// FindRepoRoot returns the work tree root of the git repository containing
// start, or "" when start is not inside a repository.
func FindRepoRoot(start string) string {
	repo, err := git.PlainOpenWithOptions(start, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	wt, err := repo.Worktree()
	if err != nil {
		return ""
	}
	return wt.Filesystem.Root()
}

// loadGitignore reads every .gitignore of the repository containing root.
func (s *Scanner) loadGitignore(root string) {
	s.gitMatcher = nil
	s.gitRoot = ""
	if !s.config.Exclude.Gitignore {
		return
	}
	gitRoot := FindRepoRoot(root)
	if gitRoot == "" {
		return
	}
	// ReadPatterns recursively reads every .gitignore below the root
	gitPatterns, err := gitignore.ReadPatterns(osfs.New(gitRoot), nil)
	if err != nil || len(gitPatterns) == 0 {
		return
	}
	s.gitRoot = gitRoot
	s.gitMatcher = gitignore.NewMatcher(gitPatterns)
}

// isExcluded applies the configured directory names and file patterns
// relative to root, then the repository's .gitignore rules.
func (s *Scanner) isExcluded(root, path string, isDir bool) bool {
	if rel, err := filepath.Rel(root, path); err == nil && rel != "." {
		if isDir && slices.Contains(s.config.Exclude.Dirs, filepath.Base(path)) {
			return true
		}
		if !isDir && s.config.ShouldExclude(rel) {
			return true
		}
	}
	if s.gitMatcher != nil {
		if rel, err := filepath.Rel(s.gitRoot, path); err == nil && !strings.HasPrefix(rel, "..") {
			return s.gitMatcher.Match(splitPath(rel), isDir)
		}
	}
	return false
}

func splitPath(rel string) []string {
	return strings.Split(filepath.ToSlash(rel), "/")
}

// ScanDir recursively scans a directory for Dart files and returns their
// absolute paths in sorted order. Symlinks that leave the root are skipped.
func (s *Scanner) ScanDir(root string) ([]string, error) {
	files := make([]string, 0, 256)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	// Resolve any symlinks in the root path for the containment check
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, err
	}

	s.loadGitignore(absRoot)

	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == absRoot {
				return err
			}
			return nil
		}
		if path == absRoot {
			return nil
		}

		isDir := d.IsDir()
		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil || !isWithinRoot(resolved, realRoot) {
				return nil
			}
			// WalkDir does not follow directory symlinks
			isDir = false
		}

		if isDir {
			if s.isExcluded(absRoot, path, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if !IsDartFile(path) || s.isExcluded(absRoot, path, false) {
			return nil
		}
		files = append(files, filepath.Clean(path))
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	sort.Strings(files)
	return files, nil
}

// isWithinRoot checks if a path is contained within the root directory.
// Returns false if the path escapes via symlinks or relative paths.
func isWithinRoot(path, root string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	absPath = filepath.Clean(absPath)
	root = filepath.Clean(root)

	// Add separator to prevent "/root2" matching "/root"
	return absPath == root || strings.HasPrefix(absPath, root+string(filepath.Separator))
}
