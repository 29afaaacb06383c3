// Package gitstats computes per-file change history by shelling out to the
// git CLI. A missing repository is signaled through IsRepository rather than
// an error so callers can degrade instead of aborting.
package gitstats

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// FileChurn summarizes the change history of one file over a window.
type FileChurn struct {
	Path         string
	Commits      int
	Authors      map[string]struct{}
	LinesAdded   int
	LinesRemoved int
	LastChange   time.Time
}

// AuthorCount returns the number of distinct authors.
func (f *FileChurn) AuthorCount() int {
	return len(f.Authors)
}

// Git shells out to the git CLI for churn history.
type Git struct {
	gitPath string
}

// NewGit locates the git executable. It returns an error only when git
// itself is absent from the system, not when a given path is not a repo.
func NewGit() (*Git, error) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("git not found in PATH: %w", err)
	}
	return &Git{gitPath: gitPath}, nil
}

// IsRepository reports whether repoPath is inside a git work tree.
func (g *Git) IsRepository(ctx context.Context, repoPath string) bool {
	cmd := exec.CommandContext(ctx, g.gitPath, "-C", repoPath, "rev-parse", "--is-inside-work-tree")
	output, err := cmd.Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(output)) == "true"
}

// Churn returns per-file churn over the last windowDays, keyed by path
// relative to the repository root. Files with no commits in the window are
// absent from the map.
func (g *Git) Churn(ctx context.Context, repoPath string, windowDays int) (map[string]*FileChurn, error) {
	since := fmt.Sprintf("--since=%d.days.ago", windowDays)

	// One log pass: commit header lines carry the author and date,
	// numstat lines carry added/removed per file.
	cmd := exec.CommandContext(ctx, g.gitPath, "-C", repoPath,
		"log", since, "--numstat", "--no-merges", "--format=@@%an|%at")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git log failed in %s: %w", repoPath, err)
	}

	return parseNumstatLog(string(output))
}

// parseNumstatLog parses `git log --numstat --format=@@<author>|<unix>` output.
func parseNumstatLog(output string) (map[string]*FileChurn, error) {
	churn := make(map[string]*FileChurn)

	var author string
	var when time.Time
	// Files already counted for the current commit, so a file is counted
	// once per commit even if numstat repeats it (renames).
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "@@") {
			header := strings.TrimPrefix(line, "@@")
			parts := strings.SplitN(header, "|", 2)
			if len(parts) != 2 {
				continue
			}
			author = parts[0]
			if ts, err := strconv.ParseInt(parts[1], 10, 64); err == nil {
				when = time.Unix(ts, 0)
			}
			seen = make(map[string]bool)
			continue
		}

		// numstat line: <added>\t<removed>\t<path>
		fields := strings.SplitN(line, "\t", 3)
		if len(fields) != 3 {
			continue
		}

		path := normalizeRename(fields[2])

		fc, ok := churn[path]
		if !ok {
			fc = &FileChurn{Path: path, Authors: make(map[string]struct{})}
			churn[path] = fc
		}

		// Binary files report "-" counts; count the commit, skip the lines.
		if added, err := strconv.Atoi(fields[0]); err == nil {
			fc.LinesAdded += added
		}
		if removed, err := strconv.Atoi(fields[1]); err == nil {
			fc.LinesRemoved += removed
		}

		if !seen[path] {
			fc.Commits++
			seen[path] = true
		}
		if author != "" {
			fc.Authors[author] = struct{}{}
		}
		if when.After(fc.LastChange) {
			fc.LastChange = when
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parsing git log output: %w", err)
	}

	return churn, nil
}

// normalizeRename resolves git's rename notation ("old => new" and
// "dir/{old => new}/file") to the new path.
func normalizeRename(path string) string {
	if !strings.Contains(path, "=>") {
		return path
	}

	if open := strings.Index(path, "{"); open >= 0 {
		if close := strings.Index(path, "}"); close > open {
			segment := path[open+1 : close]
			parts := strings.SplitN(segment, " => ", 2)
			if len(parts) == 2 {
				replaced := path[:open] + parts[1] + path[close+1:]
				return strings.ReplaceAll(replaced, "//", "/")
			}
		}
	}

	parts := strings.SplitN(path, " => ", 2)
	if len(parts) == 2 {
		return parts[1]
	}
	return path
}
