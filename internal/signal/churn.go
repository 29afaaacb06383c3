package signal

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cadencehq/foresight/internal/config"
	"github.com/cadencehq/foresight/internal/gitstats"
)

// ChurnProvider scores files by their recent change history: commit
// frequency, contributor spread, and changed-lines volume relative to
// current file size. Requires a git repository.
type ChurnProvider struct {
	git *gitstats.Git
	cfg config.ChurnConfig
}

// NewChurnProvider creates a churn provider. A nil git handle (git not
// installed) makes the provider permanently unavailable.
func NewChurnProvider(git *gitstats.Git, cfg config.ChurnConfig) *ChurnProvider {
	return &ChurnProvider{git: git, cfg: cfg}
}

func (p *ChurnProvider) Name() string    { return "churn" }
func (p *ChurnProvider) Weight() float64 { return 1.0 }

// Available reports whether the project root is inside a git work tree.
func (p *ChurnProvider) Available(ctx context.Context, projectRoot string) bool {
	return p.git != nil && p.git.IsRepository(ctx, projectRoot)
}

// Collect scores the project's changed files over the churn window.
func (p *ChurnProvider) Collect(ctx context.Context, projectRoot string, files []string) (*Result, error) {
	signals, err := p.FileSignals(ctx, projectRoot, files)
	if err != nil {
		return nil, err
	}

	score := 100.0
	var totalCommits float64
	if len(signals) > 0 {
		var sum float64
		for _, s := range signals {
			sum += s.Score
			totalCommits += s.Metrics["commits"]
		}
		score = sum / float64(len(signals))
	}

	return &Result{
		ProviderID: p.Name(),
		Timestamp:  time.Now(),
		Score:      score,
		Confidence: 0.9,
		Weight:     p.Weight(),
		Data: map[string]float64{
			"files_changed": float64(len(signals)),
			"total_commits": totalCommits,
			"window_days":   float64(p.cfg.WindowDays),
		},
	}, nil
}

// FileSignals scores each requested file by its churn. Files with no
// commits in the window score 100 with no flags: no history means
// healthy, not unknown.
func (p *ChurnProvider) FileSignals(ctx context.Context, projectRoot string, files []string) ([]FileSignal, error) {
	churn, err := p.git.Churn(ctx, projectRoot, p.cfg.WindowDays)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		files = make([]string, 0, len(churn))
		for path := range churn {
			files = append(files, path)
		}
	}

	signals := make([]FileSignal, 0, len(files))
	for _, file := range files {
		fc, ok := churn[file]
		if !ok {
			signals = append(signals, FileSignal{
				Path:    file,
				Score:   100,
				Metrics: map[string]float64{"commits": 0},
			})
			continue
		}
		signals = append(signals, p.scoreFile(projectRoot, file, fc))
	}
	return signals, nil
}

func (p *ChurnProvider) scoreFile(projectRoot, path string, fc *gitstats.FileChurn) FileSignal {
	score := 100.0
	var flags []string

	switch {
	case fc.Commits > p.cfg.CommitsCrit:
		score -= p.cfg.CritPenalty
		flags = append(flags, "high-commit-frequency")
	case fc.Commits > p.cfg.CommitsWarn:
		score -= p.cfg.WarnPenalty
		flags = append(flags, "frequent-changes")
	}

	if fc.AuthorCount() > p.cfg.AuthorsWarn {
		score -= p.cfg.WarnPenalty
		flags = append(flags, "many-contributors")
	}

	ratio := churnRatio(projectRoot, path, fc)
	switch {
	case ratio > p.cfg.RatioCrit:
		score -= p.cfg.CritPenalty
		flags = append(flags, "high-churn-ratio")
	case ratio > p.cfg.RatioWarn:
		score -= p.cfg.WarnPenalty
		flags = append(flags, "elevated-churn-ratio")
	}

	if score < 0 {
		score = 0
	}

	return FileSignal{
		Path:  path,
		Score: score,
		Metrics: map[string]float64{
			"commits":       float64(fc.Commits),
			"authors":       float64(fc.AuthorCount()),
			"lines_added":   float64(fc.LinesAdded),
			"lines_removed": float64(fc.LinesRemoved),
			"churn_ratio":   ratio,
		},
		Flags: flags,
	}
}

// churnRatio compares changed lines against the file's current size.
// Deleted or unreadable files get ratio 0 rather than an error.
func churnRatio(projectRoot, path string, fc *gitstats.FileChurn) float64 {
	content, err := os.ReadFile(filepath.Join(projectRoot, path))
	if err != nil {
		return 0
	}
	currentLines := strings.Count(string(content), "\n") + 1
	if currentLines == 0 {
		return 0
	}
	return float64(fc.LinesAdded+fc.LinesRemoved) / float64(currentLines)
}
