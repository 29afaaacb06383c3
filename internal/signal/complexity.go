package signal

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/mod/modfile"

	"github.com/cadencehq/foresight/internal/config"
)

// sourceExtensions are the file types the complexity provider scores.
var sourceExtensions = map[string]bool{
	".go": true, ".js": true, ".jsx": true, ".ts": true, ".tsx": true,
	".py": true, ".rb": true, ".java": true, ".c": true, ".cc": true,
	".cpp": true, ".h": true, ".rs": true, ".kt": true, ".swift": true,
}

// skipDirs are directories never walked for source files.
var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, "dist": true,
	"build": true, ".foresight": true,
}

// branchKeywords approximate cyclomatic complexity by counting
// control-flow keywords across languages.
var branchKeywords = regexp.MustCompile(`\b(if|else|for|while|switch|case|catch|except|elif|when)\b`)

// importLine matches the common import/include forms across languages.
var importLine = regexp.MustCompile(`^\s*(import\s|from\s+\S+\s+import\s|#include\s|require\s*\(|const\s+\S+\s*=\s*require\s*\()`)

// ComplexityProvider scores files from static structure: length,
// control-flow keyword count, import count, and brace nesting depth. It
// needs no history, so its confidence is constant.
type ComplexityProvider struct {
	cfg config.ComplexityConfig
}

// NewComplexityProvider creates a complexity provider with the given
// thresholds.
func NewComplexityProvider(cfg config.ComplexityConfig) *ComplexityProvider {
	return &ComplexityProvider{cfg: cfg}
}

func (p *ComplexityProvider) Name() string    { return "complexity" }
func (p *ComplexityProvider) Weight() float64 { return 1.0 }

// Available always reports true: static analysis needs only the files.
func (p *ComplexityProvider) Available(ctx context.Context, projectRoot string) bool {
	return true
}

// Collect scores the project's source files and summarizes them. The
// go.mod dependency surface, when present, is reported as a metric so
// the dependency footprint shows up in snapshots.
func (p *ComplexityProvider) Collect(ctx context.Context, projectRoot string, files []string) (*Result, error) {
	signals, err := p.FileSignals(ctx, projectRoot, files)
	if err != nil {
		return nil, err
	}

	data := map[string]float64{
		"files_analyzed": float64(len(signals)),
	}
	score := 100.0
	if len(signals) > 0 {
		var sum float64
		for _, s := range signals {
			sum += s.Score
		}
		score = sum / float64(len(signals))
	}
	if deps := moduleDependencyCount(projectRoot); deps >= 0 {
		data["module_dependencies"] = float64(deps)
	}

	return &Result{
		ProviderID: p.Name(),
		Timestamp:  time.Now(),
		Score:      score,
		Confidence: 0.8,
		Weight:     p.Weight(),
		Data:       data,
	}, nil
}

// FileSignals scores each file against the configured thresholds. Files
// that cannot be read are skipped rather than failing the run.
func (p *ComplexityProvider) FileSignals(ctx context.Context, projectRoot string, files []string) ([]FileSignal, error) {
	if len(files) == 0 {
		files = discoverSourceFiles(projectRoot)
	}

	signals := make([]FileSignal, 0, len(files))
	for _, file := range files {
		if ctx.Err() != nil {
			return signals, ctx.Err()
		}
		content, err := os.ReadFile(filepath.Join(projectRoot, file))
		if err != nil {
			continue
		}
		signals = append(signals, p.scoreFile(file, string(content)))
	}
	return signals, nil
}

func (p *ComplexityProvider) scoreFile(path, content string) FileSignal {
	lines := strings.Count(content, "\n") + 1
	branches := len(branchKeywords.FindAllString(content, -1))
	imports := countImports(content)
	nesting := maxBraceDepth(content)

	score := 100.0
	var flags []string

	switch {
	case lines > p.cfg.LinesCrit:
		score -= p.cfg.CritPenalty
		flags = append(flags, "very-long-file")
	case lines > p.cfg.LinesWarn:
		score -= p.cfg.WarnPenalty
		flags = append(flags, "long-file")
	}

	switch {
	case branches > p.cfg.BranchesCrit:
		score -= p.cfg.CritPenalty
		flags = append(flags, "high-complexity")
	case branches > p.cfg.BranchesWarn:
		score -= p.cfg.WarnPenalty
		flags = append(flags, "moderate-complexity")
	}

	if imports > p.cfg.ImportsWarn {
		score -= p.cfg.WarnPenalty
		flags = append(flags, "many-dependencies")
	}
	if nesting > p.cfg.NestingWarn {
		score -= p.cfg.WarnPenalty
		flags = append(flags, "deep-nesting")
	}

	if score < 0 {
		score = 0
	}

	return FileSignal{
		Path:  path,
		Score: score,
		Metrics: map[string]float64{
			"lines":    float64(lines),
			"branches": float64(branches),
			"imports":  float64(imports),
			"nesting":  float64(nesting),
		},
		Flags: flags,
	}
}

func countImports(content string) int {
	count := 0
	inBlock := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		// Go-style grouped imports count one per line inside the block.
		if strings.HasPrefix(trimmed, "import (") {
			inBlock = true
			continue
		}
		if inBlock {
			if trimmed == ")" {
				inBlock = false
			} else if trimmed != "" && !strings.HasPrefix(trimmed, "//") {
				count++
			}
			continue
		}
		if importLine.MatchString(line) {
			count++
		}
	}
	return count
}

func maxBraceDepth(content string) int {
	depth, max := 0, 0
	for _, r := range content {
		switch r {
		case '{':
			depth++
			if depth > max {
				max = depth
			}
		case '}':
			if depth > 0 {
				depth--
			}
		}
	}
	return max
}

// discoverSourceFiles walks the project for scoreable files, returning
// paths relative to the root.
func discoverSourceFiles(projectRoot string) []string {
	var files []string
	_ = filepath.WalkDir(projectRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !sourceExtensions[filepath.Ext(d.Name())] {
			return nil
		}
		if rel, err := filepath.Rel(projectRoot, path); err == nil {
			files = append(files, rel)
		}
		return nil
	})
	return files
}

// moduleDependencyCount parses go.mod and counts direct requirements.
// Returns -1 when the project has no parseable go.mod.
func moduleDependencyCount(projectRoot string) int {
	data, err := os.ReadFile(filepath.Join(projectRoot, "go.mod"))
	if err != nil {
		return -1
	}
	mf, err := modfile.Parse("go.mod", data, nil)
	if err != nil {
		return -1
	}
	count := 0
	for _, req := range mf.Require {
		if !req.Indirect {
			count++
		}
	}
	return count
}
