package action

import (
	"strings"

	"github.com/cadencehq/foresight/internal/types"
)

// fixTemplate is one built-in remediation recipe, selected by flag.
type fixTemplate struct {
	flag        string
	title       string
	requirement string
	risk        types.RiskLevel
	priority    int
}

// builtinTemplates is the template library in priority order: the first
// template whose flag is present on the prediction wins.
var builtinTemplates = []fixTemplate{
	{
		flag:  "frequent-failures",
		title: "Stabilize failure-prone file",
		requirement: "The file {file} has a history of failed automated changes. " +
			"Review its structure, add missing test coverage around its current behavior, " +
			"and refactor the sections most involved in past failures. Do not change external behavior.",
		risk:     types.RiskHigh,
		priority: 1,
	},
	{
		flag:  "regression-prone",
		title: "Guard regression-prone file",
		requirement: "Changes to {file} have repeatedly introduced regressions. " +
			"Add characterization tests that pin down its current behavior, then refactor " +
			"its most fragile sections behind stable interfaces.",
		risk:     types.RiskHigh,
		priority: 1,
	},
	{
		flag:  "very-long-file",
		title: "Split oversized file",
		requirement: "The file {file} has grown past the maintainable size threshold. " +
			"Split it into smaller, focused files grouped by responsibility. " +
			"Preserve the public API and keep all tests passing.",
		risk:     types.RiskMedium,
		priority: 2,
	},
	{
		flag:  "high-complexity",
		title: "Reduce structural complexity",
		requirement: "The file {file} has excessive branching complexity. " +
			"Simplify the deepest conditional chains with early returns and extract " +
			"repeated logic into named helpers. Do not change external behavior.",
		risk:     types.RiskMedium,
		priority: 2,
	},
	{
		flag:  "deep-nesting",
		title: "Flatten deeply nested code",
		requirement: "The file {file} contains deeply nested blocks. " +
			"Flatten the innermost levels by extracting helpers and inverting conditions. " +
			"Preserve behavior exactly.",
		risk:     types.RiskLow,
		priority: 3,
	},
	{
		flag:  "many-dependencies",
		title: "Trim dependency fan-out",
		requirement: "The file {file} imports an unusually large number of modules. " +
			"Remove unused imports and consolidate related ones behind a narrower interface.",
		risk:     types.RiskLow,
		priority: 3,
	},
	{
		flag:  "high-commit-frequency",
		title: "Stabilize high-churn file",
		requirement: "The file {file} is changing unusually often. " +
			"Identify the cause of the churn and extract the volatile parts so the " +
			"stable core stops being touched on every change.",
		risk:     types.RiskMedium,
		priority: 3,
	},
}

// complexityFallback is used for high/critical predictions that matched
// no flag-specific template.
var complexityFallback = fixTemplate{
	flag:  "",
	title: "Improve file health",
	requirement: "The file {file} is scoring poorly across quality signals. " +
		"Review it for oversized functions, duplicated logic, and missing tests, " +
		"and apply the smallest refactoring that improves its structure.",
	risk:     types.RiskMedium,
	priority: 2,
}

// selectTemplate picks the highest-priority template matching any of the
// prediction's flags, the complexity fallback for severe predictions, or
// nil when the prediction should be skipped.
func selectTemplate(p *types.Prediction) *fixTemplate {
	flagged := make(map[string]bool, len(p.Flags))
	for _, f := range p.Flags {
		flagged[f] = true
	}
	for i := range builtinTemplates {
		if flagged[builtinTemplates[i].flag] {
			return &builtinTemplates[i]
		}
	}
	if p.Severity == types.SeverityHigh || p.Severity == types.SeverityCritical {
		return &complexityFallback
	}
	return nil
}

// renderTemplate substitutes the target file into a requirement template.
func renderTemplate(template, file string) string {
	return strings.ReplaceAll(template, "{file}", file)
}
