package predict

import (
	"fmt"
	"strings"

	"github.com/cadencehq/foresight/internal/types"
)

type predictionText struct {
	title            string
	description      string
	suggestedAction  string
	microRefactoring string
}

var typePhrase = map[types.PredictionType]string{
	types.PredictionEmerging:     "is showing early warning signs",
	types.PredictionAccelerating: "is degrading faster each cycle",
	types.PredictionImminent:     "is likely to cause problems soon",
	types.PredictionExists:       "already has quality issues",
}

// buildText generates the human-facing text for a prediction from which
// signal families are weak and which provider flags fired.
func buildText(file string, predType types.PredictionType, weak []string, flags []string) predictionText {
	base := filepathBase(file)
	flagged := make(map[string]bool, len(flags))
	for _, f := range flags {
		flagged[f] = true
	}
	weakSet := make(map[string]bool, len(weak))
	for _, w := range weak {
		weakSet[w] = true
	}

	var text predictionText
	switch {
	case weakSet["historical"]:
		text.title = fmt.Sprintf("%s has a poor execution track record", base)
		text.description = fmt.Sprintf("Past automated changes to %s failed or regressed more often than normal, and its current signals suggest the underlying problem persists.", file)
		text.suggestedAction = "Review recent failed changes to this file and address the root cause before attempting further automated fixes."
	case weakSet["complexity"] && weakSet["churn"]:
		text.title = fmt.Sprintf("%s is complex and changing rapidly", base)
		text.description = fmt.Sprintf("%s combines high structural complexity with frequent recent changes, a combination that tends to produce defects.", file)
		text.suggestedAction = "Refactor the most complex sections before the next feature change lands."
	case weakSet["complexity"]:
		text.title = fmt.Sprintf("%s is becoming hard to maintain", base)
		text.description = fmt.Sprintf("Structural complexity in %s has crossed the configured thresholds.", file)
		text.suggestedAction = "Break the file into smaller, focused units."
	case weakSet["churn"]:
		text.title = fmt.Sprintf("%s is changing unusually often", base)
		text.description = fmt.Sprintf("%s has seen a burst of recent changes, which usually signals unstable requirements or a design under strain.", file)
		text.suggestedAction = "Stabilize the interface of this file and add tests around its current behavior."
	default:
		text.title = fmt.Sprintf("%s %s", base, typePhrase[predType])
		text.description = fmt.Sprintf("Combined signals for %s are trending below healthy levels.", file)
		text.suggestedAction = "Schedule a review of this file during the next maintenance pass."
	}

	text.microRefactoring = microRefactoring(flagged)
	return text
}

// microRefactoring picks the smallest useful step from the fired flags.
func microRefactoring(flags map[string]bool) string {
	switch {
	case flags["very-long-file"] || flags["long-file"]:
		return "Extract one cohesive group of functions into a new file."
	case flags["high-complexity"] || flags["moderate-complexity"]:
		return "Replace the deepest conditional chain with early returns."
	case flags["deep-nesting"]:
		return "Flatten the innermost nested block into a named helper."
	case flags["many-dependencies"]:
		return "Remove one unused or consolidate one duplicated import."
	default:
		return ""
	}
}

// matchesAnyFragment reports whether the file path contains any of the
// pattern's directory or extension fragments.
func matchesAnyFragment(file string, fragments []string) bool {
	for _, frag := range fragments {
		if frag == "" {
			continue
		}
		if strings.HasPrefix(frag, ".") {
			if strings.HasSuffix(file, frag) {
				return true
			}
			continue
		}
		if strings.Contains(file, frag) {
			return true
		}
	}
	return false
}

func filepathBase(path string) string {
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
