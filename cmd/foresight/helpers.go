package main

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/cadencehq/foresight/internal/gitstats"
	"github.com/cadencehq/foresight/internal/predict"
	fsignal "github.com/cadencehq/foresight/internal/signal"
	"github.com/cadencehq/foresight/internal/types"
)

// buildAggregator wires the provider registry: static complexity, git
// churn, and execution history. A machine without git still observes,
// the churn provider just reports unavailable.
func buildAggregator() *fsignal.Aggregator {
	git, _ := gitstats.NewGit()

	providers := []fsignal.Provider{
		fsignal.NewComplexityProvider(cfg.Complexity),
		fsignal.NewChurnProvider(git, cfg.Churn),
		fsignal.NewHistoricalProvider(store, projectID, cfg.Historical),
	}
	return fsignal.NewAggregator(providers, cfg.Aggregator)
}

func newPredictEngine() *predict.Engine {
	return predict.NewEngine(cfg.Prediction)
}

func scoreColor(score float64) string {
	s := fmt.Sprintf("%.1f", score)
	switch {
	case score < 40:
		return color.New(color.FgRed, color.Bold).Sprint(s)
	case score < 70:
		return color.New(color.FgYellow).Sprint(s)
	default:
		return color.New(color.FgGreen).Sprint(s)
	}
}

func severityBadge(severity types.Severity) string {
	switch severity {
	case types.SeverityCritical:
		return color.New(color.FgRed, color.Bold).Sprint("[CRIT]")
	case types.SeverityHigh:
		return color.New(color.FgRed).Sprint("[HIGH]")
	case types.SeverityMedium:
		return color.New(color.FgYellow).Sprint("[MED ]")
	default:
		return color.New(color.FgHiBlack).Sprint("[LOW ]")
	}
}

func riskBadge(risk types.RiskLevel) string {
	switch risk {
	case types.RiskHigh:
		return color.New(color.FgRed).Sprint("high")
	case types.RiskMedium:
		return color.New(color.FgYellow).Sprint("medium")
	default:
		return color.New(color.FgGreen).Sprint("low")
	}
}
