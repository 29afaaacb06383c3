package types

// FileOutcomeStats aggregates past execution results touching one file.
// Used by the historical signal provider.
type FileOutcomeStats struct {
	Executions  int `json:"executions"`
	Failures    int `json:"failures"`
	Regressions int `json:"regressions"`
}

// FailureRate returns the fraction of executions that failed.
func (s FileOutcomeStats) FailureRate() float64 {
	if s.Executions == 0 {
		return 0
	}
	return float64(s.Failures) / float64(s.Executions)
}

// RegressionRate returns the fraction of executions that regressed health.
func (s FileOutcomeStats) RegressionRate() float64 {
	if s.Executions == 0 {
		return 0
	}
	return float64(s.Regressions) / float64(s.Executions)
}

// PatternCounterDeltas is one increment applied to a pattern's feedback
// counters. Fields are deltas, usually 0 or 1.
type PatternCounterDeltas struct {
	TruePositives      int
	FalsePositives     int
	UserOverrides      int
	AutoFixesAttempted int
	AutoFixSuccesses   int
}
