package factory

// Counters are an agent's run counters. SuccessRate is always derived.
type Counters struct {
	SuccessRuns int
	FailedRuns  int
}

// Total is the number of runs with a recorded outcome.
func (c Counters) Total() int { return c.SuccessRuns + c.FailedRuns }

// SuccessRate is SuccessRuns/Total, or 0 with no runs.
func (c Counters) SuccessRate() float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	return float64(c.SuccessRuns) / float64(total)
}

// Record folds one outcome into the counters.
func (c Counters) Record(o Outcome) Counters {
	if o == OutcomeSuccess {
		c.SuccessRuns++
	} else {
		c.FailedRuns++
	}
	return c
}
