package orchestrator

// ComputePCS computes the Per-Component Score for one asset: the weighted
// sum of each present domain's latest score. A domain absent from scores
// (no client registered, or Quality marked it stale and Decision excluded
// it) contributes nothing — weights are not renormalized over the
// remaining domains: a plain weighted sum, not renormalized over whatever
// domains happen to be present.
func ComputePCS(weights WeightVector, scores map[Domain][]SignalScore) float64 {
	var pcs float64
	for domain, domainScores := range scores {
		latest, ok := latestOf(domainScores)
		if !ok {
			continue
		}
		pcs += weights[domain] * latest.Score
	}
	if pcs < 0 {
		return 0
	}
	if pcs > 1 {
		return 1
	}
	return pcs
}
