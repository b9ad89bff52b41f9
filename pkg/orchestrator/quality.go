package orchestrator

import "time"

// latestOf returns the most recently timestamped score in scores, or false
// if scores is empty.
func latestOf(scores []SignalScore) (SignalScore, bool) {
	var latest SignalScore
	found := false
	for _, s := range scores {
		if !found || s.Timestamp.After(latest.Timestamp) {
			latest = s
			found = true
		}
	}
	return latest, found
}

// CheckStaleness evaluates one asset/domain pair against the freshness
// window and the domain's running consecutive-failure count, returning the
// ProducerHealth record Quality should emit and whether the domain is
// unhealthy (stale or over the failure bound) this cycle.
func CheckStaleness(asset Asset, domain Domain, scores []SignalScore, now time.Time, window time.Duration, consecutiveFailures, failureBound int) (ProducerHealth, bool) {
	h := ProducerHealth{
		Domain:              domain,
		Asset:               asset,
		ConsecutiveFailures: consecutiveFailures,
		ObservedAt:          now,
	}

	latest, found := latestOf(scores)
	if !found {
		h.Stale = true
		h.AgeSeconds = window.Seconds() + 1 // sentinel: older than the window by construction
		return h, true
	}

	age := now.Sub(latest.Timestamp)
	h.AgeSeconds = age.Seconds()
	h.Stale = age > window

	return h, h.Stale || consecutiveFailures > failureBound
}
