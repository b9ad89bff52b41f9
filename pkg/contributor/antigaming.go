package contributor

import (
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"

	"github.com/P-U-C/b1e55ed/pkg/canonicalize"
)

// AntiGamingConfig tunes the checks Engine.SubmitSignal runs before a
// submission is ever appended to the log.
type AntiGamingConfig struct {
	// RateLimit and RateBurst bound how often one contributor may submit.
	RateLimit rate.Limit
	RateBurst int
	// DedupeWindow is how long a submitted payload's canonical hash is
	// remembered for cross-contributor duplicate detection.
	DedupeWindow time.Duration
	// DiversityWindow is how many of a contributor's most recent
	// submissions are considered when scoring signal-type diversity.
	DiversityWindow int
	// MinDistinctTypes is the number of distinct event types a
	// contributor should show across DiversityWindow submissions to avoid
	// a correlation penalty for low diversity.
	MinDistinctTypes int
}

// DefaultAntiGamingConfig is a reasonable starting point: one submission
// every two seconds with a burst of five, a ten-minute duplicate-payload
// window, and diversity measured over the last twenty submissions.
func DefaultAntiGamingConfig() AntiGamingConfig {
	return AntiGamingConfig{
		RateLimit:        rate.Every(2 * time.Second),
		RateBurst:        5,
		DedupeWindow:     10 * time.Minute,
		DiversityWindow:  20,
		MinDistinctTypes: 3,
	}
}

type dedupeEntry struct {
	contributorID string
	at            time.Time
}

// antiGaming tracks the mutable state Engine.SubmitSignal's checks need:
// a per-contributor rate limiter, a recent-payload-hash index for
// cross-contributor dedupe, and a per-contributor rolling window of
// recently-submitted event types for the diversity penalty.
type antiGaming struct {
	cfg AntiGamingConfig

	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	dedupe    map[string][]dedupeEntry // canonical payload hash -> recent submitters
	diversity map[string][]string      // contributor id -> recent event types, newest last
}

func newAntiGaming(cfg AntiGamingConfig) *antiGaming {
	return &antiGaming{
		cfg:       cfg,
		limiters:  make(map[string]*rate.Limiter),
		dedupe:    make(map[string][]dedupeEntry),
		diversity: make(map[string][]string),
	}
}

func (a *antiGaming) limiterFor(contributorID string) *rate.Limiter {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.limiters[contributorID]
	if !ok {
		l = rate.NewLimiter(a.cfg.RateLimit, a.cfg.RateBurst)
		a.limiters[contributorID] = l
	}
	return l
}

// allow reports whether contributorID may submit right now.
func (a *antiGaming) allow(contributorID string, now time.Time) bool {
	return a.limiterFor(contributorID).AllowN(now, 1)
}

// checkDuplicate canonicalizes payload and checks whether a different
// contributor submitted the same bytes within the dedupe window, then
// records this submission for future checks. Payload strings are run
// through Unicode NFC normalization first, so two payloads that render
// identically but were encoded with different combining-character
// sequences still hash to the same value; a contributor re-submitting a
// cloned signal with cosmetic Unicode substitutions does not evade the
// duplicate check.
func (a *antiGaming) checkDuplicate(contributorID string, payload interface{}, now time.Time) (bool, error) {
	hash, err := canonicalize.CanonicalHash(normalizeUnicode(payload))
	if err != nil {
		return false, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := now.Add(-a.cfg.DedupeWindow)
	fresh := a.dedupe[hash][:0]
	duplicate := false
	for _, entry := range a.dedupe[hash] {
		if entry.at.Before(cutoff) {
			continue
		}
		fresh = append(fresh, entry)
		if entry.contributorID != contributorID {
			duplicate = true
		}
	}
	fresh = append(fresh, dedupeEntry{contributorID: contributorID, at: now})
	a.dedupe[hash] = fresh

	return duplicate, nil
}

// recordType appends eventType to contributorID's rolling diversity
// window, trimming to DiversityWindow entries.
func (a *antiGaming) recordType(contributorID, eventType string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	hist := append(a.diversity[contributorID], eventType)
	if len(hist) > a.cfg.DiversityWindow {
		hist = hist[len(hist)-a.cfg.DiversityWindow:]
	}
	a.diversity[contributorID] = hist
}

// correlationPenalty derives a [0,1] scoring penalty from how little
// diversity a contributor's recent submissions show. A contributor
// submitting the same handful of event types over and over looks more
// like a cloned/rebroadcast signal source than an independent one.
func (a *antiGaming) correlationPenalty(contributorID string) float64 {
	a.mu.Lock()
	hist := a.diversity[contributorID]
	a.mu.Unlock()

	if len(hist) < a.cfg.MinDistinctTypes {
		return 0 // not enough history yet to penalize
	}
	seen := make(map[string]struct{})
	for _, t := range hist {
		seen[t] = struct{}{}
	}
	if len(seen) >= a.cfg.MinDistinctTypes {
		return 0
	}
	deficit := float64(a.cfg.MinDistinctTypes-len(seen)) / float64(a.cfg.MinDistinctTypes)
	return clamp01(deficit)
}

// normalizeUnicode walks payload and rewrites every string leaf to
// Unicode NFC normal form, leaving all other value types untouched.
// Only used ahead of dedupe hashing; the event's own canonical hash
// (the chain-integrity surface) is never passed through this.
func normalizeUnicode(payload interface{}) interface{} {
	switch v := payload.(type) {
	case string:
		return norm.NFC.String(v)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			out[norm.NFC.String(k)] = normalizeUnicode(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			out[i] = normalizeUnicode(val)
		}
		return out
	default:
		return v
	}
}
