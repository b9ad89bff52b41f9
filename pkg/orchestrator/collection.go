package orchestrator

import "context"

// CollectSignals fetches every registered domain's signals for each asset
// through its ProducerClient. A domain with no registered client is simply
// absent from the result — Synthesis treats an absent domain the same way
// it treats a stale one: its weight contributes nothing to PCS this cycle.
func CollectSignals(ctx context.Context, clients map[Domain]ProducerClient, assets []Asset) (map[Asset]map[Domain][]SignalScore, error) {
	out := make(map[Asset]map[Domain][]SignalScore, len(assets))
	for _, asset := range assets {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		perDomain := make(map[Domain][]SignalScore, len(clients))
		for domain, client := range clients {
			scores, err := client.Fetch(ctx, domain, asset)
			if err != nil {
				// A single producer failing fetches is not fatal to the
				// cycle — Quality will see the resulting gap as staleness
				// and report it. Collection itself never aborts the cycle
				// over one domain's outage.
				continue
			}
			perDomain[domain] = scores
		}
		out[asset] = perDomain
	}
	return out, nil
}
