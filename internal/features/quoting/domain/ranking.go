package domain

import "sort"

// RankingPolicy holds the cost/time weighting used to score quotes.
// The weights are tenant policy, injected from configuration.
type RankingPolicy struct {
	// CostWeight is applied to the normalized cost score.
	CostWeight float64
	// TimeWeight is applied to the normalized time score.
	TimeWeight float64
}

// DefaultRankingPolicy is the baseline 60/40 cost/time weighting.
var DefaultRankingPolicy = RankingPolicy{CostWeight: 0.6, TimeWeight: 0.4}

// Rank scores the quotes in place and returns them ordered best-first.
// Cost and time are normalized against the batch minimum (cheapest and
// fastest score 1.0) so neither axis dominates through unit scale. Ties are
// broken by carrier id then service code, keeping the order deterministic.
func Rank(quotes []Quote, policy RankingPolicy) []Quote {
	if len(quotes) == 0 {
		return quotes
	}

	minCost := quotes[0].Cost.Total
	minMinutes := quotes[0].Timeframe.EstimatedMinutes
	for _, q := range quotes[1:] {
		if q.Cost.Total < minCost {
			minCost = q.Cost.Total
		}
		if q.Timeframe.EstimatedMinutes < minMinutes {
			minMinutes = q.Timeframe.EstimatedMinutes
		}
	}

	for i := range quotes {
		costScore := 1.0
		if quotes[i].Cost.Total > 0 && minCost > 0 {
			costScore = minCost / quotes[i].Cost.Total
		}
		timeScore := 1.0
		if quotes[i].Timeframe.EstimatedMinutes > 0 && minMinutes > 0 {
			timeScore = float64(minMinutes) / float64(quotes[i].Timeframe.EstimatedMinutes)
		}
		quotes[i].Score = costScore*policy.CostWeight + timeScore*policy.TimeWeight
	}

	sort.SliceStable(quotes, func(i, j int) bool {
		if quotes[i].Score != quotes[j].Score {
			return quotes[i].Score > quotes[j].Score
		}
		if quotes[i].CarrierID != quotes[j].CarrierID {
			return quotes[i].CarrierID < quotes[j].CarrierID
		}
		return quotes[i].ServiceCode < quotes[j].ServiceCode
	})

	return quotes
}
