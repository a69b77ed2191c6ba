package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quoteWith(carrier, service string, total float64, minutes int) Quote {
	return Quote{
		CarrierID:   carrier,
		ServiceCode: service,
		Cost:        CostBreakdown{Total: total},
		Timeframe:   Timeframe{EstimatedMinutes: minutes},
	}
}

func TestRank_CheapAndFastWins(t *testing.T) {
	quotes := []Quote{
		quoteWith("slow-cheap", "ECO", 10000, 4320),
		quoteWith("fast-pricey", "INS", 50000, 90),
		quoteWith("balanced", "REG", 15000, 1440),
	}

	ranked := Rank(quotes, DefaultRankingPolicy)

	require.Len(t, ranked, 3)
	// The cheapest option carries full cost weight; with 0.6/0.4 it edges out
	// the fast expensive one.
	assert.Equal(t, "slow-cheap", ranked[0].CarrierID)
	for _, q := range ranked {
		assert.Greater(t, q.Score, 0.0)
		assert.LessOrEqual(t, q.Score, 1.0)
	}
}

func TestRank_TimeWeightFlipsWinner(t *testing.T) {
	quotes := []Quote{
		quoteWith("slow-cheap", "ECO", 10000, 4320),
		quoteWith("fast-pricey", "INS", 50000, 90),
	}

	timeHeavy := RankingPolicy{CostWeight: 0.1, TimeWeight: 0.9}
	ranked := Rank(quotes, timeHeavy)

	assert.Equal(t, "fast-pricey", ranked[0].CarrierID)
}

// TestRank_Deterministic verifies ranking the same set twice yields the same
// order, with equal scores broken by carrier id.
func TestRank_Deterministic(t *testing.T) {
	build := func() []Quote {
		return []Quote{
			quoteWith("zeta", "A", 20000, 1000),
			quoteWith("alpha", "A", 20000, 1000),
			quoteWith("mid", "B", 20000, 1000),
		}
	}

	first := Rank(build(), DefaultRankingPolicy)
	second := Rank(build(), DefaultRankingPolicy)

	require.Equal(t, first, second)
	assert.Equal(t, "alpha", first[0].CarrierID)
	assert.Equal(t, "mid", first[1].CarrierID)
	assert.Equal(t, "zeta", first[2].CarrierID)
}

func TestRank_Empty(t *testing.T) {
	assert.Empty(t, Rank(nil, DefaultRankingPolicy))
}

func TestRank_SingleQuoteScoresFull(t *testing.T) {
	ranked := Rank([]Quote{quoteWith("only", "REG", 17000, 2880)}, DefaultRankingPolicy)

	require.Len(t, ranked, 1)
	assert.InDelta(t, 1.0, ranked[0].Score, 0.0001)
}
