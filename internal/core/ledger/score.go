package ledger

import (
	"math/rand/v2"
	"sync"

	"github.com/shopspring/decimal"
)

// Scorer derives a credit score from a credit limit. The ledger calls it
// exactly once per customer, when the first credit account is attached.
type Scorer func(limit decimal.Decimal) int

// scoreBuckets maps inclusive credit-limit ranges to score ranges. Limits
// below 100 or above 25000 score 0.
var scoreBuckets = []struct {
	loLimit, hiLimit int64
	loScore, hiScore int
}{
	{100, 699, 0, 580},
	{700, 4999, 581, 669},
	{5000, 7499, 670, 739},
	{7500, 15999, 740, 799},
	{16000, 25000, 800, 850},
}

// NewScorer returns a Scorer drawing uniformly from the bucket matching the
// limit. The source is injected so tests can seed it.
func NewScorer(rng *rand.Rand) Scorer {
	var mu sync.Mutex
	return func(limit decimal.Decimal) int {
		for _, b := range scoreBuckets {
			lo := decimal.NewFromInt(b.loLimit)
			hi := decimal.NewFromInt(b.hiLimit)
			if limit.GreaterThanOrEqual(lo) && limit.LessThanOrEqual(hi) {
				mu.Lock()
				defer mu.Unlock()
				return b.loScore + rng.IntN(b.hiScore-b.loScore+1)
			}
		}
		return 0
	}
}

// DefaultScorer is a Scorer over an unpredictably seeded source, for
// production onboarding.
func DefaultScorer() Scorer {
	return NewScorer(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
}
