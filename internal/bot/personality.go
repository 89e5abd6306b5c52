package bot

import (
	"fmt"
	"math/rand"

	"go.uber.org/zap/zapcore"
)

// Personality tunes how an Agent bluffs, doubts and blocks. Rates are
// probabilities in [0, 1].
type Personality struct {
	BluffRate          float64
	BaseDoubtRate      float64
	EarlyCautionFactor float64
	// EarlyGameThreshold is the number of revealed cards below which the
	// game counts as early and doubts are scaled by EarlyCautionFactor.
	EarlyGameThreshold int
	BlockWithCardRate  float64
	BlockBluffRate     float64
	CardCountingWeight float64
	Aggression         float64
}

// DefaultPersonality is a moderately cautious player.
func DefaultPersonality() Personality {
	return Personality{
		BluffRate:          0.20,
		BaseDoubtRate:      0.20,
		EarlyCautionFactor: 0.15,
		EarlyGameThreshold: 2,
		BlockWithCardRate:  0.90,
		BlockBluffRate:     0.10,
		CardCountingWeight: 0.50,
		Aggression:         0.50,
	}
}

// RandomPersonality draws every trait from its plausible range.
func RandomPersonality(rng *rand.Rand) Personality {
	uniform := func(lo, hi float64) float64 {
		return lo + rng.Float64()*(hi-lo)
	}
	return Personality{
		BluffRate:          uniform(0.05, 0.50),
		BaseDoubtRate:      uniform(0.05, 0.40),
		EarlyCautionFactor: uniform(0.05, 0.35),
		EarlyGameThreshold: 1 + rng.Intn(3),
		BlockWithCardRate:  uniform(0.70, 1.00),
		BlockBluffRate:     uniform(0.00, 0.25),
		CardCountingWeight: uniform(0.20, 0.80),
		Aggression:         uniform(0.10, 0.90),
	}
}

func (p Personality) String() string {
	return fmt.Sprintf("bluff=%.2f doubt=%.2f early_caution=%.2f@%d block=%.2f/%.2f counting=%.2f aggression=%.2f",
		p.BluffRate, p.BaseDoubtRate, p.EarlyCautionFactor, p.EarlyGameThreshold,
		p.BlockWithCardRate, p.BlockBluffRate, p.CardCountingWeight, p.Aggression)
}

// MarshalLogObject lets a personality be logged with zap.Object.
func (p Personality) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddFloat64("bluff_rate", p.BluffRate)
	enc.AddFloat64("base_doubt_rate", p.BaseDoubtRate)
	enc.AddFloat64("early_caution_factor", p.EarlyCautionFactor)
	enc.AddInt("early_game_threshold", p.EarlyGameThreshold)
	enc.AddFloat64("block_with_card_rate", p.BlockWithCardRate)
	enc.AddFloat64("block_bluff_rate", p.BlockBluffRate)
	enc.AddFloat64("card_counting_weight", p.CardCountingWeight)
	enc.AddFloat64("aggression", p.Aggression)
	return nil
}
