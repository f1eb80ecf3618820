package backtest

import (
	"errors"
	"fmt"
	"math"
)

// WeightTolerance is how far the weights may sum away from one.
const WeightTolerance = 0.01

// DrawdownMultiple scales the blended return into the rough drawdown figure.
const DrawdownMultiple = 0.3

// ErrInvalidWeights is returned when mix weights are negative or do not sum
// to one.
var ErrInvalidWeights = errors.New("invalid strategy weights")

// Rebalance is the frequency shown next to a mix. It does not change the
// arithmetic.
type Rebalance string

const (
	RebalanceNone      Rebalance = "none"
	RebalanceMonthly   Rebalance = "monthly"
	RebalanceQuarterly Rebalance = "quarterly"
	RebalanceYearly    Rebalance = "yearly"
)

// ParseRebalance accepts the four frequencies; empty means none.
func ParseRebalance(s string) (Rebalance, error) {
	switch r := Rebalance(s); r {
	case "":
		return RebalanceNone, nil
	case RebalanceNone, RebalanceMonthly, RebalanceQuarterly, RebalanceYearly:
		return r, nil
	}
	return "", fmt.Errorf("unknown rebalance frequency %q", s)
}

// Contribution is one strategy's share of the blended return.
type Contribution struct {
	Strategy     string  `json:"strategy"`
	Weight       float64 `json:"weight"`
	Return       float64 `json:"return"`
	Contribution float64 `json:"contribution"`
}

// MixResult describes a user-weighted blend of the strategies.
type MixResult struct {
	BlendedReturn     float64        `json:"blended_return"`
	Contributions     []Contribution `json:"contributions"`
	EstimatedDrawdown float64        `json:"estimated_drawdown"`
	Rebalance         Rebalance      `json:"rebalance"`
}

// Mix blends the suite's total returns with the given weights. Missing
// strategies count as weight zero.
func Mix(suite *Suite, weights map[string]float64, rebalance Rebalance) (*MixResult, error) {
	var sum float64
	for name, w := range weights {
		if suite.ByName(name) == nil {
			return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidWeights, name)
		}
		if w < 0 || math.IsNaN(w) {
			return nil, fmt.Errorf("%w: %s weight %.3f", ErrInvalidWeights, name, w)
		}
		sum += w
	}
	if math.Abs(sum-1) > WeightTolerance {
		return nil, fmt.Errorf("%w: weights sum to %.3f", ErrInvalidWeights, sum)
	}
	if rebalance == "" {
		rebalance = RebalanceNone
	}

	res := &MixResult{Rebalance: rebalance}
	for _, name := range StrategyOrder {
		r := suite.ByName(name)
		w := weights[name]
		c := Contribution{Strategy: name, Weight: w, Return: r.TotalReturn, Contribution: w * r.TotalReturn}
		res.Contributions = append(res.Contributions, c)
		res.BlendedReturn += c.Contribution
	}
	res.EstimatedDrawdown = -DrawdownMultiple * math.Abs(res.BlendedReturn)
	return res, nil
}
