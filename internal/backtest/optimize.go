package backtest

import (
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultSamples is the number of random weight vectors drawn.
const DefaultSamples = 5000

// StrategyInput is one strategy's realised return and volatility.
type StrategyInput struct {
	Name       string  `json:"name"`
	Return     float64 `json:"return"`
	Volatility float64 `json:"volatility"`
}

// Sample is one scored weight vector.
type Sample struct {
	Weights    []float64 `json:"weights"`
	Return     float64   `json:"return"`
	Volatility float64   `json:"volatility"`
	Score      float64   `json:"score"`
}

// OptimizeResult is the best sample of a search run. It is the best of a
// finite random sample, not a converged optimum.
type OptimizeResult struct {
	Strategies []string           `json:"strategies"`
	Weights    map[string]float64 `json:"weights"`
	Best       Sample             `json:"best"`
	Samples    int                `json:"samples"`
}

// ErrNoStrategies is returned when the search has nothing to weigh.
var ErrNoStrategies = errors.New("no strategies to optimize")

// NewSource returns a random source for Optimize; seed 0 uses the clock.
func NewSource(seed uint64) rand.Source {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}

// Optimize draws samples uniform weight vectors, normalises each to sum to
// one and keeps the one with the highest return/volatility ratio.
// Volatility ignores covariance: sqrt(sum(w_i^2 * vol_i^2)).
func Optimize(inputs []StrategyInput, samples int, src rand.Source) (*OptimizeResult, error) {
	return search(inputs, samples, src, nil)
}

func search(inputs []StrategyInput, samples int, src rand.Source, observe func(Sample)) (*OptimizeResult, error) {
	if len(inputs) == 0 {
		return nil, ErrNoStrategies
	}
	if samples <= 0 {
		samples = DefaultSamples
	}
	if src == nil {
		src = NewSource(0)
	}
	uniform := distuv.Uniform{Min: 0, Max: 1, Src: src}

	res := &OptimizeResult{Samples: samples, Weights: make(map[string]float64, len(inputs))}
	for _, in := range inputs {
		res.Strategies = append(res.Strategies, in.Name)
	}

	haveBest := false
	w := make([]float64, len(inputs))
	for i := 0; i < samples; i++ {
		for j := range w {
			w[j] = uniform.Rand()
		}
		sum := floats.Sum(w)
		if sum == 0 {
			continue
		}
		floats.Scale(1/sum, w)

		s := score(inputs, w)
		if observe != nil {
			observe(s)
		}
		if !haveBest || s.Score > res.Best.Score {
			res.Best = s
			haveBest = true
		}
	}
	for i, name := range res.Strategies {
		res.Weights[name] = res.Best.Weights[i]
	}
	return res, nil
}

func score(inputs []StrategyInput, w []float64) Sample {
	s := Sample{Weights: append([]float64(nil), w...)}
	var variance float64
	for i, in := range inputs {
		s.Return += w[i] * in.Return
		variance += w[i] * w[i] * in.Volatility * in.Volatility
	}
	s.Volatility = math.Sqrt(variance)
	if s.Volatility > 0 {
		s.Score = s.Return / s.Volatility
	}
	return s
}
