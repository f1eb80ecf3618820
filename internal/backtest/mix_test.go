package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DipSentinel/internal/model"
)

func testSuite() *Suite {
	return &Suite{
		SigmaFull: &model.BacktestResult{Strategy: StrategySigmaFull, TotalReturn: 30},
		SigmaYear: &model.BacktestResult{Strategy: StrategySigmaYear, TotalReturn: -10},
		DCA:       &model.BacktestResult{Strategy: StrategyDCA, TotalReturn: 15},
	}
}

func TestMix_Blend(t *testing.T) {
	res, err := Mix(testSuite(), map[string]float64{
		StrategySigmaFull: 0.5,
		StrategySigmaYear: 0.2,
		StrategyDCA:       0.3,
	}, RebalanceQuarterly)
	require.NoError(t, err)

	assert.InDelta(t, 15-2+4.5, res.BlendedReturn, 1e-9)
	require.Len(t, res.Contributions, 3)
	assert.InDelta(t, 15.0, res.Contributions[0].Contribution, 1e-9)
	assert.InDelta(t, -2.0, res.Contributions[1].Contribution, 1e-9)
	assert.InDelta(t, -DrawdownMultiple*17.5, res.EstimatedDrawdown, 1e-9)
	assert.Equal(t, RebalanceQuarterly, res.Rebalance)
}

func TestMix_Tolerance(t *testing.T) {
	_, err := Mix(testSuite(), map[string]float64{StrategySigmaFull: 0.5, StrategyDCA: 0.495}, "")
	assert.NoError(t, err)

	_, err = Mix(testSuite(), map[string]float64{StrategySigmaFull: 0.5, StrategyDCA: 0.48}, "")
	assert.ErrorIs(t, err, ErrInvalidWeights)
}

func TestMix_RejectsBadWeights(t *testing.T) {
	_, err := Mix(testSuite(), map[string]float64{StrategySigmaFull: 1.2, StrategyDCA: -0.2}, "")
	assert.ErrorIs(t, err, ErrInvalidWeights)

	_, err = Mix(testSuite(), map[string]float64{"lottery": 1}, "")
	assert.ErrorIs(t, err, ErrInvalidWeights)
}

func TestParseRebalance(t *testing.T) {
	r, err := ParseRebalance("")
	require.NoError(t, err)
	assert.Equal(t, RebalanceNone, r)

	r, err = ParseRebalance("monthly")
	require.NoError(t, err)
	assert.Equal(t, RebalanceMonthly, r)

	_, err = ParseRebalance("weekly")
	assert.Error(t, err)
}
