package model

import "time"

// Purchase is one simulated buy.
type Purchase struct {
	Date   time.Time `json:"date"`
	Price  float64   `json:"price"`
	Return float64   `json:"return"`
	Tier   Tier      `json:"tier"`
	Amount float64   `json:"amount"`
	Shares float64   `json:"shares"`
}

// BacktestResult aggregates one strategy over one window.
type BacktestResult struct {
	Strategy      string     `json:"strategy"`
	Window        string     `json:"window"`
	Start         time.Time  `json:"start"`
	End           time.Time  `json:"end"`
	Purchases     []Purchase `json:"purchases"`
	Count         int        `json:"count"`
	TotalInvested float64    `json:"total_invested"`
	Shares        float64    `json:"shares"`
	AverageCost   float64    `json:"average_cost"`
	LastPrice     float64    `json:"last_price"`
	CurrentValue  float64    `json:"current_value"`
	TotalReturn   float64    `json:"total_return_pct"`
	Volatility    float64    `json:"volatility"`
}
