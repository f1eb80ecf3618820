package recorder

import (
	"time"

	"DipSentinel/internal/model"
)

// AlertEvent is one notification that went out.
type AlertEvent struct {
	ID        string       `json:"id"`
	Timestamp time.Time    `json:"timestamp"`
	Symbol    string       `json:"symbol"`
	Market    model.Market `json:"market"`
	Price     float64      `json:"price"`
	Change    float64      `json:"change_pct"`
	Tier      model.Tier   `json:"tier"`
	Threshold float64      `json:"threshold_pct"`
}

// BacktestRun holds the results of one suite evaluation.
type BacktestRun struct {
	ID        string
	Timestamp time.Time
	Symbol    string
	Market    model.Market
	Results   []*model.BacktestResult
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordAlert(evt *AlertEvent) error
	RecordBacktest(run *BacktestRun) error
	RecentAlerts(limit int) ([]AlertEvent, error)
	Close() error
}
