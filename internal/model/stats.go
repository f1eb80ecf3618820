package model

// SigmaLevels holds the mean/std of daily percentage returns and the three
// downside levels derived from them (mean - k*std).
type SigmaLevels struct {
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Sigma1 float64 `json:"sigma1"`
	Sigma2 float64 `json:"sigma2"`
	Sigma3 float64 `json:"sigma3"`
}

// SigmaStats is computed from one PriceSeries.
type SigmaStats struct {
	Full         SigmaLevels `json:"full"`
	Year         SigmaLevels `json:"year"`
	YearFallback bool        `json:"year_fallback"`
	Observations int         `json:"observations"`
	LastClose    float64     `json:"last_close"`
	LastChange   float64     `json:"last_change"`
}

// Levels returns the full-window or the trailing-year levels.
func (s *SigmaStats) Levels(window Window) SigmaLevels {
	if window == WindowYear {
		return s.Year
	}
	return s.Full
}

// Window picks which set of levels a caller compares against.
type Window string

const (
	WindowFull Window = "full"
	WindowYear Window = "year"
)
