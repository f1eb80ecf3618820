package model

import "time"

// WatchEntry is a monitored symbol.
type WatchEntry struct {
	Symbol string       `json:"symbol"`
	Name   string       `json:"name"`
	Market Market       `json:"market"`
	Stats  *SigmaStats  `json:"stats,omitempty"`
	Series *PriceSeries `json:"-"`
}

// AlertState is the last notification sent for a symbol.
type AlertState struct {
	Price  float64   `json:"price"`
	Tier   Tier      `json:"tier"`
	SentAt time.Time `json:"sent_at"`
}
