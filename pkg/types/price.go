package types

import "time"

// PriceProviderInfo provides metadata about a day-ahead price provider.
type PriceProviderInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	BiddingZone string `json:"biddingZone,omitempty"`
	Configured  bool   `json:"configured"`
}

// Price represents the day-ahead cost of electricity in a time interval.
type Price struct {
	Provider string    `json:"provider"`
	TSStart  time.Time `json:"tsStart"`
	TSEnd    time.Time `json:"tsEnd"`

	// EURPerKWH is the wholesale day-ahead price in the interval.
	EURPerKWH float64 `json:"eurPerKWH"`

	SampleCount int `json:"-"`
}
