package model

import "time"

// PriceObservation is one recorded market price for an item kind.
type PriceObservation struct {
	ID         string    `json:"id"`
	KindID     string    `json:"kind_id"`
	Price      float64   `json:"price"`
	Source     string    `json:"source"`
	Version    int       `json:"version"`
	Supersedes string    `json:"supersedes,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

// SupplyEntry is the price a trader pays for one item kind.
type SupplyEntry struct {
	TraderID  string    `json:"trader_id"`
	KindID    string    `json:"kind_id"`
	Price     float64   `json:"price"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidSources are the allowed price observation sources.
var ValidSources = map[string]bool{
	"manual": true,
	"import": true,
	"feed":   true,
}
