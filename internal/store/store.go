// Package store provides the price book interface and SQLite implementation.
package store

import (
	"context"

	"github.com/rcliao/stash-manager/internal/model"
)

// PutPriceParams holds parameters for recording a price observation.
type PutPriceParams struct {
	KindID string
	Price  float64
	Source string
}

// GetPriceParams holds parameters for retrieving price observations.
type GetPriceParams struct {
	KindID  string
	History bool
	Version int // 0 means latest
}

// ListPriceParams holds parameters for listing the latest price per kind.
type ListPriceParams struct {
	Source string
	Limit  int
}

// RmPriceParams holds parameters for deleting price observations.
type RmPriceParams struct {
	KindID      string
	AllVersions bool
	Hard        bool
}

// PutSupplyParams holds parameters for recording what a trader pays.
type PutSupplyParams struct {
	TraderID string
	KindID   string
	Price    float64
}

// PriceBook defines the price storage interface.
type PriceBook interface {
	// PutPrice records a new observation, superseding the previous latest one.
	PutPrice(ctx context.Context, p PutPriceParams) (*model.PriceObservation, error)

	// GetPrice returns the latest observation, a specific version, or the
	// full history newest first.
	GetPrice(ctx context.Context, p GetPriceParams) ([]model.PriceObservation, error)

	// ListPrices returns the latest observation of every kind.
	ListPrices(ctx context.Context, p ListPriceParams) ([]model.PriceObservation, error)

	// RmPrice soft-deletes (or hard-deletes) observations for a kind.
	RmPrice(ctx context.Context, p RmPriceParams) error

	// PutSupply upserts one trader price.
	PutSupply(ctx context.Context, p PutSupplyParams) (*model.SupplyEntry, error)

	// GetSupply returns every price a trader pays, ordered by kind.
	GetSupply(ctx context.Context, traderID string) ([]model.SupplyEntry, error)

	// Close closes the store.
	Close() error
}
