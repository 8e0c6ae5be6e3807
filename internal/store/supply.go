package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rcliao/stash-manager/internal/model"
	"github.com/rcliao/stash-manager/internal/valuation"
)

func (s *SQLiteStore) PutSupply(ctx context.Context, p PutSupplyParams) (*model.SupplyEntry, error) {
	if p.TraderID == "" || p.KindID == "" {
		return nil, fmt.Errorf("trader id and kind id are required")
	}
	if err := validPrice(p.Price); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO supply (trader_id, kind_id, price, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(trader_id, kind_id) DO UPDATE SET price = excluded.price, updated_at = excluded.updated_at`,
		p.TraderID, p.KindID, p.Price, now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("upsert supply: %w", err)
	}
	return &model.SupplyEntry{TraderID: p.TraderID, KindID: p.KindID, Price: p.Price, UpdatedAt: now}, nil
}

func (s *SQLiteStore) GetSupply(ctx context.Context, traderID string) ([]model.SupplyEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT trader_id, kind_id, price, updated_at FROM supply WHERE trader_id = ? ORDER BY kind_id`,
		traderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SupplyEntry
	for rows.Next() {
		var e model.SupplyEntry
		var updatedAt string
		if err := rows.Scan(&e.TraderID, &e.KindID, &e.Price, &updatedAt); err != nil {
			return nil, err
		}
		e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// FetchPrice returns the latest recorded price for a kind, or
// valuation.ErrNoData when none exists.
func (s *SQLiteStore) FetchPrice(ctx context.Context, kindID string) (float64, error) {
	obs, err := s.GetPrice(ctx, GetPriceParams{KindID: kindID})
	if errors.Is(err, ErrNotFound) {
		return 0, fmt.Errorf("%s: %w", kindID, valuation.ErrNoData)
	}
	if err != nil {
		return 0, err
	}
	return obs[0].Price, nil
}

// FetchSupplyData returns a trader's stored prices. A trader with no rows
// yields valuation.ErrNoData.
func (s *SQLiteStore) FetchSupplyData(ctx context.Context, traderID string) (valuation.SupplyData, error) {
	entries, err := s.GetSupply(ctx, traderID)
	if err != nil {
		return valuation.SupplyData{}, err
	}
	if len(entries) == 0 {
		return valuation.SupplyData{}, fmt.Errorf("trader %s: %w", traderID, valuation.ErrNoData)
	}

	data := valuation.SupplyData{TraderID: traderID, Prices: make(map[string]float64, len(entries))}
	for _, e := range entries {
		data.Prices[e.KindID] = e.Price
		if e.UpdatedAt.After(data.FetchedAt) {
			data.FetchedAt = e.UpdatedAt
		}
	}
	return data, nil
}
