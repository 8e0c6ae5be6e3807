package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rcliao/stash-manager/internal/model"
)

// Export is the portable form of a price book.
type Export struct {
	Prices []model.PriceObservation `json:"prices"`
	Supply []model.SupplyEntry      `json:"supply,omitempty"`
}

// ExportAll returns all non-deleted observations in version order and every
// supply row.
func (s *SQLiteStore) ExportAll(ctx context.Context) (*Export, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+priceColumns+` FROM prices WHERE deleted_at IS NULL ORDER BY kind_id, version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ex := &Export{}
	for rows.Next() {
		o, err := scanPrice(rows)
		if err != nil {
			return nil, err
		}
		ex.Prices = append(ex.Prices, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	traders, err := s.db.QueryContext(ctx, `SELECT DISTINCT trader_id FROM supply ORDER BY trader_id`)
	if err != nil {
		return nil, err
	}
	var ids []string
	for traders.Next() {
		var id string
		if err := traders.Scan(&id); err != nil {
			traders.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	traders.Close()

	for _, id := range ids {
		entries, err := s.GetSupply(ctx, id)
		if err != nil {
			return nil, err
		}
		ex.Supply = append(ex.Supply, entries...)
	}
	return ex, nil
}

// Import stores observations and supply rows from an export. Observations
// keep their id and version; ids already present are skipped. Observations
// without an id are recorded as new versions. Returns the number of rows written.
func (s *SQLiteStore) Import(ctx context.Context, ex *Export) (int, error) {
	imported := 0
	for _, o := range ex.Prices {
		source := o.Source
		if !model.ValidSources[source] {
			source = "import"
		}
		if o.ID == "" || o.Version < 1 {
			if _, err := s.PutPrice(ctx, PutPriceParams{KindID: o.KindID, Price: o.Price, Source: source}); err != nil {
				return imported, err
			}
			imported++
			continue
		}
		if err := validPrice(o.Price); err != nil {
			return imported, fmt.Errorf("%s: %w", o.ID, err)
		}

		observedAt := o.ObservedAt
		if observedAt.IsZero() {
			observedAt = time.Now()
		}
		var supersedes *string
		if o.Supersedes != "" {
			supersedes = &o.Supersedes
		}
		res, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO prices (id, kind_id, price, source, version, supersedes, observed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			o.ID, o.KindID, o.Price, source, o.Version, supersedes, observedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return imported, fmt.Errorf("import %s: %w", o.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			imported++
		}
	}
	for _, e := range ex.Supply {
		if _, err := s.PutSupply(ctx, PutSupplyParams{TraderID: e.TraderID, KindID: e.KindID, Price: e.Price}); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}
