package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath            string        `json:"db_path"`
	DBSizeBytes       int64         `json:"db_size_bytes"`
	TotalObservations int           `json:"total_observations"`
	ActiveKinds       int           `json:"active_kinds"`
	SupplyEntries     int           `json:"supply_entries"`
	Traders           int           `json:"traders"`
	Sources           []SourceStats `json:"sources"`
}

// SourceStats holds per-source counts.
type SourceStats struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
	Kinds  int    `json:"kinds"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	// DB file size
	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM prices`).Scan(&st.TotalObservations)
	s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT kind_id) FROM prices WHERE deleted_at IS NULL`).Scan(&st.ActiveKinds)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(DISTINCT trader_id) FROM supply`).Scan(&st.SupplyEntries, &st.Traders)

	rows, err := s.db.QueryContext(ctx, `
		SELECT source, COUNT(*) AS cnt, COUNT(DISTINCT kind_id) AS kinds
		FROM prices WHERE deleted_at IS NULL
		GROUP BY source ORDER BY cnt DESC`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var src SourceStats
		rows.Scan(&src.Source, &src.Count, &src.Kinds)
		st.Sources = append(st.Sources, src)
	}

	return st, nil
}
