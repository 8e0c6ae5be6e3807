package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/stash-manager/internal/model"
)

// ErrNotFound is returned when no live observation matches.
var ErrNotFound = errors.New("price not found")

// SQLiteStore implements PriceBook using SQLite.
type SQLiteStore struct {
	db *sql.DB

	entropyMu sync.Mutex
	entropy   *rand.Rand
}

var _ PriceBook = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS prices (
		id          TEXT PRIMARY KEY,
		kind_id     TEXT NOT NULL,
		price       REAL NOT NULL,
		source      TEXT NOT NULL DEFAULT 'manual',
		version     INTEGER NOT NULL DEFAULT 1,
		supersedes  TEXT,
		observed_at TEXT NOT NULL,
		deleted_at  TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_prices_kind ON prices(kind_id, version DESC);
	CREATE INDEX IF NOT EXISTS idx_prices_deleted ON prices(deleted_at);

	CREATE TABLE IF NOT EXISTS supply (
		trader_id  TEXT NOT NULL,
		kind_id    TEXT NOT NULL,
		price      REAL NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (trader_id, kind_id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func validPrice(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
		return fmt.Errorf("invalid price %v", p)
	}
	return nil
}

func (s *SQLiteStore) PutPrice(ctx context.Context, p PutPriceParams) (*model.PriceObservation, error) {
	if p.KindID == "" {
		return nil, fmt.Errorf("kind id is required")
	}
	if err := validPrice(p.Price); err != nil {
		return nil, err
	}
	source := p.Source
	if source == "" {
		source = "manual"
	}
	if !model.ValidSources[source] {
		return nil, fmt.Errorf("invalid source %q", source)
	}

	now := time.Now().UTC()
	id := s.newID()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Versions keep counting past soft-deleted rows so numbers are never reused.
	var maxVersion int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM prices WHERE kind_id = ?`, p.KindID).Scan(&maxVersion); err != nil {
		return nil, fmt.Errorf("read max version: %w", err)
	}
	version := maxVersion + 1

	// The new observation supersedes the latest live one.
	var prevID string
	var supersedes *string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM prices
		 WHERE kind_id = ? AND deleted_at IS NULL
		 ORDER BY version DESC LIMIT 1`, p.KindID).Scan(&prevID)
	switch {
	case err == nil:
		supersedes = &prevID
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("read latest price: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO prices (id, kind_id, price, source, version, supersedes, observed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, p.KindID, p.Price, source, version, supersedes, now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("insert price: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	obs := &model.PriceObservation{
		ID:         id,
		KindID:     p.KindID,
		Price:      p.Price,
		Source:     source,
		Version:    version,
		ObservedAt: now,
	}
	if supersedes != nil {
		obs.Supersedes = *supersedes
	}
	return obs, nil
}

const priceColumns = `id, kind_id, price, source, version, supersedes, observed_at`

func (s *SQLiteStore) GetPrice(ctx context.Context, p GetPriceParams) ([]model.PriceObservation, error) {
	var query string
	var args []any

	switch {
	case p.History:
		query = `SELECT ` + priceColumns + ` FROM prices
				 WHERE kind_id = ? AND deleted_at IS NULL
				 ORDER BY version DESC`
		args = []any{p.KindID}
	case p.Version > 0:
		query = `SELECT ` + priceColumns + ` FROM prices
				 WHERE kind_id = ? AND version = ? AND deleted_at IS NULL
				 LIMIT 1`
		args = []any{p.KindID, p.Version}
	default:
		query = `SELECT ` + priceColumns + ` FROM prices
				 WHERE kind_id = ? AND deleted_at IS NULL
				 ORDER BY version DESC LIMIT 1`
		args = []any{p.KindID}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PriceObservation
	for rows.Next() {
		o, err := scanPrice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", p.KindID, ErrNotFound)
	}
	return out, nil
}

func (s *SQLiteStore) ListPrices(ctx context.Context, p ListPriceParams) ([]model.PriceObservation, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}

	where := []string{"p.deleted_at IS NULL"}
	var args []any
	if p.Source != "" {
		where = append(where, "p.source = ?")
		args = append(args, p.Source)
	}

	query := fmt.Sprintf(`
		SELECT p.id, p.kind_id, p.price, p.source, p.version, p.supersedes, p.observed_at
		FROM prices p
		INNER JOIN (
			SELECT kind_id, MAX(version) AS max_ver
			FROM prices WHERE deleted_at IS NULL
			GROUP BY kind_id
		) latest ON p.kind_id = latest.kind_id AND p.version = latest.max_ver
		WHERE %s
		ORDER BY p.kind_id
		LIMIT ?`, strings.Join(where, " AND "))
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PriceObservation
	for rows.Next() {
		o, err := scanPrice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) RmPrice(ctx context.Context, p RmPriceParams) error {
	if p.Hard {
		if p.AllVersions {
			res, err := s.db.ExecContext(ctx, `DELETE FROM prices WHERE kind_id = ?`, p.KindID)
			return affected(res, err, p.KindID)
		}
		id, err := s.latestID(ctx, p.KindID)
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx, `DELETE FROM prices WHERE id = ?`, id)
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if p.AllVersions {
		res, err := s.db.ExecContext(ctx,
			`UPDATE prices SET deleted_at = ? WHERE kind_id = ? AND deleted_at IS NULL`,
			now, p.KindID)
		return affected(res, err, p.KindID)
	}

	// Soft-delete latest version only
	id, err := s.latestID(ctx, p.KindID)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE prices SET deleted_at = ? WHERE id = ?`, now, id)
	return err
}

func (s *SQLiteStore) latestID(ctx context.Context, kindID string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM prices WHERE kind_id = ? AND deleted_at IS NULL ORDER BY version DESC LIMIT 1`,
		kindID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", kindID, ErrNotFound)
	}
	return id, err
}

func affected(res sql.Result, err error, kindID string) error {
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", kindID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPrice(row scanner) (model.PriceObservation, error) {
	var o model.PriceObservation
	var supersedes sql.NullString
	var observedAt string

	err := row.Scan(&o.ID, &o.KindID, &o.Price, &o.Source, &o.Version, &supersedes, &observedAt)
	if err != nil {
		return o, err
	}

	o.ObservedAt, _ = time.Parse(time.RFC3339Nano, observedAt)
	if supersedes.Valid {
		o.Supersedes = supersedes.String
	}
	return o, nil
}
