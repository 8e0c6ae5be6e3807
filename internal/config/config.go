// Package config loads stash-manager settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rcliao/stash-manager/internal/ranking"
	"github.com/rcliao/stash-manager/internal/valuation"
)

// EnvPath names the environment variable consulted when no path is given.
const EnvPath = "STASH_MANAGER_CONFIG"

// MaxSkipRows bounds Sorting.SkipRows.
const MaxSkipRows = 10

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all settings.
type Config struct {
	Sorting   Sorting   `yaml:"sorting"`
	Valuation Valuation `yaml:"valuation"`
	Prices    Prices    `yaml:"prices"`
	Journal   Journal   `yaml:"journal"`
}

// Sorting holds the ranking and consolidation options.
type Sorting struct {
	Enabled       bool        `yaml:"enabled"`
	FoldItems     bool        `yaml:"fold_items"`
	MergeItems    bool        `yaml:"merge_items"`
	SortTraders   bool        `yaml:"sort_traders"`
	FlipDirection bool        `yaml:"flip_direction"`
	SkipRows      int         `yaml:"skip_rows"`
	RowWidth      int         `yaml:"row_width"`
	UseCellCount  bool        `yaml:"use_cell_count"`
	Criteria      []Criterion `yaml:"criteria"`
	Categories    []string    `yaml:"categories,omitempty"`
}

// Criterion is one entry of the criteria chain, in priority order.
type Criterion struct {
	Key        string `yaml:"key"`
	Enabled    bool   `yaml:"enabled"`
	Descending bool   `yaml:"descending"`
}

// Valuation tunes the market price cache.
type Valuation struct {
	FetchTimeout     time.Duration `yaml:"fetch_timeout"`
	MaxConcurrent    int           `yaml:"max_concurrent"`
	MinInterval      time.Duration `yaml:"min_interval"`
	StaleAfter       time.Duration `yaml:"stale_after"`
	FailedRetryAfter time.Duration `yaml:"failed_retry_after"`
}

// Prices selects where prices come from.
type Prices struct {
	Source string `yaml:"source"` // sqlite or ws
	DB     string `yaml:"db"`
	WSURL  string `yaml:"ws_url"`
}

// Journal configures the transaction journal. An empty Dir disables it.
type Journal struct {
	Dir    string `yaml:"dir"`
	Prefix string `yaml:"prefix"`
}

// Default returns the built-in configuration.
func Default() Config {
	opts := valuation.DefaultOptions()
	return Config{
		Sorting: Sorting{
			Enabled:    true,
			FoldItems:  true,
			MergeItems: true,
			RowWidth:   10,
			Criteria: []Criterion{
				{Key: ranking.ContainerSize.String(), Enabled: true, Descending: true},
				{Key: ranking.ItemKind.String()},
				{Key: ranking.CellOrWeight.String(), Enabled: true, Descending: true},
				{Key: ranking.TraderValue.String()},
				{Key: ranking.MarketValue.String()},
			},
		},
		Valuation: Valuation{
			FetchTimeout:  opts.FetchTimeout,
			MaxConcurrent: opts.MaxConcurrent,
		},
		Prices: Prices{
			Source: "sqlite",
			DB:     defaultDBPath(),
		},
		Journal: Journal{Prefix: "tx"},
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "stash-manager.db"
	}
	return filepath.Join(home, ".stash-manager", "prices.db")
}

// Load reads path over the defaults and validates the result. An empty path
// falls back to $STASH_MANAGER_CONFIG, then to the defaults alone.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		path = os.Getenv(EnvPath)
	}
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges and criterion keys.
func (c Config) Validate() error {
	s := c.Sorting
	if s.SkipRows < 0 || s.SkipRows > MaxSkipRows {
		return fmt.Errorf("%w: sorting.skip_rows %d outside 0..%d", ErrInvalid, s.SkipRows, MaxSkipRows)
	}
	if s.RowWidth < 0 {
		return fmt.Errorf("%w: sorting.row_width %d is negative", ErrInvalid, s.RowWidth)
	}

	seen := make(map[ranking.Key]bool, len(s.Criteria))
	for i, cr := range s.Criteria {
		k, err := ranking.ParseKey(cr.Key)
		if err != nil {
			return fmt.Errorf("%w: sorting.criteria[%d]: %w", ErrInvalid, i, err)
		}
		if seen[k] {
			return fmt.Errorf("%w: sorting.criteria[%d]: duplicate key %s", ErrInvalid, i, k)
		}
		seen[k] = true
	}

	v := c.Valuation
	if v.FetchTimeout < 0 || v.MinInterval < 0 || v.StaleAfter < 0 || v.FailedRetryAfter < 0 {
		return fmt.Errorf("%w: valuation durations must not be negative", ErrInvalid)
	}
	if v.MaxConcurrent < 0 {
		return fmt.Errorf("%w: valuation.max_concurrent %d is negative", ErrInvalid, v.MaxConcurrent)
	}

	switch c.Prices.Source {
	case "sqlite":
		if c.Prices.DB == "" {
			return fmt.Errorf("%w: prices.db is required for the sqlite source", ErrInvalid)
		}
	case "ws":
		if !strings.HasPrefix(c.Prices.WSURL, "ws://") && !strings.HasPrefix(c.Prices.WSURL, "wss://") {
			return fmt.Errorf("%w: prices.ws_url %q is not a websocket url", ErrInvalid, c.Prices.WSURL)
		}
	default:
		return fmt.Errorf("%w: prices.source %q (want sqlite or ws)", ErrInvalid, c.Prices.Source)
	}
	return nil
}

// Ranking converts the sorting section. Call Validate first; unknown keys
// are skipped here.
func (s Sorting) Ranking() ranking.Config {
	cfg := ranking.Config{
		FlipDirection: s.FlipDirection,
		SkipRows:      s.SkipRows,
		RowWidth:      s.RowWidth,
		UseCellCount:  s.UseCellCount,
	}
	for _, cr := range s.Criteria {
		k, err := ranking.ParseKey(cr.Key)
		if err != nil {
			continue
		}
		cfg.Criteria = append(cfg.Criteria, ranking.Criterion{Key: k, Enabled: cr.Enabled, Descending: cr.Descending})
	}
	return cfg
}

// Taxonomy returns the configured category order, or the default one.
func (s Sorting) Taxonomy() ranking.Taxonomy {
	if len(s.Categories) == 0 {
		return ranking.NewTaxonomy(ranking.DefaultCategories)
	}
	return ranking.NewTaxonomy(s.Categories)
}

// Options converts the valuation section. Zero values take the defaults.
func (v Valuation) Options() valuation.Options {
	opts := valuation.DefaultOptions()
	if v.FetchTimeout > 0 {
		opts.FetchTimeout = v.FetchTimeout
	}
	if v.MaxConcurrent > 0 {
		opts.MaxConcurrent = v.MaxConcurrent
	}
	opts.MinInterval = v.MinInterval
	opts.StaleAfter = v.StaleAfter
	opts.FailedRetryAfter = v.FailedRetryAfter
	return opts
}

// Encode writes the configuration as YAML.
func (c Config) Encode() ([]byte, error) {
	return yaml.Marshal(c)
}
