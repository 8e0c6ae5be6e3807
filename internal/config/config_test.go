package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rcliao/stash-manager/internal/ranking"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestDefaults(t *testing.T) {
	t.Setenv(EnvPath, "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Sorting.FoldItems || !cfg.Sorting.MergeItems || cfg.Sorting.FlipDirection {
		t.Errorf("unexpected sorting defaults %+v", cfg.Sorting)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	rc := cfg.Sorting.Ranking()
	enabled := rc.Enabled()
	if len(enabled) != 2 || enabled[0].Key != ranking.ContainerSize || enabled[1].Key != ranking.CellOrWeight {
		t.Errorf("unexpected enabled criteria %+v", enabled)
	}
	for _, cr := range enabled {
		if !cr.Descending {
			t.Errorf("expected %s descending", cr.Key)
		}
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	p := writeConfig(t, `
sorting:
  merge_items: false
  flip_direction: true
  skip_rows: 2
  criteria:
    - {key: FleaValue, enabled: true, descending: true}
    - {key: item_type, enabled: true}
  categories: [ammo, weapon]
valuation:
  fetch_timeout: 3s
  min_interval: 1m
prices:
  source: ws
  ws_url: ws://localhost:8088/feed
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Sorting.MergeItems || !cfg.Sorting.FoldItems {
		t.Errorf("expected merge off and fold left at default, got %+v", cfg.Sorting)
	}

	rc := cfg.Sorting.Ranking()
	if len(rc.Criteria) != 2 || rc.Criteria[0].Key != ranking.MarketValue || rc.Criteria[1].Key != ranking.ItemKind {
		t.Errorf("unexpected criteria %+v", rc.Criteria)
	}
	if rc.SkipRows != 2 || !rc.FlipDirection {
		t.Errorf("unexpected modifiers %+v", rc)
	}
	if tax := cfg.Sorting.Taxonomy(); tax.Rank("ammo") != 0 || tax.Rank("weapon") != 1 {
		t.Error("expected configured category order")
	}

	opts := cfg.Valuation.Options()
	if opts.FetchTimeout != 3*time.Second || opts.MinInterval != time.Minute || opts.MaxConcurrent != 8 {
		t.Errorf("unexpected valuation options %+v", opts)
	}
}

func TestLoadFromEnv(t *testing.T) {
	p := writeConfig(t, "sorting:\n  sort_traders: true\n")
	t.Setenv(EnvPath, p)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Sorting.SortTraders {
		t.Error("expected sort_traders from env config")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"skip rows too high", "sorting:\n  skip_rows: 11\n"},
		{"skip rows negative", "sorting:\n  skip_rows: -1\n"},
		{"unknown key", "sorting:\n  criteria:\n    - {key: durability, enabled: true}\n"},
		{"duplicate key", "sorting:\n  criteria:\n    - {key: weight}\n    - {key: cell_size}\n"},
		{"negative duration", "valuation:\n  stale_after: -1s\n"},
		{"bad source", "prices:\n  source: redis\n"},
		{"bad ws url", "prices:\n  source: ws\n  ws_url: http://x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}

	_, err := Load(writeConfig(t, "sorting:\n  criteria:\n    - {key: durability}\n"))
	if !errors.Is(err, ranking.ErrUnknownKey) {
		t.Errorf("expected ErrUnknownKey to be wrapped, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Valuation.StaleAfter = 90 * time.Second
	b, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Load(writeConfig(t, string(b)))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Valuation.StaleAfter != 90*time.Second || len(got.Sorting.Criteria) != 5 {
		t.Errorf("round trip lost data: %+v", got)
	}
}
