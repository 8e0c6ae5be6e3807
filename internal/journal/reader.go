package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"
)

// Files lists the journal files for prefix in dir, oldest first.
func Files(dir, prefix string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// ReadFile decodes every entry in one journal file.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer dec.Close()

	var out []Entry
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return out, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return out, nil
}

// ReadAll returns every entry for prefix in dir. When limit is positive only
// the most recent limit entries are returned.
func ReadAll(dir, prefix string, limit int) ([]Entry, error) {
	files, err := Files(dir, prefix)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, p := range files {
		entries, err := ReadFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
