// Package journal records applied inventory transactions as hourly-rotated,
// zstd-compressed JSON lines.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/oklog/ulid/v2"
)

// Entry is one journal record.
type Entry struct {
	ID        string    `json:"id"`
	Time      time.Time `json:"time"`
	Op        string    `json:"op"`
	Item      string    `json:"item,omitempty"`
	Source    string    `json:"source,omitempty"`
	Target    string    `json:"target,omitempty"`
	Units     int       `json:"units,omitempty"`
	Simulated bool      `json:"simulated"`
}

// Writer appends entries to <dir>/<prefix>-YYYY-MM-DD-HH.jsonl.zst. Each
// entry is written as its own zstd frame, so every appended entry is readable
// even if the process exits without calling Close.
type Writer struct {
	dir    string
	prefix string
	now    func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	buf     []byte
}

func NewWriter(dir, prefix string) *Writer {
	return &Writer{dir: dir, prefix: prefix, now: time.Now}
}

// Append stamps the entry with an id and time when they are unset and writes it.
func (w *Writer) Append(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now().UTC()
	if e.Time.IsZero() {
		e.Time = now
	}
	if e.ID == "" {
		e.ID = ulid.Make().String()
	}

	if hour := now.Format("2006-01-02-15"); hour != w.curHour {
		if err := w.openLocked(hour); err != nil {
			return fmt.Errorf("rotate journal: %w", err)
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	w.buf = append(w.buf[:0], b...)
	w.buf = append(w.buf, '\n')

	w.enc.Reset(w.f)
	if _, err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	if err := w.enc.Close(); err != nil {
		return fmt.Errorf("finish frame: %w", err)
	}
	return nil
}

// Close releases the current file. Entries are already on disk.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *Writer) openLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	if w.enc == nil {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(1))
		if err != nil {
			return err
		}
		w.enc = enc
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.f = f
	w.curHour = hour
	return nil
}

func (w *Writer) closeLocked() error {
	w.curHour = ""
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

func (w *Writer) pathForHour(hour string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}
