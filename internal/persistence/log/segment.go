// Package log persists the run's frame and event streams as zstd-compressed
// JSON lines, split into hourly segments.
package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const hourLayout = "2006-01-02-15"

// SegmentOptions configures a SegmentWriter.
type SegmentOptions struct {
	Dir    string
	Prefix string
	// MaxBytes starts the next part of the current hour once a part holds this
	// many uncompressed bytes. Zero keeps one part per hour.
	MaxBytes int64
	Level    zstd.EncoderLevel
}

// SegmentStats counts what a SegmentWriter has written since it was created.
type SegmentStats struct {
	Segments int
	Lines    int64
	Bytes    int64
}

// segment is one open part file.
type segment struct {
	hour  string
	part  int
	bytes int64

	f   *os.File
	enc *zstd.Encoder
	buf *bufio.Writer
}

func (s *segment) Write(p []byte) (int, error) {
	n, err := s.buf.Write(p)
	s.bytes += int64(n)
	return n, err
}

// close flushes the buffered lines and ends the zstd frame.
func (s *segment) close() error {
	flushErr := s.buf.Flush()
	encErr := s.enc.Close()
	fileErr := s.f.Close()
	for _, err := range []error{flushErr, encErr, fileErr} {
		if err != nil {
			return err
		}
	}
	return nil
}

// SegmentWriter appends one JSON document per line to
// <Dir>/<Prefix>-<UTC hour>-<part>.jsonl.zst. Every line is flushed through
// the encoder before Write returns. Reopening an existing part appends a new
// zstd frame to it.
type SegmentWriter struct {
	opts SegmentOptions
	now  func() time.Time

	mu    sync.Mutex
	cur   *segment
	stats SegmentStats
}

func NewSegmentWriter(opts SegmentOptions) *SegmentWriter {
	if opts.Level == 0 {
		opts.Level = zstd.SpeedFastest
	}
	return &SegmentWriter{opts: opts, now: time.Now}
}

func (w *SegmentWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format(hourLayout)
	switch {
	case w.cur == nil || w.cur.hour != hour:
		if err := w.openLocked(hour, 0); err != nil {
			return err
		}
	case w.opts.MaxBytes > 0 && w.cur.bytes >= w.opts.MaxBytes:
		if err := w.openLocked(hour, w.cur.part+1); err != nil {
			return err
		}
	}

	before := w.cur.bytes
	// Encode terminates the document with a newline.
	if err := json.NewEncoder(w.cur).Encode(v); err != nil {
		return fmt.Errorf("segment %s: %w", w.path(w.cur.hour, w.cur.part), err)
	}
	if err := w.cur.buf.Flush(); err != nil {
		return err
	}
	w.stats.Lines++
	w.stats.Bytes += w.cur.bytes - before
	return nil
}

func (w *SegmentWriter) openLocked(hour string, part int) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.path(hour, part)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(w.opts.Level))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.cur = &segment{hour: hour, part: part, f: f, enc: enc, buf: bufio.NewWriterSize(enc, 128*1024)}
	w.stats.Segments++
	return nil
}

func (w *SegmentWriter) closeLocked() error {
	if w.cur == nil {
		return nil
	}
	err := w.cur.close()
	w.cur = nil
	return err
}

func (w *SegmentWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *SegmentWriter) path(hour string, part int) string {
	return filepath.Join(w.opts.Dir, fmt.Sprintf("%s-%s-%03d.jsonl.zst", w.opts.Prefix, hour, part))
}

// Files lists the written parts in write order.
func (w *SegmentWriter) Files() ([]string, error) {
	return filepath.Glob(filepath.Join(w.opts.Dir, w.opts.Prefix+"-*.jsonl.zst"))
}

func (w *SegmentWriter) Stats() SegmentStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}
