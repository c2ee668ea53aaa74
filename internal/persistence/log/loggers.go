package log

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"mosim.ai/internal/sim"
)

// partBytes caps one part of the frame and event logs before the writer moves
// on to the next part of the same hour.
const partBytes = 256 << 20

// FrameLogger writes one JSONL entry per simulation frame.
type FrameLogger struct{ w *SegmentWriter }

func NewFrameLogger(dataDir string) *FrameLogger {
	return &FrameLogger{w: NewSegmentWriter(SegmentOptions{
		Dir:      filepath.Join(dataDir, "frames"),
		Prefix:   "frames",
		MaxBytes: partBytes,
	})}
}

func (l *FrameLogger) WriteFrame(v sim.FrameLogEntry) error { return l.w.Write(v) }
func (l *FrameLogger) Stats() SegmentStats                  { return l.w.Stats() }
func (l *FrameLogger) Close() error                         { return l.w.Close() }

// EventLogger writes the simulation events MMUs raise, one per line.
type EventLogger struct{ w *SegmentWriter }

func NewEventLogger(dataDir string) *EventLogger {
	return &EventLogger{w: NewSegmentWriter(SegmentOptions{
		Dir:      filepath.Join(dataDir, "events"),
		Prefix:   "events",
		MaxBytes: partBytes,
	})}
}

func (l *EventLogger) WriteEvent(v sim.EventLogEntry) error { return l.w.Write(v) }
func (l *EventLogger) Stats() SegmentStats                  { return l.w.Stats() }
func (l *EventLogger) Close() error                         { return l.w.Close() }

// ReadJSONL decodes every line of a written file into fn. A part that was
// reopened holds several zstd frames; the reader follows them in order.
func ReadJSONL(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		if err := fn(sc.Bytes()); err != nil {
			return err
		}
	}
	return sc.Err()
}
