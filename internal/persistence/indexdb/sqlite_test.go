package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"mosim.ai/internal/mmi"
	"mosim.ai/internal/persistence/record"
	"mosim.ai/internal/sim"
)

func TestSQLiteIndex_FramesEventsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path, "run-1")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.UpsertMMUs([]mmi.MMUDescription{{ID: "walk-1.0", Name: "WalkMMU", MotionType: "Locomotion/Walk", Version: "1.0"}}); err != nil {
		t.Fatalf("UpsertMMUs: %v", err)
	}
	idx.RecordFrame(sim.FrameLogEntry{Frame: 0, AvatarID: "avatar-1", Digest: "d0",
		Events: []mmi.SimulationEvent{{Name: "Walk", Type: mmi.EventStart, Reference: "w1"}}})
	idx.RecordFrame(sim.FrameLogEntry{Frame: 1, Time: 0.1, AvatarID: "avatar-1", Digest: "d1",
		Events: []mmi.SimulationEvent{{Name: "Walk", Type: mmi.EventEnd, Reference: "w1"}}})
	idx.RecordFile("/data/records/run-1.rec.zst", record.Header{Version: record.Version, Frames: 2, AvatarID: "avatar-1", StartedAt: time.Now()})
	idx.RecordCheckpoints(1, map[string][]byte{"walk-1.0": {1, 2, 3}})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	runs, err := ListRuns(ctx, db)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Frames != 2 || runs[0].LastFrame != 1 || runs[0].Events != 2 {
		t.Fatalf("runs: %+v", runs)
	}
	frames, err := InstructionFrames(ctx, db, "run-1", "w1")
	if err != nil {
		t.Fatalf("InstructionFrames: %v", err)
	}
	if len(frames[0]) != 1 || frames[0][0] != mmi.EventStart || frames[1][0] != mmi.EventEnd {
		t.Fatalf("instruction frames: %v", frames)
	}
	recs, err := ListRecords(ctx, db)
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(recs) != 1 || recs[0].Frames != 2 || recs[0].RunID != "run-1" {
		t.Fatalf("records: %+v", recs)
	}

	var data []byte
	if err := db.QueryRow(`SELECT data FROM checkpoints WHERE run_id='run-1' AND frame=1 AND mmu_id='walk-1.0'`).Scan(&data); err != nil {
		t.Fatalf("checkpoint row: %v", err)
	}
	if len(data) != 3 {
		t.Fatalf("checkpoint data: %v", data)
	}
	var motion string
	if err := db.QueryRow(`SELECT motion_type FROM mmus WHERE id='walk-1.0'`).Scan(&motion); err != nil || motion != "Locomotion/Walk" {
		t.Fatalf("mmus row: %q %v", motion, err)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqFrame}

	s.RecordFrame(sim.FrameLogEntry{Frame: 2})
	s.RecordFile("/tmp/x.rec.zst", record.Header{})
	s.RecordCheckpoints(2, map[string][]byte{"a": {1}, "b": {2}})

	st := s.Stats()
	if st.DropFrameTotal != 1 || st.DropRecordTotal != 1 || st.DropCheckpointTotal != 2 {
		t.Fatalf("drops: %+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_ClosedIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path, "run-2")
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}
	idx.RecordFrame(sim.FrameLogEntry{Frame: 9})
	if err := idx.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM frames`).Scan(&n); err != nil || n != 0 {
		t.Fatalf("frames after close: %d %v", n, err)
	}

	var nilIndex *SQLiteIndex
	nilIndex.RecordFrame(sim.FrameLogEntry{})
	if st := nilIndex.Stats(); st.QueueCapacity != 0 {
		t.Fatalf("nil stats: %+v", st)
	}
}
