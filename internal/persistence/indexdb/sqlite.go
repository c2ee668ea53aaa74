package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"mosim.ai/internal/mmi"
	"mosim.ai/internal/persistence/record"
	"mosim.ai/internal/sim"
)

// SQLiteIndex is a secondary index over frame logs, records and checkpoints.
// Writes are queued to a single goroutine and dropped when it falls behind;
// the JSONL logs stay the source of truth.
type SQLiteIndex struct {
	db    *sql.DB
	runID string

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropFrame      atomic.Uint64
	dropRecord     atomic.Uint64
	dropCheckpoint atomic.Uint64
}

type reqKind int

const (
	reqFrame reqKind = iota + 1
	reqRecord
	reqCheckpoint
)

type req struct {
	kind reqKind

	frame      sim.FrameLogEntry
	record     recordRow
	checkpoint checkpointRow
}

type recordRow struct {
	Path       string
	AvatarID   string
	Frames     int
	Time       float64
	StartedAt  string
	RecordedAt string
}

type checkpointRow struct {
	Frame     uint64
	MMUID     string
	Data      []byte
	CreatedAt string
}

type Stats struct {
	DropFrameTotal      uint64 `json:"drop_frame_total"`
	DropRecordTotal     uint64 `json:"drop_record_total"`
	DropCheckpointTotal uint64 `json:"drop_checkpoint_total"`
	QueueDepth          int    `json:"queue_depth"`
	QueueCapacity       int    `json:"queue_capacity"`
}

func OpenSQLite(path, runID string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if runID == "" {
		return nil, fmt.Errorf("empty run id")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:    db,
		runID: runID,
		ch:    make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS mmus (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			motion_type TEXT NOT NULL,
			version TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS frames (
			run_id TEXT NOT NULL,
			frame INTEGER NOT NULL,
			time REAL NOT NULL,
			avatar_id TEXT NOT NULL,
			tasks INTEGER NOT NULL,
			events INTEGER NOT NULL,
			digest TEXT NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (run_id, frame)
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			run_id TEXT NOT NULL,
			frame INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			reference TEXT NOT NULL,
			PRIMARY KEY (run_id, frame, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_reference ON events(reference, frame);`,
		`CREATE TABLE IF NOT EXISTS records (
			path TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			avatar_id TEXT NOT NULL,
			frames INTEGER NOT NULL,
			sim_time REAL NOT NULL,
			started_at TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS checkpoints (
			run_id TEXT NOT NULL,
			frame INTEGER NOT NULL,
			mmu_id TEXT NOT NULL,
			data BLOB NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (run_id, frame, mmu_id)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) RunID() string { return s.runID }

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		DropFrameTotal:      s.dropFrame.Load(),
		DropRecordTotal:     s.dropRecord.Load(),
		DropCheckpointTotal: s.dropCheckpoint.Load(),
		QueueDepth:          len(s.ch),
		QueueCapacity:       cap(s.ch),
	}
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

// RecordFrame implements sim.Indexer.
func (s *SQLiteIndex) RecordFrame(entry sim.FrameLogEntry) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqFrame, frame: entry}, &s.dropFrame)
}

// RecordFile indexes a record file written with record.Write.
func (s *SQLiteIndex) RecordFile(path string, h record.Header) {
	if s == nil || path == "" {
		return
	}
	r := recordRow{
		Path:       path,
		AvatarID:   h.AvatarID,
		Frames:     h.Frames,
		Time:       h.Time,
		StartedAt:  h.StartedAt.UTC().Format(time.RFC3339Nano),
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	s.enqueue(req{kind: reqRecord, record: r}, &s.dropRecord)
}

// RecordCheckpoints stores the MMU checkpoints taken at a frame.
func (s *SQLiteIndex) RecordCheckpoints(frame uint64, checkpoints map[string][]byte) {
	if s == nil {
		return
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for id, data := range checkpoints {
		s.enqueue(req{kind: reqCheckpoint, checkpoint: checkpointRow{Frame: frame, MMUID: id, Data: data, CreatedAt: now}}, &s.dropCheckpoint)
	}
}

// UpsertMMUs stores the descriptions of the loadable MMUs. It writes directly,
// not through the queue.
func (s *SQLiteIndex) UpsertMMUs(descs []mmi.MMUDescription) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO mmus(id,name,motion_type,version,json,updated_at) VALUES(?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, d := range descs {
		if d.ID == "" {
			continue
		}
		b, err := json.Marshal(d)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(d.ID, d.Name, d.MotionType, d.Version, string(b), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertFrame, _ := s.db.Prepare(`INSERT OR REPLACE INTO frames(run_id,frame,time,avatar_id,tasks,events,digest,raw_json) VALUES(?,?,?,?,?,?,?,?)`)
	insertEvent, _ := s.db.Prepare(`INSERT OR REPLACE INTO events(run_id,frame,seq,name,type,reference) VALUES(?,?,?,?,?,?)`)
	insertRecord, _ := s.db.Prepare(`INSERT OR REPLACE INTO records(path,run_id,avatar_id,frames,sim_time,started_at,recorded_at) VALUES(?,?,?,?,?,?,?)`)
	insertCheckpoint, _ := s.db.Prepare(`INSERT OR REPLACE INTO checkpoints(run_id,frame,mmu_id,data,created_at) VALUES(?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertFrame, insertEvent, insertRecord, insertCheckpoint} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil {
			return true
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqFrame:
			f := r.frame
			b, _ := json.Marshal(f)
			if !exec(insertFrame, s.runID, int64(f.Frame), f.Time, f.AvatarID, len(f.Tasks), len(f.Events), f.Digest, string(b)) {
				continue
			}
			for i, ev := range f.Events {
				if !exec(insertEvent, s.runID, int64(f.Frame), i, ev.Name, ev.Type, ev.Reference) {
					break
				}
			}

		case reqRecord:
			rec := r.record
			exec(insertRecord, rec.Path, s.runID, rec.AvatarID, rec.Frames, rec.Time, rec.StartedAt, rec.RecordedAt)

		case reqCheckpoint:
			cp := r.checkpoint
			exec(insertCheckpoint, s.runID, int64(cp.Frame), cp.MMUID, cp.Data, cp.CreatedAt)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
