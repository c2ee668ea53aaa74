package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
)

type RecordInfo struct {
	Path       string  `json:"path"`
	RunID      string  `json:"run_id"`
	AvatarID   string  `json:"avatar_id"`
	Frames     int     `json:"frames"`
	Time       float64 `json:"sim_time"`
	StartedAt  string  `json:"started_at"`
	RecordedAt string  `json:"recorded_at"`
}

type RunInfo struct {
	RunID     string `json:"run_id"`
	Frames    int    `json:"frames"`
	LastFrame uint64 `json:"last_frame"`
	Events    int    `json:"events"`
}

// OpenReader opens an index for the query helpers below. The index must not
// be open for writing in the same process.
func OpenReader(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	return db, nil
}

func ListRecords(ctx context.Context, db *sql.DB) ([]RecordInfo, error) {
	rows, err := db.QueryContext(ctx, `SELECT path,run_id,avatar_id,frames,sim_time,started_at,recorded_at FROM records ORDER BY recorded_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RecordInfo
	for rows.Next() {
		var r RecordInfo
		if err := rows.Scan(&r.Path, &r.RunID, &r.AvatarID, &r.Frames, &r.Time, &r.StartedAt, &r.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func ListRuns(ctx context.Context, db *sql.DB) ([]RunInfo, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT f.run_id, COUNT(*), MAX(f.frame),
			(SELECT COUNT(*) FROM events e WHERE e.run_id = f.run_id)
		FROM frames f GROUP BY f.run_id ORDER BY f.run_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RunInfo
	for rows.Next() {
		var (
			r    RunInfo
			last int64
		)
		if err := rows.Scan(&r.RunID, &r.Frames, &last, &r.Events); err != nil {
			return nil, err
		}
		r.LastFrame = uint64(last)
		out = append(out, r)
	}
	return out, rows.Err()
}

// InstructionFrames returns the frames at which events referencing an
// instruction were raised, with their types.
func InstructionFrames(ctx context.Context, db *sql.DB, runID, instructionID string) (map[uint64][]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT frame,type FROM events WHERE run_id=? AND reference=? ORDER BY frame,seq`, runID, instructionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[uint64][]string{}
	for rows.Next() {
		var (
			frame int64
			typ   string
		)
		if err := rows.Scan(&frame, &typ); err != nil {
			return nil, err
		}
		out[uint64(frame)] = append(out[uint64(frame)], typ)
	}
	return out, rows.Err()
}
