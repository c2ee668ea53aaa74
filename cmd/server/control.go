package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"mosim.ai/internal/cosim"
	"mosim.ai/internal/mmi"
	"mosim.ai/internal/persistence/indexdb"
	"mosim.ai/internal/persistence/record"
	"mosim.ai/internal/protocol"
	"mosim.ai/internal/sim"
	"mosim.ai/internal/transport/rpc"
)

// control serves the cosim.* methods for one runtime.
type control struct {
	rt        *sim.Runtime
	idx       *indexdb.SQLiteIndex
	recordDir string
	log       *log.Logger

	mu sync.Mutex // serializes SaveRecord
}

type instructionParams struct {
	Instruction mmi.Instruction `json:"instruction"`
}

type abortParams struct {
	InstructionID string `json:"instruction_id"`
}

type priorityParams struct {
	MotionType string  `json:"motion_type"`
	Weight     float64 `json:"weight"`
}

type savedRecord struct {
	Path   string        `json:"path"`
	Header record.Header `json:"header"`
}

var errNotRecording = errors.New("recording is off")

func bind[P any](srv *rpc.Server, method string, fn func(ctx context.Context, p P) (any, error)) {
	srv.Handle(method, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p P
		if err := rpc.Bind(raw, &p); err != nil {
			return nil, err
		}
		return fn(ctx, p)
	})
}

func (c *control) register(srv *rpc.Server) {
	bind(srv, protocol.CoSimAssignInstruction, func(ctx context.Context, p instructionParams) (any, error) {
		return c.rt.AssignInstruction(ctx, p.Instruction), nil
	})
	bind(srv, protocol.CoSimAbort, func(ctx context.Context, p abortParams) (any, error) {
		return c.rt.Abort(ctx, p.InstructionID), nil
	})
	bind(srv, protocol.CoSimGetTasks, func(context.Context, struct{}) (any, error) {
		tasks := c.rt.CoSimulator().Tasks()
		if tasks == nil {
			tasks = []cosim.Task{}
		}
		return tasks, nil
	})
	bind(srv, protocol.CoSimGetPriorities, func(context.Context, struct{}) (any, error) {
		return c.rt.CoSimulator().GetPriorities(), nil
	})
	bind(srv, protocol.CoSimSetPriority, func(_ context.Context, p priorityParams) (any, error) {
		if p.MotionType == "" {
			return nil, rpc.Errorf(protocol.ErrBadParams, "motion_type is required")
		}
		if p.Weight < 0 {
			return nil, rpc.Errorf(protocol.ErrBadParams, "weight must not be negative")
		}
		c.rt.CoSimulator().SetPriority(p.MotionType, p.Weight)
		return mmi.OK(), nil
	})
	bind(srv, protocol.CoSimSaveRecord, func(context.Context, struct{}) (any, error) {
		path, h, err := c.saveRecord()
		if errors.Is(err, errNotRecording) {
			return nil, rpc.Errorf(protocol.ErrBadParams, "%v", err)
		}
		if err != nil {
			return nil, err
		}
		return savedRecord{Path: path, Header: h}, nil
	})
}

// saveRecord writes the frames recorded so far and indexes the file.
func (c *control) saveRecord() (string, record.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec := c.rt.CoSimulator().Record()
	if rec == nil {
		return "", record.Header{}, errNotRecording
	}
	name := fmt.Sprintf("%s-%s.rec.zst", rec.AvatarID, time.Now().UTC().Format("20060102T150405.000000000"))
	path := filepath.Join(c.recordDir, name)
	if err := record.Write(path, rec); err != nil {
		return "", record.Header{}, err
	}
	h := record.HeaderOf(rec)
	c.idx.RecordFile(path, h)
	c.log.Printf("record saved: %s frames=%d", path, h.Frames)
	return path, h, nil
}
