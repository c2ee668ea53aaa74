package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"mosim.ai/internal/access"
	"mosim.ai/internal/adapter"
	"mosim.ai/internal/config"
	"mosim.ai/internal/cosim"
	"mosim.ai/internal/mmi"
	"mosim.ai/internal/mmu/builtin"
	"mosim.ai/internal/scene"
	"mosim.ai/internal/sim"
)

type pipeline struct {
	host     *adapter.Host
	access   *access.MMUAccess
	co       *cosim.CoSimulator
	store    *scene.Store
	runtime  *sim.Runtime
	loadable []mmi.MMUDescription
}

// await blocks on one of the access package's callback style operations.
func await(start func(callback func(bool))) bool {
	done := make(chan bool, 1)
	start(func(ok bool) { done <- ok })
	return <-done
}

func buildPipeline(ctx context.Context, cfg config.Config, logger *log.Logger) (*pipeline, error) {
	p := &pipeline{}
	p.host = adapter.NewHost(adapter.Config{
		SessionTimeout:  cfg.Session.Timeout,
		CleanupInterval: cfg.Session.CleanupInterval,
	}, builtin.Catalog(), logger)
	p.host.Start()

	remote := func(ctx context.Context, address string) (adapter.Adapter, error) {
		c, err := adapter.Dial(ctx, address, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	p.access = access.New(access.Options{
		Logger:  logger,
		Dial:    access.LocalDialer(map[string]adapter.Adapter{config.LocalAdapter: p.host}, remote),
		SceneID: cfg.SceneID,
	})

	ok := await(func(cb func(bool)) {
		p.access.ConnectAsync(cfg.Adapters.Addresses, cfg.Timeouts.Connect, cb, cfg.AvatarID)
	})
	if !ok {
		p.close()
		return nil, fmt.Errorf("connect %v: %w", cfg.Adapters.Addresses, access.ErrNoAdapters)
	}
	logger.Printf("session %s connected to %v", p.access.SessionID(), p.access.Addresses())

	p.loadable = p.access.GetLoadableMMUs(ctx)
	ids := cfg.MMUs
	if len(ids) == 0 {
		for _, d := range p.loadable {
			ids = append(ids, d.ID)
		}
		sort.Strings(ids)
	}
	if !await(func(cb func(bool)) { p.access.LoadMMUsAsync(ids, cfg.Timeouts.Load, cb) }) {
		p.close()
		return nil, errors.New("load mmus: timed out or failed")
	}

	desc := mmi.DefaultDescription(cfg.AvatarID)
	ok = await(func(cb func(bool)) {
		p.access.InitializeMMUsAsync(cfg.Timeouts.Initialize, cb, cfg.AvatarID, desc, cfg.Props)
	})
	if !ok {
		p.close()
		return nil, errors.New("initialize mmus: timed out or failed")
	}

	var units []cosim.Unit
	for _, m := range p.access.MMUs() {
		units = append(units, m)
		logger.Printf("mmu %s (%s) at %s", m.ID(), m.MotionType(), m.Address())
	}
	p.co = cosim.New(cosim.Options{
		Units:       units,
		Priorities:  cfg.CoSim.Priorities,
		Solvers:     []cosim.Solver{&cosim.LocalPostureSolver{Description: desc}},
		Description: desc,
		Logger:      logger,
		LogTimes:    cfg.CoSim.LogTimes,
	})
	if cfg.CoSim.Record {
		p.co.StartRecording()
	}

	p.store = scene.NewStore(scene.Options{HistorySize: cfg.Scene.HistorySize, Logger: logger})
	rt, err := sim.New(sim.Config{TickRateHz: cfg.TickRateHz, Description: desc, AvatarName: cfg.AvatarName}, p.co, p.store, logger)
	if err != nil {
		p.close()
		return nil, err
	}
	rt.SetPublisher(p.access)
	p.runtime = rt
	return p, nil
}

func (p *pipeline) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if p.access != nil {
		p.access.Close(ctx)
	}
	if p.host != nil {
		p.host.Close()
	}
}
