package adapter

import "time"

func (h *Host) runCleaner() {
	defer close(h.done)
	ticker := time.NewTicker(h.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.sweep()
		}
	}
}

// sweep disposes every session idle for longer than SessionTimeout.
func (h *Host) sweep() []string {
	cutoff := h.cfg.Now().Add(-h.cfg.SessionTimeout)
	sessions, insts := h.sessions.expired(cutoff)
	for _, inst := range insts {
		h.dispose(inst)
	}
	if len(sessions) > 0 {
		h.log.Printf("cleaner: removed %d idle sessions %v", len(sessions), sessions)
	}
	return sessions
}
