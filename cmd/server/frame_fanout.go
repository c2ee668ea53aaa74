package main

import (
	"errors"

	"mosim.ai/internal/sim"
)

// multiFrameLogger hands every frame to each sink; one failing sink does not
// starve the others.
type multiFrameLogger []sim.FrameLogger

func (m multiFrameLogger) WriteFrame(e sim.FrameLogEntry) error {
	var errs []error
	for _, l := range m {
		if l == nil {
			continue
		}
		if err := l.WriteFrame(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
