package main

import (
	"fmt"
	"net/http"

	"mosim.ai/internal/persistence/indexdb"
	persistlog "mosim.ai/internal/persistence/log"
	"mosim.ai/internal/sim"
	"mosim.ai/internal/transport/observer"
)

func metricsHandler(rt *sim.Runtime, idx *indexdb.SQLiteIndex, obs *observer.Server, frames *persistlog.FrameLogger, events *persistlog.EventLogger) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		avatar := rt.Description().AvatarID
		co := rt.CoSimulator()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP mosim_frame Current co-simulation frame.\n")
		fmt.Fprintf(rw, "# TYPE mosim_frame gauge\n")
		fmt.Fprintf(rw, "mosim_frame{avatar=%q} %d\n", avatar, rt.CurrentFrame())
		fmt.Fprintf(rw, "# HELP mosim_simulation_time_seconds Simulated time.\n")
		fmt.Fprintf(rw, "# TYPE mosim_simulation_time_seconds gauge\n")
		fmt.Fprintf(rw, "mosim_simulation_time_seconds{avatar=%q} %.6f\n", avatar, co.SimulationTime())
		fmt.Fprintf(rw, "# HELP mosim_tasks Active instructions.\n")
		fmt.Fprintf(rw, "# TYPE mosim_tasks gauge\n")
		fmt.Fprintf(rw, "mosim_tasks{avatar=%q} %d\n", avatar, len(co.Tasks()))
		fmt.Fprintf(rw, "# HELP mosim_scene_frame Scene history frame id.\n")
		fmt.Fprintf(rw, "# TYPE mosim_scene_frame gauge\n")
		fmt.Fprintf(rw, "mosim_scene_frame %d\n", rt.Scene().FrameID())

		if obs != nil {
			fmt.Fprintf(rw, "# HELP mosim_observers Connected frame observers.\n")
			fmt.Fprintf(rw, "# TYPE mosim_observers gauge\n")
			fmt.Fprintf(rw, "mosim_observers %d\n", obs.Observers())
			fmt.Fprintf(rw, "# HELP mosim_observer_dropped_total Frames dropped for slow observers.\n")
			fmt.Fprintf(rw, "# TYPE mosim_observer_dropped_total counter\n")
			fmt.Fprintf(rw, "mosim_observer_dropped_total %d\n", obs.Dropped())
		}

		if frames != nil && events != nil {
			fs, es := frames.Stats(), events.Stats()
			fmt.Fprintf(rw, "# HELP mosim_log_lines_total JSONL entries written.\n")
			fmt.Fprintf(rw, "# TYPE mosim_log_lines_total counter\n")
			fmt.Fprintf(rw, "mosim_log_lines_total{log=%q} %d\n", "frames", fs.Lines)
			fmt.Fprintf(rw, "mosim_log_lines_total{log=%q} %d\n", "events", es.Lines)
			fmt.Fprintf(rw, "# HELP mosim_log_bytes_total Uncompressed JSONL bytes written.\n")
			fmt.Fprintf(rw, "# TYPE mosim_log_bytes_total counter\n")
			fmt.Fprintf(rw, "mosim_log_bytes_total{log=%q} %d\n", "frames", fs.Bytes)
			fmt.Fprintf(rw, "mosim_log_bytes_total{log=%q} %d\n", "events", es.Bytes)
			fmt.Fprintf(rw, "# HELP mosim_log_segments_total Log part files opened.\n")
			fmt.Fprintf(rw, "# TYPE mosim_log_segments_total counter\n")
			fmt.Fprintf(rw, "mosim_log_segments_total{log=%q} %d\n", "frames", fs.Segments)
			fmt.Fprintf(rw, "mosim_log_segments_total{log=%q} %d\n", "events", es.Segments)
		}

		if idx == nil {
			return
		}
		s := idx.Stats()
		fmt.Fprintf(rw, "# HELP mosim_index_queue_depth Index writer backlog.\n")
		fmt.Fprintf(rw, "# TYPE mosim_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "mosim_index_queue_depth %d\n", s.QueueDepth)
		fmt.Fprintf(rw, "# HELP mosim_index_dropped_total Index writes dropped on a full queue.\n")
		fmt.Fprintf(rw, "# TYPE mosim_index_dropped_total counter\n")
		fmt.Fprintf(rw, "mosim_index_dropped_total{kind=%q} %d\n", "frame", s.DropFrameTotal)
		fmt.Fprintf(rw, "mosim_index_dropped_total{kind=%q} %d\n", "record", s.DropRecordTotal)
		fmt.Fprintf(rw, "mosim_index_dropped_total{kind=%q} %d\n", "checkpoint", s.DropCheckpointTotal)
	}
}
