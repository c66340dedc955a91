package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"room-chat/domain"
	"room-chat/observability"
	"room-chat/runtime"

	"github.com/shirou/gopsutil/process"
)

// StatsSource is what the heartbeat samples besides the process itself.
type StatsSource interface {
	Stats() runtime.Stats
	QueueDepths() map[domain.RoomID]int
}

type statsSource struct {
	registry     *runtime.Registry
	orchestrator *runtime.Orchestrator
}

func (s statsSource) Stats() runtime.Stats               { return s.registry.Stats() }
func (s statsSource) QueueDepths() map[domain.RoomID]int { return s.orchestrator.QueueDepths() }

// NewStatsSource samples the live registry and the room queues of o.
func NewStatsSource(o *runtime.Orchestrator) StatsSource {
	return statsSource{registry: o.Registry(), orchestrator: o}
}

// HeartbeatWorker periodically publishes process and chat gauges.
type HeartbeatWorker struct {
	log      *slog.Logger
	metrics  *observability.Metrics
	source   StatsSource
	interval time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, metrics *observability.Metrics, source StatsSource, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, metrics: metrics, source: source, interval: interval}
}

// Run samples every interval until ctx is done.
func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.beat(p)
		}
	}
}

func (w *HeartbeatWorker) beat(p *process.Process) {
	rss, cpu, status, err := getSelfStats(p)
	if err != nil {
		w.log.Error("Failed to collect self stats", "error", err)
	} else {
		w.metrics.ProcessRSS.Set(float64(rss))
		w.metrics.ProcessCPU.Set(cpu)
	}

	stats := w.source.Stats()
	w.metrics.Connections.Set(float64(stats.Connections))
	w.metrics.Rooms.Set(float64(stats.Rooms))

	busiest, depth := domain.RoomID(""), 0
	for roomID, d := range w.source.QueueDepths() {
		w.metrics.RoomQueueDepth.WithLabelValues(string(roomID)).Set(float64(d))
		if d > depth {
			busiest, depth = roomID, d
		}
	}

	w.log.Debug("Heartbeat",
		"connections", stats.Connections,
		"rooms", stats.Rooms,
		"rss", rss,
		"cpu", cpu,
		"status", status,
		"busiest_room", busiest,
		"busiest_depth", depth)
}

// getSelfStats retrieves memory, CPU and OS status for the given process.
func getSelfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}

	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
