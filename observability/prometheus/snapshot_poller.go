package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-task-manager/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ManagerSnapshotProvider provides current manager stats snapshots.
type ManagerSnapshotProvider interface {
	Stats() core.ManagerStats
}

// SnapshotPoller periodically exports manager Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	managersMu sync.RWMutex
	managers   map[string]ManagerSnapshotProvider

	managerPending   *prom.GaugeVec
	managerActive    *prom.GaugeVec
	managerCompleted *prom.GaugeVec
	managerFailed    *prom.GaugeVec
	managerPeak      *prom.GaugeVec
	managerRunning   *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	gauge := func(name, help string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "taskmanager",
			Name:      name,
			Help:      help,
		}, []string{"manager"})
	}
	managerPending := gauge("manager_pending", "Queued tasks per manager.")
	managerActive := gauge("manager_active", "Active tasks per manager.")
	managerCompleted := gauge("manager_completed", "Completed tasks in the current or last batch.")
	managerFailed := gauge("manager_failed", "Failed or cancelled tasks in the current or last batch.")
	managerPeak := gauge("manager_peak_active", "Largest active set seen in the current or last batch.")
	managerRunning := gauge("manager_running", "Batch running state (1=running, 0=idle).")

	var err error
	if managerPending, err = registerCollector(reg, managerPending); err != nil {
		return nil, err
	}
	if managerActive, err = registerCollector(reg, managerActive); err != nil {
		return nil, err
	}
	if managerCompleted, err = registerCollector(reg, managerCompleted); err != nil {
		return nil, err
	}
	if managerFailed, err = registerCollector(reg, managerFailed); err != nil {
		return nil, err
	}
	if managerPeak, err = registerCollector(reg, managerPeak); err != nil {
		return nil, err
	}
	if managerRunning, err = registerCollector(reg, managerRunning); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:         interval,
		managers:         make(map[string]ManagerSnapshotProvider),
		managerPending:   managerPending,
		managerActive:    managerActive,
		managerCompleted: managerCompleted,
		managerFailed:    managerFailed,
		managerPeak:      managerPeak,
		managerRunning:   managerRunning,
	}, nil
}

// AddManager adds or replaces a manager snapshot provider by name.
func (p *SnapshotPoller) AddManager(name string, provider ManagerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "manager")
	p.managersMu.Lock()
	p.managers[name] = provider
	p.managersMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.managersMu.RLock()
	defer p.managersMu.RUnlock()

	for name, provider := range p.managers {
		stats := provider.Stats()
		p.managerPending.WithLabelValues(name).Set(float64(stats.Pending))
		p.managerActive.WithLabelValues(name).Set(float64(stats.Active))
		p.managerCompleted.WithLabelValues(name).Set(float64(stats.Completed))
		p.managerFailed.WithLabelValues(name).Set(float64(stats.Failed))
		p.managerPeak.WithLabelValues(name).Set(float64(stats.PeakActive))
		if stats.Running {
			p.managerRunning.WithLabelValues(name).Set(1)
		} else {
			p.managerRunning.WithLabelValues(name).Set(0)
		}
	}
}
