package prometheus

import (
	"context"
	"testing"
	"time"

	"github.com/Swind/go-task-manager/core"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type managerStub struct {
	stats core.ManagerStats
}

func (s managerStub) Stats() core.ManagerStats { return s.stats }

func TestSnapshotPoller_CollectsManagerStats(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	poller.AddManager("manager-a", managerStub{stats: core.ManagerStats{
		Pending:    3,
		Active:     2,
		Completed:  5,
		Failed:     1,
		PeakActive: 2,
		Running:    true,
	}})
	poller.AddManager("manager-b", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	assertEventually(t, 2*time.Second, func() bool {
		pending := testutil.ToFloat64(poller.managerPending.WithLabelValues("manager-a"))
		active := testutil.ToFloat64(poller.managerActive.WithLabelValues("manager-a"))
		return pending == 3 && active == 2
	})

	if got := testutil.ToFloat64(poller.managerCompleted.WithLabelValues("manager-a")); got != 5 {
		t.Fatalf("completed gauge = %v, want 5", got)
	}
	if got := testutil.ToFloat64(poller.managerFailed.WithLabelValues("manager-a")); got != 1 {
		t.Fatalf("failed gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(poller.managerRunning.WithLabelValues("manager-a")); got != 1 {
		t.Fatalf("running gauge = %v, want 1", got)
	}
}

func TestSnapshotPoller_RealManager(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, time.Hour)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}
	m := core.NewTaskManager(2, nil)
	poller.AddManager("real", m)

	if _, err := m.Run(context.Background(), []any{1, 2, 3}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	poller.collectOnce()

	if got := testutil.ToFloat64(poller.managerCompleted.WithLabelValues("real")); got != 3 {
		t.Fatalf("completed gauge = %v, want 3", got)
	}
	if got := testutil.ToFloat64(poller.managerRunning.WithLabelValues("real")); got != 0 {
		t.Fatalf("running gauge = %v, want 0", got)
	}
}

func TestSnapshotPoller_StartStop_Idempotent(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller.Start(ctx)
	poller.Start(ctx)
	poller.Stop()
	poller.Stop()
}

func assertEventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}
