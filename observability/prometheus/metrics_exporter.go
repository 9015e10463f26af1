package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/Swind/go-task-manager/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	taskDurationSeconds *prom.HistogramVec
	taskPanicTotal      *prom.CounterVec
	queueDepth          *prom.GaugeVec
	activeTasks         *prom.GaugeVec

	batchTotal           *prom.CounterVec
	batchDurationSeconds *prom.GaugeVec
	batchEfficiency      *prom.GaugeVec
	batchThroughput      *prom.GaugeVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "taskmanager"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Task execution duration in seconds.",
		Buckets:   buckets,
	}, []string{"manager", "status"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_panic_total",
		Help:      "Total number of task panics.",
	}, []string{"manager"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Tasks waiting for a free slot.",
	}, []string{"manager"})
	activeVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "active_tasks",
		Help:      "Tasks currently in the active set.",
	}, []string{"manager"})
	batchTotalVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "batch_total",
		Help:      "Total number of finished batches.",
	}, []string{"manager"})
	batchDurationVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "batch_duration_seconds",
		Help:      "Wall-clock duration of the last batch.",
	}, []string{"manager"})
	efficiencyVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "batch_efficiency_percent",
		Help:      "Theoretical over observed duration of the last batch, in percent.",
	}, []string{"manager"})
	throughputVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "batch_throughput_tasks_per_second",
		Help:      "Settled tasks per second in the last batch.",
	}, []string{"manager"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}
	if activeVec, err = registerCollector(reg, activeVec); err != nil {
		return nil, err
	}
	if batchTotalVec, err = registerCollector(reg, batchTotalVec); err != nil {
		return nil, err
	}
	if batchDurationVec, err = registerCollector(reg, batchDurationVec); err != nil {
		return nil, err
	}
	if efficiencyVec, err = registerCollector(reg, efficiencyVec); err != nil {
		return nil, err
	}
	if throughputVec, err = registerCollector(reg, throughputVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		taskDurationSeconds:  durationVec,
		taskPanicTotal:       panicVec,
		queueDepth:           queueDepthVec,
		activeTasks:          activeVec,
		batchTotal:           batchTotalVec,
		batchDurationSeconds: batchDurationVec,
		batchEfficiency:      efficiencyVec,
		batchThroughput:      throughputVec,
	}, nil
}

// RecordTaskDuration records how long a settled task ran.
func (m *MetricsExporter) RecordTaskDuration(managerName string, status core.TaskStatus, duration time.Duration) {
	if m == nil {
		return
	}
	m.taskDurationSeconds.WithLabelValues(normalizeLabel(managerName, "unknown"), normalizeLabel(string(status), "unknown")).Observe(duration.Seconds())
}

// RecordTaskPanic records task panic events.
func (m *MetricsExporter) RecordTaskPanic(managerName string, panicInfo any) {
	if m == nil {
		return
	}
	m.taskPanicTotal.WithLabelValues(normalizeLabel(managerName, "unknown")).Inc()
}

// RecordQueueDepth records queue depth.
func (m *MetricsExporter) RecordQueueDepth(managerName string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(normalizeLabel(managerName, "unknown")).Set(float64(depth))
}

// RecordActiveTasks records the size of the active set.
func (m *MetricsExporter) RecordActiveTasks(managerName string, active int) {
	if m == nil {
		return
	}
	m.activeTasks.WithLabelValues(normalizeLabel(managerName, "unknown")).Set(float64(active))
}

// RecordBatch records the summary of a finished batch.
func (m *MetricsExporter) RecordBatch(managerName string, metrics core.BatchMetrics) {
	if m == nil {
		return
	}
	name := normalizeLabel(managerName, "unknown")
	m.batchTotal.WithLabelValues(name).Inc()
	m.batchDurationSeconds.WithLabelValues(name).Set(metrics.TotalDuration.Seconds())
	m.batchEfficiency.WithLabelValues(name).Set(metrics.Efficiency)
	m.batchThroughput.WithLabelValues(name).Set(metrics.Throughput)
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
