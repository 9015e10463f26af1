package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Swind/go-task-manager/core"
	"github.com/Swind/go-task-manager/internal/api"
	"github.com/Swind/go-task-manager/internal/bench"
	"github.com/Swind/go-task-manager/internal/sqlite"
	promexp "github.com/Swind/go-task-manager/observability/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the taskbench HTTP API",
		Long: `Start the HTTP API. Batches are started with POST /api/batches and
Prometheus metrics are served on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Override config from flags
			if host != "" {
				a.cfg.Server.Host = host
			}
			if port > 0 {
				a.cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Host to listen on (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on (overrides config)")
	return cmd
}

// service is everything serve wires together.
type service struct {
	db     *sqlite.DB
	runner *bench.Runner
	poller *promexp.SnapshotPoller
	server *api.Server
}

func (a *app) newService(reg *prom.Registry) (*service, error) {
	exporter, err := promexp.NewMetricsExporter("taskmanager", reg, promexp.ExporterOptions{})
	if err != nil {
		return nil, err
	}
	poller, err := promexp.NewSnapshotPoller(reg, 5*time.Second)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.Open(a.cfg.Store.Dir)
	if err != nil {
		return nil, err
	}

	d := a.workload()
	manager := core.NewTaskManager(d.concurrency, &core.ManagerConfig{
		Logger:  a.logger,
		Metrics: exporter,
	})
	manager.SetName(d.name)
	poller.AddManager(d.name, manager)

	runner := bench.NewRunner(manager, db, a.logger)
	server := api.NewServer(runner, db, d.benchWorkload(), a.logger)
	server.EnableMetrics(reg)

	return &service{db: db, runner: runner, poller: poller, server: server}, nil
}

func (a *app) serve(ctx context.Context) error {
	reg := prom.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc, err := a.newService(reg)
	if err != nil {
		return err
	}
	defer svc.db.Close()

	svc.server.SetBaseContext(ctx)
	svc.poller.Start(ctx)
	defer svc.poller.Stop()

	addr := net.JoinHostPort(a.cfg.Server.Host, strconv.Itoa(a.cfg.Server.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           svc.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", core.F("addr", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	// ctx is done, so a running batch is already being cancelled.
	svc.runner.Wait()
	return nil
}
