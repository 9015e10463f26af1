// Package taskmanager runs batches of asynchronous work with a hard cap on
// how many tasks are in flight at once.
//
// A batch is a slice of work items. Each item is started in submission order
// as soon as a slot is free; a failing or panicking task is recorded and never
// stops its siblings. When the queue and the active set are both empty, Run
// returns the completed and failed partitions together with BatchMetrics that
// compare the observed duration against perfect packing.
//
// # Quick Start
//
//	result, err := taskmanager.RunAll(ctx, 4,
//		func(ctx context.Context) (any, error) { return fetch(ctx, "a") },
//		func(ctx context.Context) (any, error) { return fetch(ctx, "b") },
//	)
//	if err != nil {
//		return err
//	}
//	pages := taskmanager.Results[string](result.Completed)
//
// # Key Concepts
//
// TaskManager: owns the queue, the active set and the two result partitions.
// Only one batch runs at a time; a second Run returns ErrBatchInProgress.
//
// Work items: functions of several shapes, Executors, Futures, errors and
// plain values are all accepted (see core.NewTask). Named attaches a display
// name used in events and history.
//
// Cancellation: CancelTask removes a queued or active task, CancelAllTasks
// removes everything and cancelling the Run context does the same. Active
// tasks see their context cancelled; whatever they return afterwards is
// discarded. Cancelled items land in Failed with status cancelled.
//
// Events: Subscribe to task-started, task-completed, task-failed,
// task-cancelled and batch-finished.
//
// # Example
//
//	m := taskmanager.NewTaskManager(2, &taskmanager.ManagerConfig{
//		Logger: charmlog.New(os.Stderr, charmlog.DefaultOptions()),
//	})
//	m.Subscribe(taskmanager.EventTaskFailed, func(ev taskmanager.Event) {
//		fmt.Println("failed:", ev.Task.Name, ev.Task.Error)
//	})
//	result, _ := m.Run(ctx, []any{
//		taskmanager.Resolved(1),
//		taskmanager.Rejected(errors.New("x")),
//		taskmanager.Resolved(3),
//	})
//	fmt.Printf("%.1f%% efficient\n", result.Metrics.Efficiency)
package taskmanager
