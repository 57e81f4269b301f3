package tasks

// TaskSchedulerInterface defines the interface for background task
// scheduling. The main application starts and stops the worker pool
// through it, and the HTTP API uses EnqueueTask to trigger on-demand
// harvests.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
