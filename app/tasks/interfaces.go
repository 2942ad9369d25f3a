package tasks

// TaskSchedulerInterface runs background tasks on a worker pool and
// enqueues ingestion on the configured cron schedule.
// Example usage:
//
//	scheduler, err := NewScheduler(orchestrator, "*/30 * * * *", 1)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewIngestTask(orchestrator, ingest.AllSources))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
