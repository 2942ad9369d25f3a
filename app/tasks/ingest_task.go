package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/unikonkon/crypto-news-aggregator/app/ingest"
)

type Ingester interface {
	Run(ctx context.Context, sourceName string) (*ingest.Report, error)
}

type IngestTask struct {
	Task
	ingester Ingester
}

func NewIngestTask(ingester Ingester, source string) *IngestTask {
	return &IngestTask{
		Task:     NewTask(TaskTypeIngest, source),
		ingester: ingester,
	}
}

// Execute runs one ingestion pass. A pass where every source failed is
// reported as an error so the scheduler retries it.
func (t *IngestTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	report, err := t.ingester.Run(ctx, t.Source)
	if err != nil {
		return fmt.Errorf("failed to ingest: %w", err)
	}

	if report.AllFailed() {
		return fmt.Errorf("all %d sources failed", len(report.Results))
	}

	slog.Info("Task completed", "type", string(t.Type), "source", t.Source,
		"new", report.New, "existing", report.Existing, "failed", report.Failed, "duration", t.GetDuration())

	return nil
}
