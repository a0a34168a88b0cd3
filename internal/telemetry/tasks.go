package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/metadata"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeUsageLog is the task type for persisting lookup telemetry.
	TaskTypeUsageLog = "metadata:usage_log"
)

// NewUsageLogTask constructs an Asynq task from a lookup usage record.
func NewUsageLogTask(usage metadata.LookupUsage) (*asynq.Task, error) {
	data, err := json.Marshal(usage)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeUsageLog, data), nil
}

// UsageWriter persists usage records; satisfied by metadata.Repository.
type UsageWriter interface {
	InsertUsageLog(ctx context.Context, usage metadata.LookupUsage) error
}

// UsageLogHandler processes TaskTypeUsageLog tasks.
type UsageLogHandler struct {
	writer  UsageWriter
	logger  *slog.Logger
	metrics *Metrics
}

// NewUsageLogHandler constructs the task handler.
func NewUsageLogHandler(writer UsageWriter, logger *slog.Logger, metrics *Metrics) *UsageLogHandler {
	return &UsageLogHandler{writer: writer, logger: logger, metrics: metrics}
}

// Handle unmarshals and persists one usage record. Malformed payloads are
// dropped rather than retried.
func (h *UsageLogHandler) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := h.metrics.Track(TaskTypeUsageLog)
	var usage metadata.LookupUsage
	if err := json.Unmarshal(t.Payload(), &usage); err != nil {
		if h.logger != nil {
			h.logger.Warn("drop malformed usage payload", slog.Any("error", err))
		}
		_ = tracker.End(err)
		return asynq.SkipRetry
	}
	return tracker.End(h.writer.InsertUsageLog(ctx, usage))
}
