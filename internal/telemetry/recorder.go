package telemetry

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/metadata"
)

// QueueRecorder enqueues usage records for the background worker. It is the
// production implementation of metadata.UsageRecorder.
type QueueRecorder struct {
	client *asynq.Client
}

// NewQueueRecorder constructs a recorder over an Asynq client.
func NewQueueRecorder(client *asynq.Client) *QueueRecorder {
	return &QueueRecorder{client: client}
}

// Record enqueues one usage record.
func (r *QueueRecorder) Record(ctx context.Context, usage metadata.LookupUsage) error {
	if r == nil || r.client == nil {
		return errors.New("telemetry: queue recorder not initialised")
	}
	task, err := NewUsageLogTask(usage)
	if err != nil {
		return err
	}
	_, err = r.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}

// Close releases client resources.
func (r *QueueRecorder) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

// DirectRecorder writes usage records straight to the store, used when no
// queue is configured.
type DirectRecorder struct {
	writer UsageWriter
}

// NewDirectRecorder constructs a store-backed recorder.
func NewDirectRecorder(writer UsageWriter) *DirectRecorder {
	return &DirectRecorder{writer: writer}
}

// Record persists one usage record synchronously.
func (r *DirectRecorder) Record(ctx context.Context, usage metadata.LookupUsage) error {
	if r == nil || r.writer == nil {
		return errors.New("telemetry: direct recorder not initialised")
	}
	return r.writer.InsertUsageLog(ctx, usage)
}
