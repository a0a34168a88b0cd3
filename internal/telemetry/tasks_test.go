package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/metadata"
)

type captureWriter struct {
	records []metadata.LookupUsage
	err     error
}

func (w *captureWriter) InsertUsageLog(ctx context.Context, usage metadata.LookupUsage) error {
	w.records = append(w.records, usage)
	return w.err
}

func TestUsageLogTaskRoundTrip(t *testing.T) {
	usage := metadata.LookupUsage{
		TenantID:   uuid.New(),
		Term:       "Net Revenue",
		Found:      true,
		Strategy:   "alias",
		ObservedAt: time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC),
	}
	task, err := NewUsageLogTask(usage)
	require.NoError(t, err)
	require.Equal(t, TaskTypeUsageLog, task.Type())

	writer := &captureWriter{}
	handler := NewUsageLogHandler(writer, nil, nil)
	require.NoError(t, handler.Handle(context.Background(), task))
	require.Len(t, writer.records, 1)
	require.Equal(t, usage, writer.records[0])
}

func TestUsageLogHandlerDropsMalformedPayload(t *testing.T) {
	writer := &captureWriter{}
	handler := NewUsageLogHandler(writer, nil, nil)

	task := asynq.NewTask(TaskTypeUsageLog, []byte("{not json"))
	err := handler.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Empty(t, writer.records)
}

func TestUsageLogHandlerPropagatesWriteFailure(t *testing.T) {
	boom := errors.New("insert failed")
	writer := &captureWriter{err: boom}
	handler := NewUsageLogHandler(writer, nil, nil)

	task, err := NewUsageLogTask(metadata.LookupUsage{Term: "x"})
	require.NoError(t, err)
	require.ErrorIs(t, handler.Handle(context.Background(), task), boom)
}
