package schedule

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ruleflowhq/ruleflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSource_AddSchedule_InvalidSpec(t *testing.T) {
	source := NewSource(slog.Default())

	_, err := source.AddSchedule("not a cron spec", models.RecordEvent{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron expression")
}

func TestSource_StartStopIdempotent(t *testing.T) {
	source := NewSource(slog.Default())
	ctx := context.Background()

	callback := func(_ context.Context, _ models.RecordEvent) error { return nil }

	require.NoError(t, source.Start(ctx, callback))
	require.NoError(t, source.Start(ctx, callback))

	require.NoError(t, source.Stop(ctx))
	require.NoError(t, source.Stop(ctx))
}

func TestSource_FiresCallback(t *testing.T) {
	source := NewSource(slog.Default())
	ctx := context.Background()

	fired := make(chan models.RecordEvent, 1)

	event := models.RecordEvent{
		RecordID:   "schedule-nightly",
		RecordType: "schedule",
		Fields:     map[string]any{"job": "nightly_cleanup"},
	}

	_, err := source.AddSchedule("@every 100ms", event)
	require.NoError(t, err)

	require.NoError(t, source.Start(ctx, func(_ context.Context, e models.RecordEvent) error {
		select {
		case fired <- e:
		default:
		}

		return nil
	}))

	defer func() {
		require.NoError(t, source.Stop(ctx))
	}()

	select {
	case received := <-fired:
		assert.Equal(t, "schedule-nightly", received.RecordID)
		assert.False(t, received.UpdatedAt.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("schedule never fired")
	}
}

func TestSource_RemoveSchedule(t *testing.T) {
	source := NewSource(slog.Default())

	id, err := source.AddSchedule("@hourly", models.RecordEvent{RecordType: "schedule"})
	require.NoError(t, err)

	source.RemoveSchedule(id)
}
