// Package schedule emits synthetic trigger events on cron schedules, driving
// rules subscribed to the schedule trigger.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ruleflowhq/ruleflow/pkg/models"
)

// Callback receives the synthetic record event of a fired schedule.
type Callback func(ctx context.Context, event models.RecordEvent) error

// Source runs cron entries and invokes the callback on every fire. Entries
// can be added before or after Start.
type Source struct {
	logger   *slog.Logger
	cron     *cron.Cron
	callback Callback
	started  bool
	mu       sync.Mutex
}

func NewSource(logger *slog.Logger) *Source {
	return &Source{
		logger: logger.With("module", "schedule"),
		cron:   cron.New(),
	}
}

// AddSchedule registers a cron entry that fires the given event. The event's
// update timestamp is stamped at fire time.
func (s *Source) AddSchedule(spec string, event models.RecordEvent) (cron.EntryID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(spec, func() {
		s.fire(event)
	})
	if err != nil {
		return 0, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}

	s.logger.Info("Schedule registered", "spec", spec, "record_type", event.RecordType)

	return id, nil
}

// RemoveSchedule drops a cron entry.
func (s *Source) RemoveSchedule(id cron.EntryID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cron.Remove(id)
}

// Start begins firing schedules. Starting a started source is a no-op.
func (s *Source) Start(_ context.Context, callback Callback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.callback = callback
	s.cron.Start()
	s.started = true

	s.logger.Info("Schedule source started", "entries", len(s.cron.Entries()))

	return nil
}

// Stop halts firing and waits for in-flight callbacks to finish.
func (s *Source) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	s.started = false
	s.logger.Info("Schedule source stopped")

	return nil
}

func (s *Source) fire(event models.RecordEvent) {
	s.mu.Lock()
	callback := s.callback
	s.mu.Unlock()

	if callback == nil {
		return
	}

	event.UpdatedAt = time.Now().UTC()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := callback(ctx, event); err != nil {
		s.logger.Error("Schedule callback failed",
			"record_type", event.RecordType, "error", err)
	}
}
