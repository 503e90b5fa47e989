package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruleflowhq/ruleflow/pkg/config"
	"github.com/ruleflowhq/ruleflow/pkg/engine"
	"github.com/ruleflowhq/ruleflow/pkg/eventbus"
	"github.com/ruleflowhq/ruleflow/pkg/events"
	"github.com/ruleflowhq/ruleflow/pkg/history"
	"github.com/ruleflowhq/ruleflow/pkg/models"
	"github.com/ruleflowhq/ruleflow/pkg/persistence"
	"github.com/ruleflowhq/ruleflow/pkg/registry"
	"github.com/ruleflowhq/ruleflow/pkg/sources/schedule"
	"go.opentelemetry.io/otel/trace"
)

// Worker consumes record change events and runs trigger dispatch, plus the
// cron schedule source for schedule-triggered rules.
type Worker struct {
	id            string
	logger        *slog.Logger
	engine        *engine.Engine
	eventBus      eventbus.EventBus
	schedules     *schedule.Source
	bootstrapPath string
}

func NewWorker(
	id string,
	logger *slog.Logger,
	store persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
	bootstrapPath string,
) *Worker {
	eng := engine.NewEngine(logger, store, registry, history.NewStore(store)).
		WithPublisher(eventBus)

	if tracer != nil {
		eng = eng.WithTracer(tracer)
	}

	return &Worker{
		id:            id,
		logger:        logger,
		engine:        eng,
		eventBus:      eventBus,
		schedules:     schedule.NewSource(logger),
		bootstrapPath: bootstrapPath,
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting engine worker")

	if err := w.bootstrap(ctx); err != nil {
		return err
	}

	if err := w.eventBus.Handle(events.RecordChangedEvent, w.handleRecordChanged); err != nil {
		return err
	}

	if err := w.eventBus.Subscribe(ctx, events.RecordChangeTopic); err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to record changes", "error", err)

		return err
	}

	if err := w.schedules.Start(ctx, w.handleSchedule); err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Engine worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down engine worker...")

	return w.schedules.Stop(ctx)
}

// bootstrap registers rules and schedules from the YAML file. Rules that
// already exist are left untouched.
func (w *Worker) bootstrap(ctx context.Context) error {
	if w.bootstrapPath == "" {
		return nil
	}

	file, err := config.LoadBootstrap(w.bootstrapPath)
	if err != nil {
		return err
	}

	for _, rule := range file.ToRules() {
		err := w.engine.Register(ctx, rule)
		if err != nil {
			if persistence.IsRuleAlreadyExists(err) {
				continue
			}

			return err
		}

		w.logger.InfoContext(ctx, "Bootstrap rule registered", "rule_id", rule.ID)
	}

	for _, sched := range file.Schedules {
		event := models.RecordEvent{
			RecordID:   "schedule-" + sched.RecordType,
			RecordType: sched.RecordType,
			Fields:     sched.Fields,
		}

		if _, err := w.schedules.AddSchedule(sched.Cron, event); err != nil {
			return err
		}
	}

	return nil
}

func (w *Worker) handleRecordChanged(ctx context.Context, event any) error {
	changed, ok := event.(*events.RecordChanged)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for RecordChanged")

		return nil
	}

	logger := w.logger.With(
		"trigger", changed.Trigger,
		"record_id", changed.Record.RecordID,
		"event_id", changed.ID,
	)
	logger.InfoContext(ctx, "Processing record change event")

	executions, err := w.engine.Dispatch(ctx, changed.Trigger, changed.Record)
	if err != nil {
		logger.ErrorContext(ctx, "Dispatch failed", "error", err)

		return err
	}

	logger.InfoContext(ctx, "Record change processed", "rules_fired", len(executions))

	return nil
}

func (w *Worker) handleSchedule(ctx context.Context, event models.RecordEvent) error {
	_, err := w.engine.Dispatch(ctx, models.TriggerSchedule, event)

	return err
}
