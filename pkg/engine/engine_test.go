package engine

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/ruleflowhq/ruleflow/pkg/actions/assignowner"
	"github.com/ruleflowhq/ruleflow/pkg/actions/logaction"
	"github.com/ruleflowhq/ruleflow/pkg/actions/updatefield"
	"github.com/ruleflowhq/ruleflow/pkg/history"
	"github.com/ruleflowhq/ruleflow/pkg/models"
	"github.com/ruleflowhq/ruleflow/pkg/persistence"
	"github.com/ruleflowhq/ruleflow/pkg/persistence/memory"
	"github.com/ruleflowhq/ruleflow/pkg/protocol"
	"github.com/ruleflowhq/ruleflow/pkg/registry"
	"github.com/ruleflowhq/ruleflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// failingActionFactory builds actions that always fail; used to exercise the
// fail-fast path.
type failingActionFactory struct{}

func (*failingActionFactory) ID() string { return "always_fail" }

func (*failingActionFactory) Create(_ map[string]any) (protocol.Action, error) {
	return &failingAction{}, nil
}

func (*failingActionFactory) Schema() map[string]any { return nil }

type failingAction struct{}

func (*failingAction) Execute(_ context.Context, _ protocol.ActionContext, _ *slog.Logger) (any, error) {
	return nil, errBoom
}

func newTestEngine(t *testing.T) (*Engine, *memory.Persistence) {
	t.Helper()

	store := memory.NewPersistence()

	reg := registry.NewRegistry(slog.Default())
	reg.RegisterAction(logaction.NewActionFactory())
	reg.RegisterAction(assignowner.NewActionFactory())
	reg.RegisterAction(updatefield.NewActionFactory())
	reg.RegisterAction(&failingActionFactory{})

	return NewEngine(slog.Default(), store, reg, history.NewStore(store)), store
}

func TestEngine_Register_Validation(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	t.Run("rejects rule without actions", func(t *testing.T) {
		rule := testutil.CreateTestRule(testutil.WithActions())

		err := engine.Register(ctx, rule)
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
	})

	t.Run("rejects unknown action kind", func(t *testing.T) {
		rule := testutil.CreateTestRule(testutil.WithActions(
			models.RuleAction{Kind: "teleport_record"},
		))

		err := engine.Register(ctx, rule)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownActionKind)
	})

	t.Run("rejects unknown condition operator", func(t *testing.T) {
		rule := testutil.CreateTestRule(testutil.WithConditions(
			models.WorkflowCondition{Field: "status", Operator: "sounds_like", Value: "new"},
		))

		err := engine.Register(ctx, rule)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRuleInvalid)
	})

	t.Run("rejects duplicate rule id", func(t *testing.T) {
		rule := testutil.CreateTestRule()
		require.NoError(t, engine.Register(ctx, rule))

		err := engine.Register(ctx, rule)
		require.Error(t, err)
		assert.True(t, persistence.IsRuleAlreadyExists(err))
	})

	t.Run("register resets counters", func(t *testing.T) {
		rule := testutil.CreateTestRule()
		rule.ExecutionCount = 42

		require.NoError(t, engine.Register(ctx, rule))

		stored, err := engine.Rule(ctx, rule.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), stored.ExecutionCount)
		assert.Nil(t, stored.LastExecutedAt)
	})
}

func TestEngine_EnableDisable(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	rule := testutil.CreateTestRule()
	require.NoError(t, engine.Register(ctx, rule))

	require.NoError(t, engine.Disable(ctx, rule.ID))
	require.NoError(t, engine.Disable(ctx, rule.ID)) // idempotent

	stored, err := engine.Rule(ctx, rule.ID)
	require.NoError(t, err)
	assert.False(t, stored.Enabled)

	enabled, err := engine.ListEnabled(ctx)
	require.NoError(t, err)
	assert.Empty(t, enabled)

	require.NoError(t, engine.Enable(ctx, rule.ID))
	require.NoError(t, engine.Enable(ctx, rule.ID)) // idempotent

	enabled, err = engine.ListEnabled(ctx)
	require.NoError(t, err)
	assert.Len(t, enabled, 1)

	err = engine.Enable(ctx, "missing")
	assert.True(t, persistence.IsRuleNotFound(err))
}

func TestEngine_Dispatch_LeadCreatedAssignsOwner(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	rule := testutil.CreateTestRule(
		testutil.WithName("Assign webform leads"),
		testutil.WithTrigger(models.TriggerLeadCreated),
		testutil.WithConditions(
			models.WorkflowCondition{Field: "source", Operator: models.OperatorEquals, Value: "webform"},
		),
		testutil.WithActions(
			models.RuleAction{Kind: "assign_owner", Params: map[string]any{"owner_id": "user-7"}},
		),
	)
	require.NoError(t, engine.Register(ctx, rule))

	event := testutil.CreateTestRecordEvent()

	executions, err := engine.Dispatch(ctx, models.TriggerLeadCreated, event)
	require.NoError(t, err)
	require.Len(t, executions, 1)

	execution := executions[0]
	assert.Equal(t, models.ExecutionStatusSuccess, execution.Status)
	assert.Equal(t, 1, execution.ActionsExecuted)
	assert.Equal(t, rule.ID, execution.RuleID)
	assert.Equal(t, "Assign webform leads", execution.RuleName)
	assert.Equal(t, event.RecordID, execution.RecordID)

	stored, err := engine.Rule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.ExecutionCount)
	require.NotNil(t, stored.LastExecutedAt)

	historyRecords, err := engine.History().GetExecutionHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, historyRecords, 1)
	assert.Equal(t, execution.ID, historyRecords[0].ID)
}

func TestEngine_Dispatch_ConditionsGate(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	rule := testutil.CreateTestRule(
		testutil.WithTrigger(models.TriggerDealValueChanged),
		testutil.WithConditions(
			models.WorkflowCondition{Field: "value", Operator: models.OperatorGreaterThan, Value: 50000},
		),
	)
	require.NoError(t, engine.Register(ctx, rule))

	smallDeal := testutil.CreateTestRecordEvent(
		testutil.WithRecordType("deal"),
		testutil.WithRecordFields(map[string]any{"value": 30000.0}),
	)

	executions, err := engine.Dispatch(ctx, models.TriggerDealValueChanged, smallDeal)
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, models.ExecutionStatusSkipped, executions[0].Status)
	assert.Equal(t, 0, executions[0].ActionsExecuted)

	stored, err := engine.Rule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.ExecutionCount, "skipped firings must not move counters")

	bigDeal := testutil.CreateTestRecordEvent(
		testutil.WithRecordType("deal"),
		testutil.WithRecordFields(map[string]any{"value": 75000.0}),
	)

	executions, err = engine.Dispatch(ctx, models.TriggerDealValueChanged, bigDeal)
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, models.ExecutionStatusSuccess, executions[0].Status)

	stored, err = engine.Rule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.ExecutionCount)
}

func TestEngine_Dispatch_EmptyConditionsAlwaysExecute(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	rule := testutil.CreateTestRule(testutil.WithConditions())
	require.NoError(t, engine.Register(ctx, rule))

	executions, err := engine.Dispatch(ctx, models.TriggerLeadCreated, testutil.CreateTestRecordEvent())
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, models.ExecutionStatusSuccess, executions[0].Status)
}

func TestEngine_Dispatch_DisabledRuleNeverFires(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	rule := testutil.CreateTestRule(testutil.WithEnabled(false))
	require.NoError(t, engine.Register(ctx, rule))

	executions, err := engine.Dispatch(ctx, models.TriggerLeadCreated, testutil.CreateTestRecordEvent())
	require.NoError(t, err)
	assert.Empty(t, executions)

	historyRecords, err := engine.History().GetExecutionHistory(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, historyRecords)
}

func TestEngine_Dispatch_FailFastAndIsolation(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	failing := testutil.CreateTestRule(
		testutil.WithName("Failing rule"),
		testutil.WithActions(
			models.RuleAction{Kind: "log", Params: map[string]any{"message": "first"}},
			models.RuleAction{Kind: "always_fail"},
			models.RuleAction{Kind: "log", Params: map[string]any{"message": "never runs"}},
		),
	)
	require.NoError(t, engine.Register(ctx, failing))

	healthy := testutil.CreateTestRule(testutil.WithName("Healthy rule"))
	require.NoError(t, engine.Register(ctx, healthy))

	executions, err := engine.Dispatch(ctx, models.TriggerLeadCreated, testutil.CreateTestRecordEvent())
	require.NoError(t, err)
	require.Len(t, executions, 2)

	assert.Equal(t, models.ExecutionStatusFailed, executions[0].Status)
	assert.Equal(t, 1, executions[0].ActionsExecuted, "only the action before the failure completed")
	assert.Contains(t, executions[0].Error, "boom")

	assert.Equal(t, models.ExecutionStatusSuccess, executions[1].Status,
		"a failing rule must not block later rules")

	stored, err := engine.Rule(ctx, failing.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.ExecutionCount, "failed firings must not move counters")
	assert.Nil(t, stored.LastExecutedAt)
}

func TestEngine_Dispatch_RegistrationOrder(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	first := testutil.CreateTestRule(testutil.WithName("First rule"))
	second := testutil.CreateTestRule(testutil.WithName("Second rule"))
	third := testutil.CreateTestRule(testutil.WithName("Third rule"))

	for _, rule := range []*models.WorkflowRule{first, second, third} {
		require.NoError(t, engine.Register(ctx, rule))
	}

	executions, err := engine.Dispatch(ctx, models.TriggerLeadCreated, testutil.CreateTestRecordEvent())
	require.NoError(t, err)
	require.Len(t, executions, 3)

	assert.Equal(t, first.ID, executions[0].RuleID)
	assert.Equal(t, second.ID, executions[1].RuleID)
	assert.Equal(t, third.ID, executions[2].RuleID)
}

func TestEngine_Remove(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	rule := testutil.CreateTestRule()
	require.NoError(t, engine.Register(ctx, rule))

	_, err := engine.Dispatch(ctx, models.TriggerLeadCreated, testutil.CreateTestRecordEvent())
	require.NoError(t, err)

	require.NoError(t, engine.Remove(ctx, rule.ID))

	_, err = engine.Rule(ctx, rule.ID)
	assert.True(t, persistence.IsRuleNotFound(err))

	// History outlives the rule definition.
	historyRecords, err := engine.History().GetExecutionHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, historyRecords, 1)
	assert.Equal(t, rule.Name, historyRecords[0].RuleName)
}

func TestEngine_Stats(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	success := testutil.CreateTestRule()
	require.NoError(t, engine.Register(ctx, success))

	failing := testutil.CreateTestRule(testutil.WithActions(
		models.RuleAction{Kind: "always_fail"},
	))
	require.NoError(t, engine.Register(ctx, failing))

	gated := testutil.CreateTestRule(testutil.WithConditions(
		models.WorkflowCondition{Field: "source", Operator: models.OperatorEquals, Value: "referral"},
	))
	require.NoError(t, engine.Register(ctx, gated))

	_, err := engine.Dispatch(ctx, models.TriggerLeadCreated, testutil.CreateTestRecordEvent())
	require.NoError(t, err)

	stats, err := engine.History().GetExecutionStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Successful)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Skipped)
	assert.InDelta(t, 33.3, stats.SuccessRate, 0.001)
}
