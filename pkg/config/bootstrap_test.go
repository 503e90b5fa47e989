package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ruleflowhq/ruleflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBootstrap = `
rules:
  - id: assign-webform-leads
    name: Assign webform leads
    trigger: lead_created
    conditions:
      - field: source
        operator: equals
        value: webform
    actions:
      - kind: assign_owner
        params:
          owner_id: user-7
  - id: disabled-rule
    name: Disabled rule
    enabled: false
    trigger: deal_value_changed
    actions:
      - kind: log
        params:
          message: big deal

schedules:
  - cron: "0 2 * * *"
    record_type: schedule
    fields:
      job: nightly_cleanup
`

func writeBootstrap(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ruleflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadBootstrap(t *testing.T) {
	file, err := LoadBootstrap(writeBootstrap(t, sampleBootstrap))
	require.NoError(t, err)

	require.Len(t, file.Rules, 2)
	require.Len(t, file.Schedules, 1)
	assert.Equal(t, "0 2 * * *", file.Schedules[0].Cron)

	rules := file.ToRules()
	require.Len(t, rules, 2)

	first := rules[0]
	assert.Equal(t, "assign-webform-leads", first.ID)
	assert.True(t, first.Enabled)
	assert.Equal(t, models.TriggerLeadCreated, first.Trigger)
	require.Len(t, first.Conditions, 1)
	assert.Equal(t, models.OperatorEquals, first.Conditions[0].Operator)
	require.Len(t, first.Actions, 1)
	assert.Equal(t, "assign_owner", first.Actions[0].Kind)
	assert.Equal(t, "user-7", first.Actions[0].Params["owner_id"])

	assert.False(t, rules[1].Enabled)
}

func TestLoadBootstrap_MissingFile(t *testing.T) {
	_, err := LoadBootstrap(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadBootstrap_BadYAML(t *testing.T) {
	_, err := LoadBootstrap(writeBootstrap(t, "rules: ["))
	require.Error(t, err)
}
