// Package config provides YAML bootstrap loading for rules and schedules.
package config

import (
	"fmt"
	"os"

	"github.com/ruleflowhq/ruleflow/pkg/models"
	"gopkg.in/yaml.v3"
)

// BootstrapFile is the structure of the ruleflow.yaml bootstrap file: rules
// to register at startup plus cron schedules feeding the schedule trigger.
type BootstrapFile struct {
	Rules     []RuleConfig     `yaml:"rules"`
	Schedules []ScheduleConfig `yaml:"schedules"`
}

// RuleConfig is one rule definition in the YAML file.
type RuleConfig struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Enabled     *bool             `yaml:"enabled"`
	Trigger     string            `yaml:"trigger"`
	Conditions  []ConditionConfig `yaml:"conditions"`
	Actions     []ActionConfig    `yaml:"actions"`
}

type ConditionConfig struct {
	Field    string `yaml:"field"`
	Operator string `yaml:"operator"`
	Value    any    `yaml:"value"`
}

type ActionConfig struct {
	Kind   string         `yaml:"kind"`
	Params map[string]any `yaml:"params"`
}

// ScheduleConfig is one cron schedule in the YAML file.
type ScheduleConfig struct {
	Cron       string         `yaml:"cron"`
	RecordType string         `yaml:"record_type"`
	Fields     map[string]any `yaml:"fields"`
}

// LoadBootstrap reads and parses the bootstrap file.
func LoadBootstrap(path string) (*BootstrapFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file BootstrapFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return &file, nil
}

// ToRules converts the YAML rule definitions to domain rules. Rules default
// to enabled.
func (f *BootstrapFile) ToRules() []*models.WorkflowRule {
	rules := make([]*models.WorkflowRule, 0, len(f.Rules))

	for _, rc := range f.Rules {
		rule := &models.WorkflowRule{
			ID:          rc.ID,
			Name:        rc.Name,
			Description: rc.Description,
			Enabled:     true,
			Trigger:     models.TriggerType(rc.Trigger),
		}

		if rc.Enabled != nil {
			rule.Enabled = *rc.Enabled
		}

		for _, cc := range rc.Conditions {
			rule.Conditions = append(rule.Conditions, models.WorkflowCondition{
				Field:    cc.Field,
				Operator: models.ConditionOperator(cc.Operator),
				Value:    cc.Value,
			})
		}

		for _, ac := range rc.Actions {
			rule.Actions = append(rule.Actions, models.RuleAction{
				Kind:   ac.Kind,
				Params: ac.Params,
			})
		}

		rules = append(rules, rule)
	}

	return rules
}
