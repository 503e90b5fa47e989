package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/ruleflowhq/ruleflow/pkg/bulk"
	"github.com/ruleflowhq/ruleflow/pkg/models"
	"github.com/ruleflowhq/ruleflow/pkg/persistence/file"
	"github.com/ruleflowhq/ruleflow/pkg/registry"
	"github.com/ruleflowhq/ruleflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruleflowhq/ruleflow/pkg/actions/logaction"
)

type noopRecordStore struct{}

func (noopRecordStore) Current(_ context.Context, _ string) (models.BulkRecord, error) {
	return models.BulkRecord{}, nil
}

func (noopRecordStore) ApplyChange(_ context.Context, _ models.RecordChange) error {
	return nil
}

func (noopRecordStore) RestoreSnapshot(_ context.Context, _ models.RollbackCheckpoint) error {
	return nil
}

func setupTestApp(t *testing.T) (*fiber.App, *file.Persistence) {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())

	reg := registry.NewRegistry(slog.Default())
	reg.RegisterAction(logaction.NewActionFactory())

	var records bulk.RecordStore = noopRecordStore{}

	api := NewAPI(slog.Default(), persistence, reg, records)

	return api.App(), persistence
}

func TestAPI_RootEndpoint(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "RuleFlow API", string(body))
}

func TestAPI_HealthCheck(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_GetRules_Empty(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/rules", nil)
	req.Header.Set("Accept", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var rules []models.WorkflowRule

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rules))
	assert.Empty(t, rules)
}

func TestAPI_GetRules_WithData(t *testing.T) {
	app, persistence := setupTestApp(t)

	rule := testutil.CreateTestRule(testutil.WithName("Stored rule"))
	require.NoError(t, persistence.SaveRule(context.Background(), rule))

	req := httptest.NewRequest(http.MethodGet, "/rules", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var rules []models.WorkflowRule

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rules))
	require.Len(t, rules, 1)
	assert.Equal(t, "Stored rule", rules[0].Name)
}
