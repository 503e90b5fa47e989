package bulk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ruleflowhq/ruleflow/pkg/models"
)

const defaultHTTPTimeout = 30 * time.Second

// HTTPRecordStore talks to the CRM data layer over its REST surface. Records
// are fetched from and written to {baseURL}/records/{id}.
type HTTPRecordStore struct {
	baseURL string
	client  *http.Client
}

func NewHTTPRecordStore(baseURL string) *HTTPRecordStore {
	return &HTTPRecordStore{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
	}
}

func (s *HTTPRecordStore) Current(ctx context.Context, recordID string) (models.BulkRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.recordURL(recordID), nil)
	if err != nil {
		return models.BulkRecord{}, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return models.BulkRecord{}, fmt.Errorf("failed to fetch record %s: %w", recordID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.BulkRecord{}, fmt.Errorf("record %s: unexpected status %d", recordID, resp.StatusCode)
	}

	var record models.BulkRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return models.BulkRecord{}, fmt.Errorf("failed to decode record %s: %w", recordID, err)
	}

	return record, nil
}

func (s *HTTPRecordStore) ApplyChange(ctx context.Context, change models.RecordChange) error {
	return s.putFields(ctx, change.RecordID, change.After)
}

func (s *HTTPRecordStore) RestoreSnapshot(ctx context.Context, checkpoint models.RollbackCheckpoint) error {
	return s.putFields(ctx, checkpoint.RecordID, checkpoint.Snapshot)
}

func (s *HTTPRecordStore) putFields(ctx context.Context, recordID string, fields map[string]any) error {
	payload, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.recordURL(recordID), bytes.NewReader(payload))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to write record %s: %w", recordID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("record %s: unexpected status %d", recordID, resp.StatusCode)
	}

	return nil
}

func (s *HTTPRecordStore) recordURL(recordID string) string {
	return fmt.Sprintf("%s/records/%s", s.baseURL, recordID)
}
