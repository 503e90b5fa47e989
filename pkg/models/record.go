package models

import "time"

// RecordEvent is the opaque record-changed/created event consumed from the
// CRM data layer. The engine never fetches additional data beyond it.
type RecordEvent struct {
	RecordID   string         `json:"record_id"`
	RecordType string         `json:"record_type"`
	TenantID   string         `json:"tenant_id"`
	Fields     map[string]any `json:"fields"`
	Version    int64          `json:"version,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at,omitempty"`
}

// BulkRecord is one candidate record in a bulk dry-run or transactional
// execution. Version and UpdatedAt are captured at selection time and back
// the optimistic conflict check.
type BulkRecord struct {
	ID         string         `json:"id"`
	RecordType string         `json:"record_type"`
	Fields     map[string]any `json:"fields"`
	Version    int64          `json:"version,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at,omitempty"`
}
