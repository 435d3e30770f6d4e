package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	ActionAccessGranted = "access_granted"
	ActionAccessDenied  = "access_denied"
	ActionDataRead      = "data_read"
	ActionDataModified  = "data_modified"
	ActionRevoked       = "revoked"
)

// AccessLog is a single append-only audit entry for a share.
// Entries are inserted once and never updated or deleted.
type AccessLog struct {
	ID           int64           `json:"id"`
	ShareID      uuid.UUID       `json:"share_id"`
	Action       string          `json:"action"`
	ResourceType *string         `json:"resource_type,omitempty"`
	ResourceID   *string         `json:"resource_id,omitempty"`
	OldData      json.RawMessage `json:"old_data,omitempty"`
	NewData      json.RawMessage `json:"new_data,omitempty"`
	ClientIP     *string         `json:"client_ip,omitempty"`
	UserAgent    *string         `json:"user_agent,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
