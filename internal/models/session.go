package models

import (
	"time"

	"github.com/google/uuid"
)

// ShareSession is the ephemeral authorization context issued after a
// successful code verification. It lives only in process memory and is
// never persisted.
type ShareSession struct {
	SessionToken string           `json:"session_token"`
	ShareID      uuid.UUID        `json:"share_id"`
	ShareToken   string           `json:"share_token"`
	ShareType    string           `json:"share_type"`
	Permissions  SharePermissions `json:"permissions"`
	PatientID    *uuid.UUID       `json:"patient_id,omitempty"`
	PregnancyID  *uuid.UUID       `json:"pregnancy_id,omitempty"`
	DocumentIDs  []uuid.UUID      `json:"document_ids,omitempty"`
	OwnerID      int64            `json:"owner_id"`
	ExpiresAt    time.Time        `json:"expires_at"`
	CreatedAt    time.Time        `json:"created_at"`
}
