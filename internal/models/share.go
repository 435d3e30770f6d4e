package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ShareTypePatient      = "patient"
	ShareTypePregnancy    = "pregnancy"
	ShareTypeDocuments    = "documents"
	ShareTypeSyntheticPDF = "syntheticPdf"
)

type SharePermissions struct {
	Read     bool `json:"read"`
	Write    bool `json:"write"`
	Download bool `json:"download"`
}

type Share struct {
	ID               uuid.UUID        `json:"id"`
	OwnerID          int64            `json:"owner_id"`
	ShareType        string           `json:"share_type"`
	PatientID        *uuid.UUID       `json:"patient_id,omitempty"`
	PregnancyID      *uuid.UUID       `json:"pregnancy_id,omitempty"`
	DocumentIDs      []uuid.UUID      `json:"document_ids,omitempty"`
	ShareToken       string           `json:"share_token"`
	AccessCodeHash   string           `json:"-"`
	Permissions      SharePermissions `json:"permissions"`
	RecipientName    *string          `json:"recipient_name,omitempty"`
	RecipientEmail   *string          `json:"recipient_email,omitempty"`
	RecipientNote    *string          `json:"recipient_note,omitempty"`
	ExpiresAt        *time.Time       `json:"expires_at,omitempty"`
	MaxAccessCount   *int             `json:"max_access_count,omitempty"`
	AccessCount      int              `json:"access_count"`
	FailedAttempts   int              `json:"failed_attempts"`
	LockedUntil      *time.Time       `json:"locked_until,omitempty"`
	IsActive         bool             `json:"is_active"`
	LastAccessAt     *time.Time       `json:"last_access_at,omitempty"`
	RevokedAt        *time.Time       `json:"revoked_at,omitempty"`
	RevokedBy        *int64           `json:"revoked_by,omitempty"`
	RevocationReason *string          `json:"revocation_reason,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Expired reports whether the share's expiry timestamp has passed. The
// bound is inclusive, matching the `expires_at > now()` guard in the grant
// statement, so the exact expiry instant denies on both paths. A share with
// no expiry never expires by wall clock.
func (s *Share) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !s.ExpiresAt.After(now)
}

// Exhausted reports whether the access budget, if one was set, is used up.
func (s *Share) Exhausted() bool {
	return s.MaxAccessCount != nil && s.AccessCount >= *s.MaxAccessCount
}

// Locked reports whether a brute-force lock is still in force.
func (s *Share) Locked(now time.Time) bool {
	return s.LockedUntil != nil && s.LockedUntil.After(now)
}
