package sharing

import (
	"context"
	"encoding/json"
	"fmt"
	"serwer-gabinetu/internal/database"
	"serwer-gabinetu/internal/models"
	"serwer-gabinetu/internal/token"
	"time"

	"github.com/google/uuid"
)

// Brute-force policy. The 5-attempt threshold and 15-minute lockout are
// product constants, not tunables.
const (
	MaxFailedAttempts = 5
	LockoutDuration   = 15 * time.Minute
)

type resourceHandler struct {
	fetch func(ctx context.Context, id uuid.UUID) (interface{}, error)
	apply func(ctx context.Context, id uuid.UUID, newData json.RawMessage) (interface{}, error)
}

// Service implements share issuance, verification, mediated access and the
// owner-facing registry operations.
type Service struct {
	shares   ShareStore
	medical  MedicalStore
	issuer   *token.Issuer
	sessions *SessionManager
	notifier Notifier
	handlers map[string]resourceHandler
	attempts *attemptCache
	now      func() time.Time
}

func NewService(shares ShareStore, medical MedicalStore, issuer *token.Issuer, sessions *SessionManager, notifier Notifier) *Service {
	s := &Service{
		shares:   shares,
		medical:  medical,
		issuer:   issuer,
		sessions: sessions,
		notifier: notifier,
		attempts: newAttemptCache(),
		now:      time.Now,
	}
	s.handlers = map[string]resourceHandler{
		"patient": {
			fetch: func(ctx context.Context, id uuid.UUID) (interface{}, error) {
				p, err := medical.GetPatient(ctx, id)
				if p == nil {
					return nil, err
				}
				return p, err
			},
			apply: func(ctx context.Context, id uuid.UUID, newData json.RawMessage) (interface{}, error) {
				var arg database.UpdatePatientParams
				if err := json.Unmarshal(newData, &arg); err != nil {
					return nil, fmt.Errorf("%w: %v", ErrUnsupportedResource, err)
				}
				p, err := medical.UpdatePatient(ctx, id, arg)
				if p == nil {
					return nil, err
				}
				return p, err
			},
		},
		"pregnancy": {
			fetch: func(ctx context.Context, id uuid.UUID) (interface{}, error) {
				p, err := medical.GetPregnancy(ctx, id)
				if p == nil {
					return nil, err
				}
				return p, err
			},
			apply: func(ctx context.Context, id uuid.UUID, newData json.RawMessage) (interface{}, error) {
				var arg database.UpdatePregnancyParams
				if err := json.Unmarshal(newData, &arg); err != nil {
					return nil, fmt.Errorf("%w: %v", ErrUnsupportedResource, err)
				}
				p, err := medical.UpdatePregnancy(ctx, id, arg)
				if p == nil {
					return nil, err
				}
				return p, err
			},
		},
		"consultation": {
			fetch: func(ctx context.Context, id uuid.UUID) (interface{}, error) {
				c, err := medical.GetConsultation(ctx, id)
				if c == nil {
					return nil, err
				}
				return c, err
			},
			apply: func(ctx context.Context, id uuid.UUID, newData json.RawMessage) (interface{}, error) {
				var arg database.UpdateConsultationParams
				if err := json.Unmarshal(newData, &arg); err != nil {
					return nil, fmt.Errorf("%w: %v", ErrUnsupportedResource, err)
				}
				c, err := medical.UpdateConsultation(ctx, id, arg)
				if c == nil {
					return nil, err
				}
				return c, err
			},
		},
		"exam": {
			fetch: func(ctx context.Context, id uuid.UUID) (interface{}, error) {
				e, err := medical.GetExam(ctx, id)
				if e == nil {
					return nil, err
				}
				return e, err
			},
			apply: func(ctx context.Context, id uuid.UUID, newData json.RawMessage) (interface{}, error) {
				var arg database.UpdateExamParams
				if err := json.Unmarshal(newData, &arg); err != nil {
					return nil, fmt.Errorf("%w: %v", ErrUnsupportedResource, err)
				}
				e, err := medical.UpdateExam(ctx, id, arg)
				if e == nil {
					return nil, err
				}
				return e, err
			},
		},
	}
	return s
}

type CreateShareInput struct {
	OwnerID        int64
	ShareType      string
	PatientID      *uuid.UUID
	PregnancyID    *uuid.UUID
	DocumentIDs    []uuid.UUID
	Permissions    models.SharePermissions
	RecipientName  *string
	RecipientEmail *string
	RecipientNote  *string
	ExpiresAt      *time.Time
	MaxAccessCount *int
}

type CreateShareResult struct {
	Share *models.Share `json:"share"`
	// AccessCode is the recipient's one-time secret. It exists only in
	// this result; the store keeps the hash.
	AccessCode string `json:"access_code"`
	ShareURL   string `json:"share_url"`
}

// CreateShare validates the target reference for the share type, checks
// that the target belongs to the practitioner, and persists the share with
// zeroed counters. The plaintext access code is returned exactly once.
func (s *Service) CreateShare(ctx context.Context, input CreateShareInput) (*CreateShareResult, error) {
	target, err := s.validateTarget(ctx, input)
	if err != nil {
		return nil, err
	}

	accessCode, err := s.issuer.NewAccessCode()
	if err != nil {
		return nil, err
	}
	codeHash, err := s.issuer.HashCode(accessCode)
	if err != nil {
		return nil, err
	}

	shareToken := s.issuer.NewShareToken()

	share, err := s.shares.CreateShare(ctx, database.CreateShareParams{
		ID:             uuid.New(),
		OwnerID:        input.OwnerID,
		ShareType:      input.ShareType,
		PatientID:      target.patientID,
		PregnancyID:    target.pregnancyID,
		DocumentIDs:    target.documentIDs,
		ShareToken:     shareToken,
		AccessCodeHash: codeHash,
		Permissions:    input.Permissions,
		RecipientName:  input.RecipientName,
		RecipientEmail: input.RecipientEmail,
		RecipientNote:  input.RecipientNote,
		ExpiresAt:      input.ExpiresAt,
		MaxAccessCount: input.MaxAccessCount,
	})
	if err != nil {
		return nil, err
	}

	return &CreateShareResult{
		Share:      share,
		AccessCode: accessCode,
		ShareURL:   fmt.Sprintf("/shared/%s", share.ShareToken),
	}, nil
}

type shareTarget struct {
	patientID   *uuid.UUID
	pregnancyID *uuid.UUID
	documentIDs []uuid.UUID
}

// validateTarget enforces that exactly the reference matching the share
// type is present and owned by the practitioner.
func (s *Service) validateTarget(ctx context.Context, input CreateShareInput) (*shareTarget, error) {
	switch input.ShareType {
	case models.ShareTypePatient:
		if input.PatientID == nil {
			return nil, ErrMissingTarget
		}
		owned, err := s.medical.PatientBelongsToOwner(ctx, *input.PatientID, input.OwnerID)
		if err != nil {
			return nil, err
		}
		if !owned {
			return nil, ErrTargetNotOwned
		}
		return &shareTarget{patientID: input.PatientID}, nil

	case models.ShareTypePregnancy:
		if input.PregnancyID == nil {
			return nil, ErrMissingTarget
		}
		owned, err := s.medical.PregnancyBelongsToOwner(ctx, *input.PregnancyID, input.OwnerID)
		if err != nil {
			return nil, err
		}
		if !owned {
			return nil, ErrTargetNotOwned
		}
		return &shareTarget{pregnancyID: input.PregnancyID}, nil

	case models.ShareTypeDocuments, models.ShareTypeSyntheticPDF:
		if len(input.DocumentIDs) == 0 {
			return nil, ErrMissingTarget
		}
		owned, err := s.medical.DocumentsBelongToOwner(ctx, input.DocumentIDs, input.OwnerID)
		if err != nil {
			return nil, err
		}
		if !owned {
			return nil, ErrTargetNotOwned
		}
		return &shareTarget{documentIDs: input.DocumentIDs}, nil

	default:
		return nil, ErrUnknownShareType
	}
}

// RevokeShare deactivates the share, cascades into the session store and
// appends the terminal audit entry. Revoking an already revoked share is a
// no-op.
func (s *Service) RevokeShare(ctx context.Context, shareID uuid.UUID, ownerID int64, reason *string) error {
	share, err := s.shares.GetShareByID(ctx, shareID)
	if err != nil {
		return err
	}
	if share == nil {
		return ErrShareNotFound
	}
	if share.OwnerID != ownerID {
		return ErrNotShareOwner
	}

	// Deactivation and the terminal audit entry commit together; a failure
	// leaves the share active so a retry can revoke and audit it properly.
	revoked, err := s.shares.RevokeShareWithAudit(ctx, shareID, ownerID, reason, database.AppendAccessLogParams{
		ShareID: shareID,
		Action:  models.ActionRevoked,
	})
	if err != nil {
		return err
	}
	if !revoked {
		// Already inactive; nothing left to cascade.
		return nil
	}

	s.sessions.InvalidateAll(shareID)

	s.notify(share.OwnerID, "share_revoked", map[string]interface{}{
		"share_id": shareID,
	})
	return nil
}

func (s *Service) GetShareByID(ctx context.Context, shareID uuid.UUID, ownerID int64) (*models.Share, error) {
	share, err := s.shares.GetShareByID(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if share == nil {
		return nil, ErrShareNotFound
	}
	if share.OwnerID != ownerID {
		return nil, ErrNotShareOwner
	}
	return share, nil
}

func (s *Service) ListShares(ctx context.Context, ownerID int64, activeOnly bool, limit int, offset int) ([]models.Share, error) {
	return s.shares.ListSharesByOwner(ctx, ownerID, activeOnly, limit, offset)
}

// GetShareLogs re-checks ownership before returning any audit entry.
func (s *Service) GetShareLogs(ctx context.Context, shareID uuid.UUID, ownerID int64, limit int, offset int) ([]models.AccessLog, error) {
	if _, err := s.GetShareByID(ctx, shareID, ownerID); err != nil {
		return nil, err
	}
	return s.shares.ListAccessLogs(ctx, shareID, limit, offset)
}

func (s *Service) notify(ownerID int64, eventType string, payload interface{}) {
	if s.notifier != nil {
		s.notifier.NotifyShareEvent(ownerID, eventType, payload)
	}
}
