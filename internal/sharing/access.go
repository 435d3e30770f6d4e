package sharing

import (
	"context"
	"encoding/json"
	"fmt"
	"serwer-gabinetu/internal/database"
	"serwer-gabinetu/internal/models"

	"github.com/google/uuid"
)

// ValidateSession exposes the session check to the HTTP layer.
func (s *Service) ValidateSession(ctx context.Context, shareToken, sessionToken string) (*models.ShareSession, error) {
	return s.sessions.Validate(ctx, shareToken, sessionToken)
}

// GetSharedData returns the payload the share covers, after session and
// read-permission checks, and records the read in the audit trail.
func (s *Service) GetSharedData(ctx context.Context, shareToken, sessionToken, clientIP, userAgent string) (interface{}, error) {
	session, err := s.sessions.Validate(ctx, shareToken, sessionToken)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrInvalidSession
	}
	if !session.Permissions.Read {
		return nil, ErrPermissionDenied
	}

	var payload interface{}
	switch session.ShareType {
	case models.ShareTypePatient:
		if session.PatientID == nil {
			return nil, ErrResourceNotFound
		}
		bundle, err := s.medical.GetPatientBundle(ctx, *session.PatientID)
		if err != nil {
			return nil, err
		}
		if bundle == nil {
			return nil, ErrResourceNotFound
		}
		payload = bundle

	case models.ShareTypePregnancy:
		if session.PregnancyID == nil {
			return nil, ErrResourceNotFound
		}
		bundle, err := s.medical.GetPregnancyBundle(ctx, *session.PregnancyID)
		if err != nil {
			return nil, err
		}
		if bundle == nil {
			return nil, ErrResourceNotFound
		}
		payload = bundle

	case models.ShareTypeDocuments, models.ShareTypeSyntheticPDF:
		docs, err := s.medical.GetDocumentsByIDs(ctx, session.DocumentIDs)
		if err != nil {
			return nil, err
		}
		payload = docs

	default:
		// Unreachable for shares created through this service; guards
		// rows written by anything else.
		return nil, ErrUnknownShareType
	}

	if err := s.shares.AppendAccessLog(ctx, database.AppendAccessLogParams{
		ShareID:      session.ShareID,
		Action:       models.ActionDataRead,
		ResourceType: optional(session.ShareType),
		ClientIP:     optional(clientIP),
		UserAgent:    optional(userAgent),
	}); err != nil {
		return nil, err
	}

	return payload, nil
}

// UpdateSharedData applies newData to one resource through the handler
// registered for its type, after session and write-permission checks, and
// audits the change with before/after snapshots.
func (s *Service) UpdateSharedData(ctx context.Context, shareToken, sessionToken, resourceType, resourceID string, newData json.RawMessage, clientIP, userAgent string) (interface{}, error) {
	session, err := s.sessions.Validate(ctx, shareToken, sessionToken)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrInvalidSession
	}
	if !session.Permissions.Write {
		return nil, ErrPermissionDenied
	}

	handler, ok := s.handlers[resourceType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedResource, resourceType)
	}

	id, err := uuid.Parse(resourceID)
	if err != nil {
		return nil, ErrResourceNotFound
	}

	old, err := handler.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return nil, ErrResourceNotFound
	}

	updated, err := handler.apply(ctx, id, newData)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrResourceNotFound
	}

	oldSnapshot, err := json.Marshal(old)
	if err != nil {
		return nil, err
	}
	newSnapshot, err := json.Marshal(updated)
	if err != nil {
		return nil, err
	}

	if err := s.shares.AppendAccessLog(ctx, database.AppendAccessLogParams{
		ShareID:      session.ShareID,
		Action:       models.ActionDataModified,
		ResourceType: optional(resourceType),
		ResourceID:   optional(resourceID),
		OldData:      oldSnapshot,
		NewData:      newSnapshot,
		ClientIP:     optional(clientIP),
		UserAgent:    optional(userAgent),
	}); err != nil {
		return nil, err
	}

	return updated, nil
}
