package sharing

import (
	"context"
	"serwer-gabinetu/internal/database"
	"serwer-gabinetu/internal/models"
	"time"

	"github.com/google/uuid"
)

// ShareStore is the slice of the persistence layer the sharing service
// needs. *database.Store satisfies it; tests substitute an in-memory fake.
type ShareStore interface {
	CreateShare(ctx context.Context, arg database.CreateShareParams) (*models.Share, error)
	GetShareByToken(ctx context.Context, shareToken string) (*models.Share, error)
	GetShareByID(ctx context.Context, shareID uuid.UUID) (*models.Share, error)
	ListSharesByOwner(ctx context.Context, ownerID int64, activeOnly bool, limit int, offset int) ([]models.Share, error)
	RevokeShareWithAudit(ctx context.Context, shareID uuid.UUID, ownerID int64, reason *string, logArg database.AppendAccessLogParams) (bool, error)
	RegisterFailedAttemptWithAudit(ctx context.Context, shareID uuid.UUID, threshold int, lockUntil time.Time, logArg database.AppendAccessLogParams) (int, *time.Time, error)
	RegisterAccessWithAudit(ctx context.Context, shareID uuid.UUID, logArg database.AppendAccessLogParams) (*models.Share, error)
	AppendAccessLog(ctx context.Context, arg database.AppendAccessLogParams) error
	ListAccessLogs(ctx context.Context, shareID uuid.UUID, limit int, offset int) ([]models.AccessLog, error)
}

// MedicalStore exposes the domain records a share can cover. Reads are by
// id; ownership checks back the create-share validation.
type MedicalStore interface {
	PatientBelongsToOwner(ctx context.Context, patientID uuid.UUID, ownerID int64) (bool, error)
	PregnancyBelongsToOwner(ctx context.Context, pregnancyID uuid.UUID, ownerID int64) (bool, error)
	DocumentsBelongToOwner(ctx context.Context, documentIDs []uuid.UUID, ownerID int64) (bool, error)
	GetPatientBundle(ctx context.Context, patientID uuid.UUID) (*database.PatientBundle, error)
	GetPregnancyBundle(ctx context.Context, pregnancyID uuid.UUID) (*database.PregnancyBundle, error)
	GetDocumentsByIDs(ctx context.Context, documentIDs []uuid.UUID) ([]models.Document, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*models.Patient, error)
	GetPregnancy(ctx context.Context, id uuid.UUID) (*models.Pregnancy, error)
	GetConsultation(ctx context.Context, id uuid.UUID) (*models.Consultation, error)
	GetExam(ctx context.Context, id uuid.UUID) (*models.Exam, error)
	UpdatePatient(ctx context.Context, id uuid.UUID, arg database.UpdatePatientParams) (*models.Patient, error)
	UpdatePregnancy(ctx context.Context, id uuid.UUID, arg database.UpdatePregnancyParams) (*models.Pregnancy, error)
	UpdateConsultation(ctx context.Context, id uuid.UUID, arg database.UpdateConsultationParams) (*models.Consultation, error)
	UpdateExam(ctx context.Context, id uuid.UUID, arg database.UpdateExamParams) (*models.Exam, error)
}

// ShareLookup is the read-only view the session manager uses to re-check
// share liveness on every validation.
type ShareLookup interface {
	GetShareByID(ctx context.Context, shareID uuid.UUID) (*models.Share, error)
}

// Notifier pushes share activity to the owning practitioner. The websocket
// hub implements it; a nil notifier disables the feed.
type Notifier interface {
	NotifyShareEvent(ownerID int64, eventType string, payload interface{})
}
