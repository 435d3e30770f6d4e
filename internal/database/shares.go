package database

import (
	"context"
	"errors"
	"serwer-gabinetu/internal/models"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrShareTokenTaken = errors.New("share token already in use")

const shareColumns = `
	id, owner_id, share_type, patient_id, pregnancy_id, document_ids,
	share_token, access_code_hash, can_read, can_write, can_download,
	recipient_name, recipient_email, recipient_note,
	expires_at, max_access_count, access_count, failed_attempts, locked_until,
	is_active, last_access_at, revoked_at, revoked_by, revocation_reason,
	created_at, updated_at`

func scanShare(row pgx.Row) (*models.Share, error) {
	var share models.Share
	err := row.Scan(
		&share.ID,
		&share.OwnerID,
		&share.ShareType,
		&share.PatientID,
		&share.PregnancyID,
		&share.DocumentIDs,
		&share.ShareToken,
		&share.AccessCodeHash,
		&share.Permissions.Read,
		&share.Permissions.Write,
		&share.Permissions.Download,
		&share.RecipientName,
		&share.RecipientEmail,
		&share.RecipientNote,
		&share.ExpiresAt,
		&share.MaxAccessCount,
		&share.AccessCount,
		&share.FailedAttempts,
		&share.LockedUntil,
		&share.IsActive,
		&share.LastAccessAt,
		&share.RevokedAt,
		&share.RevokedBy,
		&share.RevocationReason,
		&share.CreatedAt,
		&share.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &share, nil
}

type CreateShareParams struct {
	ID             uuid.UUID
	OwnerID        int64
	ShareType      string
	PatientID      *uuid.UUID
	PregnancyID    *uuid.UUID
	DocumentIDs    []uuid.UUID
	ShareToken     string
	AccessCodeHash string
	Permissions    models.SharePermissions
	RecipientName  *string
	RecipientEmail *string
	RecipientNote  *string
	ExpiresAt      *time.Time
	MaxAccessCount *int
}

func (q *Queries) CreateShare(ctx context.Context, arg CreateShareParams) (*models.Share, error) {
	query := `
		INSERT INTO shares (
			id, owner_id, share_type, patient_id, pregnancy_id, document_ids,
			share_token, access_code_hash, can_read, can_write, can_download,
			recipient_name, recipient_email, recipient_note,
			expires_at, max_access_count
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING` + shareColumns

	row := q.db.QueryRow(ctx, query,
		arg.ID,
		arg.OwnerID,
		arg.ShareType,
		arg.PatientID,
		arg.PregnancyID,
		arg.DocumentIDs,
		arg.ShareToken,
		arg.AccessCodeHash,
		arg.Permissions.Read,
		arg.Permissions.Write,
		arg.Permissions.Download,
		arg.RecipientName,
		arg.RecipientEmail,
		arg.RecipientNote,
		arg.ExpiresAt,
		arg.MaxAccessCount,
	)

	share, err := scanShare(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrShareTokenTaken
		}
		return nil, err
	}

	return share, nil
}

func (q *Queries) GetShareByToken(ctx context.Context, shareToken string) (*models.Share, error) {
	query := `SELECT` + shareColumns + ` FROM shares WHERE share_token = $1`

	share, err := scanShare(q.db.QueryRow(ctx, query, shareToken))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return share, nil
}

func (q *Queries) GetShareByID(ctx context.Context, shareID uuid.UUID) (*models.Share, error) {
	query := `SELECT` + shareColumns + ` FROM shares WHERE id = $1`

	share, err := scanShare(q.db.QueryRow(ctx, query, shareID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return share, nil
}

func (q *Queries) ListSharesByOwner(ctx context.Context, ownerID int64, activeOnly bool, limit int, offset int) ([]models.Share, error) {
	query := `SELECT` + shareColumns + `
		FROM shares
		WHERE owner_id = $1 AND ($2 = false OR is_active)
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`

	rows, err := q.db.Query(ctx, query, ownerID, activeOnly, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shares []models.Share
	for rows.Next() {
		share, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		shares = append(shares, *share)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if shares == nil {
		return []models.Share{}, nil
	}

	return shares, nil
}

// RevokeShare deactivates a share owned by ownerID. Returns false when no
// active share matched. Deactivation is terminal: there is no query that
// sets is_active back to true.
func (q *Queries) RevokeShare(ctx context.Context, shareID uuid.UUID, ownerID int64, reason *string) (bool, error) {
	query := `
		UPDATE shares
		SET is_active = false,
		    revoked_at = now(),
		    revoked_by = $2,
		    revocation_reason = $3,
		    updated_at = now()
		WHERE id = $1 AND owner_id = $2 AND is_active
	`
	res, err := q.db.Exec(ctx, query, shareID, ownerID, reason)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

// RegisterFailedAttempt increments the failed-attempt counter and, when the
// new value reaches threshold, sets locked_until in the same statement.
// Running as one UPDATE keeps concurrent wrong guesses from losing an
// increment: both see their own post-image under the row lock.
func (q *Queries) RegisterFailedAttempt(ctx context.Context, shareID uuid.UUID, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	query := `
		UPDATE shares
		SET failed_attempts = failed_attempts + 1,
		    locked_until = CASE WHEN failed_attempts + 1 >= $2 THEN $3 ELSE locked_until END,
		    updated_at = now()
		WHERE id = $1
		RETURNING failed_attempts, locked_until
	`
	var attempts int
	var lockedUntil *time.Time
	err := q.db.QueryRow(ctx, query, shareID, threshold, lockUntil).Scan(&attempts, &lockedUntil)
	if err != nil {
		return 0, nil, err
	}
	return attempts, lockedUntil, nil
}

// RevokeShareWithAudit runs the deactivation and its terminal audit entry
// in one transaction. Either the share is revoked and the entry exists, or
// neither happened; a revoked share can never be missing its audit row.
func (s *Store) RevokeShareWithAudit(ctx context.Context, shareID uuid.UUID, ownerID int64, reason *string, logArg AppendAccessLogParams) (bool, error) {
	var revoked bool
	err := s.ExecTx(ctx, func(q *Queries) error {
		var err error
		revoked, err = q.RevokeShare(ctx, shareID, ownerID, reason)
		if err != nil || !revoked {
			return err
		}
		return q.AppendAccessLog(ctx, logArg)
	})
	if err != nil {
		return false, err
	}
	return revoked, nil
}

// RegisterFailedAttemptWithAudit pairs the counter bump with its denial
// audit entry in one transaction.
func (s *Store) RegisterFailedAttemptWithAudit(ctx context.Context, shareID uuid.UUID, threshold int, lockUntil time.Time, logArg AppendAccessLogParams) (int, *time.Time, error) {
	var attempts int
	var lockedUntil *time.Time
	err := s.ExecTx(ctx, func(q *Queries) error {
		var err error
		attempts, lockedUntil, err = q.RegisterFailedAttempt(ctx, shareID, threshold, lockUntil)
		if err != nil {
			return err
		}
		return q.AppendAccessLog(ctx, logArg)
	})
	if err != nil {
		return 0, nil, err
	}
	return attempts, lockedUntil, nil
}

// RegisterAccessWithAudit pairs the grant with its audit entry in one
// transaction. When the conditional update refuses, no entry is written and
// the returned share is nil.
func (s *Store) RegisterAccessWithAudit(ctx context.Context, shareID uuid.UUID, logArg AppendAccessLogParams) (*models.Share, error) {
	var share *models.Share
	err := s.ExecTx(ctx, func(q *Queries) error {
		var err error
		share, err = q.RegisterAccess(ctx, shareID)
		if err != nil || share == nil {
			return err
		}
		return q.AppendAccessLog(ctx, logArg)
	})
	if err != nil {
		return nil, err
	}
	return share, nil
}

/// RegisterAccess records a successful verification: counters reset, lock
// cleared, access count incremented. The WHERE clause re-checks liveness,
// lock and budget under the row lock, so a success cannot race past a lock
// or an exhaustion that a concurrent request just produced. Returns nil
// when the share no longer qualifies.
func (q *Queries) RegisterAccess(ctx context.Context, shareID uuid.UUID) (*models.Share, error) {
	query := `
		UPDATE shares
		SET failed_attempts = 0,
		    locked_until = NULL,
		    access_count = access_count + 1,
		    last_access_at = now(),
		    updated_at = now()
		WHERE id = $1 AND is_active
		  AND (locked_until IS NULL OR locked_until <= now())
		  AND (expires_at IS NULL OR expires_at > now())
		  AND (max_access_count IS NULL OR access_count < max_access_count)
		RETURNING` + shareColumns

	share, err := scanShare(q.db.QueryRow(ctx, query, shareID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return share, nil
}
