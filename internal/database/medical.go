package database

import (
	"context"
	"encoding/json"
	"errors"
	"serwer-gabinetu/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const patientColumns = `
	id, owner_id, first_name, last_name, pesel, date_of_birth, phone, email, notes, created_at, updated_at`

const pregnancyColumns = `
	id, patient_id, last_period_at, due_date, is_multiple, status, risk_factors, created_at, updated_at`

const consultationColumns = `
	id, patient_id, pregnancy_id, held_at, summary, details, created_at, updated_at`

const examColumns = `
	id, patient_id, pregnancy_id, exam_type, performed_at, results, created_at, updated_at`

func scanPatient(row pgx.Row) (*models.Patient, error) {
	var p models.Patient
	err := row.Scan(
		&p.ID, &p.OwnerID, &p.FirstName, &p.LastName, &p.Pesel,
		&p.DateOfBirth, &p.Phone, &p.Email, &p.Notes, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPregnancy(row pgx.Row) (*models.Pregnancy, error) {
	var p models.Pregnancy
	err := row.Scan(
		&p.ID, &p.PatientID, &p.LastPeriodAt, &p.DueDate, &p.IsMultiple,
		&p.Status, &p.RiskFactors, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanConsultation(row pgx.Row) (*models.Consultation, error) {
	var c models.Consultation
	err := row.Scan(
		&c.ID, &c.PatientID, &c.PregnancyID, &c.HeldAt, &c.Summary,
		&c.Details, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanExam(row pgx.Row) (*models.Exam, error) {
	var e models.Exam
	err := row.Scan(
		&e.ID, &e.PatientID, &e.PregnancyID, &e.ExamType, &e.PerformedAt,
		&e.Results, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (q *Queries) PatientBelongsToOwner(ctx context.Context, patientID uuid.UUID, ownerID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM patients WHERE id = $1 AND owner_id = $2)`
	err := q.db.QueryRow(ctx, query, patientID, ownerID).Scan(&exists)
	return exists, err
}

func (q *Queries) PregnancyBelongsToOwner(ctx context.Context, pregnancyID uuid.UUID, ownerID int64) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS(
			SELECT 1
			FROM pregnancies pr
			JOIN patients p ON pr.patient_id = p.id
			WHERE pr.id = $1 AND p.owner_id = $2
		)
	`
	err := q.db.QueryRow(ctx, query, pregnancyID, ownerID).Scan(&exists)
	return exists, err
}

// DocumentsBelongToOwner is true only when every listed document exists and
// belongs to one of the owner's patients.
func (q *Queries) DocumentsBelongToOwner(ctx context.Context, documentIDs []uuid.UUID, ownerID int64) (bool, error) {
	if len(documentIDs) == 0 {
		return false, nil
	}
	query := `
		SELECT count(*)
		FROM documents d
		JOIN patients p ON d.patient_id = p.id
		WHERE d.id = ANY($1) AND p.owner_id = $2
	`
	var count int
	err := q.db.QueryRow(ctx, query, documentIDs, ownerID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count == len(documentIDs), nil
}

type PatientBundle struct {
	Patient       models.Patient        `json:"patient"`
	Pregnancies   []models.Pregnancy    `json:"pregnancies"`
	Exams         []models.Exam         `json:"exams"`
	Consultations []models.Consultation `json:"consultations"`
}

func (q *Queries) GetPatientBundle(ctx context.Context, patientID uuid.UUID) (*PatientBundle, error) {
	patient, err := scanPatient(q.db.QueryRow(ctx, `SELECT`+patientColumns+` FROM patients WHERE id = $1`, patientID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	bundle := PatientBundle{
		Patient:       *patient,
		Pregnancies:   []models.Pregnancy{},
		Exams:         []models.Exam{},
		Consultations: []models.Consultation{},
	}

	rows, err := q.db.Query(ctx, `SELECT`+pregnancyColumns+` FROM pregnancies WHERE patient_id = $1 ORDER BY created_at`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanPregnancy(rows)
		if err != nil {
			return nil, err
		}
		bundle.Pregnancies = append(bundle.Pregnancies, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	rows, err = q.db.Query(ctx, `SELECT`+examColumns+` FROM exams WHERE patient_id = $1 ORDER BY performed_at`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		bundle.Exams = append(bundle.Exams, *e)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	rows, err = q.db.Query(ctx, `SELECT`+consultationColumns+` FROM consultations WHERE patient_id = $1 ORDER BY held_at`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanConsultation(rows)
		if err != nil {
			return nil, err
		}
		bundle.Consultations = append(bundle.Consultations, *c)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return &bundle, nil
}

type PregnancyBundle struct {
	Pregnancy     models.Pregnancy      `json:"pregnancy"`
	Exams         []models.Exam         `json:"exams"`
	Consultations []models.Consultation `json:"consultations"`
}

func (q *Queries) GetPregnancyBundle(ctx context.Context, pregnancyID uuid.UUID) (*PregnancyBundle, error) {
	pregnancy, err := scanPregnancy(q.db.QueryRow(ctx, `SELECT`+pregnancyColumns+` FROM pregnancies WHERE id = $1`, pregnancyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	bundle := PregnancyBundle{
		Pregnancy:     *pregnancy,
		Exams:         []models.Exam{},
		Consultations: []models.Consultation{},
	}

	rows, err := q.db.Query(ctx, `SELECT`+examColumns+` FROM exams WHERE pregnancy_id = $1 ORDER BY performed_at`, pregnancyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		bundle.Exams = append(bundle.Exams, *e)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	rows, err = q.db.Query(ctx, `SELECT`+consultationColumns+` FROM consultations WHERE pregnancy_id = $1 ORDER BY held_at`, pregnancyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanConsultation(rows)
		if err != nil {
			return nil, err
		}
		bundle.Consultations = append(bundle.Consultations, *c)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return &bundle, nil
}

func (q *Queries) GetDocumentsByIDs(ctx context.Context, documentIDs []uuid.UUID) ([]models.Document, error) {
	query := `
		SELECT id, patient_id, name, mime_type, size_bytes, created_at, updated_at
		FROM documents
		WHERE id = ANY($1)
		ORDER BY name
	`
	rows, err := q.db.Query(ctx, query, documentIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.PatientID, &d.Name, &d.MimeType, &d.SizeBytes, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if docs == nil {
		return []models.Document{}, nil
	}

	return docs, nil
}

func (q *Queries) GetPatient(ctx context.Context, id uuid.UUID) (*models.Patient, error) {
	p, err := scanPatient(q.db.QueryRow(ctx, `SELECT`+patientColumns+` FROM patients WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func (q *Queries) GetPregnancy(ctx context.Context, id uuid.UUID) (*models.Pregnancy, error) {
	p, err := scanPregnancy(q.db.QueryRow(ctx, `SELECT`+pregnancyColumns+` FROM pregnancies WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func (q *Queries) GetConsultation(ctx context.Context, id uuid.UUID) (*models.Consultation, error) {
	c, err := scanConsultation(q.db.QueryRow(ctx, `SELECT`+consultationColumns+` FROM consultations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func (q *Queries) GetExam(ctx context.Context, id uuid.UUID) (*models.Exam, error) {
	e, err := scanExam(q.db.QueryRow(ctx, `SELECT`+examColumns+` FROM exams WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

type UpdatePatientParams struct {
	Phone *string `json:"phone"`
	Email *string `json:"email"`
	Notes *string `json:"notes"`
}

func (q *Queries) UpdatePatient(ctx context.Context, id uuid.UUID, arg UpdatePatientParams) (*models.Patient, error) {
	query := `
		UPDATE patients
		SET phone = COALESCE($2, phone),
		    email = COALESCE($3, email),
		    notes = COALESCE($4, notes),
		    updated_at = now()
		WHERE id = $1
		RETURNING` + patientColumns

	p, err := scanPatient(q.db.QueryRow(ctx, query, id, arg.Phone, arg.Email, arg.Notes))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

type UpdatePregnancyParams struct {
	Status      *string `json:"status"`
	RiskFactors *string `json:"risk_factors"`
}

func (q *Queries) UpdatePregnancy(ctx context.Context, id uuid.UUID, arg UpdatePregnancyParams) (*models.Pregnancy, error) {
	query := `
		UPDATE pregnancies
		SET status = COALESCE($2, status),
		    risk_factors = COALESCE($3, risk_factors),
		    updated_at = now()
		WHERE id = $1
		RETURNING` + pregnancyColumns

	p, err := scanPregnancy(q.db.QueryRow(ctx, query, id, arg.Status, arg.RiskFactors))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

type UpdateConsultationParams struct {
	Summary *string         `json:"summary"`
	Details json.RawMessage `json:"details"`
}

func (q *Queries) UpdateConsultation(ctx context.Context, id uuid.UUID, arg UpdateConsultationParams) (*models.Consultation, error) {
	query := `
		UPDATE consultations
		SET summary = COALESCE($2, summary),
		    details = COALESCE($3, details),
		    updated_at = now()
		WHERE id = $1
		RETURNING` + consultationColumns

	c, err := scanConsultation(q.db.QueryRow(ctx, query, id, arg.Summary, arg.Details))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

type UpdateExamParams struct {
	Results json.RawMessage `json:"results"`
}

func (q *Queries) UpdateExam(ctx context.Context, id uuid.UUID, arg UpdateExamParams) (*models.Exam, error) {
	query := `
		UPDATE exams
		SET results = COALESCE($2, results),
		    updated_at = now()
		WHERE id = $1
		RETURNING` + examColumns

	e, err := scanExam(q.db.QueryRow(ctx, query, id, arg.Results))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}
