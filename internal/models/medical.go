package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	ID          uuid.UUID  `json:"id"`
	OwnerID     int64      `json:"owner_id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Pesel       *string    `json:"pesel,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
	Email       *string    `json:"email,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type Pregnancy struct {
	ID            uuid.UUID  `json:"id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	LastPeriodAt  *time.Time `json:"last_period_at,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	IsMultiple    bool       `json:"is_multiple"`
	Status        string     `json:"status"`
	RiskFactors   *string    `json:"risk_factors,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type Consultation struct {
	ID          uuid.UUID       `json:"id"`
	PatientID   uuid.UUID       `json:"patient_id"`
	PregnancyID *uuid.UUID      `json:"pregnancy_id,omitempty"`
	HeldAt      time.Time       `json:"held_at"`
	Summary     *string         `json:"summary,omitempty"`
	Details     json.RawMessage `json:"details,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type Exam struct {
	ID          uuid.UUID       `json:"id"`
	PatientID   uuid.UUID       `json:"patient_id"`
	PregnancyID *uuid.UUID      `json:"pregnancy_id,omitempty"`
	ExamType    string          `json:"exam_type"`
	PerformedAt time.Time       `json:"performed_at"`
	Results     json.RawMessage `json:"results,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type Document struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patient_id"`
	Name      string    `json:"name"`
	MimeType  *string   `json:"mime_type,omitempty"`
	SizeBytes *int64    `json:"size_bytes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
