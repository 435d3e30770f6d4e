package sharing

import (
	"context"
	"serwer-gabinetu/internal/database"
	"serwer-gabinetu/internal/models"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"serwer-gabinetu/internal/token"
)

// fakeClock is a settable clock shared by the service, the session manager
// and the fake store in a test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeStore implements ShareStore and MedicalStore in memory, mirroring the
// conditional-update semantics of the SQL layer.
type fakeStore struct {
	mu      sync.Mutex
	clock   *fakeClock
	shares  map[uuid.UUID]*models.Share
	byToken map[string]uuid.UUID
	logs    []models.AccessLog
	nextLog int64

	// beforeRegisterAccess, when set, runs before the grant path takes the
	// lock. Tests use it to interleave a concurrent state change.
	beforeRegisterAccess func()

	// appendLogErr, when set, makes the audit append fail. The *WithAudit
	// methods then roll back, mutating nothing, mirroring the transaction
	// in the real store.
	appendLogErr error

	patients      map[uuid.UUID]*models.Patient
	pregnancies   map[uuid.UUID]*models.Pregnancy
	consultations map[uuid.UUID]*models.Consultation
	exams         map[uuid.UUID]*models.Exam
	documents     map[uuid.UUID]models.Document
}

func newFakeStore(clock *fakeClock) *fakeStore {
	return &fakeStore{
		clock:         clock,
		shares:        make(map[uuid.UUID]*models.Share),
		byToken:       make(map[string]uuid.UUID),
		patients:      make(map[uuid.UUID]*models.Patient),
		pregnancies:   make(map[uuid.UUID]*models.Pregnancy),
		consultations: make(map[uuid.UUID]*models.Consultation),
		exams:         make(map[uuid.UUID]*models.Exam),
		documents:     make(map[uuid.UUID]models.Document),
	}
}

func cloneShare(s *models.Share) *models.Share {
	c := *s
	return &c
}

func (f *fakeStore) CreateShare(ctx context.Context, arg database.CreateShareParams) (*models.Share, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, taken := f.byToken[arg.ShareToken]; taken {
		return nil, database.ErrShareTokenTaken
	}
	now := f.clock.Now()
	share := &models.Share{
		ID:             arg.ID,
		OwnerID:        arg.OwnerID,
		ShareType:      arg.ShareType,
		PatientID:      arg.PatientID,
		PregnancyID:    arg.PregnancyID,
		DocumentIDs:    arg.DocumentIDs,
		ShareToken:     arg.ShareToken,
		AccessCodeHash: arg.AccessCodeHash,
		Permissions:    arg.Permissions,
		RecipientName:  arg.RecipientName,
		RecipientEmail: arg.RecipientEmail,
		RecipientNote:  arg.RecipientNote,
		ExpiresAt:      arg.ExpiresAt,
		MaxAccessCount: arg.MaxAccessCount,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	f.shares[share.ID] = share
	f.byToken[share.ShareToken] = share.ID
	return cloneShare(share), nil
}

func (f *fakeStore) GetShareByToken(ctx context.Context, shareToken string) (*models.Share, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byToken[shareToken]
	if !ok {
		return nil, nil
	}
	return cloneShare(f.shares[id]), nil
}

func (f *fakeStore) GetShareByID(ctx context.Context, shareID uuid.UUID) (*models.Share, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	share, ok := f.shares[shareID]
	if !ok {
		return nil, nil
	}
	return cloneShare(share), nil
}

func (f *fakeStore) ListSharesByOwner(ctx context.Context, ownerID int64, activeOnly bool, limit int, offset int) ([]models.Share, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Share{}
	for _, share := range f.shares {
		if share.OwnerID != ownerID {
			continue
		}
		if activeOnly && !share.IsActive {
			continue
		}
		out = append(out, *share)
	}
	return out, nil
}

func (f *fakeStore) RevokeShare(ctx context.Context, shareID uuid.UUID, ownerID int64, reason *string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	share, ok := f.shares[shareID]
	if !ok || share.OwnerID != ownerID || !share.IsActive {
		return false, nil
	}
	now := f.clock.Now()
	share.IsActive = false
	share.RevokedAt = &now
	share.RevokedBy = &ownerID
	share.RevocationReason = reason
	share.UpdatedAt = now
	return true, nil
}

func (f *fakeStore) RegisterFailedAttempt(ctx context.Context, shareID uuid.UUID, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	share := f.shares[shareID]
	share.FailedAttempts++
	if share.FailedAttempts >= threshold {
		lu := lockUntil
		share.LockedUntil = &lu
	}
	share.UpdatedAt = f.clock.Now()
	var lockedUntil *time.Time
	if share.LockedUntil != nil {
		lu := *share.LockedUntil
		lockedUntil = &lu
	}
	return share.FailedAttempts, lockedUntil, nil
}

func (f *fakeStore) RegisterAccess(ctx context.Context, shareID uuid.UUID) (*models.Share, error) {
	if f.beforeRegisterAccess != nil {
		f.beforeRegisterAccess()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	share, ok := f.shares[shareID]
	now := f.clock.Now()
	if !ok || !share.IsActive ||
		(share.LockedUntil != nil && share.LockedUntil.After(now)) ||
		(share.ExpiresAt != nil && !share.ExpiresAt.After(now)) ||
		(share.MaxAccessCount != nil && share.AccessCount >= *share.MaxAccessCount) {
		return nil, nil
	}
	share.FailedAttempts = 0
	share.LockedUntil = nil
	share.AccessCount++
	share.LastAccessAt = &now
	share.UpdatedAt = now
	return cloneShare(share), nil
}

func (f *fakeStore) RevokeShareWithAudit(ctx context.Context, shareID uuid.UUID, ownerID int64, reason *string, logArg database.AppendAccessLogParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	share, ok := f.shares[shareID]
	if !ok || share.OwnerID != ownerID || !share.IsActive {
		return false, nil
	}
	if f.appendLogErr != nil {
		return false, f.appendLogErr
	}
	now := f.clock.Now()
	share.IsActive = false
	share.RevokedAt = &now
	share.RevokedBy = &ownerID
	share.RevocationReason = reason
	share.UpdatedAt = now
	f.appendLogLocked(logArg)
	return true, nil
}

func (f *fakeStore) RegisterFailedAttemptWithAudit(ctx context.Context, shareID uuid.UUID, threshold int, lockUntil time.Time, logArg database.AppendAccessLogParams) (int, *time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendLogErr != nil {
		return 0, nil, f.appendLogErr
	}
	share := f.shares[shareID]
	share.FailedAttempts++
	if share.FailedAttempts >= threshold {
		lu := lockUntil
		share.LockedUntil = &lu
	}
	share.UpdatedAt = f.clock.Now()
	var lockedUntil *time.Time
	if share.LockedUntil != nil {
		lu := *share.LockedUntil
		lockedUntil = &lu
	}
	f.appendLogLocked(logArg)
	return share.FailedAttempts, lockedUntil, nil
}

func (f *fakeStore) RegisterAccessWithAudit(ctx context.Context, shareID uuid.UUID, logArg database.AppendAccessLogParams) (*models.Share, error) {
	if f.beforeRegisterAccess != nil {
		f.beforeRegisterAccess()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	share, ok := f.shares[shareID]
	now := f.clock.Now()
	if !ok || !share.IsActive ||
		(share.LockedUntil != nil && share.LockedUntil.After(now)) ||
		(share.ExpiresAt != nil && !share.ExpiresAt.After(now)) ||
		(share.MaxAccessCount != nil && share.AccessCount >= *share.MaxAccessCount) {
		return nil, nil
	}
	if f.appendLogErr != nil {
		return nil, f.appendLogErr
	}
	share.FailedAttempts = 0
	share.LockedUntil = nil
	share.AccessCount++
	share.LastAccessAt = &now
	share.UpdatedAt = now
	f.appendLogLocked(logArg)
	return cloneShare(share), nil
}

func (f *fakeStore) AppendAccessLog(ctx context.Context, arg database.AppendAccessLogParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendLogErr != nil {
		return f.appendLogErr
	}
	f.appendLogLocked(arg)
	return nil
}

func (f *fakeStore) appendLogLocked(arg database.AppendAccessLogParams) {
	f.nextLog++
	f.logs = append(f.logs, models.AccessLog{
		ID:           f.nextLog,
		ShareID:      arg.ShareID,
		Action:       arg.Action,
		ResourceType: arg.ResourceType,
		ResourceID:   arg.ResourceID,
		OldData:      arg.OldData,
		NewData:      arg.NewData,
		ClientIP:     arg.ClientIP,
		UserAgent:    arg.UserAgent,
		CreatedAt:    f.clock.Now(),
	})
}

func (f *fakeStore) ListAccessLogs(ctx context.Context, shareID uuid.UUID, limit int, offset int) ([]models.AccessLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.AccessLog{}
	for _, entry := range f.logs {
		if entry.ShareID == shareID {
			out = append(out, entry)
		}
	}
	return out, nil
}

// logsFor returns the actions recorded for a share, in insertion order.
func (f *fakeStore) logsFor(shareID uuid.UUID) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var actions []string
	for _, entry := range f.logs {
		if entry.ShareID == shareID {
			actions = append(actions, entry.Action)
		}
	}
	return actions
}

func (f *fakeStore) PatientBelongsToOwner(ctx context.Context, patientID uuid.UUID, ownerID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.patients[patientID]
	return ok && p.OwnerID == ownerID, nil
}

func (f *fakeStore) PregnancyBelongsToOwner(ctx context.Context, pregnancyID uuid.UUID, ownerID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pr, ok := f.pregnancies[pregnancyID]
	if !ok {
		return false, nil
	}
	p, ok := f.patients[pr.PatientID]
	return ok && p.OwnerID == ownerID, nil
}

func (f *fakeStore) DocumentsBelongToOwner(ctx context.Context, documentIDs []uuid.UUID, ownerID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range documentIDs {
		doc, ok := f.documents[id]
		if !ok {
			return false, nil
		}
		p, ok := f.patients[doc.PatientID]
		if !ok || p.OwnerID != ownerID {
			return false, nil
		}
	}
	return true, nil
}

func (f *fakeStore) GetPatientBundle(ctx context.Context, patientID uuid.UUID) (*database.PatientBundle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.patients[patientID]
	if !ok {
		return nil, nil
	}
	bundle := database.PatientBundle{
		Patient:       *p,
		Pregnancies:   []models.Pregnancy{},
		Exams:         []models.Exam{},
		Consultations: []models.Consultation{},
	}
	for _, pr := range f.pregnancies {
		if pr.PatientID == patientID {
			bundle.Pregnancies = append(bundle.Pregnancies, *pr)
		}
	}
	for _, e := range f.exams {
		if e.PatientID == patientID {
			bundle.Exams = append(bundle.Exams, *e)
		}
	}
	for _, c := range f.consultations {
		if c.PatientID == patientID {
			bundle.Consultations = append(bundle.Consultations, *c)
		}
	}
	return &bundle, nil
}

func (f *fakeStore) GetPregnancyBundle(ctx context.Context, pregnancyID uuid.UUID) (*database.PregnancyBundle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pr, ok := f.pregnancies[pregnancyID]
	if !ok {
		return nil, nil
	}
	bundle := database.PregnancyBundle{
		Pregnancy:     *pr,
		Exams:         []models.Exam{},
		Consultations: []models.Consultation{},
	}
	for _, e := range f.exams {
		if e.PregnancyID != nil && *e.PregnancyID == pregnancyID {
			bundle.Exams = append(bundle.Exams, *e)
		}
	}
	for _, c := range f.consultations {
		if c.PregnancyID != nil && *c.PregnancyID == pregnancyID {
			bundle.Consultations = append(bundle.Consultations, *c)
		}
	}
	return &bundle, nil
}

func (f *fakeStore) GetDocumentsByIDs(ctx context.Context, documentIDs []uuid.UUID) ([]models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Document{}
	for _, id := range documentIDs {
		if doc, ok := f.documents[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (f *fakeStore) GetPatient(ctx context.Context, id uuid.UUID) (*models.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.patients[id]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (f *fakeStore) GetPregnancy(ctx context.Context, id uuid.UUID) (*models.Pregnancy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pregnancies[id]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (f *fakeStore) GetConsultation(ctx context.Context, id uuid.UUID) (*models.Consultation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.consultations[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) GetExam(ctx context.Context, id uuid.UUID) (*models.Exam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.exams[id]
	if !ok {
		return nil, nil
	}
	c := *e
	return &c, nil
}

func (f *fakeStore) UpdatePatient(ctx context.Context, id uuid.UUID, arg database.UpdatePatientParams) (*models.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.patients[id]
	if !ok {
		return nil, nil
	}
	if arg.Phone != nil {
		p.Phone = arg.Phone
	}
	if arg.Email != nil {
		p.Email = arg.Email
	}
	if arg.Notes != nil {
		p.Notes = arg.Notes
	}
	p.UpdatedAt = f.clock.Now()
	c := *p
	return &c, nil
}

func (f *fakeStore) UpdatePregnancy(ctx context.Context, id uuid.UUID, arg database.UpdatePregnancyParams) (*models.Pregnancy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pregnancies[id]
	if !ok {
		return nil, nil
	}
	if arg.Status != nil {
		p.Status = *arg.Status
	}
	if arg.RiskFactors != nil {
		p.RiskFactors = arg.RiskFactors
	}
	p.UpdatedAt = f.clock.Now()
	c := *p
	return &c, nil
}

func (f *fakeStore) UpdateConsultation(ctx context.Context, id uuid.UUID, arg database.UpdateConsultationParams) (*models.Consultation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.consultations[id]
	if !ok {
		return nil, nil
	}
	if arg.Summary != nil {
		c.Summary = arg.Summary
	}
	if arg.Details != nil {
		c.Details = arg.Details
	}
	c.UpdatedAt = f.clock.Now()
	cp := *c
	return &cp, nil
}

func (f *fakeStore) UpdateExam(ctx context.Context, id uuid.UUID, arg database.UpdateExamParams) (*models.Exam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.exams[id]
	if !ok {
		return nil, nil
	}
	if arg.Results != nil {
		e.Results = arg.Results
	}
	e.UpdatedAt = f.clock.Now()
	c := *e
	return &c, nil
}

type notifierEvent struct {
	ownerID   int64
	eventType string
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notifierEvent
}

func (n *fakeNotifier) NotifyShareEvent(ownerID int64, eventType string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notifierEvent{ownerID: ownerID, eventType: eventType})
}

func (n *fakeNotifier) eventTypes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var types []string
	for _, e := range n.events {
		types = append(types, e.eventType)
	}
	return types
}

type testEnv struct {
	svc      *Service
	store    *fakeStore
	notifier *fakeNotifier
	sessions *SessionManager
	clock    *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := newFakeClock()
	store := newFakeStore(clock)
	notifier := &fakeNotifier{}

	issuer, err := token.NewIssuer(4) // bcrypt.MinCost, keeps hashing cheap in tests
	require.NoError(t, err)

	sessions := NewSessionManager(issuer, store)
	sessions.now = clock.Now

	svc := NewService(store, store, issuer, sessions, notifier)
	svc.now = clock.Now
	svc.attempts.now = clock.Now

	return &testEnv{
		svc:      svc,
		store:    store,
		notifier: notifier,
		sessions: sessions,
		clock:    clock,
	}
}

// seedPatient registers a patient owned by ownerID and returns its id.
func (e *testEnv) seedPatient(ownerID int64) uuid.UUID {
	id := uuid.New()
	phone := "600100200"
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	e.store.patients[id] = &models.Patient{
		ID:        id,
		OwnerID:   ownerID,
		FirstName: "Anna",
		LastName:  "Kowalska",
		Phone:     &phone,
		CreatedAt: e.clock.Now(),
		UpdatedAt: e.clock.Now(),
	}
	return id
}

func (e *testEnv) seedPregnancy(patientID uuid.UUID) uuid.UUID {
	id := uuid.New()
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	e.store.pregnancies[id] = &models.Pregnancy{
		ID:        id,
		PatientID: patientID,
		Status:    "active",
		CreatedAt: e.clock.Now(),
		UpdatedAt: e.clock.Now(),
	}
	return id
}

func (e *testEnv) seedDocument(patientID uuid.UUID) uuid.UUID {
	id := uuid.New()
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	e.store.documents[id] = models.Document{
		ID:        id,
		PatientID: patientID,
		Name:      "usg-2025-06.pdf",
		CreatedAt: e.clock.Now(),
		UpdatedAt: e.clock.Now(),
	}
	return id
}

// createPatientShare issues a read-only patient share and returns it with
// the plaintext access code.
func (e *testEnv) createPatientShare(t *testing.T, ownerID int64, patientID uuid.UUID, maxAccess *int) (*models.Share, string) {
	t.Helper()
	result, err := e.svc.CreateShare(context.Background(), CreateShareInput{
		OwnerID:        ownerID,
		ShareType:      models.ShareTypePatient,
		PatientID:      &patientID,
		Permissions:    models.SharePermissions{Read: true},
		MaxAccessCount: maxAccess,
	})
	require.NoError(t, err)
	return result.Share, result.AccessCode
}
