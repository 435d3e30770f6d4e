package sharing

import (
	"context"
	"log"
	"serwer-gabinetu/internal/models"
	"serwer-gabinetu/internal/token"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionTTL bounds every recipient session to 24 hours from issuance.
const SessionTTL = 24 * time.Hour

// SessionManager holds the ephemeral recipient sessions in process memory.
// Expiry and share liveness are re-checked on every Validate call; the
// cleanup loop only trims entries nobody asks for anymore. Sessions are
// never shared across processes, so a horizontally scaled deployment needs
// an external TTL store instead of this type.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*models.ShareSession
	byShare  map[uuid.UUID]map[string]struct{}
	issuer   *token.Issuer
	shares   ShareLookup
	now      func() time.Time
}

func NewSessionManager(issuer *token.Issuer, shares ShareLookup) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*models.ShareSession),
		byShare:  make(map[uuid.UUID]map[string]struct{}),
		issuer:   issuer,
		shares:   shares,
		now:      time.Now,
	}
}

// Create issues a session bound to the share. The session snapshots the
// share's type, permissions and target references at issuance time.
func (m *SessionManager) Create(share *models.Share) *models.ShareSession {
	now := m.now()
	session := &models.ShareSession{
		SessionToken: m.issuer.NewSessionToken(),
		ShareID:      share.ID,
		ShareToken:   share.ShareToken,
		ShareType:    share.ShareType,
		Permissions:  share.Permissions,
		PatientID:    share.PatientID,
		PregnancyID:  share.PregnancyID,
		DocumentIDs:  share.DocumentIDs,
		OwnerID:      share.OwnerID,
		ExpiresAt:    now.Add(SessionTTL),
		CreatedAt:    now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.SessionToken] = session
	if _, ok := m.byShare[share.ID]; !ok {
		m.byShare[share.ID] = make(map[string]struct{})
	}
	m.byShare[share.ID][session.SessionToken] = struct{}{}

	return session
}

// Validate returns the session only if it exists, is bound to shareToken,
// has not aged out, and the underlying share is still active and unexpired.
// Every failure deletes the stale entry and yields the same nil result, so
// a caller probing tokens learns nothing about why validation failed.
func (m *SessionManager) Validate(ctx context.Context, shareToken, sessionToken string) (*models.ShareSession, error) {
	m.mu.RLock()
	session, ok := m.sessions[sessionToken]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	if session.ShareToken != shareToken || m.now().After(session.ExpiresAt) {
		m.delete(sessionToken)
		return nil, nil
	}

	share, err := m.shares.GetShareByID(ctx, session.ShareID)
	if err != nil {
		return nil, err
	}
	if share == nil || !share.IsActive || share.Expired(m.now()) {
		m.delete(sessionToken)
		return nil, nil
	}

	return session, nil
}

// InvalidateAll drops every live session bound to the share. Called by the
// revoke cascade. Returns the number of sessions removed.
func (m *SessionManager) InvalidateAll(shareID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	tokens, ok := m.byShare[shareID]
	if !ok {
		return 0
	}
	for t := range tokens {
		delete(m.sessions, t)
	}
	delete(m.byShare, shareID)
	return len(tokens)
}

func (m *SessionManager) delete(sessionToken string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionToken]
	if !ok {
		return
	}
	delete(m.sessions, sessionToken)
	if tokens, ok := m.byShare[session.ShareID]; ok {
		delete(tokens, sessionToken)
		if len(tokens) == 0 {
			delete(m.byShare, session.ShareID)
		}
	}
}

// RunCleanup sweeps aged-out sessions until ctx is cancelled. Validate does
// not depend on the sweep; this only keeps the map from accumulating
// entries for sessions that are never presented again.
func (m *SessionManager) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := m.removeExpired()
			if removed > 0 {
				log.Printf("Session cleanup removed %d expired sessions", removed)
			}
		}
	}
}

func (m *SessionManager) removeExpired() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for t, session := range m.sessions {
		if now.After(session.ExpiresAt) {
			delete(m.sessions, t)
			if tokens, ok := m.byShare[session.ShareID]; ok {
				delete(tokens, t)
				if len(tokens) == 0 {
					delete(m.byShare, session.ShareID)
				}
			}
			removed++
		}
	}
	return removed
}
