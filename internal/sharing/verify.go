package sharing

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"serwer-gabinetu/internal/database"
	"serwer-gabinetu/internal/models"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Verification attempts against tokens that match no share cannot be
// audited (there is no share row to attach to), so they are only counted
// here and written to the process log.
var verificationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "share_verifications_total",
	Help: "Share verification attempts by outcome.",
}, []string{"outcome"})

const (
	outcomeGranted      = "granted"
	outcomeUnknownToken = "unknown_token"
	outcomeRevoked      = "denied_revoked"
	outcomeExpired      = "denied_expired"
	outcomeLocked       = "denied_locked"
	outcomeExhausted    = "denied_exhausted"
	outcomeBadCode      = "denied_bad_code"
	outcomeReplayed     = "replayed"
)

type VerifyInput struct {
	Token string
	Code  string
	// AttemptID, when supplied by the caller, makes the attempt
	// idempotent: a retry with the same id replays the recorded outcome
	// instead of re-running the counters.
	AttemptID string
	ClientIP  string
	UserAgent string
}

type VerifyResult struct {
	Success      bool          `json:"success"`
	SessionToken string        `json:"session_token,omitempty"`
	Share        *models.Share `json:"share,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// Verify redeems a token+code pair. Denials come back inside the result
// with a user-safe message; the error return is reserved for
// infrastructure failures. Check order is fixed: liveness, expiry, lock,
// budget, then the code. The lock wins even over a correct code so that
// response timing does not reveal whether a guess was right during a
// lockout window.
func (s *Service) Verify(ctx context.Context, input VerifyInput) (VerifyResult, error) {
	if cached, ok := s.attempts.get(input.Token, input.AttemptID); ok {
		verificationOutcomes.WithLabelValues(outcomeReplayed).Inc()
		return cached, nil
	}

	share, err := s.shares.GetShareByToken(ctx, input.Token)
	if err != nil {
		return VerifyResult{}, err
	}
	if share == nil {
		log.Printf("WARN: share verification against unknown token from %s", input.ClientIP)
		return s.finish(input, outcomeUnknownToken, VerifyResult{Error: "invalid link"}), nil
	}

	now := s.now()

	if !share.IsActive {
		if err := s.auditDenied(ctx, share, "revoked", input); err != nil {
			return VerifyResult{}, err
		}
		return s.finish(input, outcomeRevoked, VerifyResult{Error: "This share link has been revoked"}), nil
	}

	if share.Expired(now) {
		if err := s.auditDenied(ctx, share, "expired", input); err != nil {
			return VerifyResult{}, err
		}
		return s.finish(input, outcomeExpired, VerifyResult{Error: "This share link has expired"}), nil
	}

	if share.Locked(now) {
		if err := s.auditDenied(ctx, share, "locked", input); err != nil {
			return VerifyResult{}, err
		}
		return s.finish(input, outcomeLocked, VerifyResult{Error: lockedMessage(*share.LockedUntil, now)}), nil
	}

	if share.Exhausted() {
		if err := s.auditDenied(ctx, share, "exhausted", input); err != nil {
			return VerifyResult{}, err
		}
		return s.finish(input, outcomeExhausted, VerifyResult{Error: "This share link has reached its maximum number of accesses"}), nil
	}

	if !s.issuer.VerifyCode(input.Code, share.AccessCodeHash) {
		logArg, err := denialLog(share, "invalid_code", input)
		if err != nil {
			return VerifyResult{}, err
		}
		attempts, lockedUntil, err := s.shares.RegisterFailedAttemptWithAudit(ctx, share.ID, MaxFailedAttempts, now.Add(LockoutDuration), logArg)
		if err != nil {
			return VerifyResult{}, err
		}

		var msg string
		if lockedUntil != nil && lockedUntil.After(now) {
			msg = fmt.Sprintf("Too many failed attempts. Access locked for %d minutes", int(LockoutDuration.Minutes()))
			s.notify(share.OwnerID, "share_locked", map[string]interface{}{
				"share_id":     share.ID,
				"locked_until": lockedUntil,
			})
		} else {
			msg = fmt.Sprintf("Invalid access code. %d attempts remaining", MaxFailedAttempts-attempts)
		}
		return s.finish(input, outcomeBadCode, VerifyResult{Error: msg}), nil
	}

	updated, err := s.shares.RegisterAccessWithAudit(ctx, share.ID, database.AppendAccessLogParams{
		ShareID:   share.ID,
		Action:    models.ActionAccessGranted,
		ClientIP:  optional(input.ClientIP),
		UserAgent: optional(input.UserAgent),
	})
	if err != nil {
		return VerifyResult{}, err
	}
	if updated == nil {
		// A concurrent request changed the share between our checks and
		// the conditional update. Re-read and report the state it is in
		// now rather than granting access past it.
		return s.denialAfterRace(ctx, share, input)
	}

	session := s.sessions.Create(updated)
	s.notify(updated.OwnerID, "share_accessed", map[string]interface{}{
		"share_id":     updated.ID,
		"access_count": updated.AccessCount,
	})

	return s.finish(input, outcomeGranted, VerifyResult{
		Success:      true,
		SessionToken: session.SessionToken,
		Share:        updated,
	}), nil
}

func (s *Service) denialAfterRace(ctx context.Context, stale *models.Share, input VerifyInput) (VerifyResult, error) {
	share, err := s.shares.GetShareByID(ctx, stale.ID)
	if err != nil {
		return VerifyResult{}, err
	}
	now := s.now()

	outcome := outcomeRevoked
	msg := "This share link has been revoked"
	reason := "revoked"
	switch {
	case share == nil || !share.IsActive:
	case share.Locked(now):
		outcome, reason = outcomeLocked, "locked"
		msg = lockedMessage(*share.LockedUntil, now)
	case share.Expired(now):
		outcome, reason = outcomeExpired, "expired"
		msg = "This share link has expired"
	case share.Exhausted():
		outcome, reason = outcomeExhausted, "exhausted"
		msg = "This share link has reached its maximum number of accesses"
	}

	if share != nil {
		if err := s.auditDenied(ctx, share, reason, input); err != nil {
			return VerifyResult{}, err
		}
	}
	return s.finish(input, outcome, VerifyResult{Error: msg}), nil
}

// denialLog builds the audit entry for a denied attempt. Denials that pair
// with a counter mutation hand it to the transactional store methods;
// read-only denials append it directly via auditDenied.
func denialLog(share *models.Share, reason string, input VerifyInput) (database.AppendAccessLogParams, error) {
	detail, err := json.Marshal(map[string]string{"reason": reason})
	if err != nil {
		return database.AppendAccessLogParams{}, err
	}
	return database.AppendAccessLogParams{
		ShareID:   share.ID,
		Action:    models.ActionAccessDenied,
		NewData:   detail,
		ClientIP:  optional(input.ClientIP),
		UserAgent: optional(input.UserAgent),
	}, nil
}

func (s *Service) auditDenied(ctx context.Context, share *models.Share, reason string, input VerifyInput) error {
	logArg, err := denialLog(share, reason, input)
	if err != nil {
		return err
	}
	return s.shares.AppendAccessLog(ctx, logArg)
}

func (s *Service) finish(input VerifyInput, outcome string, result VerifyResult) VerifyResult {
	verificationOutcomes.WithLabelValues(outcome).Inc()
	s.attempts.put(input.Token, input.AttemptID, result)
	return result
}

func lockedMessage(lockedUntil, now time.Time) string {
	minutes := int(math.Ceil(lockedUntil.Sub(now).Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("Too many failed attempts. Try again in %d minutes", minutes)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// attemptCache keeps recent verification outcomes keyed by (token,
// attempt id) so that a caller retrying after a dropped response does not
// burn a second attempt or a second access. Entries expire quickly; this
// is a retry window, not a cache of record.
const attemptCacheTTL = 2 * time.Minute

type cachedAttempt struct {
	result    VerifyResult
	expiresAt time.Time
}

type attemptCache struct {
	mu      sync.Mutex
	entries map[string]cachedAttempt
	now     func() time.Time
}

func newAttemptCache() *attemptCache {
	return &attemptCache{
		entries: make(map[string]cachedAttempt),
		now:     time.Now,
	}
}

func (c *attemptCache) get(token, attemptID string) (VerifyResult, bool) {
	if attemptID == "" {
		return VerifyResult{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[token+"/"+attemptID]
	if !ok || c.now().After(entry.expiresAt) {
		return VerifyResult{}, false
	}
	return entry.result, true
}

func (c *attemptCache) put(token, attemptID string, result VerifyResult) {
	if attemptID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
	c.entries[token+"/"+attemptID] = cachedAttempt{
		result:    result,
		expiresAt: now.Add(attemptCacheTTL),
	}
}
