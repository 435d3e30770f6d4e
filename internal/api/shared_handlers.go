package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"serwer-gabinetu/internal/sharing"

	"github.com/go-chi/chi/v5"
)

// sessionHeader carries the recipient's session token on the mediated
// endpoints.
const sessionHeader = "X-Share-Session"

type VerifyShareRequest struct {
	AccessCode string `json:"access_code" example:"483920"`
	// AttemptID lets a client retry a dropped request without being
	// charged a second attempt.
	AttemptID string `json:"attempt_id,omitempty"`
}

// @Summary      Redeem a share link
// @Description  Verifies the access code for a share token. On success returns a session token valid for 24 hours. Always answers 200 with a structured result; denial reasons are in the error field.
// @Tags         shared
// @Accept       json
// @Produce      json
// @Param        token          path      string              true  "Share token"
// @Param        verifyRequest  body      VerifyShareRequest  true  "Access code"
// @Success      200            {object}  sharing.VerifyResult
// @Failure      400            {string}  string "Invalid request body"
// @Failure      500            {string}  string "Internal Server Error"
// @Router       /shared/{token}/verify [post]
func (s *Server) VerifyShareHandler(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req VerifyShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.sharing.Verify(r.Context(), sharing.VerifyInput{
		Token:     token,
		Code:      req.AccessCode,
		AttemptID: req.AttemptID,
		ClientIP:  r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		log.Printf("ERROR: Share verification failed: %v", err)
		http.Error(w, "Verification temporarily unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// @Summary      Read shared data
// @Description  Returns the medical payload the share covers. Requires a session token from a successful verification.
// @Tags         shared
// @Produce      json
// @Param        token            path      string  true  "Share token"
// @Param        X-Share-Session  header    string  true  "Session token"
// @Success      200              {object}  object
// @Failure      401              {string}  string "Invalid or expired session"
// @Failure      403              {string}  string "Share does not permit reading"
// @Failure      404              {string}  string "Not Found"
// @Failure      500              {string}  string "Internal Server Error"
// @Router       /shared/{token} [get]
func (s *Server) GetSharedDataHandler(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	sessionToken := r.Header.Get(sessionHeader)

	payload, err := s.sharing.GetSharedData(r.Context(), token, sessionToken, r.RemoteAddr, r.UserAgent())
	if err != nil {
		s.writeSharedError(w, err, token)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

// @Summary      Update a shared resource
// @Description  Applies changes to one resource reachable through the share. Requires write permission. The change is audited with before/after snapshots.
// @Tags         shared
// @Accept       json
// @Produce      json
// @Param        token            path      string  true  "Share token"
// @Param        resourceType     path      string  true  "Resource type" enums(patient,pregnancy,consultation,exam)
// @Param        resourceId       path      string  true  "Resource ID" format(uuid)
// @Param        X-Share-Session  header    string  true  "Session token"
// @Param        newData          body      object  true  "Fields to update"
// @Success      200              {object}  object
// @Failure      400              {string}  string "Bad Request"
// @Failure      401              {string}  string "Invalid or expired session"
// @Failure      403              {string}  string "Share does not permit writing"
// @Failure      404              {string}  string "Not Found"
// @Failure      500              {string}  string "Internal Server Error"
// @Router       /shared/{token}/{resourceType}/{resourceId} [patch]
func (s *Server) UpdateSharedDataHandler(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	resourceType := chi.URLParam(r, "resourceType")
	resourceID := chi.URLParam(r, "resourceId")
	sessionToken := r.Header.Get(sessionHeader)

	var newData json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&newData); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	updated, err := s.sharing.UpdateSharedData(r.Context(), token, sessionToken, resourceType, resourceID, newData, r.RemoteAddr, r.UserAgent())
	if err != nil {
		s.writeSharedError(w, err, token)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

// writeSharedError maps mediator errors onto recipient-safe responses.
// Internal identifiers never leave this layer.
func (s *Server) writeSharedError(w http.ResponseWriter, err error, token string) {
	switch {
	case errors.Is(err, sharing.ErrInvalidSession):
		http.Error(w, "Invalid or expired session", http.StatusUnauthorized)
	case errors.Is(err, sharing.ErrPermissionDenied):
		http.Error(w, "The share does not permit this operation", http.StatusForbidden)
	case errors.Is(err, sharing.ErrResourceNotFound):
		http.Error(w, "Resource not found", http.StatusNotFound)
	case errors.Is(err, sharing.ErrUnsupportedResource), errors.Is(err, sharing.ErrUnknownShareType):
		http.Error(w, "Unsupported resource type", http.StatusBadRequest)
	default:
		log.Printf("ERROR: Shared data request failed for token %s...: %v", safePrefix(token), err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// safePrefix truncates a token for logging so the full capability never
// lands in the logs.
func safePrefix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}
