package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"serwer-gabinetu/internal/models"
	"serwer-gabinetu/internal/sharing"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func parsePagination(r *http.Request) (int, int) {
	limit := 100
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

type CreateShareRequest struct {
	ShareType      string                  `json:"share_type" example:"patient" enums:"patient,pregnancy,documents,syntheticPdf"`
	PatientID      *uuid.UUID              `json:"patient_id,omitempty"`
	PregnancyID    *uuid.UUID              `json:"pregnancy_id,omitempty"`
	DocumentIDs    []uuid.UUID             `json:"document_ids,omitempty"`
	Permissions    models.SharePermissions `json:"permissions"`
	RecipientName  *string                 `json:"recipient_name,omitempty" example:"dr Nowak"`
	RecipientEmail *string                 `json:"recipient_email,omitempty" example:"nowak@example.com"`
	RecipientNote  *string                 `json:"recipient_note,omitempty"`
	ExpiresAt      *time.Time              `json:"expires_at,omitempty"`
	MaxAccessCount *int                    `json:"max_access_count,omitempty" example:"3"`
}

// @Summary      Create a share
// @Description  Issues a capability link for one medical resource. The response carries the one-time access code; it is not retrievable afterwards.
// @Tags         shares
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        shareRequest body      CreateShareRequest  true  "Share details"
// @Success      201          {object}  sharing.CreateShareResult
// @Failure      400          {string}  string "Bad Request"
// @Failure      401          {string}  string "Unauthorized"
// @Failure      404          {string}  string "Not Found - target resource not found or not owned"
// @Failure      500          {string}  string "Internal Server Error"
// @Router       /shares [post]
func (s *Server) CreateShareHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	var req CreateShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.sharing.CreateShare(r.Context(), sharing.CreateShareInput{
		OwnerID:        claims.UserID,
		ShareType:      req.ShareType,
		PatientID:      req.PatientID,
		PregnancyID:    req.PregnancyID,
		DocumentIDs:    req.DocumentIDs,
		Permissions:    req.Permissions,
		RecipientName:  req.RecipientName,
		RecipientEmail: req.RecipientEmail,
		RecipientNote:  req.RecipientNote,
		ExpiresAt:      req.ExpiresAt,
		MaxAccessCount: req.MaxAccessCount,
	})
	if err != nil {
		switch {
		case errors.Is(err, sharing.ErrUnknownShareType), errors.Is(err, sharing.ErrMissingTarget):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, sharing.ErrTargetNotOwned):
			http.Error(w, "Target resource not found or you are not the owner", http.StatusNotFound)
		default:
			log.Printf("ERROR: Failed to create share for user %d: %v", claims.UserID, err)
			http.Error(w, "Failed to create share", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(result)
}

// @Summary      List shares
// @Description  Lists the shares issued by the currently authenticated practitioner.
// @Tags         shares
// @Produce      json
// @Security     BearerAuth
// @Param        active  query     bool  false  "Only active shares"
// @Param        limit   query     int   false  "Number of items to return" default(100)
// @Param        offset  query     int   false  "Offset for pagination" default(0)
// @Success      200     {array}   models.Share
// @Failure      401     {string}  string "Unauthorized"
// @Failure      500     {string}  string "Internal Server Error"
// @Router       /shares [get]
func (s *Server) ListSharesHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	limit, offset := parsePagination(r)
	activeOnly := r.URL.Query().Get("active") == "true"

	shares, err := s.sharing.ListShares(r.Context(), claims.UserID, activeOnly, limit, offset)
	if err != nil {
		log.Printf("ERROR: Failed to list shares for user %d: %v", claims.UserID, err)
		http.Error(w, "Failed to retrieve shares", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(shares)
}

type RevokeShareRequest struct {
	Reason *string `json:"reason,omitempty" example:"sent to the wrong address"`
}

// @Summary      Revoke a share
// @Description  Deactivates a share and invalidates every session issued for it. Only the issuing practitioner can do this.
// @Tags         shares
// @Accept       json
// @Security     BearerAuth
// @Param        shareId        path      string              true   "ID of the share to revoke" format(uuid)
// @Param        revokeRequest  body      RevokeShareRequest  false  "Revocation reason"
// @Success      204            {null}    nil "No Content"
// @Failure      400            {string}  string "Bad Request"
// @Failure      401            {string}  string "Unauthorized"
// @Failure      404            {string}  string "Not Found"
// @Failure      500            {string}  string "Internal Server Error"
// @Router       /shares/{shareId} [delete]
func (s *Server) RevokeShareHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	shareID, err := uuid.Parse(chi.URLParam(r, "shareId"))
	if err != nil {
		http.Error(w, "Invalid share ID format", http.StatusBadRequest)
		return
	}

	var req RevokeShareRequest
	if r.Body != nil {
		// The body is optional; a missing or empty one means no reason.
		json.NewDecoder(r.Body).Decode(&req)
	}

	err = s.sharing.RevokeShare(r.Context(), shareID, claims.UserID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, sharing.ErrShareNotFound), errors.Is(err, sharing.ErrNotShareOwner):
			http.Error(w, "Share not found or you do not have permission to revoke it", http.StatusNotFound)
		default:
			log.Printf("ERROR: Failed to revoke share %s: %v", shareID, err)
			http.Error(w, "Failed to revoke share", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// @Summary      Get the audit trail of a share
// @Description  Returns every grant, denial, read, write and revocation recorded for the share, oldest first.
// @Tags         shares
// @Produce      json
// @Security     BearerAuth
// @Param        shareId  path      string  true   "Share ID" format(uuid)
// @Param        limit    query     int     false  "Number of items to return" default(100)
// @Param        offset   query     int     false  "Offset for pagination" default(0)
// @Success      200      {array}   models.AccessLog
// @Failure      400      {string}  string "Bad Request"
// @Failure      401      {string}  string "Unauthorized"
// @Failure      404      {string}  string "Not Found"
// @Failure      500      {string}  string "Internal Server Error"
// @Router       /shares/{shareId}/logs [get]
func (s *Server) GetShareLogsHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	limit, offset := parsePagination(r)

	shareID, err := uuid.Parse(chi.URLParam(r, "shareId"))
	if err != nil {
		http.Error(w, "Invalid share ID format", http.StatusBadRequest)
		return
	}

	logs, err := s.sharing.GetShareLogs(r.Context(), shareID, claims.UserID, limit, offset)
	if err != nil {
		switch {
		case errors.Is(err, sharing.ErrShareNotFound), errors.Is(err, sharing.ErrNotShareOwner):
			http.Error(w, "Share not found or you do not have permission to view it", http.StatusNotFound)
		default:
			log.Printf("ERROR: Failed to list logs for share %s: %v", shareID, err)
			http.Error(w, "Failed to retrieve share logs", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(logs)
}
