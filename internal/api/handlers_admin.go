/**
 * @description
 * HTTP handlers for admin-originated ledger operations: direct grants,
 * deductions, and project dividend distributions. All routes carrying these
 * handlers sit behind RequireAdmin.
 */

package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/partnerhub/ledger-service/internal/domain"
)

type adminGrantRequest struct {
	ToUserID string `json:"to_user_id"`
	Amount   int64  `json:"amount"`
	Reason   string `json:"reason"`
}

type adminDeductRequest struct {
	FromUserID string `json:"from_user_id"`
	Amount     int64  `json:"amount"`
	Reason     string `json:"reason"`
}

type dividendRequest struct {
	ProjectID     string                 `json:"project_id"`
	Reason        string                 `json:"reason"`
	Distributions []domain.DividendEntry `json:"distributions"`
}

// AdminGrantHandler credits a partner directly.
func (h *LedgerHandlers) AdminGrantHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.authUserUUID(w, r)
	if !ok {
		return
	}

	var req adminGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	toUserID, err := uuid.Parse(req.ToUserID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid to_user_id: must be a UUID")
		return
	}

	tx, err := h.service.AdminGrant(r.Context(), adminID, toUserID, domain.Amount(req.Amount), req.Reason)
	if err != nil {
		log.Printf("level=warn component=api endpoint=admin_grant outcome=failed admin_id=%s err=%v", adminID, err)
		h.writeServiceError(w, "admin_grant", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, tx)
}

// AdminDeductHandler debits a partner directly.
func (h *LedgerHandlers) AdminDeductHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.authUserUUID(w, r)
	if !ok {
		return
	}

	var req adminDeductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	fromUserID, err := uuid.Parse(req.FromUserID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid from_user_id: must be a UUID")
		return
	}

	tx, err := h.service.AdminDeduct(r.Context(), adminID, fromUserID, domain.Amount(req.Amount), req.Reason)
	if err != nil {
		log.Printf("level=warn component=api endpoint=admin_deduct outcome=failed admin_id=%s err=%v", adminID, err)
		h.writeServiceError(w, "admin_deduct", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, tx)
}

// DistributeDividendHandler distributes a project dividend to many partners
// in one all-or-nothing batch.
func (h *LedgerHandlers) DistributeDividendHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.authUserUUID(w, r)
	if !ok {
		return
	}

	var req dividendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid project_id: must be a UUID")
		return
	}

	records, err := h.service.DistributeDividend(r.Context(), adminID, projectID, req.Distributions, req.Reason)
	if err != nil {
		log.Printf("level=warn component=api endpoint=distribute_dividend outcome=failed project_id=%s err=%v", projectID, err)
		h.writeServiceError(w, "distribute_dividend", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"project_id":   projectID,
		"transactions": records,
	})
}
