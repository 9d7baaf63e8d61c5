/**
 * @description
 * HTTP handlers for the grant-task review queue: listing pending tasks with
 * their advisory warnings, and approving or rejecting a task.
 */

package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/partnerhub/ledger-service/internal/domain"
)

type approveGrantTaskRequest struct {
	AmountOverride *int64  `json:"amount_override,omitempty"`
	Comment        *string `json:"comment,omitempty"`
}

type rejectGrantTaskRequest struct {
	Comment *string `json:"comment,omitempty"`
}

// ListPendingGrantTasksHandler returns the review queue, oldest first.
func (h *LedgerHandlers) ListPendingGrantTasksHandler(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.service.ListPendingGrantTasks(r.Context(), queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		h.writeServiceError(w, "list_pending_grant_tasks", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": reviews})
}

// GetGrantTaskHandler returns one grant task by id.
func (h *LedgerHandlers) GetGrantTaskHandler(w http.ResponseWriter, r *http.Request) {
	taskID, ok := h.pathUUID(w, r, "taskID")
	if !ok {
		return
	}

	task, err := h.service.GetGrantTask(r.Context(), taskID)
	if err != nil {
		h.writeServiceError(w, "get_grant_task", err)
		return
	}
	h.writeJSON(w, http.StatusOK, task)
}

// ApproveGrantTaskHandler settles a pending task, crediting the inviter.
func (h *LedgerHandlers) ApproveGrantTaskHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.authUserUUID(w, r)
	if !ok {
		return
	}
	taskID, ok := h.pathUUID(w, r, "taskID")
	if !ok {
		return
	}

	var req approveGrantTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	var override *domain.Amount
	if req.AmountOverride != nil {
		amount := domain.Amount(*req.AmountOverride)
		override = &amount
	}

	task, err := h.service.ApproveGrantTask(r.Context(), adminID, taskID, override, req.Comment)
	if err != nil {
		log.Printf("level=warn component=api endpoint=approve_grant_task outcome=failed task_id=%s err=%v", taskID, err)
		h.writeServiceError(w, "approve_grant_task", err)
		return
	}
	h.writeJSON(w, http.StatusOK, task)
}

// RejectGrantTaskHandler closes a pending task without a payout.
func (h *LedgerHandlers) RejectGrantTaskHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.authUserUUID(w, r)
	if !ok {
		return
	}
	taskID, ok := h.pathUUID(w, r, "taskID")
	if !ok {
		return
	}

	var req rejectGrantTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	task, err := h.service.RejectGrantTask(r.Context(), adminID, taskID, req.Comment)
	if err != nil {
		log.Printf("level=warn component=api endpoint=reject_grant_task outcome=failed task_id=%s err=%v", taskID, err)
		h.writeServiceError(w, "reject_grant_task", err)
		return
	}
	h.writeJSON(w, http.StatusOK, task)
}
