/**
 * @description
 * HTTP handlers for the transfer approval workflow: creation by the sender,
 * admin review, receiver confirmation, and sender cancellation.
 */

package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/partnerhub/ledger-service/internal/domain"
)

type reviewTransferRequest struct {
	Approve bool    `json:"approve"`
	Comment *string `json:"comment,omitempty"`
}

type confirmTransferRequest struct {
	Accept  bool    `json:"accept"`
	Comment *string `json:"comment,omitempty"`
}

type cancelTransferRequest struct {
	Reason *string `json:"reason,omitempty"`
}

// CreateTransferHandler proposes a transfer from the authenticated sender.
func (h *LedgerHandlers) CreateTransferHandler(w http.ResponseWriter, r *http.Request) {
	senderID, ok := h.authUserUUID(w, r)
	if !ok {
		return
	}

	var req domain.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	tx, err := h.service.CreateTransfer(r.Context(), senderID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=create_transfer outcome=failed sender_id=%s err=%v", senderID, err)
		h.writeServiceError(w, "create_transfer", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, tx)
}

// ReviewTransferHandler applies the admin decision to a pending transfer.
func (h *LedgerHandlers) ReviewTransferHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.authUserUUID(w, r)
	if !ok {
		return
	}
	txID, ok := h.pathUUID(w, r, "transactionID")
	if !ok {
		return
	}

	var req reviewTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	tx, err := h.service.ReviewTransfer(r.Context(), adminID, txID, req.Approve, req.Comment)
	if err != nil {
		log.Printf("level=warn component=api endpoint=review_transfer outcome=failed transaction_id=%s err=%v", txID, err)
		h.writeServiceError(w, "review_transfer", err)
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

// ConfirmTransferHandler applies the receiver's decision to an approved transfer.
func (h *LedgerHandlers) ConfirmTransferHandler(w http.ResponseWriter, r *http.Request) {
	receiverID, ok := h.authUserUUID(w, r)
	if !ok {
		return
	}
	txID, ok := h.pathUUID(w, r, "transactionID")
	if !ok {
		return
	}

	var req confirmTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	tx, err := h.service.ConfirmTransfer(r.Context(), receiverID, txID, req.Accept, req.Comment)
	if err != nil {
		log.Printf("level=warn component=api endpoint=confirm_transfer outcome=failed transaction_id=%s err=%v", txID, err)
		h.writeServiceError(w, "confirm_transfer", err)
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

// CancelTransferHandler lets the sender withdraw a transfer still awaiting
// admin review.
func (h *LedgerHandlers) CancelTransferHandler(w http.ResponseWriter, r *http.Request) {
	senderID, ok := h.authUserUUID(w, r)
	if !ok {
		return
	}
	txID, ok := h.pathUUID(w, r, "transactionID")
	if !ok {
		return
	}

	var req cancelTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	tx, err := h.service.CancelTransfer(r.Context(), senderID, txID, req.Reason)
	if err != nil {
		log.Printf("level=warn component=api endpoint=cancel_transfer outcome=failed transaction_id=%s err=%v", txID, err)
		h.writeServiceError(w, "cancel_transfer", err)
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}
