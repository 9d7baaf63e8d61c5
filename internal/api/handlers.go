/**
 * @description
 * This file contains the HTTP handlers shared plumbing plus the account-facing
 * endpoints: balance, transaction history, and the internal account-opening
 * hook called by the membership platform at partner onboarding. Handlers parse
 * requests, call the application service, and translate service errors into
 * HTTP status codes.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/partnerhub/ledger-service/internal/app"
	"github.com/partnerhub/ledger-service/internal/domain"
	"github.com/partnerhub/ledger-service/internal/store"
)

// LedgerHandlers holds the application service that handlers will use.
type LedgerHandlers struct {
	service *app.Service
}

// NewLedgerHandlers creates a new instance of LedgerHandlers.
func NewLedgerHandlers(service *app.Service) *LedgerHandlers {
	return &LedgerHandlers{service: service}
}

// writeJSON is a helper for writing JSON responses.
func (h *LedgerHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *LedgerHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps service-layer errors onto HTTP status codes.
func (h *LedgerHandlers) writeServiceError(w http.ResponseWriter, endpoint string, err error) {
	switch {
	case domain.IsValidation(err):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrInsufficientFunds):
		h.writeError(w, http.StatusPaymentRequired, "Insufficient available balance")
	case errors.Is(err, domain.ErrInvalidStateTransition):
		h.writeError(w, http.StatusConflict, "Operation not allowed in the current state")
	case errors.Is(err, app.ErrNotTransferParty):
		h.writeError(w, http.StatusForbidden, "Not a party of this transfer")
	case errors.Is(err, app.ErrTransferRateLimited):
		h.writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, store.ErrAccountNotFound):
		h.writeError(w, http.StatusNotFound, "Account not found")
	case errors.Is(err, store.ErrTransactionNotFound):
		h.writeError(w, http.StatusNotFound, "Transaction not found")
	case errors.Is(err, store.ErrGrantTaskNotFound):
		h.writeError(w, http.StatusNotFound, "Grant task not found")
	case errors.Is(err, store.ErrAccountExists):
		h.writeError(w, http.StatusConflict, "Account already exists")
	case errors.Is(err, store.ErrRetryExhausted):
		h.writeError(w, http.StatusServiceUnavailable, "Temporarily unable to process; please retry")
	default:
		log.Printf("level=error component=api endpoint=%s msg=\"unhandled service error\" err=%v", endpoint, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// authUserUUID resolves the authenticated caller to a UUID or writes an error.
func (h *LedgerHandlers) authUserUUID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userIDStr, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "Invalid user ID in token")
		return uuid.Nil, false
	}
	return userID, true
}

// pathUUID parses a UUID URL parameter or writes a 400.
func (h *LedgerHandlers) pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, param)
	id, err := uuid.Parse(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s: must be a UUID", param))
		return uuid.Nil, false
	}
	return id, true
}

type balanceResponse struct {
	UserID    string `json:"user_id"`
	Balance   int64  `json:"balance"`
	Frozen    int64  `json:"frozen"`
	Available int64  `json:"available"`
}

// GetBalanceHandler returns the balance read model for one account. Partners
// may only read their own balance; admins may read any.
func (h *LedgerHandlers) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.authUserUUID(w, r)
	if !ok {
		return
	}
	targetID, ok := h.pathUUID(w, r, "userID")
	if !ok {
		return
	}
	if role, _ := GetAuthRole(r.Context()); role != RoleAdmin && callerID != targetID {
		h.writeError(w, http.StatusForbidden, "Cannot read another partner's balance")
		return
	}

	view, err := h.service.GetBalance(r.Context(), targetID)
	if err != nil {
		h.writeServiceError(w, "get_balance", err)
		return
	}
	h.writeJSON(w, http.StatusOK, balanceResponse{
		UserID:    view.UserID.String(),
		Balance:   int64(view.Balance),
		Frozen:    int64(view.Frozen),
		Available: int64(view.Available),
	})
}

// ListTransactionsHandler returns a user's transaction history, newest first.
func (h *LedgerHandlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.authUserUUID(w, r)
	if !ok {
		return
	}
	targetID, ok := h.pathUUID(w, r, "userID")
	if !ok {
		return
	}
	if role, _ := GetAuthRole(r.Context()); role != RoleAdmin && callerID != targetID {
		h.writeError(w, http.StatusForbidden, "Cannot read another partner's transactions")
		return
	}

	filter := domain.TransactionFilter{
		Direction: domain.Direction(r.URL.Query().Get("direction")),
		Status:    domain.TransactionStatus(r.URL.Query().Get("status")),
		Limit:     queryInt(r, "limit"),
		Offset:    queryInt(r, "offset"),
	}

	transactions, err := h.service.GetTransactionHistory(r.Context(), targetID, filter)
	if err != nil {
		h.writeServiceError(w, "list_transactions", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": transactions})
}

// GetTransactionHandler returns one transaction by id.
func (h *LedgerHandlers) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.authUserUUID(w, r)
	if !ok {
		return
	}
	txID, ok := h.pathUUID(w, r, "transactionID")
	if !ok {
		return
	}

	tx, err := h.service.GetTransaction(r.Context(), txID)
	if err != nil {
		h.writeServiceError(w, "get_transaction", err)
		return
	}
	if role, _ := GetAuthRole(r.Context()); role != RoleAdmin && !isTransactionParty(tx, callerID) {
		h.writeError(w, http.StatusForbidden, "Not a party of this transaction")
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

func isTransactionParty(tx *domain.Transaction, userID uuid.UUID) bool {
	if tx.FromUserID != nil && *tx.FromUserID == userID {
		return true
	}
	return tx.ToUserID != nil && *tx.ToUserID == userID
}

type createAccountRequest struct {
	UserID        string `json:"user_id"`
	InitialAmount int64  `json:"initial_amount"`
}

// CreateAccountHandler opens a token account for a newly onboarded partner.
// It is called service-to-service by the membership platform and guarded by
// the internal API key.
func (h *LedgerHandlers) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid user_id: must be a UUID")
		return
	}

	account, err := h.service.OpenAccount(r.Context(), userID, domain.Amount(req.InitialAmount))
	if err != nil {
		h.writeServiceError(w, "create_account", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, account)
}

func queryInt(r *http.Request, name string) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0
	}
	return value
}
