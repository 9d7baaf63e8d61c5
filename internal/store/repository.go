/**
 * @description
 * This file defines the data-access contracts for the ledger-service. The
 * `Repository` interface covers plain reads and the two transactional entry
 * points; `LedgerTx` is the scoped handle a unit of work receives inside a
 * database transaction. Balance mutations exist only on LedgerTx, so nothing
 * outside the transactional executor can touch an account row.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/google/uuid: For identifiers.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/partnerhub/ledger-service/internal/domain"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountExists       = errors.New("account already exists")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrGrantTaskNotFound   = errors.New("grant task not found")

	// ErrRetryExhausted wraps the last retryable failure once the executor has
	// used up its attempt budget. The caller may safely resubmit: nothing was
	// committed.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
)

// Repository is the read surface plus the transactional entry points.
type Repository interface {
	// Plain reads, executed on the pool outside any transaction.
	GetAccount(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, filter domain.TransactionFilter) ([]domain.Transaction, error)
	GetGrantTask(ctx context.Context, id uuid.UUID) (*domain.GrantTask, error)
	ListPendingGrantTasks(ctx context.Context, limit, offset int) ([]domain.GrantTask, error)
	CountPriorGuestMatches(ctx context.Context, excludeTaskID uuid.UUID, name, organization string) (person int, organizationOnly int, err error)

	// InLedgerTx runs fn inside a SERIALIZABLE transaction with the longer
	// ledger timeout and conflict retries. Required for every unit of work
	// that reads and then writes a balance.
	InLedgerTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error

	// InTx runs fn inside a READ COMMITTED transaction with the default
	// timeout. Used for multi-row writes that never touch a balance.
	InTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
}

// LedgerTx is the scoped data-access handle inside one database transaction.
// All mutations roll back together if the unit of work returns an error.
type LedgerTx interface {
	// Account mutations. Debit and Freeze fail with ErrInsufficientFunds when
	// the available balance (balance minus frozen) cannot cover the amount.
	CreateAccount(ctx context.Context, userID uuid.UUID, initialAmount domain.Amount) (*domain.Account, error)
	Account(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
	Credit(ctx context.Context, userID uuid.UUID, amount domain.Amount) error
	Debit(ctx context.Context, userID uuid.UUID, amount domain.Amount) error
	Freeze(ctx context.Context, userID uuid.UUID, amount domain.Amount) error
	Unfreeze(ctx context.Context, userID uuid.UUID, amount domain.Amount) error

	// Transaction rows.
	InsertTransaction(ctx context.Context, tx *domain.Transaction) error
	TransactionForUpdate(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, id uuid.UUID, from, to domain.TransactionStatus, update TransactionStatusUpdate) error

	// Grant tasks.
	InsertGrantTask(ctx context.Context, task *domain.GrantTask) error
	GrantTaskForUpdate(ctx context.Context, id uuid.UUID) (*domain.GrantTask, error)
	DecideGrantTask(ctx context.Context, id uuid.UUID, decision GrantTaskDecision) error
}

// TransactionStatusUpdate carries the optional fields stamped alongside a
// guarded status transition. DecisionComment is attributed to whichever
// party drove the transition, not only admins.
type TransactionStatusUpdate struct {
	AdminUserID     *uuid.UUID
	DecisionComment *string
	CompletedAt     *time.Time
}

// GrantTaskDecision records the one-shot admin decision on a pending task.
type GrantTaskDecision struct {
	Status             domain.GrantTaskStatus
	FinalAmount        *domain.Amount
	AdminUserID        uuid.UUID
	AdminComment       *string
	DecidedAt          time.Time
	TokenTransactionID *uuid.UUID
}
