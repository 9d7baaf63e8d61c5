/**
 * @description
 * This file contains the core Service for the ledger-service. The Service
 * orchestrates every money-like movement in the system: peer transfers with
 * two-party approval, admin-originated grants and deductions, dividend
 * batches, and grant-task settlement. It coordinates the transactional store,
 * the message broker producer, and the optional Redis rate limiter.
 *
 * Key invariants owned here:
 * - A balance mutates exactly once, when a transaction reaches completed.
 * - Creating a transfer reserves the amount on the sender inside the same
 *   database transaction as the insert.
 * - Every unit of work that reads then writes a balance runs through
 *   Repository.InLedgerTx (serializable isolation plus conflict retries).
 *
 * @dependencies
 * - internal/domain, internal/store: Domain models and data access.
 * - pkg/rabbitmq: Fire-and-forget event publishing.
 */

package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/partnerhub/ledger-service/internal/domain"
	"github.com/partnerhub/ledger-service/internal/store"
	"github.com/partnerhub/ledger-service/pkg/rabbitmq"
)

var (
	// ErrNotTransferParty is returned when a caller acts on a transfer they
	// are not the required party of (receiver on confirm, sender on cancel).
	ErrNotTransferParty = errors.New("actor is not the required party of this transfer")

	// ErrTransferRateLimited is returned when a sender exceeds the configured
	// transfer-creation rate.
	ErrTransferRateLimited = errors.New("transfer creation rate limit exceeded")
)

// RateLimiter is the distributed limiter consulted before transfer creation.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the core business logic for the token ledger.
type Service struct {
	repo          store.Repository
	events        rabbitmq.Publisher
	eventExchange string

	rateLimiter        RateLimiter
	transfersPerMinute int
}

// NewService creates a ledger service instance. A nil publisher disables
// event emission; a nil limiter disables rate limiting.
func NewService(repo store.Repository, events rabbitmq.Publisher, eventExchange string) *Service {
	return &Service{
		repo:          repo,
		events:        events,
		eventExchange: eventExchange,
	}
}

// SetTransferRateLimiter wires the optional per-sender creation limiter.
func (s *Service) SetTransferRateLimiter(limiter RateLimiter, perMinute int) {
	s.rateLimiter = limiter
	s.transfersPerMinute = perMinute
}

// publish emits a fire-and-forget event. Emission failures are logged and
// never fail the operation that produced them.
func (s *Service) publish(ctx context.Context, routingKey string, body interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, s.eventExchange, routingKey, body); err != nil {
		log.Printf("level=warn component=ledger_service msg=\"event publish failed\" routing_key=%s err=%v", routingKey, err)
	}
}

// OpenAccount creates the one account a partner gets at onboarding, seeded
// with the initial amount. The initial amount is kept as an immutable audit
// reference on the row.
func (s *Service) OpenAccount(ctx context.Context, userID uuid.UUID, initialAmount domain.Amount) (*domain.Account, error) {
	if initialAmount < 0 {
		return nil, domain.NewValidationError("initial_amount", "must not be negative")
	}

	var account *domain.Account
	err := s.repo.InTx(ctx, func(ctx context.Context, tx store.LedgerTx) error {
		created, err := tx.CreateAccount(ctx, userID, initialAmount)
		if err != nil {
			return err
		}
		account = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("level=info component=ledger_service msg=\"account opened\" user_id=%s initial_amount=%d", userID, initialAmount)
	return account, nil
}

// GetBalance returns the balance read model for one account.
func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (*domain.BalanceView, error) {
	account, err := s.repo.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &domain.BalanceView{
		UserID:    account.UserID,
		Balance:   account.Balance,
		Frozen:    account.FrozenAmount,
		Available: account.Available(),
	}, nil
}

// GetTransactionHistory returns a user's transactions, newest first.
func (s *Service) GetTransactionHistory(ctx context.Context, userID uuid.UUID, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	return s.repo.ListTransactions(ctx, userID, filter)
}

// GetTransaction returns one transaction by id.
func (s *Service) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}
