/**
 * @description
 * Direct ledger operations: admin-originated grants, deductions, and the
 * all-or-nothing dividend batch. These settle in a single transactional step
 * with no counterparty approval — a deliberate trust boundary of the product,
 * enforced upstream by the admin-only API middleware.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/partnerhub/ledger-service/internal/domain"
	"github.com/partnerhub/ledger-service/internal/store"
)

// AdminGrant credits a partner and records a completed admin_grant
// transaction in one transactional step.
func (s *Service) AdminGrant(ctx context.Context, adminID, toUserID uuid.UUID, amount domain.Amount, reason string) (*domain.Transaction, error) {
	if !amount.Positive() {
		return nil, domain.NewValidationError("amount", "must be positive")
	}

	completedAt := time.Now().UTC()
	record := &domain.Transaction{
		ID:          uuid.New(),
		Direction:   domain.DirectionAdminGrant,
		Status:      domain.StatusCompleted,
		ToUserID:    &toUserID,
		Amount:      amount,
		Reason:      reason,
		AdminUserID: &adminID,
		CompletedAt: &completedAt,
	}

	err := s.repo.InLedgerTx(ctx, func(ctx context.Context, tx store.LedgerTx) error {
		if err := tx.Credit(ctx, toUserID, amount); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=ledger_service msg=\"admin grant settled\" transaction_id=%s admin_id=%s to=%s amount=%d", record.ID, adminID, toUserID, amount)
	s.publish(ctx, domain.EventLedgerGranted, domain.LedgerEvent{
		TransactionID: record.ID,
		UserID:        toUserID,
		Direction:     domain.DirectionAdminGrant,
		Amount:        amount,
		Reason:        reason,
		Timestamp:     completedAt,
	})
	return record, nil
}

// AdminDeduct debits a partner and records a completed admin_deduct
// transaction in one transactional step. Fails with ErrInsufficientFunds when
// the deduction would drive the available balance negative.
func (s *Service) AdminDeduct(ctx context.Context, adminID, fromUserID uuid.UUID, amount domain.Amount, reason string) (*domain.Transaction, error) {
	if !amount.Positive() {
		return nil, domain.NewValidationError("amount", "must be positive")
	}

	completedAt := time.Now().UTC()
	record := &domain.Transaction{
		ID:          uuid.New(),
		Direction:   domain.DirectionAdminDeduct,
		Status:      domain.StatusCompleted,
		FromUserID:  &fromUserID,
		Amount:      amount,
		Reason:      reason,
		AdminUserID: &adminID,
		CompletedAt: &completedAt,
	}

	err := s.repo.InLedgerTx(ctx, func(ctx context.Context, tx store.LedgerTx) error {
		if err := tx.Debit(ctx, fromUserID, amount); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=ledger_service msg=\"admin deduction settled\" transaction_id=%s admin_id=%s from=%s amount=%d", record.ID, adminID, fromUserID, amount)
	s.publish(ctx, domain.EventLedgerDeducted, domain.LedgerEvent{
		TransactionID: record.ID,
		UserID:        fromUserID,
		Direction:     domain.DirectionAdminDeduct,
		Amount:        amount,
		Reason:        reason,
		Timestamp:     completedAt,
	})
	return record, nil
}

// DistributeDividend credits every recipient of a project dividend inside one
// transactional scope. A failure on any recipient rolls back credits already
// applied to earlier recipients in the same call: all succeed or none do.
func (s *Service) DistributeDividend(ctx context.Context, adminID, projectID uuid.UUID, entries []domain.DividendEntry, reason string) ([]domain.Transaction, error) {
	if projectID == uuid.Nil {
		return nil, domain.NewValidationError("project_id", "is required")
	}
	if len(entries) == 0 {
		return nil, domain.NewValidationError("distributions", "must not be empty")
	}
	for i, entry := range entries {
		if entry.UserID == uuid.Nil {
			return nil, domain.NewValidationError(fmt.Sprintf("distributions[%d].user_id", i), "is required")
		}
		if !entry.Amount.Positive() {
			return nil, domain.NewValidationError(fmt.Sprintf("distributions[%d].amount", i), "must be positive")
		}
	}

	completedAt := time.Now().UTC()
	records := make([]domain.Transaction, 0, len(entries))
	var total domain.Amount

	err := s.repo.InLedgerTx(ctx, func(ctx context.Context, tx store.LedgerTx) error {
		records = records[:0]
		total = 0
		for _, entry := range entries {
			recipientID := entry.UserID
			record := domain.Transaction{
				ID:               uuid.New(),
				Direction:        domain.DirectionDividend,
				Status:           domain.StatusCompleted,
				ToUserID:         &recipientID,
				Amount:           entry.Amount,
				Reason:           reason,
				DecisionComment:  noteOrNil(entry.Note),
				AdminUserID:      &adminID,
				RelatedProjectID: &projectID,
				CompletedAt:      &completedAt,
			}
			if err := tx.Credit(ctx, entry.UserID, entry.Amount); err != nil {
				return fmt.Errorf("dividend credit for user %s: %w", entry.UserID, err)
			}
			if err := tx.InsertTransaction(ctx, &record); err != nil {
				return fmt.Errorf("dividend record for user %s: %w", entry.UserID, err)
			}
			records = append(records, record)
			total += entry.Amount
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=ledger_service msg=\"dividend distributed\" project_id=%s admin_id=%s recipients=%d total=%d", projectID, adminID, len(records), total)
	s.publish(ctx, domain.EventDividendDistributed, domain.DividendEvent{
		ProjectID:      projectID,
		RecipientCount: len(records),
		TotalAmount:    total,
		Reason:         reason,
		Timestamp:      completedAt,
	})
	return records, nil
}

func noteOrNil(note string) *string {
	if note == "" {
		return nil
	}
	return &note
}
