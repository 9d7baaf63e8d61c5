/**
 * @description
 * The peer-to-peer transfer state machine:
 *
 *   (create)                 -> pending_admin_approval   [freezes the amount]
 *   pending_admin_approval   -> pending_receiver_confirm [admin approves]
 *   pending_admin_approval   -> rejected                 [admin rejects; freeze released]
 *   pending_admin_approval   -> cancelled                [sender cancels; freeze released]
 *   pending_receiver_confirm -> completed                [receiver accepts; settles]
 *   pending_receiver_confirm -> rejected                 [receiver declines; freeze released]
 *
 * Every transition runs in one serializable database transaction together
 * with its balance effect, so a transfer can never settle twice and a freeze
 * can never leak.
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

// CreateTransfer proposes a transfer from sender to receiver. The amount is
// reserved on the sender's account in the same transaction that inserts the
// pending row, so the same funds cannot back two in-flight transfers.
func (s *Service) CreateTransfer(ctx context.Context, senderID uuid.UUID, req domain.TransferRequest) (*domain.Transaction, error) {
	if !req.Amount.Positive() {
		return nil, domain.NewValidationError("amount", "must be positive")
	}
	if req.ToUserID == uuid.Nil {
		return nil, domain.NewValidationError("to_user_id", "is required")
	}
	if req.ToUserID == senderID {
		return nil, domain.NewValidationError("to_user_id", "cannot transfer to self")
	}

	if err := s.consumeTransferRateLimit(ctx, senderID); err != nil {
		return nil, err
	}

	receiverID := req.ToUserID
	record := &domain.Transaction{
		ID:               uuid.New(),
		Direction:        domain.DirectionTransfer,
		Status:           domain.StatusPendingAdminApproval,
		FromUserID:       &senderID,
		ToUserID:         &receiverID,
		Amount:           req.Amount,
		Reason:           req.Reason,
		RelatedProjectID: req.RelatedProjectID,
	}

	err := s.repo.InLedgerTx(ctx, func(ctx context.Context, tx store.LedgerTx) error {
		// Receiver must have an account before any funds are reserved.
		if _, err := tx.Account(ctx, receiverID); err != nil {
			return fmt.Errorf("receiver account: %w", err)
		}
		if err := tx.Freeze(ctx, senderID, req.Amount); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=ledger_service msg=\"transfer created\" transaction_id=%s from=%s to=%s amount=%d", record.ID, senderID, receiverID, record.Amount)
	s.publish(ctx, domain.EventTransferCreated, transferEvent(record))
	return record, nil
}

// ReviewTransfer is the admin gate. Approval advances the transfer to the
// receiver-confirmation stage; rejection releases the reservation. Both only
// apply while the transfer is pending admin approval.
func (s *Service) ReviewTransfer(ctx context.Context, adminID, transactionID uuid.UUID, approve bool, comment *string) (*domain.Transaction, error) {
	var record *domain.Transaction
	err := s.repo.InLedgerTx(ctx, func(ctx context.Context, tx store.LedgerTx) error {
		current, err := tx.TransactionForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if current.Direction != domain.DirectionTransfer || current.Status != domain.StatusPendingAdminApproval {
			return domain.ErrInvalidStateTransition
		}

		target := domain.StatusPendingReceiverConfirm
		if !approve {
			target = domain.StatusRejected
			if err := tx.Unfreeze(ctx, *current.FromUserID, current.Amount); err != nil {
				return err
			}
		}
		update := store.TransactionStatusUpdate{AdminUserID: &adminID, DecisionComment: comment}
		if err := tx.UpdateTransactionStatus(ctx, transactionID, domain.StatusPendingAdminApproval, target, update); err != nil {
			return err
		}

		current.Status = target
		current.AdminUserID = &adminID
		current.DecisionComment = comment
		record = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	routingKey := domain.EventTransferApproved
	if !approve {
		routingKey = domain.EventTransferRejected
	}
	log.Printf("level=info component=ledger_service msg=\"transfer reviewed\" transaction_id=%s admin_id=%s approved=%t", transactionID, adminID, approve)
	s.publish(ctx, routingKey, transferEvent(record))
	return record, nil
}

// ConfirmTransfer is the receiver's gate. Acceptance settles atomically:
// release the reservation, debit the sender, credit the receiver, stamp
// completed_at. Decline releases the reservation. A second confirm finds the
// row out of pending_receiver_confirm and fails without mutation.
func (s *Service) ConfirmTransfer(ctx context.Context, receiverID, transactionID uuid.UUID, accept bool, comment *string) (*domain.Transaction, error) {
	var record *domain.Transaction
	err := s.repo.InLedgerTx(ctx, func(ctx context.Context, tx store.LedgerTx) error {
		current, err := tx.TransactionForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if current.Direction != domain.DirectionTransfer || current.Status != domain.StatusPendingReceiverConfirm {
			return domain.ErrInvalidStateTransition
		}
		if current.ToUserID == nil || *current.ToUserID != receiverID {
			return ErrNotTransferParty
		}

		if err := tx.Unfreeze(ctx, *current.FromUserID, current.Amount); err != nil {
			return err
		}

		target := domain.StatusRejected
		update := store.TransactionStatusUpdate{DecisionComment: comment}
		current.DecisionComment = comment
		if accept {
			target = domain.StatusCompleted
			if err := tx.Debit(ctx, *current.FromUserID, current.Amount); err != nil {
				return err
			}
			if err := tx.Credit(ctx, *current.ToUserID, current.Amount); err != nil {
				return err
			}
			completedAt := time.Now().UTC()
			update.CompletedAt = &completedAt
			current.CompletedAt = &completedAt
		}
		if err := tx.UpdateTransactionStatus(ctx, transactionID, domain.StatusPendingReceiverConfirm, target, update); err != nil {
			return err
		}

		current.Status = target
		record = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	routingKey := domain.EventTransferConfirmed
	if !accept {
		routingKey = domain.EventTransferRejected
	}
	log.Printf("level=info component=ledger_service msg=\"transfer confirmed\" transaction_id=%s receiver_id=%s accepted=%t", transactionID, receiverID, accept)
	s.publish(ctx, routingKey, transferEvent(record))
	return record, nil
}

// CancelTransfer lets the sender withdraw a transfer, but only while it still
// awaits admin review. The reservation is released in the same transaction.
func (s *Service) CancelTransfer(ctx context.Context, senderID, transactionID uuid.UUID, reason *string) (*domain.Transaction, error) {
	var record *domain.Transaction
	err := s.repo.InLedgerTx(ctx, func(ctx context.Context, tx store.LedgerTx) error {
		current, err := tx.TransactionForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if current.Direction != domain.DirectionTransfer || current.Status != domain.StatusPendingAdminApproval {
			return domain.ErrInvalidStateTransition
		}
		if current.FromUserID == nil || *current.FromUserID != senderID {
			return ErrNotTransferParty
		}

		if err := tx.Unfreeze(ctx, senderID, current.Amount); err != nil {
			return err
		}
		update := store.TransactionStatusUpdate{DecisionComment: reason}
		current.DecisionComment = reason
		if err := tx.UpdateTransactionStatus(ctx, transactionID, domain.StatusPendingAdminApproval, domain.StatusCancelled, update); err != nil {
			return err
		}

		current.Status = domain.StatusCancelled
		record = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=ledger_service msg=\"transfer cancelled\" transaction_id=%s sender_id=%s", transactionID, senderID)
	s.publish(ctx, domain.EventTransferCancelled, transferEvent(record))
	return record, nil
}

func (s *Service) consumeTransferRateLimit(ctx context.Context, senderID uuid.UUID) error {
	if s.rateLimiter == nil || s.transfersPerMinute <= 0 {
		return nil
	}
	count, retryAfter, err := s.rateLimiter.ConsumeRateLimit(ctx, "transfer_create", senderID.String(), s.transfersPerMinute, time.Minute)
	if err != nil {
		// The limiter is advisory; never block money movement on its outage.
		log.Printf("level=warn component=ledger_service msg=\"rate limiter unavailable; allowing transfer\" sender_id=%s err=%v", senderID, err)
		return nil
	}
	if count > s.transfersPerMinute {
		return fmt.Errorf("%w: retry after %ds", ErrTransferRateLimited, retryAfter)
	}
	return nil
}

func transferEvent(tx *domain.Transaction) domain.TransferEvent {
	event := domain.TransferEvent{
		TransactionID: tx.ID,
		Amount:        tx.Amount,
		Status:        tx.Status,
		Reason:        tx.Reason,
		Timestamp:     time.Now().UTC(),
	}
	if tx.FromUserID != nil {
		event.FromUserID = *tx.FromUserID
	}
	if tx.ToUserID != nil {
		event.ToUserID = *tx.ToUserID
	}
	return event
}
