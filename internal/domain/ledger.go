/**
 * @description
 * This file defines the core domain models for the ledger-service: partner
 * accounts, ledger transactions, and the transfer state machine. These structs
 * map directly to the `accounts` and `transactions` tables.
 *
 * @notes
 * - Amounts are modeled as the distinct `Amount` type over int64 whole token
 *   units, which avoids floating-point inaccuracies and prevents accidental
 *   mixing with unrelated integer quantities.
 * - Only `transfer` transactions walk the multi-party approval states; every
 *   other direction is created and settled in a single transactional step.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Amount is a quantity of tokens in whole units. It is always non-negative in
// stored state; operation inputs must be strictly positive.
type Amount int64

// Positive reports whether the amount is valid as an operation input.
func (a Amount) Positive() bool { return a > 0 }

// Direction categorizes why value moved.
type Direction string

const (
	DirectionTransfer            Direction = "transfer"
	DirectionAdminGrant          Direction = "admin_grant"
	DirectionAdminDeduct         Direction = "admin_deduct"
	DirectionDividend            Direction = "dividend"
	DirectionMeetingInviteReward Direction = "meeting_invite_reward"
)

// TransactionStatus is the lifecycle state of a ledger transaction.
type TransactionStatus string

const (
	StatusPendingAdminApproval   TransactionStatus = "pending_admin_approval"
	StatusPendingReceiverConfirm TransactionStatus = "pending_receiver_confirm"
	StatusCompleted              TransactionStatus = "completed"
	StatusRejected               TransactionStatus = "rejected"
	StatusCancelled              TransactionStatus = "cancelled"
)

// transferTransitions is the closed transition table for the transfer state
// machine. Cancelled and rejected are absorbing.
var transferTransitions = map[TransactionStatus][]TransactionStatus{
	StatusPendingAdminApproval:   {StatusPendingReceiverConfirm, StatusRejected, StatusCancelled},
	StatusPendingReceiverConfirm: {StatusCompleted, StatusRejected},
}

// CanTransition reports whether a transfer may move from one status to another.
func CanTransition(from, to TransactionStatus) bool {
	for _, next := range transferTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Account is the durable per-user balance record. Balance includes the frozen
// portion; the spendable amount is Available().
type Account struct {
	UserID        uuid.UUID  `json:"user_id"`
	Balance       Amount     `json:"balance"`
	FrozenAmount  Amount     `json:"frozen_amount"`
	InitialAmount Amount     `json:"initial_amount"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	ArchivedAt    *time.Time `json:"archived_at,omitempty"`
}

// Available returns the spendable balance: total minus frozen.
func (a *Account) Available() Amount {
	return a.Balance - a.FrozenAmount
}

// Transaction is the immutable-once-settled record of one value movement.
// FromUserID is nil for system-issued credits (grants, dividends, rewards);
// ToUserID is nil for system-issued debits (deductions). DecisionComment is
// free text from whoever decided a pending step: the reviewing admin, the
// confirming receiver, or the cancelling sender.
type Transaction struct {
	ID               uuid.UUID         `json:"id"`
	Direction        Direction         `json:"direction"`
	Status           TransactionStatus `json:"status"`
	FromUserID       *uuid.UUID        `json:"from_user_id,omitempty"`
	ToUserID         *uuid.UUID        `json:"to_user_id,omitempty"`
	Amount           Amount            `json:"amount"`
	Reason           string            `json:"reason"`
	DecisionComment  *string           `json:"decision_comment,omitempty"`
	AdminUserID      *uuid.UUID        `json:"admin_user_id,omitempty"`
	RelatedProjectID *uuid.UUID        `json:"related_project_id,omitempty"`
	RelatedMeetingID *uuid.UUID        `json:"related_meeting_id,omitempty"`
	RelatedGuestID   *uuid.UUID        `json:"related_guest_id,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
}

// BalanceView is the read model returned by balance queries.
type BalanceView struct {
	UserID    uuid.UUID `json:"user_id"`
	Balance   Amount    `json:"balance"`
	Frozen    Amount    `json:"frozen"`
	Available Amount    `json:"available"`
}

// TransferRequest is the DTO for creating a peer-to-peer transfer.
type TransferRequest struct {
	ToUserID         uuid.UUID  `json:"to_user_id"`
	Amount           Amount     `json:"amount"`
	Reason           string     `json:"reason"`
	RelatedProjectID *uuid.UUID `json:"related_project_id,omitempty"`
}

// DividendEntry is one recipient line in a dividend distribution.
type DividendEntry struct {
	UserID uuid.UUID `json:"user_id"`
	Amount Amount    `json:"amount"`
	Note   string    `json:"note"`
}

// TransactionFilter narrows transaction history reads.
type TransactionFilter struct {
	Direction Direction
	Status    TransactionStatus
	Limit     int
	Offset    int
}
