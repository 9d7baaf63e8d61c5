/**
 * @description
 * Event payloads published to the message broker after ledger state
 * transitions. Delivery (email, in-app inbox) is entirely the consumer's
 * responsibility; the engine only emits.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Routing keys for ledger events on the topic exchange.
const (
	EventTransferCreated     = "transfer.created"
	EventTransferApproved    = "transfer.approved"
	EventTransferRejected    = "transfer.rejected"
	EventTransferConfirmed   = "transfer.confirmed"
	EventTransferCancelled   = "transfer.cancelled"
	EventLedgerGranted       = "ledger.granted"
	EventLedgerDeducted      = "ledger.deducted"
	EventDividendDistributed = "dividend.distributed"
	EventGrantTaskCreated    = "grant_task.created"
	EventGrantTaskApproved   = "grant_task.approved"
	EventGrantTaskRejected   = "grant_task.rejected"
)

// Routing keys for guest activity events consumed from the membership
// platform's exchange.
const (
	EventMeetingFinished = "guest.meeting.finished"
	EventVisitLogged     = "guest.visit.logged"
)

// TransferEvent is published after every transfer state transition.
type TransferEvent struct {
	TransactionID uuid.UUID         `json:"transaction_id"`
	FromUserID    uuid.UUID         `json:"from_user_id"`
	ToUserID      uuid.UUID         `json:"to_user_id"`
	Amount        Amount            `json:"amount"`
	Status        TransactionStatus `json:"status"`
	Reason        string            `json:"reason"`
	Timestamp     time.Time         `json:"timestamp"`
}

// LedgerEvent is published after an admin grant or deduction settles.
type LedgerEvent struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	UserID        uuid.UUID `json:"user_id"`
	Direction     Direction `json:"direction"`
	Amount        Amount    `json:"amount"`
	Reason        string    `json:"reason"`
	Timestamp     time.Time `json:"timestamp"`
}

// DividendEvent is published once per settled dividend batch.
type DividendEvent struct {
	ProjectID      uuid.UUID `json:"project_id"`
	RecipientCount int       `json:"recipient_count"`
	TotalAmount    Amount    `json:"total_amount"`
	Reason         string    `json:"reason"`
	Timestamp      time.Time `json:"timestamp"`
}

// GrantTaskEvent is published when a grant task is created or decided.
type GrantTaskEvent struct {
	TaskID             uuid.UUID       `json:"task_id"`
	InviterUserID      uuid.UUID       `json:"inviter_user_id"`
	Status             GrantTaskStatus `json:"status"`
	FinalAmount        *Amount         `json:"final_amount,omitempty"`
	TokenTransactionID *uuid.UUID      `json:"token_transaction_id,omitempty"`
	Timestamp          time.Time       `json:"timestamp"`
}

// MeetingFinishedEvent is the inbound payload consumed when a meeting with
// external guests closes.
type MeetingFinishedEvent struct {
	MeetingID uuid.UUID        `json:"meeting_id"`
	Guests    []MeetingGuestIn `json:"guests"`
}

// MeetingGuestIn is one guest row inside a MeetingFinishedEvent.
type MeetingGuestIn struct {
	GuestID       uuid.UUID     `json:"guest_id"`
	InviterUserID uuid.UUID     `json:"inviter_user_id"`
	Name          string        `json:"name"`
	Organization  string        `json:"organization"`
	Category      GuestCategory `json:"category"`
}

// VisitLoggedEvent is the inbound payload consumed when a partner logs an
// onsite visit.
type VisitLoggedEvent struct {
	VisitID       uuid.UUID     `json:"visit_id"`
	InviterUserID uuid.UUID     `json:"inviter_user_id"`
	Name          string        `json:"name"`
	Organization  string        `json:"organization"`
	Category      GuestCategory `json:"category"`
	VisitedAt     time.Time     `json:"visited_at"`
}
