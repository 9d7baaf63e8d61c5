/**
 * @description
 * This file defines the grant-task domain: reviewable proposals to reward a
 * partner for bringing a qualifying guest, sourced from either a finished
 * company meeting or a standalone onsite visit.
 *
 * @notes
 * - The guest source is a tagged union (`GuestSource`) with one payload shape
 *   per source kind, rather than a flat struct of nullable fields.
 * - The category-to-amount table is static; unknown categories default to
 *   zero and carry an advisory warning instead of failing task creation.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskSource identifies which external event produced a grant task.
type TaskSource string

const (
	SourceMeetingGuest TaskSource = "meeting_guest"
	SourceOnsiteVisit  TaskSource = "onsite_visit"
)

// GrantTaskStatus is the lifecycle state of a grant task. Rejected is terminal.
type GrantTaskStatus string

const (
	TaskPending  GrantTaskStatus = "pending"
	TaskApproved GrantTaskStatus = "approved"
	TaskRejected GrantTaskStatus = "rejected"
)

// GuestCategory classifies the visiting guest for reward lookup.
type GuestCategory string

const (
	CategoryListedChairman GuestCategory = "listed_company_chairman"
	CategoryMinistryLeader GuestCategory = "ministry_level_leader"
	CategoryFinExec        GuestCategory = "financial_executive"
	CategoryOther          GuestCategory = "other"
)

// categoryRewards is the static guest-category-to-amount table.
var categoryRewards = map[GuestCategory]Amount{
	CategoryListedChairman: 1000,
	CategoryMinistryLeader: 2000,
	CategoryFinExec:        500,
	CategoryOther:          0,
}

// RewardForCategory returns the default reward for a guest category. A lookup
// miss is not an error: unknown categories map to zero with known=false so the
// caller can attach an advisory warning.
func RewardForCategory(category GuestCategory) (amount Amount, known bool) {
	amount, known = categoryRewards[category]
	return amount, known
}

// MeetingGuestSource is the payload for tasks created when a meeting with
// external guests finishes.
type MeetingGuestSource struct {
	MeetingID    uuid.UUID     `json:"meeting_id"`
	GuestID      uuid.UUID     `json:"guest_id"`
	Name         string        `json:"name"`
	Organization string        `json:"organization"`
	Category     GuestCategory `json:"category"`
}

// OnsiteVisitSource is the payload for tasks created when a partner logs a
// standalone onsite visit.
type OnsiteVisitSource struct {
	VisitID      uuid.UUID     `json:"visit_id"`
	Name         string        `json:"name"`
	Organization string        `json:"organization"`
	Category     GuestCategory `json:"category"`
	VisitedAt    time.Time     `json:"visited_at"`
}

// GuestSource is the tagged union over the two source payloads. Exactly one of
// Meeting and Visit is non-nil, matching Kind.
type GuestSource struct {
	Kind    TaskSource          `json:"kind"`
	Meeting *MeetingGuestSource `json:"meeting,omitempty"`
	Visit   *OnsiteVisitSource  `json:"visit,omitempty"`
}

// FromMeetingGuest builds a GuestSource for a meeting guest.
func FromMeetingGuest(g MeetingGuestSource) GuestSource {
	return GuestSource{Kind: SourceMeetingGuest, Meeting: &g}
}

// FromOnsiteVisit builds a GuestSource for an onsite visit.
func FromOnsiteVisit(v OnsiteVisitSource) GuestSource {
	return GuestSource{Kind: SourceOnsiteVisit, Visit: &v}
}

// GuestID returns the polymorphic source guest reference.
func (s GuestSource) GuestID() uuid.UUID {
	switch s.Kind {
	case SourceMeetingGuest:
		return s.Meeting.GuestID
	case SourceOnsiteVisit:
		return s.Visit.VisitID
	}
	return uuid.Nil
}

// GuestName returns the guest's name regardless of source kind.
func (s GuestSource) GuestName() string {
	switch s.Kind {
	case SourceMeetingGuest:
		return s.Meeting.Name
	case SourceOnsiteVisit:
		return s.Visit.Name
	}
	return ""
}

// Organization returns the guest's organization regardless of source kind.
func (s GuestSource) Organization() string {
	switch s.Kind {
	case SourceMeetingGuest:
		return s.Meeting.Organization
	case SourceOnsiteVisit:
		return s.Visit.Organization
	}
	return ""
}

// Category returns the guest's category regardless of source kind.
func (s GuestSource) Category() GuestCategory {
	switch s.Kind {
	case SourceMeetingGuest:
		return s.Meeting.Category
	case SourceOnsiteVisit:
		return s.Visit.Category
	}
	return ""
}

// GrantTask is a reviewable proposal to reward an inviter. It is mutated
// exactly once, by an admin decision; approval spawns exactly one
// meeting-invite-reward transaction linked back via TokenTransactionID.
type GrantTask struct {
	ID                 uuid.UUID       `json:"id"`
	Source             GuestSource     `json:"source"`
	InviterUserID      uuid.UUID       `json:"inviter_user_id"`
	Status             GrantTaskStatus `json:"status"`
	DefaultAmount      Amount          `json:"default_amount"`
	FinalAmount        *Amount         `json:"final_amount,omitempty"`
	AdminUserID        *uuid.UUID      `json:"admin_user_id,omitempty"`
	AdminComment       *string         `json:"admin_comment,omitempty"`
	DecidedAt          *time.Time      `json:"decided_at,omitempty"`
	TokenTransactionID *uuid.UUID      `json:"token_transaction_id,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// GrantTaskReview is a pending task annotated with advisory warnings for the
// reviewer. Warnings never gate a decision.
type GrantTaskReview struct {
	Task     GrantTask `json:"task"`
	Warnings []string  `json:"warnings,omitempty"`
}

const (
	WarningUnknownCategory  = "guest category is not in the reward table; default amount is 0"
	WarningPersonSeenBefore = "a guest with the same name and organization visited before"
	WarningOrgSeenBefore    = "another guest from the same organization visited before"
)
