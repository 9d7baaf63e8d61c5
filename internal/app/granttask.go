/**
 * @description
 * The grant-task pipeline. Guest events from the surrounding membership app
 * (a finished meeting with external guests, a logged onsite visit) become
 * pending review tasks; an admin decision settles them. Approval credits the
 * inviter through a completed meeting_invite_reward transaction created in
 * the same transactional scope as the task decision, so a task can never be
 * approved without its payout or paid without its decision.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/partnerhub/ledger-service/internal/domain"
	"github.com/partnerhub/ledger-service/internal/store"
)

// OnMeetingFinished creates one pending grant task per external guest of a
// finished meeting. Unknown guest categories are not an error: the task is
// created with a zero default amount and surfaces a reviewer warning instead.
func (s *Service) OnMeetingFinished(ctx context.Context, event domain.MeetingFinishedEvent) ([]domain.GrantTask, error) {
	if event.MeetingID == uuid.Nil {
		return nil, domain.NewValidationError("meeting_id", "is required")
	}
	if len(event.Guests) == 0 {
		return nil, nil
	}

	tasks := make([]domain.GrantTask, 0, len(event.Guests))
	err := s.repo.InTx(ctx, func(ctx context.Context, tx store.LedgerTx) error {
		tasks = tasks[:0]
		for _, guest := range event.Guests {
			if guest.InviterUserID == uuid.Nil {
				return domain.NewValidationError("guests.inviter_user_id", "is required")
			}
			task := newGrantTask(guest.InviterUserID, domain.FromMeetingGuest(domain.MeetingGuestSource{
				MeetingID:    event.MeetingID,
				GuestID:      guest.GuestID,
				Name:         guest.Name,
				Organization: guest.Organization,
				Category:     guest.Category,
			}))
			if err := tx.InsertGrantTask(ctx, task); err != nil {
				return err
			}
			tasks = append(tasks, *task)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=grant_pipeline msg=\"meeting tasks created\" meeting_id=%s tasks=%d", event.MeetingID, len(tasks))
	for i := range tasks {
		s.publish(ctx, domain.EventGrantTaskCreated, grantTaskEvent(&tasks[i]))
	}
	return tasks, nil
}

// OnVisitLogged creates one pending grant task for a logged onsite visit.
func (s *Service) OnVisitLogged(ctx context.Context, event domain.VisitLoggedEvent) (*domain.GrantTask, error) {
	if event.VisitID == uuid.Nil {
		return nil, domain.NewValidationError("visit_id", "is required")
	}
	if event.InviterUserID == uuid.Nil {
		return nil, domain.NewValidationError("inviter_user_id", "is required")
	}

	visitedAt := event.VisitedAt
	if visitedAt.IsZero() {
		visitedAt = time.Now().UTC()
	}
	task := newGrantTask(event.InviterUserID, domain.FromOnsiteVisit(domain.OnsiteVisitSource{
		VisitID:      event.VisitID,
		Name:         event.Name,
		Organization: event.Organization,
		Category:     event.Category,
		VisitedAt:    visitedAt,
	}))

	err := s.repo.InTx(ctx, func(ctx context.Context, tx store.LedgerTx) error {
		return tx.InsertGrantTask(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=grant_pipeline msg=\"visit task created\" visit_id=%s inviter_id=%s", event.VisitID, event.InviterUserID)
	s.publish(ctx, domain.EventGrantTaskCreated, grantTaskEvent(task))
	return task, nil
}

func newGrantTask(inviterID uuid.UUID, source domain.GuestSource) *domain.GrantTask {
	defaultAmount, known := domain.RewardForCategory(source.Category())
	if !known {
		log.Printf("level=warn component=grant_pipeline msg=\"unknown guest category; defaulting reward to zero\" category=%q", source.Category())
		defaultAmount = 0
	}
	return &domain.GrantTask{
		ID:            uuid.New(),
		Source:        source,
		InviterUserID: inviterID,
		Status:        domain.TaskPending,
		DefaultAmount: defaultAmount,
	}
}

// ApproveGrantTask settles a pending task: final amount is the override when
// given, otherwise the category default. The inviter's credit, the reward
// transaction, and the task decision commit together. A zero final amount
// approves the task without spawning a transaction (transactions require a
// positive amount).
func (s *Service) ApproveGrantTask(ctx context.Context, adminID, taskID uuid.UUID, amountOverride *domain.Amount, comment *string) (*domain.GrantTask, error) {
	if amountOverride != nil && *amountOverride < 0 {
		return nil, domain.NewValidationError("amount_override", "must not be negative")
	}

	var decided *domain.GrantTask
	err := s.repo.InLedgerTx(ctx, func(ctx context.Context, tx store.LedgerTx) error {
		task, err := tx.GrantTaskForUpdate(ctx, taskID)
		if err != nil {
			return err
		}
		if task.Status != domain.TaskPending {
			return domain.ErrInvalidStateTransition
		}

		finalAmount := task.DefaultAmount
		if amountOverride != nil {
			finalAmount = *amountOverride
		}
		decidedAt := time.Now().UTC()
		decision := store.GrantTaskDecision{
			Status:       domain.TaskApproved,
			FinalAmount:  &finalAmount,
			AdminUserID:  adminID,
			AdminComment: comment,
			DecidedAt:    decidedAt,
		}

		if finalAmount.Positive() {
			guestID := task.Source.GuestID()
			reward := &domain.Transaction{
				ID:             uuid.New(),
				Direction:      domain.DirectionMeetingInviteReward,
				Status:         domain.StatusCompleted,
				ToUserID:       &task.InviterUserID,
				Amount:         finalAmount,
				Reason:         "guest invitation reward",
				AdminUserID:    &adminID,
				RelatedGuestID: &guestID,
				CompletedAt:    &decidedAt,
			}
			if task.Source.Kind == domain.SourceMeetingGuest {
				reward.RelatedMeetingID = &task.Source.Meeting.MeetingID
			}
			if err := tx.Credit(ctx, task.InviterUserID, finalAmount); err != nil {
				return err
			}
			if err := tx.InsertTransaction(ctx, reward); err != nil {
				return err
			}
			decision.TokenTransactionID = &reward.ID
		}

		if err := tx.DecideGrantTask(ctx, taskID, decision); err != nil {
			return err
		}

		task.Status = domain.TaskApproved
		task.FinalAmount = &finalAmount
		task.AdminUserID = &adminID
		task.AdminComment = comment
		task.DecidedAt = &decidedAt
		task.TokenTransactionID = decision.TokenTransactionID
		decided = task
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=grant_pipeline msg=\"grant task approved\" task_id=%s admin_id=%s final_amount=%d", taskID, adminID, *decided.FinalAmount)
	s.publish(ctx, domain.EventGrantTaskApproved, grantTaskEvent(decided))
	return decided, nil
}

// RejectGrantTask closes a pending task with no ledger effect. Rejected is
// terminal; re-inviting the same guest produces a fresh task from a fresh
// event.
func (s *Service) RejectGrantTask(ctx context.Context, adminID, taskID uuid.UUID, comment *string) (*domain.GrantTask, error) {
	var decided *domain.GrantTask
	err := s.repo.InLedgerTx(ctx, func(ctx context.Context, tx store.LedgerTx) error {
		task, err := tx.GrantTaskForUpdate(ctx, taskID)
		if err != nil {
			return err
		}
		if task.Status != domain.TaskPending {
			return domain.ErrInvalidStateTransition
		}

		decidedAt := time.Now().UTC()
		decision := store.GrantTaskDecision{
			Status:       domain.TaskRejected,
			AdminUserID:  adminID,
			AdminComment: comment,
			DecidedAt:    decidedAt,
		}
		if err := tx.DecideGrantTask(ctx, taskID, decision); err != nil {
			return err
		}

		task.Status = domain.TaskRejected
		task.AdminUserID = &adminID
		task.AdminComment = comment
		task.DecidedAt = &decidedAt
		decided = task
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=grant_pipeline msg=\"grant task rejected\" task_id=%s admin_id=%s", taskID, adminID)
	s.publish(ctx, domain.EventGrantTaskRejected, grantTaskEvent(decided))
	return decided, nil
}

// ListPendingGrantTasks returns pending tasks annotated with advisory
// duplicate-guest warnings. Warnings never gate a decision; a failed warning
// computation degrades to an unannotated task.
func (s *Service) ListPendingGrantTasks(ctx context.Context, limit, offset int) ([]domain.GrantTaskReview, error) {
	tasks, err := s.repo.ListPendingGrantTasks(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	reviews := make([]domain.GrantTaskReview, 0, len(tasks))
	for _, task := range tasks {
		review := domain.GrantTaskReview{Task: task}
		if _, known := domain.RewardForCategory(task.Source.Category()); !known {
			review.Warnings = append(review.Warnings, domain.WarningUnknownCategory)
		}

		person, orgOnly, err := s.repo.CountPriorGuestMatches(ctx, task.ID, task.Source.GuestName(), task.Source.Organization())
		if err != nil {
			log.Printf("level=warn component=grant_pipeline msg=\"duplicate-guest check failed\" task_id=%s err=%v", task.ID, err)
		} else {
			if person > 0 {
				review.Warnings = append(review.Warnings, domain.WarningPersonSeenBefore)
			}
			if orgOnly > 0 {
				review.Warnings = append(review.Warnings, domain.WarningOrgSeenBefore)
			}
		}
		reviews = append(reviews, review)
	}
	return reviews, nil
}

// GetGrantTask returns one grant task by id.
func (s *Service) GetGrantTask(ctx context.Context, id uuid.UUID) (*domain.GrantTask, error) {
	return s.repo.GetGrantTask(ctx, id)
}

func grantTaskEvent(task *domain.GrantTask) domain.GrantTaskEvent {
	return domain.GrantTaskEvent{
		TaskID:             task.ID,
		InviterUserID:      task.InviterUserID,
		Status:             task.Status,
		FinalAmount:        task.FinalAmount,
		TokenTransactionID: task.TokenTransactionID,
		Timestamp:          time.Now().UTC(),
	}
}
