package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/partnerhub/ledger-service/internal/domain"
	"github.com/partnerhub/ledger-service/internal/store"
)

// txErrStore fails every unit of work with a fixed error.
type txErrStore struct {
	*fakeStore
	err error
}

func (s *txErrStore) InTx(ctx context.Context, fn func(ctx context.Context, tx store.LedgerTx) error) error {
	return s.err
}

func (s *txErrStore) InLedgerTx(ctx context.Context, fn func(ctx context.Context, tx store.LedgerTx) error) error {
	return s.err
}

func TestHandleMeetingFinished_CreatesTasksAndAcks(t *testing.T) {
	inviterID := uuid.New()
	repo := newFakeStore()
	repo.addAccount(inviterID, 0, 0)
	svc, _ := newTestService(repo)
	consumer := NewGuestEventConsumer(svc)

	body, _ := json.Marshal(domain.MeetingFinishedEvent{
		MeetingID: uuid.New(),
		Guests: []domain.MeetingGuestIn{
			{GuestID: uuid.New(), InviterUserID: inviterID, Name: "Chen Wei", Organization: "Acme", Category: domain.CategoryFinExec},
		},
	})
	if !consumer.HandleMeetingFinished(body) {
		t.Fatal("expected delivery to be acknowledged")
	}

	tasks, err := repo.ListPendingGrantTasks(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected one pending task, got %d", len(tasks))
	}
}

func TestHandleMeetingFinished_MalformedPayloadIsDropped(t *testing.T) {
	svc, _ := newTestService(newFakeStore())
	consumer := NewGuestEventConsumer(svc)

	if !consumer.HandleMeetingFinished([]byte("not json")) {
		t.Fatal("expected malformed payload to be acked and dropped, not re-queued")
	}
}

func TestHandleMeetingFinished_InvalidEventIsDroppedNotRequeued(t *testing.T) {
	svc, _ := newTestService(newFakeStore())
	consumer := NewGuestEventConsumer(svc)

	// Valid JSON with a nil meeting id can never succeed on redelivery.
	body, _ := json.Marshal(domain.MeetingFinishedEvent{
		Guests: []domain.MeetingGuestIn{{GuestID: uuid.New(), InviterUserID: uuid.New()}},
	})
	if !consumer.HandleMeetingFinished(body) {
		t.Fatal("expected permanently invalid event to be dropped")
	}
}

func TestHandleVisitLogged_ForeignKeyViolationIsDroppedNotRequeued(t *testing.T) {
	repo := &txErrStore{
		fakeStore: newFakeStore(),
		err:       &pgconn.PgError{Code: "23503", Message: "insert on grant_tasks violates foreign key constraint"},
	}
	svc := NewService(repo, &fakePublisher{}, "ledger_events")
	consumer := NewGuestEventConsumer(svc)

	body, _ := json.Marshal(domain.VisitLoggedEvent{
		VisitID:       uuid.New(),
		InviterUserID: uuid.New(),
		Name:          "Li Na",
		Category:      domain.CategoryOther,
	})
	// An inviter with no account row fails identically on every redelivery.
	if !consumer.HandleVisitLogged(body) {
		t.Fatal("expected integrity violation to be acked and dropped, not re-queued")
	}
}

func TestHandleMeetingFinished_TransientStoreErrorIsRequeued(t *testing.T) {
	repo := &txErrStore{fakeStore: newFakeStore(), err: errors.New("connection reset by peer")}
	svc := NewService(repo, &fakePublisher{}, "ledger_events")
	consumer := NewGuestEventConsumer(svc)

	body, _ := json.Marshal(domain.MeetingFinishedEvent{
		MeetingID: uuid.New(),
		Guests: []domain.MeetingGuestIn{
			{GuestID: uuid.New(), InviterUserID: uuid.New(), Category: domain.CategoryFinExec},
		},
	})
	if consumer.HandleMeetingFinished(body) {
		t.Fatal("expected transient failure to re-queue the delivery")
	}
}

func TestHandleVisitLogged_CreatesTaskAndAcks(t *testing.T) {
	inviterID := uuid.New()
	repo := newFakeStore()
	repo.addAccount(inviterID, 0, 0)
	svc, _ := newTestService(repo)
	consumer := NewGuestEventConsumer(svc)

	body, _ := json.Marshal(domain.VisitLoggedEvent{
		VisitID:       uuid.New(),
		InviterUserID: inviterID,
		Name:          "Li Na",
		Organization:  "Finance Dept",
		Category:      domain.CategoryMinistryLeader,
	})
	if !consumer.HandleVisitLogged(body) {
		t.Fatal("expected delivery to be acknowledged")
	}

	tasks, err := repo.ListPendingGrantTasks(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected one pending task, got %d", len(tasks))
	}
	if tasks[0].DefaultAmount != 2000 {
		t.Fatalf("expected ministry-level default 2000, got %d", tasks[0].DefaultAmount)
	}
}
