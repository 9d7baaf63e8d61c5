package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/partnerhub/ledger-service/internal/domain"
	"github.com/partnerhub/ledger-service/internal/store"
)

func TestAdminGrant_CreditsAndRecords(t *testing.T) {
	adminID := uuid.New()
	partnerID := uuid.New()
	repo := newFakeStore()
	repo.addAccount(partnerID, 100, 0)
	svc, pub := newTestService(repo)

	tx, err := svc.AdminGrant(context.Background(), adminID, partnerID, 500, "annual contribution award")
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if tx.Status != domain.StatusCompleted || tx.Direction != domain.DirectionAdminGrant {
		t.Fatalf("expected completed admin_grant, got %s %s", tx.Status, tx.Direction)
	}
	if tx.CompletedAt == nil {
		t.Fatal("expected completed_at stamped at settlement")
	}

	partner, _ := repo.GetAccount(context.Background(), partnerID)
	if partner.Balance != 600 {
		t.Fatalf("expected balance 600, got %d", partner.Balance)
	}
	keys := pub.routingKeys()
	if len(keys) != 1 || keys[0] != domain.EventLedgerGranted {
		t.Fatalf("expected ledger.granted event, got %v", keys)
	}
}

func TestAdminGrant_RejectsNonPositiveAmount(t *testing.T) {
	repo := newFakeStore()
	svc, _ := newTestService(repo)
	if _, err := svc.AdminGrant(context.Background(), uuid.New(), uuid.New(), 0, "x"); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAdminDeduct_RespectsFrozenFunds(t *testing.T) {
	adminID := uuid.New()
	partnerID := uuid.New()
	repo := newFakeStore()
	// Balance 1000 with 800 reserved by an in-flight transfer: only 200 is
	// deductible.
	repo.addAccount(partnerID, 1000, 800)
	svc, _ := newTestService(repo)

	_, err := svc.AdminDeduct(context.Background(), adminID, partnerID, 300, "correction")
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	partner, _ := repo.GetAccount(context.Background(), partnerID)
	if partner.Balance != 1000 {
		t.Fatalf("expected balance untouched after failed deduct, got %d", partner.Balance)
	}

	tx, err := svc.AdminDeduct(context.Background(), adminID, partnerID, 200, "correction")
	if err != nil {
		t.Fatalf("deduct within available: %v", err)
	}
	if tx.Direction != domain.DirectionAdminDeduct {
		t.Fatalf("expected admin_deduct, got %s", tx.Direction)
	}
	partner, _ = repo.GetAccount(context.Background(), partnerID)
	if partner.Balance != 800 || partner.FrozenAmount != 800 {
		t.Fatalf("expected 800/800 after deduct, got %d/%d", partner.Balance, partner.FrozenAmount)
	}
}

func TestDistributeDividend_CreditsEveryRecipient(t *testing.T) {
	adminID := uuid.New()
	projectID := uuid.New()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	repo := newFakeStore()
	repo.addAccount(a, 0, 0)
	repo.addAccount(b, 100, 0)
	repo.addAccount(c, 0, 0)
	svc, pub := newTestService(repo)

	records, err := svc.DistributeDividend(context.Background(), adminID, projectID, []domain.DividendEntry{
		{UserID: a, Amount: 300},
		{UserID: b, Amount: 200, Note: "lead partner"},
		{UserID: c, Amount: 500},
	}, "project alpha dividend")
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(records))
	}
	for _, record := range records {
		if record.Direction != domain.DirectionDividend || record.Status != domain.StatusCompleted {
			t.Fatalf("expected completed dividend rows, got %s %s", record.Direction, record.Status)
		}
		if record.RelatedProjectID == nil || *record.RelatedProjectID != projectID {
			t.Fatal("expected every row linked to the project")
		}
	}

	accA, _ := repo.GetAccount(context.Background(), a)
	accB, _ := repo.GetAccount(context.Background(), b)
	accC, _ := repo.GetAccount(context.Background(), c)
	if accA.Balance != 300 || accB.Balance != 300 || accC.Balance != 500 {
		t.Fatalf("unexpected balances after dividend: %d %d %d", accA.Balance, accB.Balance, accC.Balance)
	}

	keys := pub.routingKeys()
	if len(keys) != 1 || keys[0] != domain.EventDividendDistributed {
		t.Fatalf("expected one dividend.distributed event, got %v", keys)
	}
}

func TestDistributeDividend_AllOrNothing(t *testing.T) {
	adminID := uuid.New()
	projectID := uuid.New()
	a, b := uuid.New(), uuid.New()
	repo := newFakeStore()
	repo.addAccount(a, 0, 0)
	// b has no account: the second credit fails after a's succeeded.
	svc, pub := newTestService(repo)

	_, err := svc.DistributeDividend(context.Background(), adminID, projectID, []domain.DividendEntry{
		{UserID: a, Amount: 300},
		{UserID: b, Amount: 200},
	}, "project beta dividend")
	if !errors.Is(err, store.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}

	accA, _ := repo.GetAccount(context.Background(), a)
	if accA.Balance != 0 {
		t.Fatalf("expected first recipient rolled back to 0, got %d", accA.Balance)
	}
	history, _ := repo.ListTransactions(context.Background(), a, domain.TransactionFilter{})
	if len(history) != 0 {
		t.Fatalf("expected no dividend rows to survive the rollback, got %d", len(history))
	}
	if len(pub.routingKeys()) != 0 {
		t.Fatalf("expected no event for a failed batch, got %v", pub.routingKeys())
	}
}

func TestDistributeDividend_RejectsInvalidBatch(t *testing.T) {
	repo := newFakeStore()
	svc, _ := newTestService(repo)
	adminID := uuid.New()

	if _, err := svc.DistributeDividend(context.Background(), adminID, uuid.Nil, []domain.DividendEntry{{UserID: uuid.New(), Amount: 1}}, "r"); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for nil project, got %v", err)
	}
	if _, err := svc.DistributeDividend(context.Background(), adminID, uuid.New(), nil, "r"); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for empty batch, got %v", err)
	}
	if _, err := svc.DistributeDividend(context.Background(), adminID, uuid.New(), []domain.DividendEntry{{UserID: uuid.New(), Amount: 0}}, "r"); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for zero line amount, got %v", err)
	}
}

func TestOpenAccount_RejectsDuplicate(t *testing.T) {
	repo := newFakeStore()
	svc, _ := newTestService(repo)
	userID := uuid.New()

	account, err := svc.OpenAccount(context.Background(), userID, 250)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if account.Balance != 250 || account.InitialAmount != 250 {
		t.Fatalf("expected seeded balance 250, got %d/%d", account.Balance, account.InitialAmount)
	}

	if _, err := svc.OpenAccount(context.Background(), userID, 0); !errors.Is(err, store.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
}
