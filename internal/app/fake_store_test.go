package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/partnerhub/ledger-service/internal/domain"
	"github.com/partnerhub/ledger-service/internal/store"
)

// fakeStore is an in-memory store.Repository/store.LedgerTx used by the
// service tests. InLedgerTx and InTx snapshot the maps before running the unit
// of work and restore them when it fails, mirroring a database rollback.
type fakeStore struct {
	mu sync.Mutex

	accounts     map[uuid.UUID]*domain.Account
	transactions map[uuid.UUID]*domain.Transaction
	taskOrder    []uuid.UUID
	grantTasks   map[uuid.UUID]*domain.GrantTask
	txOrder      []uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:     make(map[uuid.UUID]*domain.Account),
		transactions: make(map[uuid.UUID]*domain.Transaction),
		grantTasks:   make(map[uuid.UUID]*domain.GrantTask),
	}
}

func (f *fakeStore) addAccount(userID uuid.UUID, balance, frozen domain.Amount) {
	now := time.Now().UTC()
	f.accounts[userID] = &domain.Account{
		UserID:       userID,
		Balance:      balance,
		FrozenAmount: frozen,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

type fakeSnapshot struct {
	accounts     map[uuid.UUID]*domain.Account
	transactions map[uuid.UUID]*domain.Transaction
	grantTasks   map[uuid.UUID]*domain.GrantTask
	txOrder      []uuid.UUID
	taskOrder    []uuid.UUID
}

func (f *fakeStore) snapshot() fakeSnapshot {
	snap := fakeSnapshot{
		accounts:     make(map[uuid.UUID]*domain.Account, len(f.accounts)),
		transactions: make(map[uuid.UUID]*domain.Transaction, len(f.transactions)),
		grantTasks:   make(map[uuid.UUID]*domain.GrantTask, len(f.grantTasks)),
		txOrder:      append([]uuid.UUID(nil), f.txOrder...),
		taskOrder:    append([]uuid.UUID(nil), f.taskOrder...),
	}
	for id, acct := range f.accounts {
		c := *acct
		snap.accounts[id] = &c
	}
	for id, tx := range f.transactions {
		c := *tx
		snap.transactions[id] = &c
	}
	for id, task := range f.grantTasks {
		c := *task
		snap.grantTasks[id] = &c
	}
	return snap
}

func (f *fakeStore) restore(snap fakeSnapshot) {
	f.accounts = snap.accounts
	f.transactions = snap.transactions
	f.grantTasks = snap.grantTasks
	f.txOrder = snap.txOrder
	f.taskOrder = snap.taskOrder
}

func (f *fakeStore) InLedgerTx(ctx context.Context, fn func(ctx context.Context, tx store.LedgerTx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.snapshot()
	if err := fn(ctx, f); err != nil {
		f.restore(snap)
		return err
	}
	return nil
}

func (f *fakeStore) InTx(ctx context.Context, fn func(ctx context.Context, tx store.LedgerTx) error) error {
	return f.InLedgerTx(ctx, fn)
}

func (f *fakeStore) GetAccount(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	return f.Account(ctx, userID)
}

func (f *fakeStore) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	tx, ok := f.transactions[id]
	if !ok {
		return nil, store.ErrTransactionNotFound
	}
	c := *tx
	return &c, nil
}

func (f *fakeStore) ListTransactions(ctx context.Context, userID uuid.UUID, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for i := len(f.txOrder) - 1; i >= 0; i-- {
		tx := f.transactions[f.txOrder[i]]
		party := (tx.FromUserID != nil && *tx.FromUserID == userID) || (tx.ToUserID != nil && *tx.ToUserID == userID)
		if !party {
			continue
		}
		if filter.Direction != "" && tx.Direction != filter.Direction {
			continue
		}
		if filter.Status != "" && tx.Status != filter.Status {
			continue
		}
		out = append(out, *tx)
	}
	return out, nil
}

func (f *fakeStore) GetGrantTask(ctx context.Context, id uuid.UUID) (*domain.GrantTask, error) {
	task, ok := f.grantTasks[id]
	if !ok {
		return nil, store.ErrGrantTaskNotFound
	}
	c := *task
	return &c, nil
}

func (f *fakeStore) ListPendingGrantTasks(ctx context.Context, limit, offset int) ([]domain.GrantTask, error) {
	var out []domain.GrantTask
	for _, id := range f.taskOrder {
		task := f.grantTasks[id]
		if task.Status != domain.TaskPending {
			continue
		}
		out = append(out, *task)
	}
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) CountPriorGuestMatches(ctx context.Context, excludeTaskID uuid.UUID, name, organization string) (int, int, error) {
	norm := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	var person, orgOnly int
	for _, task := range f.grantTasks {
		if task.ID == excludeTaskID {
			continue
		}
		sameOrg := norm(task.Source.Organization()) == norm(organization) && norm(organization) != ""
		sameName := norm(task.Source.GuestName()) == norm(name) && norm(name) != ""
		if sameName && sameOrg {
			person++
		} else if sameOrg {
			orgOnly++
		}
	}
	return person, orgOnly, nil
}

func (f *fakeStore) CreateAccount(ctx context.Context, userID uuid.UUID, initialAmount domain.Amount) (*domain.Account, error) {
	if _, ok := f.accounts[userID]; ok {
		return nil, store.ErrAccountExists
	}
	now := time.Now().UTC()
	acct := &domain.Account{
		UserID:        userID,
		Balance:       initialAmount,
		InitialAmount: initialAmount,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	f.accounts[userID] = acct
	c := *acct
	return &c, nil
}

func (f *fakeStore) Account(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	acct, ok := f.accounts[userID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	c := *acct
	return &c, nil
}

func (f *fakeStore) Credit(ctx context.Context, userID uuid.UUID, amount domain.Amount) error {
	acct, ok := f.accounts[userID]
	if !ok {
		return store.ErrAccountNotFound
	}
	acct.Balance += amount
	return nil
}

func (f *fakeStore) Debit(ctx context.Context, userID uuid.UUID, amount domain.Amount) error {
	acct, ok := f.accounts[userID]
	if !ok {
		return store.ErrAccountNotFound
	}
	if acct.Available() < amount {
		return store.ErrInsufficientFunds
	}
	acct.Balance -= amount
	return nil
}

func (f *fakeStore) Freeze(ctx context.Context, userID uuid.UUID, amount domain.Amount) error {
	acct, ok := f.accounts[userID]
	if !ok {
		return store.ErrAccountNotFound
	}
	if acct.Available() < amount {
		return store.ErrInsufficientFunds
	}
	acct.FrozenAmount += amount
	return nil
}

func (f *fakeStore) Unfreeze(ctx context.Context, userID uuid.UUID, amount domain.Amount) error {
	acct, ok := f.accounts[userID]
	if !ok {
		return store.ErrAccountNotFound
	}
	if acct.FrozenAmount < amount {
		return store.ErrInsufficientFunds
	}
	acct.FrozenAmount -= amount
	return nil
}

func (f *fakeStore) InsertTransaction(ctx context.Context, tx *domain.Transaction) error {
	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now
	c := *tx
	f.transactions[tx.ID] = &c
	f.txOrder = append(f.txOrder, tx.ID)
	return nil
}

func (f *fakeStore) TransactionForUpdate(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return f.GetTransaction(ctx, id)
}

func (f *fakeStore) UpdateTransactionStatus(ctx context.Context, id uuid.UUID, from, to domain.TransactionStatus, update store.TransactionStatusUpdate) error {
	tx, ok := f.transactions[id]
	if !ok {
		return store.ErrTransactionNotFound
	}
	if tx.Status != from {
		return domain.ErrInvalidStateTransition
	}
	tx.Status = to
	tx.UpdatedAt = time.Now().UTC()
	if update.AdminUserID != nil {
		tx.AdminUserID = update.AdminUserID
	}
	if update.DecisionComment != nil {
		tx.DecisionComment = update.DecisionComment
	}
	if update.CompletedAt != nil {
		tx.CompletedAt = update.CompletedAt
	}
	return nil
}

func (f *fakeStore) InsertGrantTask(ctx context.Context, task *domain.GrantTask) error {
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now
	c := *task
	f.grantTasks[task.ID] = &c
	f.taskOrder = append(f.taskOrder, task.ID)
	return nil
}

func (f *fakeStore) GrantTaskForUpdate(ctx context.Context, id uuid.UUID) (*domain.GrantTask, error) {
	return f.GetGrantTask(ctx, id)
}

func (f *fakeStore) DecideGrantTask(ctx context.Context, id uuid.UUID, decision store.GrantTaskDecision) error {
	task, ok := f.grantTasks[id]
	if !ok {
		return store.ErrGrantTaskNotFound
	}
	if task.Status != domain.TaskPending {
		return domain.ErrInvalidStateTransition
	}
	adminID := decision.AdminUserID
	decidedAt := decision.DecidedAt
	task.Status = decision.Status
	task.FinalAmount = decision.FinalAmount
	task.AdminUserID = &adminID
	task.AdminComment = decision.AdminComment
	task.DecidedAt = &decidedAt
	task.TokenTransactionID = decision.TokenTransactionID
	task.UpdatedAt = time.Now().UTC()
	return nil
}

// fakePublisher records published events for assertions.
type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	exchange   string
	routingKey string
	body       interface{}
}

func (p *fakePublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{exchange: exchange, routingKey: routingKey, body: body})
	return nil
}

func (p *fakePublisher) Close() {}

func (p *fakePublisher) routingKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.events))
	for _, e := range p.events {
		keys = append(keys, e.routingKey)
	}
	return keys
}

func newTestService(repo *fakeStore) (*Service, *fakePublisher) {
	pub := &fakePublisher{}
	return NewService(repo, pub, "ledger_events"), pub
}
