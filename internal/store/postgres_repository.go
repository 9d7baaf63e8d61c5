/**
 * @description
 * PostgreSQL implementation of the `Repository` interface. Reads run directly
 * on the pool; every mutation goes through a `ledgerTx` handle that exists
 * only inside a transaction opened by the TxExecutor. Balance guards are
 * expressed as conditional UPDATEs so the row constraint and the Go-level
 * sentinel error always agree.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver.
 * - github.com/jackc/pgx/v5/pgconn: Unique-violation detection.
 * - internal/domain: Domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/partnerhub/ledger-service/internal/domain"
)

// PostgresRepository is the concrete Repository over pgx.
type PostgresRepository struct {
	db       *pgxpool.Pool
	executor *TxExecutor
}

// NewPostgresRepository creates a repository with its own transactional
// executor.
func NewPostgresRepository(db *pgxpool.Pool, cfg ExecutorConfig) *PostgresRepository {
	return &PostgresRepository{db: db, executor: NewTxExecutor(db, cfg)}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// InLedgerTx runs fn at SERIALIZABLE isolation with conflict retries.
func (r *PostgresRepository) InLedgerTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error {
	return r.executor.RunLedger(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &ledgerTx{tx: tx})
	})
}

// InTx runs fn at READ COMMITTED isolation.
func (r *PostgresRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error {
	return r.executor.Run(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &ledgerTx{tx: tx})
	})
}

const accountColumns = `user_id, balance, frozen_amount, initial_amount, created_at, updated_at, archived_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		acct            domain.Account
		balance, frozen int64
		initial         int64
	)
	err := row.Scan(&acct.UserID, &balance, &frozen, &initial, &acct.CreatedAt, &acct.UpdatedAt, &acct.ArchivedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	acct.Balance = domain.Amount(balance)
	acct.FrozenAmount = domain.Amount(frozen)
	acct.InitialAmount = domain.Amount(initial)
	return &acct, nil
}

// GetAccount retrieves a partner's account by owner id.
func (r *PostgresRepository) GetAccount(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, userID))
}

const transactionColumns = `id, direction, status, from_user_id, to_user_id, amount,
       COALESCE(reason, '') AS reason, decision_comment, admin_user_id,
       related_project_id, related_meeting_id, related_guest_id,
       created_at, updated_at, completed_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		tx     domain.Transaction
		amount int64
	)
	err := row.Scan(
		&tx.ID, &tx.Direction, &tx.Status, &tx.FromUserID, &tx.ToUserID, &amount,
		&tx.Reason, &tx.DecisionComment, &tx.AdminUserID,
		&tx.RelatedProjectID, &tx.RelatedMeetingID, &tx.RelatedGuestID,
		&tx.CreatedAt, &tx.UpdatedAt, &tx.CompletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	tx.Amount = domain.Amount(amount)
	return &tx, nil
}

// GetTransaction retrieves one transaction by id.
func (r *PostgresRepository) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return scanTransaction(r.db.QueryRow(ctx, query, id))
}

// ListTransactions retrieves a user's transaction history (as either party),
// newest first, with optional direction and status filters.
func (r *PostgresRepository) ListTransactions(ctx context.Context, userID uuid.UUID, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE (from_user_id = $1 OR to_user_id = $1)
		  AND ($2 = '' OR direction = $2)
		  AND ($3 = '' OR status = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`
	rows, err := r.db.Query(ctx, query, userID, string(filter.Direction), string(filter.Status), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *tx)
	}
	return transactions, rows.Err()
}

const grantTaskColumns = `id, task_source, source_guest_id, inviter_user_id, status,
       COALESCE(guest_name, '') AS guest_name, COALESCE(guest_organization, '') AS guest_organization,
       COALESCE(guest_category, '') AS guest_category, related_meeting_id, visited_at,
       default_amount, final_amount, admin_user_id, admin_comment, decided_at,
       token_transaction_id, created_at, updated_at`

func scanGrantTask(row pgx.Row) (*domain.GrantTask, error) {
	var (
		task          domain.GrantTask
		source        string
		guestID       uuid.UUID
		name, org     string
		category      string
		meetingID     *uuid.UUID
		visitedAt     *time.Time
		defaultAmount int64
		finalAmount   *int64
	)
	err := row.Scan(
		&task.ID, &source, &guestID, &task.InviterUserID, &task.Status,
		&name, &org, &category, &meetingID, &visitedAt,
		&defaultAmount, &finalAmount, &task.AdminUserID, &task.AdminComment, &task.DecidedAt,
		&task.TokenTransactionID, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrGrantTaskNotFound
		}
		return nil, err
	}

	task.DefaultAmount = domain.Amount(defaultAmount)
	if finalAmount != nil {
		final := domain.Amount(*finalAmount)
		task.FinalAmount = &final
	}

	switch domain.TaskSource(source) {
	case domain.SourceMeetingGuest:
		var mid uuid.UUID
		if meetingID != nil {
			mid = *meetingID
		}
		task.Source = domain.FromMeetingGuest(domain.MeetingGuestSource{
			MeetingID:    mid,
			GuestID:      guestID,
			Name:         name,
			Organization: org,
			Category:     domain.GuestCategory(category),
		})
	case domain.SourceOnsiteVisit:
		var at time.Time
		if visitedAt != nil {
			at = *visitedAt
		}
		task.Source = domain.FromOnsiteVisit(domain.OnsiteVisitSource{
			VisitID:      guestID,
			Name:         name,
			Organization: org,
			Category:     domain.GuestCategory(category),
			VisitedAt:    at,
		})
	default:
		return nil, fmt.Errorf("unknown grant task source %q", source)
	}
	return &task, nil
}

// GetGrantTask retrieves one grant task by id.
func (r *PostgresRepository) GetGrantTask(ctx context.Context, id uuid.UUID) (*domain.GrantTask, error) {
	query := `SELECT ` + grantTaskColumns + ` FROM grant_tasks WHERE id = $1`
	return scanGrantTask(r.db.QueryRow(ctx, query, id))
}

// ListPendingGrantTasks retrieves pending tasks oldest-first for review.
func (r *PostgresRepository) ListPendingGrantTasks(ctx context.Context, limit, offset int) ([]domain.GrantTask, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT ` + grantTaskColumns + `
		FROM grant_tasks
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, domain.TaskPending, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.GrantTask
	for rows.Next() {
		task, err := scanGrantTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// CountPriorGuestMatches counts earlier tasks matching the same person
// (name and organization) and the same organization with a different name.
// Used for advisory duplicate warnings only. A blank organization never
// matches: two guests with no organization on record are not colleagues.
func (r *PostgresRepository) CountPriorGuestMatches(ctx context.Context, excludeTaskID uuid.UUID, name, organization string) (int, int, error) {
	if strings.TrimSpace(organization) == "" {
		return 0, 0, nil
	}
	query := `
		SELECT
			COUNT(*) FILTER (WHERE btrim($2) <> '' AND lower(btrim(guest_name)) = lower(btrim($2))),
			COUNT(*) FILTER (WHERE btrim($2) = '' OR lower(btrim(guest_name)) <> lower(btrim($2)))
		FROM grant_tasks
		WHERE id <> $1
		  AND lower(btrim(guest_organization)) = lower(btrim($3))
	`
	var person, organizationOnly int
	if err := r.db.QueryRow(ctx, query, excludeTaskID, name, organization).Scan(&person, &organizationOnly); err != nil {
		return 0, 0, err
	}
	return person, organizationOnly, nil
}

// ledgerTx implements LedgerTx over one pgx transaction.
type ledgerTx struct {
	tx pgx.Tx
}

// CreateAccount inserts the onboarding account row with the initial balance.
func (l *ledgerTx) CreateAccount(ctx context.Context, userID uuid.UUID, initialAmount domain.Amount) (*domain.Account, error) {
	query := `
		INSERT INTO accounts (user_id, balance, frozen_amount, initial_amount, created_at, updated_at)
		VALUES ($1, $2, 0, $2, NOW(), NOW())
		RETURNING ` + accountColumns
	acct, err := scanAccount(l.tx.QueryRow(ctx, query, userID, int64(initialAmount)))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAccountExists
		}
		return nil, err
	}
	return acct, nil
}

// Account reads an account inside the transaction.
func (l *ledgerTx) Account(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1`
	return scanAccount(l.tx.QueryRow(ctx, query, userID))
}

// Credit adds to the balance.
func (l *ledgerTx) Credit(ctx context.Context, userID uuid.UUID, amount domain.Amount) error {
	query := `UPDATE accounts SET balance = balance + $2, updated_at = NOW() WHERE user_id = $1`
	result, err := l.tx.Exec(ctx, query, userID, int64(amount))
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Debit subtracts from the balance; the condition keeps available coverage and
// the sentinel in agreement.
func (l *ledgerTx) Debit(ctx context.Context, userID uuid.UUID, amount domain.Amount) error {
	query := `
		UPDATE accounts
		SET balance = balance - $2, updated_at = NOW()
		WHERE user_id = $1 AND balance - frozen_amount >= $2
	`
	result, err := l.tx.Exec(ctx, query, userID, int64(amount))
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		if err := l.accountMissing(ctx, userID); err != nil {
			return err
		}
		return ErrInsufficientFunds
	}
	return nil
}

// Freeze reserves part of the balance for an in-flight outgoing transfer.
func (l *ledgerTx) Freeze(ctx context.Context, userID uuid.UUID, amount domain.Amount) error {
	query := `
		UPDATE accounts
		SET frozen_amount = frozen_amount + $2, updated_at = NOW()
		WHERE user_id = $1 AND balance - frozen_amount >= $2
	`
	result, err := l.tx.Exec(ctx, query, userID, int64(amount))
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		if err := l.accountMissing(ctx, userID); err != nil {
			return err
		}
		return ErrInsufficientFunds
	}
	return nil
}

// Unfreeze releases a reservation. The floor guard keeps frozen_amount from
// going negative if a release is ever replayed.
func (l *ledgerTx) Unfreeze(ctx context.Context, userID uuid.UUID, amount domain.Amount) error {
	query := `
		UPDATE accounts
		SET frozen_amount = frozen_amount - $2, updated_at = NOW()
		WHERE user_id = $1 AND frozen_amount >= $2
	`
	result, err := l.tx.Exec(ctx, query, userID, int64(amount))
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		if err := l.accountMissing(ctx, userID); err != nil {
			return err
		}
		return fmt.Errorf("release %d exceeds frozen amount for user %s", amount, userID)
	}
	return nil
}

func (l *ledgerTx) accountMissing(ctx context.Context, userID uuid.UUID) error {
	var exists bool
	if err := l.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE user_id = $1)`, userID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrAccountNotFound
	}
	return nil
}

// InsertTransaction persists a new transaction row.
func (l *ledgerTx) InsertTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, direction, status, from_user_id, to_user_id, amount, reason,
			decision_comment, admin_user_id, related_project_id, related_meeting_id,
			related_guest_id, created_at, updated_at, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW(), $13)
		RETURNING created_at, updated_at
	`
	return l.tx.QueryRow(ctx, query,
		tx.ID, tx.Direction, tx.Status, tx.FromUserID, tx.ToUserID, int64(tx.Amount), tx.Reason,
		tx.DecisionComment, tx.AdminUserID, tx.RelatedProjectID, tx.RelatedMeetingID,
		tx.RelatedGuestID, tx.CompletedAt,
	).Scan(&tx.CreatedAt, &tx.UpdatedAt)
}

// TransactionForUpdate loads a transaction row with a row lock.
func (l *ledgerTx) TransactionForUpdate(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`
	return scanTransaction(l.tx.QueryRow(ctx, query, id))
}

// UpdateTransactionStatus flips status only when the row is still in the
// expected state; zero rows affected means the transition is invalid.
func (l *ledgerTx) UpdateTransactionStatus(ctx context.Context, id uuid.UUID, from, to domain.TransactionStatus, update TransactionStatusUpdate) error {
	query := `
		UPDATE transactions
		SET status = $3,
		    admin_user_id = COALESCE($4, admin_user_id),
		    decision_comment = COALESCE($5, decision_comment),
		    completed_at = COALESCE($6, completed_at),
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
	`
	result, err := l.tx.Exec(ctx, query, id, from, to, update.AdminUserID, update.DecisionComment, update.CompletedAt)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		if err := l.transactionMissing(ctx, id); err != nil {
			return err
		}
		return domain.ErrInvalidStateTransition
	}
	return nil
}

func (l *ledgerTx) transactionMissing(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := l.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrTransactionNotFound
	}
	return nil
}

// InsertGrantTask persists a new pending grant task.
func (l *ledgerTx) InsertGrantTask(ctx context.Context, task *domain.GrantTask) error {
	var (
		meetingID *uuid.UUID
		visitedAt *time.Time
	)
	if task.Source.Kind == domain.SourceMeetingGuest {
		meetingID = &task.Source.Meeting.MeetingID
	}
	if task.Source.Kind == domain.SourceOnsiteVisit {
		visitedAt = &task.Source.Visit.VisitedAt
	}

	query := `
		INSERT INTO grant_tasks (
			id, task_source, source_guest_id, inviter_user_id, status,
			guest_name, guest_organization, guest_category, related_meeting_id,
			visited_at, default_amount, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	return l.tx.QueryRow(ctx, query,
		task.ID, task.Source.Kind, task.Source.GuestID(), task.InviterUserID, task.Status,
		task.Source.GuestName(), task.Source.Organization(), task.Source.Category(), meetingID,
		visitedAt, int64(task.DefaultAmount),
	).Scan(&task.CreatedAt, &task.UpdatedAt)
}

// GrantTaskForUpdate loads a grant task row with a row lock.
func (l *ledgerTx) GrantTaskForUpdate(ctx context.Context, id uuid.UUID) (*domain.GrantTask, error) {
	query := `SELECT ` + grantTaskColumns + ` FROM grant_tasks WHERE id = $1 FOR UPDATE`
	return scanGrantTask(l.tx.QueryRow(ctx, query, id))
}

// DecideGrantTask applies the one-shot admin decision; the status guard makes
// duplicate decisions fail rather than re-apply.
func (l *ledgerTx) DecideGrantTask(ctx context.Context, id uuid.UUID, decision GrantTaskDecision) error {
	var finalAmount *int64
	if decision.FinalAmount != nil {
		v := int64(*decision.FinalAmount)
		finalAmount = &v
	}

	query := `
		UPDATE grant_tasks
		SET status = $2,
		    final_amount = $3,
		    admin_user_id = $4,
		    admin_comment = $5,
		    decided_at = $6,
		    token_transaction_id = $7,
		    updated_at = NOW()
		WHERE id = $1 AND status = $8
	`
	result, err := l.tx.Exec(ctx, query, id, decision.Status, finalAmount,
		decision.AdminUserID, decision.AdminComment, decision.DecidedAt,
		decision.TokenTransactionID, domain.TaskPending)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		var exists bool
		if err := l.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM grant_tasks WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrGrantTaskNotFound
		}
		return domain.ErrInvalidStateTransition
	}
	return nil
}
