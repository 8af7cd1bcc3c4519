package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/lessonhub/lessonhub-server/internal/models"
)

// Repository interface defines the methods that any repository implementation must satisfy
type Repository interface {
	// Account operations
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)

	// Wallet operations. Transactions are appended, never updated; the
	// balance row is adjusted in the same storage transaction.
	GetBalance(ctx context.Context, accountID string) (int64, error)
	ApplyTransaction(ctx context.Context, txn *models.WalletTransaction) (int64, error)
	ListTransactions(ctx context.Context, accountID string, limit, offset int) ([]models.WalletTransaction, error)

	// Content catalog operations
	CreateContent(ctx context.Context, item *models.ContentItem) error
	GetContent(ctx context.Context, contentID string) (*models.ContentItem, error)
	GetContentByVideoID(ctx context.Context, videoID string) (*models.ContentItem, error)

	// Access grant operations
	GetGrant(ctx context.Context, accountID, contentID string) (*models.AccessGrant, error)
	UpsertGrant(ctx context.Context, grant *models.AccessGrant) (*models.AccessGrant, error)

	// Purchase operations
	ExecutePurchase(ctx context.Context, txn *models.WalletTransaction, record *models.PurchaseRecord) (int64, error)
	GetPurchaseRecord(ctx context.Context, accountID, contentID string) (*models.PurchaseRecord, error)

	// Video progress operations
	GetProgress(ctx context.Context, accountID, videoID string) (*models.VideoProgress, error)
	MergeProgress(ctx context.Context, accountID, videoID string, sample models.TelemetrySample, now time.Time) (*models.VideoProgress, error)
	MarkCompleted(ctx context.Context, accountID, videoID string) error
	AddCheckpoint(ctx context.Context, checkpoint *models.VideoCheckpoint) (bool, error)
	ListCheckpoints(ctx context.Context, accountID, videoID string) ([]models.VideoCheckpoint, error)
	ResetProgress(ctx context.Context, accountID, videoID string) (*models.VideoProgress, error)
	ListProgressByVideo(ctx context.Context, videoID string) ([]models.VideoProgress, error)
}

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// GetDB returns the underlying database connection
func (r *PostgresRepository) GetDB() *sqlx.DB {
	return r.db
}

// Account repository methods
func (r *PostgresRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (id, email, name, password, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	// Generate a new UUID if not provided
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.Role == "" {
		account.Role = models.RoleRegular
	}

	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		account.ID, account.Email, account.Name, account.Password, account.Role,
		account.CreatedAt, account.UpdatedAt)

	return err
}

func (r *PostgresRepository) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT * FROM accounts WHERE email = $1`

	var account models.Account
	err := r.db.GetContext(ctx, &account, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Account not found
		}
		return nil, err
	}

	return &account, nil
}

func (r *PostgresRepository) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT * FROM accounts WHERE id = $1`

	var account models.Account
	err := r.db.GetContext(ctx, &account, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Account not found
		}
		return nil, err
	}

	return &account, nil
}

// Wallet repository methods
func (r *PostgresRepository) GetBalance(ctx context.Context, accountID string) (int64, error) {
	query := `SELECT balance FROM wallet_accounts WHERE account_id = $1`

	var balance int64
	err := r.db.GetContext(ctx, &balance, query, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil // Wallet rows materialize on first transaction
		}
		return 0, err
	}

	return balance, nil
}

// ApplyTransaction appends one ledger entry and adjusts the balance in a
// single storage transaction. The conditional UPDATE serializes the
// check-then-decrement per account: a debit that would overdraw matches no
// row and fails with InsufficientFundsError without touching the ledger.
func (r *PostgresRepository) ApplyTransaction(ctx context.Context, txn *models.WalletTransaction) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	var balance int64
	balance, err = applyTransactionTx(ctx, tx, txn)
	if err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}

	return balance, nil
}

// applyTransactionTx performs the balance adjustment and ledger append
// within an existing transaction.
func applyTransactionTx(ctx context.Context, tx *sql.Tx, txn *models.WalletTransaction) (int64, error) {
	now := time.Now().UTC()

	// Materialize the wallet row lazily
	_, err := tx.ExecContext(ctx,
		`INSERT INTO wallet_accounts (account_id, balance, created_at, updated_at)
		VALUES ($1, 0, $2, $2)
		ON CONFLICT (account_id) DO NOTHING`,
		txn.AccountID, now)
	if err != nil {
		return 0, err
	}

	var balance int64
	err = tx.QueryRowContext(ctx,
		`UPDATE wallet_accounts
		SET balance = balance + $1, updated_at = $2
		WHERE account_id = $3 AND balance + $1 >= 0
		RETURNING balance`,
		txn.Amount, now, txn.AccountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			var available int64
			if selErr := tx.QueryRowContext(ctx,
				`SELECT balance FROM wallet_accounts WHERE account_id = $1`,
				txn.AccountID).Scan(&available); selErr != nil {
				return 0, selErr
			}
			return 0, &models.InsufficientFundsError{Required: -txn.Amount, Available: available}
		}
		return 0, err
	}

	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = now
	}
	if txn.Status == "" {
		txn.Status = models.TransactionCompleted
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO wallet_transactions (id, account_id, kind, amount, related_content_id, description, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		txn.ID, txn.AccountID, txn.Kind, txn.Amount, txn.RelatedContentID,
		txn.Description, txn.Status, txn.CreatedAt)
	if err != nil {
		return 0, err
	}

	return balance, nil
}

func (r *PostgresRepository) ListTransactions(ctx context.Context, accountID string, limit, offset int) ([]models.WalletTransaction, error) {
	query := `
		SELECT * FROM wallet_transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`

	var transactions []models.WalletTransaction
	err := r.db.SelectContext(ctx, &transactions, query, accountID, limit, offset)
	if err != nil {
		return nil, err
	}

	return transactions, nil
}

// Content catalog repository methods
func (r *PostgresRepository) CreateContent(ctx context.Context, item *models.ContentItem) error {
	query := `
		INSERT INTO content_items (id, kind, title, price, video_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, query,
		item.ID, item.Kind, item.Title, item.Price, item.VideoID, item.CreatedAt)

	return err
}

func (r *PostgresRepository) GetContent(ctx context.Context, contentID string) (*models.ContentItem, error) {
	query := `SELECT * FROM content_items WHERE id = $1`

	var item models.ContentItem
	err := r.db.GetContext(ctx, &item, query, contentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Content not found
		}
		return nil, err
	}

	return &item, nil
}

func (r *PostgresRepository) GetContentByVideoID(ctx context.Context, videoID string) (*models.ContentItem, error) {
	query := `SELECT * FROM content_items WHERE video_id = $1`

	var item models.ContentItem
	err := r.db.GetContext(ctx, &item, query, videoID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &item, nil
}

// Access grant repository methods
func (r *PostgresRepository) GetGrant(ctx context.Context, accountID, contentID string) (*models.AccessGrant, error) {
	query := `SELECT * FROM access_grants WHERE account_id = $1 AND content_id = $2`

	var grant models.AccessGrant
	err := r.db.GetContext(ctx, &grant, query, accountID, contentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No grant
		}
		return nil, err
	}

	return &grant, nil
}

// UpsertGrant is idempotent: a second grant for the same pair returns the
// existing row instead of erroring or duplicating.
func (r *PostgresRepository) UpsertGrant(ctx context.Context, grant *models.AccessGrant) (*models.AccessGrant, error) {
	if grant.GrantedAt.IsZero() {
		grant.GrantedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO access_grants (account_id, content_id, source, granted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, content_id) DO NOTHING`,
		grant.AccountID, grant.ContentID, grant.Source, grant.GrantedAt)
	if err != nil {
		return nil, err
	}

	return r.GetGrant(ctx, grant.AccountID, grant.ContentID)
}

// ExecutePurchase runs the debit, grant and purchase record as one storage
// transaction, so a failure at any step rolls back the whole unit and never
// leaves a debited balance with no corresponding grant. A unique violation
// on purchase_records means a concurrent purchase already committed; the
// caller maps that to the idempotent already-owned outcome.
func (r *PostgresRepository) ExecutePurchase(ctx context.Context, txn *models.WalletTransaction, record *models.PurchaseRecord) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	// Reserve the (account, content) pair first so a losing racer fails
	// before the debit rather than after it.
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.Status = models.TransactionCompleted

	_, err = tx.ExecContext(ctx,
		`INSERT INTO purchase_records (id, transaction_id, account_id, content_id, price, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.ID, record.TransactionID, record.AccountID, record.ContentID,
		record.Price, record.Status, record.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			err = models.ErrAlreadyOwned
		}
		return 0, err
	}

	var balance int64
	balance, err = applyTransactionTx(ctx, tx, txn)
	if err != nil {
		return 0, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO access_grants (account_id, content_id, source, granted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, content_id) DO NOTHING`,
		record.AccountID, record.ContentID, models.GrantSourcePurchase, now)
	if err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}

	return balance, nil
}

func (r *PostgresRepository) GetPurchaseRecord(ctx context.Context, accountID, contentID string) (*models.PurchaseRecord, error) {
	query := `SELECT * FROM purchase_records WHERE account_id = $1 AND content_id = $2`

	var record models.PurchaseRecord
	err := r.db.GetContext(ctx, &record, query, accountID, contentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &record, nil
}

// Video progress repository methods
func (r *PostgresRepository) GetProgress(ctx context.Context, accountID, videoID string) (*models.VideoProgress, error) {
	query := `SELECT * FROM video_progress WHERE account_id = $1 AND video_id = $2`

	var progress models.VideoProgress
	err := r.db.GetContext(ctx, &progress, query, accountID, videoID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No record yet
		}
		return nil, err
	}

	checkpoints, err := r.ListCheckpoints(ctx, accountID, videoID)
	if err != nil {
		return nil, err
	}
	progress.Checkpoints = checkpoints

	return &progress, nil
}

// MergeProgress applies one telemetry sample as a single upsert. GREATEST
// makes every field forward-only and the watch-time addition is never
// negative, so concurrent samples commute: any arrival order converges to
// the same row without a lock.
func (r *PostgresRepository) MergeProgress(ctx context.Context, accountID, videoID string, sample models.TelemetrySample, now time.Time) (*models.VideoProgress, error) {
	query := `
		INSERT INTO video_progress
			(account_id, video_id, current_time_seconds, duration_seconds, progress_percent, total_watch_seconds, is_completed, last_watched_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
		ON CONFLICT (account_id, video_id) DO UPDATE SET
			current_time_seconds = GREATEST(video_progress.current_time_seconds, EXCLUDED.current_time_seconds),
			duration_seconds = GREATEST(video_progress.duration_seconds, EXCLUDED.duration_seconds),
			progress_percent = GREATEST(video_progress.progress_percent, EXCLUDED.progress_percent),
			total_watch_seconds = video_progress.total_watch_seconds + $6,
			last_watched_at = $7
		RETURNING account_id, video_id, current_time_seconds, duration_seconds, progress_percent, total_watch_seconds, is_completed, last_watched_at
	`

	var progress models.VideoProgress
	err := r.db.GetContext(ctx, &progress, query,
		accountID, videoID, sample.CurrentTime, sample.Duration,
		sample.ProgressPercent, sample.WatchTimeDelta, now)
	if err != nil {
		return nil, err
	}

	return &progress, nil
}

// MarkCompleted latches the completion flag. It is never un-set by
// subsequent telemetry.
func (r *PostgresRepository) MarkCompleted(ctx context.Context, accountID, videoID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE video_progress SET is_completed = TRUE WHERE account_id = $1 AND video_id = $2`,
		accountID, videoID)
	return err
}

// AddCheckpoint records a milestone once per (account, video, percentage).
// Returns false when the checkpoint was already recorded.
func (r *PostgresRepository) AddCheckpoint(ctx context.Context, checkpoint *models.VideoCheckpoint) (bool, error) {
	if checkpoint.ReachedAt.IsZero() {
		checkpoint.ReachedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO video_checkpoints (account_id, video_id, percentage, video_time_seconds, reached_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_id, video_id, percentage) DO NOTHING`,
		checkpoint.AccountID, checkpoint.VideoID, checkpoint.Percentage,
		checkpoint.VideoTime, checkpoint.ReachedAt)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

func (r *PostgresRepository) ListCheckpoints(ctx context.Context, accountID, videoID string) ([]models.VideoCheckpoint, error) {
	query := `
		SELECT * FROM video_checkpoints
		WHERE account_id = $1 AND video_id = $2
		ORDER BY percentage ASC
	`

	var checkpoints []models.VideoCheckpoint
	err := r.db.SelectContext(ctx, &checkpoints, query, accountID, videoID)
	if err != nil {
		return nil, err
	}

	return checkpoints, nil
}

// ResetProgress zeroes the playback fields and drops the reached
// checkpoints. The accumulated watch time is a lifetime counter and is
// preserved.
func (r *PostgresRepository) ResetProgress(ctx context.Context, accountID, videoID string) (*models.VideoProgress, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE video_progress
		SET current_time_seconds = 0, progress_percent = 0, is_completed = FALSE, last_watched_at = $1
		WHERE account_id = $2 AND video_id = $3`,
		now, accountID, videoID)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM video_checkpoints WHERE account_id = $1 AND video_id = $2`,
		accountID, videoID)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	return r.GetProgress(ctx, accountID, videoID)
}

func (r *PostgresRepository) ListProgressByVideo(ctx context.Context, videoID string) ([]models.VideoProgress, error) {
	query := `
		SELECT * FROM video_progress
		WHERE video_id = $1
		ORDER BY last_watched_at DESC
	`

	var records []models.VideoProgress
	err := r.db.SelectContext(ctx, &records, query, videoID)
	if err != nil {
		return nil, err
	}

	return records, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
