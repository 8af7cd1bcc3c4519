package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lessonhub/lessonhub-server/internal/models"
)

// MemoryRepository is an in-memory Repository used by tests and local
// development. It upholds the same guarantees as the PostgreSQL
// implementation: the mutex serializes every check-then-write, so debits
// cannot overdraw and purchases cannot double-commit.
type MemoryRepository struct {
	mu              sync.Mutex
	accounts        map[string]models.Account // keyed by id
	accountsByEmail map[string]string
	balances        map[string]int64
	transactions    map[string][]models.WalletTransaction // newest last, keyed by account
	content         map[string]models.ContentItem
	contentByVideo  map[string]string
	grants          map[string]models.AccessGrant  // keyed by account|content
	purchases       map[string]models.PurchaseRecord
	progress        map[string]models.VideoProgress // keyed by account|video
	checkpoints     map[string][]models.VideoCheckpoint
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts:        map[string]models.Account{},
		accountsByEmail: map[string]string{},
		balances:        map[string]int64{},
		transactions:    map[string][]models.WalletTransaction{},
		content:         map[string]models.ContentItem{},
		contentByVideo:  map[string]string{},
		grants:          map[string]models.AccessGrant{},
		purchases:       map[string]models.PurchaseRecord{},
		progress:        map[string]models.VideoProgress{},
		checkpoints:     map[string][]models.VideoCheckpoint{},
	}
}

func pairKey(a, b string) string {
	return a + "|" + b
}

// Account operations
func (m *MemoryRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.Role == "" {
		account.Role = models.RoleRegular
	}
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	m.accounts[account.ID] = *account
	m.accountsByEmail[account.Email] = account.ID
	return nil
}

func (m *MemoryRepository) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.accountsByEmail[email]
	if !ok {
		return nil, nil
	}
	account := m.accounts[id]
	return &account, nil
}

func (m *MemoryRepository) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	return &account, nil
}

// Wallet operations
func (m *MemoryRepository) GetBalance(ctx context.Context, accountID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[accountID], nil
}

func (m *MemoryRepository) ApplyTransaction(ctx context.Context, txn *models.WalletTransaction) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyTransactionLocked(txn)
}

func (m *MemoryRepository) applyTransactionLocked(txn *models.WalletTransaction) (int64, error) {
	balance := m.balances[txn.AccountID]
	if balance+txn.Amount < 0 {
		return 0, &models.InsufficientFundsError{Required: -txn.Amount, Available: balance}
	}

	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	if txn.Status == "" {
		txn.Status = models.TransactionCompleted
	}

	balance += txn.Amount
	m.balances[txn.AccountID] = balance
	m.transactions[txn.AccountID] = append(m.transactions[txn.AccountID], *txn)
	return balance, nil
}

func (m *MemoryRepository) ListTransactions(ctx context.Context, accountID string, limit, offset int) ([]models.WalletTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.transactions[accountID]
	// Newest first
	out := []models.WalletTransaction{}
	for i := len(all) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// Content catalog operations
func (m *MemoryRepository) CreateContent(ctx context.Context, item *models.ContentItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	m.content[item.ID] = *item
	if item.VideoID != nil && *item.VideoID != "" {
		m.contentByVideo[*item.VideoID] = item.ID
	}
	return nil
}

func (m *MemoryRepository) GetContent(ctx context.Context, contentID string) (*models.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.content[contentID]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (m *MemoryRepository) GetContentByVideoID(ctx context.Context, videoID string) (*models.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.contentByVideo[videoID]
	if !ok {
		return nil, nil
	}
	item := m.content[id]
	return &item, nil
}

// Access grant operations
func (m *MemoryRepository) GetGrant(ctx context.Context, accountID, contentID string) (*models.AccessGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	grant, ok := m.grants[pairKey(accountID, contentID)]
	if !ok {
		return nil, nil
	}
	return &grant, nil
}

func (m *MemoryRepository) UpsertGrant(ctx context.Context, grant *models.AccessGrant) (*models.AccessGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertGrantLocked(grant), nil
}

func (m *MemoryRepository) upsertGrantLocked(grant *models.AccessGrant) *models.AccessGrant {
	key := pairKey(grant.AccountID, grant.ContentID)
	if existing, ok := m.grants[key]; ok {
		return &existing
	}
	if grant.GrantedAt.IsZero() {
		grant.GrantedAt = time.Now().UTC()
	}
	m.grants[key] = *grant
	return grant
}

// Purchase operations
func (m *MemoryRepository) ExecutePurchase(ctx context.Context, txn *models.WalletTransaction, record *models.PurchaseRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := pairKey(record.AccountID, record.ContentID)
	if _, ok := m.purchases[key]; ok {
		return 0, models.ErrAlreadyOwned
	}

	balance, err := m.applyTransactionLocked(txn)
	if err != nil {
		return 0, err
	}

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	record.Status = models.TransactionCompleted
	m.purchases[key] = *record

	m.upsertGrantLocked(&models.AccessGrant{
		AccountID: record.AccountID,
		ContentID: record.ContentID,
		Source:    models.GrantSourcePurchase,
	})

	return balance, nil
}

func (m *MemoryRepository) GetPurchaseRecord(ctx context.Context, accountID, contentID string) (*models.PurchaseRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.purchases[pairKey(accountID, contentID)]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

// Video progress operations
func (m *MemoryRepository) GetProgress(ctx context.Context, accountID, videoID string) (*models.VideoProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := pairKey(accountID, videoID)
	progress, ok := m.progress[key]
	if !ok {
		return nil, nil
	}
	progress.Checkpoints = append([]models.VideoCheckpoint{}, m.checkpoints[key]...)
	return &progress, nil
}

func (m *MemoryRepository) MergeProgress(ctx context.Context, accountID, videoID string, sample models.TelemetrySample, now time.Time) (*models.VideoProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := pairKey(accountID, videoID)
	progress, ok := m.progress[key]
	if !ok {
		progress = models.VideoProgress{AccountID: accountID, VideoID: videoID}
	}

	if sample.CurrentTime > progress.CurrentTime {
		progress.CurrentTime = sample.CurrentTime
	}
	if sample.Duration > progress.Duration {
		progress.Duration = sample.Duration
	}
	if sample.ProgressPercent > progress.ProgressPercent {
		progress.ProgressPercent = sample.ProgressPercent
	}
	if sample.WatchTimeDelta > 0 {
		progress.TotalWatchTime += sample.WatchTimeDelta
	}
	progress.LastWatchedAt = now

	m.progress[key] = progress
	return &progress, nil
}

func (m *MemoryRepository) MarkCompleted(ctx context.Context, accountID, videoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := pairKey(accountID, videoID)
	if progress, ok := m.progress[key]; ok {
		progress.IsCompleted = true
		m.progress[key] = progress
	}
	return nil
}

func (m *MemoryRepository) AddCheckpoint(ctx context.Context, checkpoint *models.VideoCheckpoint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := pairKey(checkpoint.AccountID, checkpoint.VideoID)
	for _, existing := range m.checkpoints[key] {
		if existing.Percentage == checkpoint.Percentage {
			return false, nil
		}
	}
	if checkpoint.ReachedAt.IsZero() {
		checkpoint.ReachedAt = time.Now().UTC()
	}
	m.checkpoints[key] = append(m.checkpoints[key], *checkpoint)
	return true, nil
}

func (m *MemoryRepository) ListCheckpoints(ctx context.Context, accountID, videoID string) ([]models.VideoCheckpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := pairKey(accountID, videoID)
	return append([]models.VideoCheckpoint{}, m.checkpoints[key]...), nil
}

func (m *MemoryRepository) ResetProgress(ctx context.Context, accountID, videoID string) (*models.VideoProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := pairKey(accountID, videoID)
	progress, ok := m.progress[key]
	if !ok {
		return nil, nil
	}

	progress.CurrentTime = 0
	progress.ProgressPercent = 0
	progress.IsCompleted = false
	progress.LastWatchedAt = time.Now().UTC()
	m.progress[key] = progress
	delete(m.checkpoints, key)

	result := progress
	result.Checkpoints = []models.VideoCheckpoint{}
	return &result, nil
}

func (m *MemoryRepository) ListProgressByVideo(ctx context.Context, videoID string) ([]models.VideoProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var records []models.VideoProgress
	for _, progress := range m.progress {
		if progress.VideoID == videoID {
			records = append(records, progress)
		}
	}
	return records, nil
}
