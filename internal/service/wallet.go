package service

import (
	"context"
	"fmt"

	"github.com/lessonhub/lessonhub-server/internal/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Recharge credits the account's wallet and appends a recharge entry to the
// ledger.
func (s *DefaultService) Recharge(ctx context.Context, accountID string, req models.RechargeRequest) (*models.TransactionResponse, error) {
	if req.Amount <= 0 {
		return nil, models.ErrInvalidAmount
	}

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Recharged %d points", req.Amount)
	}

	txn := &models.WalletTransaction{
		AccountID:   accountID,
		Kind:        models.TransactionRecharge,
		Amount:      req.Amount,
		Description: description,
	}

	balance, err := s.repo.ApplyTransaction(ctx, txn)
	if err != nil {
		return nil, fmt.Errorf("error applying recharge: %w", err)
	}

	s.log.Infow("wallet recharged", "accountId", accountID, "amount", req.Amount, "balance", balance)

	return &models.TransactionResponse{
		Status:      "success",
		Balance:     balance,
		Transaction: *txn,
	}, nil
}

// Debit withdraws amount points from the wallet, appending a purchase entry
// with a negative amount. Fails with InsufficientFundsError when the balance
// does not cover the amount.
func (s *DefaultService) Debit(ctx context.Context, accountID string, amount int64, relatedContentID *string, description string) (*models.WalletTransaction, int64, error) {
	if amount <= 0 {
		return nil, 0, models.ErrInvalidAmount
	}

	txn := &models.WalletTransaction{
		AccountID:        accountID,
		Kind:             models.TransactionPurchase,
		Amount:           -amount,
		RelatedContentID: relatedContentID,
		Description:      description,
	}

	balance, err := s.repo.ApplyTransaction(ctx, txn)
	if err != nil {
		return nil, 0, err
	}

	return txn, balance, nil
}

// Balance returns the current wallet balance, zero for accounts that have
// no wallet row yet.
func (s *DefaultService) Balance(ctx context.Context, accountID string) (*models.BalanceResponse, error) {
	balance, err := s.repo.GetBalance(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("error getting balance: %w", err)
	}

	return &models.BalanceResponse{
		Status:    "success",
		AccountID: accountID,
		Balance:   balance,
	}, nil
}

// History returns the account's transactions newest-first, paginated.
func (s *DefaultService) History(ctx context.Context, accountID string, page, pageSize int) (*models.HistoryResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	transactions, err := s.repo.ListTransactions(ctx, accountID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("error listing transactions: %w", err)
	}

	if transactions == nil {
		transactions = []models.WalletTransaction{}
	}

	return &models.HistoryResponse{
		Status:       "success",
		AccountID:    accountID,
		Page:         page,
		PageSize:     pageSize,
		Transactions: transactions,
	}, nil
}
