package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lessonhub/lessonhub-server/internal/models"
)

// CreateContent adds a lesson or unit to the content catalog. The kind is a
// tagged variant fixed at creation; nothing downstream re-derives it.
func (s *DefaultService) CreateContent(ctx context.Context, req models.CreateContentRequest) (*models.ContentItem, error) {
	item := &models.ContentItem{
		Kind:  req.Kind,
		Title: req.Title,
		Price: req.Price,
	}
	if req.VideoID != "" {
		item.VideoID = &req.VideoID
	}

	if err := s.repo.CreateContent(ctx, item); err != nil {
		return nil, fmt.Errorf("error creating content item: %w", err)
	}

	return item, nil
}

// HasAccess reports whether the account may access the content item:
// privileged accounts always may, free items are implicitly accessible, and
// otherwise a grant must exist.
func (s *DefaultService) HasAccess(ctx context.Context, account *models.Account, contentID string) (bool, error) {
	if account.IsPrivileged() {
		return true, nil
	}

	item, err := s.repo.GetContent(ctx, contentID)
	if err != nil {
		return false, fmt.Errorf("error getting content item: %w", err)
	}
	if item == nil {
		return false, models.ErrContentNotFound
	}
	if item.Price == 0 {
		return true, nil
	}

	grant, err := s.repo.GetGrant(ctx, account.ID, contentID)
	if err != nil {
		return false, fmt.Errorf("error getting access grant: %w", err)
	}

	return grant != nil, nil
}

// AdminGrant creates an access grant outside the purchase path. Idempotent:
// granting an already-granted pair returns the existing grant.
func (s *DefaultService) AdminGrant(ctx context.Context, req models.AdminGrantRequest) (*models.AccessGrant, error) {
	item, err := s.repo.GetContent(ctx, req.ContentID)
	if err != nil {
		return nil, fmt.Errorf("error getting content item: %w", err)
	}
	if item == nil {
		return nil, models.ErrContentNotFound
	}

	grant, err := s.repo.UpsertGrant(ctx, &models.AccessGrant{
		AccountID: req.AccountID,
		ContentID: req.ContentID,
		Source:    models.GrantSourceAdmin,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating access grant: %w", err)
	}

	return grant, nil
}

// Purchase debits the account's wallet for the content price and grants
// access, all-or-nothing. Re-purchasing an owned item is an idempotent
// success: the caller gets a receipt for the existing grant and no second
// charge happens. Privileged accounts are already entitled and the wallet
// is never touched.
func (s *DefaultService) Purchase(ctx context.Context, account *models.Account, contentID string) (*models.PurchaseReceipt, error) {
	item, err := s.repo.GetContent(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("error getting content item: %w", err)
	}
	if item == nil {
		return nil, models.ErrContentNotFound
	}

	if account.IsPrivileged() {
		return &models.PurchaseReceipt{
			Status:          "success",
			ContentID:       item.ID,
			Title:           item.Title,
			AlreadyEntitled: true,
			Description:     "Privileged accounts have access to all content",
		}, nil
	}

	grant, err := s.repo.GetGrant(ctx, account.ID, contentID)
	if err != nil {
		return nil, fmt.Errorf("error getting access grant: %w", err)
	}
	if grant != nil {
		return s.ownedReceipt(ctx, account.ID, item)
	}

	// Free items are granted, not bought.
	if item.Price == 0 {
		return nil, models.ErrNotPurchasable
	}

	transactionID := uuid.New().String()
	description := fmt.Sprintf("Purchased %s %q for %d points", item.Kind, item.Title, item.Price)

	txn := &models.WalletTransaction{
		ID:               transactionID,
		AccountID:        account.ID,
		Kind:             models.TransactionPurchase,
		Amount:           -item.Price,
		RelatedContentID: &item.ID,
		Description:      description,
	}
	record := &models.PurchaseRecord{
		TransactionID: transactionID,
		AccountID:     account.ID,
		ContentID:     item.ID,
		Price:         item.Price,
	}

	balance, err := s.repo.ExecutePurchase(ctx, txn, record)
	if err != nil {
		// A concurrent purchase for the same pair won the race; this
		// request still succeeded from the caller's point of view.
		if errors.Is(err, models.ErrAlreadyOwned) {
			return s.ownedReceipt(ctx, account.ID, item)
		}
		var insufficient *models.InsufficientFundsError
		if errors.As(err, &insufficient) {
			return nil, insufficient
		}
		return nil, fmt.Errorf("error executing purchase: %w", err)
	}

	s.log.Infow("content purchased",
		"accountId", account.ID, "contentId", item.ID,
		"price", item.Price, "balance", balance, "transactionId", transactionID)

	return &models.PurchaseReceipt{
		Status:        "success",
		ContentID:     item.ID,
		Title:         item.Title,
		TransactionID: transactionID,
		Balance:       balance,
		Description:   description,
	}, nil
}

// ownedReceipt builds the idempotent-success receipt for an item the
// account already owns.
func (s *DefaultService) ownedReceipt(ctx context.Context, accountID string, item *models.ContentItem) (*models.PurchaseReceipt, error) {
	balance, err := s.repo.GetBalance(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("error getting balance: %w", err)
	}

	receipt := &models.PurchaseReceipt{
		Status:          "success",
		ContentID:       item.ID,
		Title:           item.Title,
		Balance:         balance,
		AlreadyEntitled: true,
		Description:     fmt.Sprintf("%s %q is already owned", item.Kind, item.Title),
	}

	record, err := s.repo.GetPurchaseRecord(ctx, accountID, item.ID)
	if err != nil {
		return nil, fmt.Errorf("error getting purchase record: %w", err)
	}
	if record != nil {
		receipt.TransactionID = record.TransactionID
	}

	return receipt, nil
}
