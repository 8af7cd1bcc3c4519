package models

// Request models
type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RechargeRequest struct {
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Description string `json:"description"`
}

type CreateContentRequest struct {
	Kind    string `json:"kind" binding:"required,oneof=lesson unit"`
	Title   string `json:"title" binding:"required"`
	Price   int64  `json:"price" binding:"gte=0"`
	VideoID string `json:"videoId"`
}

type AdminGrantRequest struct {
	AccountID string `json:"accountId" binding:"required"`
	ContentID string `json:"contentId" binding:"required"`
}

// Response models
type AuthResponse struct {
	Status    string `json:"status"`
	AccountID string `json:"accountId,omitempty"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role,omitempty"`
	Token     string `json:"token,omitempty"`
	ExpiresIn int    `json:"expiresIn,omitempty"`
}

type BalanceResponse struct {
	Status    string `json:"status"`
	AccountID string `json:"accountId"`
	Balance   int64  `json:"balance"`
}

type TransactionResponse struct {
	Status      string            `json:"status"`
	Balance     int64             `json:"balance"`
	Transaction WalletTransaction `json:"transaction"`
}

type HistoryResponse struct {
	Status       string              `json:"status"`
	AccountID    string              `json:"accountId"`
	Page         int                 `json:"page"`
	PageSize     int                 `json:"pageSize"`
	Transactions []WalletTransaction `json:"transactions"`
}

// PurchaseReceipt is returned by the purchase endpoint for both fresh
// purchases and idempotent re-purchases.
type PurchaseReceipt struct {
	Status          string `json:"status"`
	ContentID       string `json:"contentId"`
	Title           string `json:"title,omitempty"`
	TransactionID   string `json:"transactionId,omitempty"`
	Balance         int64  `json:"balance"`
	AlreadyEntitled bool   `json:"alreadyEntitled"`
	Description     string `json:"description,omitempty"`
}

type AccessResponse struct {
	Status    string `json:"status"`
	ContentID string `json:"contentId"`
	HasAccess bool   `json:"hasAccess"`
}

type ContentResponse struct {
	Status  string      `json:"status"`
	Content ContentItem `json:"content"`
}

type GrantResponse struct {
	Status string      `json:"status"`
	Grant  AccessGrant `json:"grant"`
}

type ProgressResponse struct {
	Status   string        `json:"status"`
	Progress VideoProgress `json:"progress"`
}

type VideoProgressListResponse struct {
	Status  string          `json:"status"`
	VideoID string          `json:"videoId"`
	Records []VideoProgress `json:"records"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
