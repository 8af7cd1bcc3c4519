package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/lessonhub/lessonhub-server/internal/models"
	"github.com/lessonhub/lessonhub-server/internal/repository"
	"github.com/lessonhub/lessonhub-server/pkg/logger"
)

// Service defines all the business logic operations
type Service interface {
	// Authentication
	SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)

	// Wallet
	Recharge(ctx context.Context, accountID string, req models.RechargeRequest) (*models.TransactionResponse, error)
	Balance(ctx context.Context, accountID string) (*models.BalanceResponse, error)
	History(ctx context.Context, accountID string, page, pageSize int) (*models.HistoryResponse, error)
	Debit(ctx context.Context, accountID string, amount int64, relatedContentID *string, description string) (*models.WalletTransaction, int64, error)

	// Content catalog and access grants
	CreateContent(ctx context.Context, req models.CreateContentRequest) (*models.ContentItem, error)
	HasAccess(ctx context.Context, account *models.Account, contentID string) (bool, error)
	AdminGrant(ctx context.Context, req models.AdminGrantRequest) (*models.AccessGrant, error)

	// Purchase
	Purchase(ctx context.Context, account *models.Account, contentID string) (*models.PurchaseReceipt, error)

	// Video progress
	FetchProgress(ctx context.Context, caller *models.Account, ownerID, videoID string) (*models.VideoProgress, error)
	ApplyTelemetry(ctx context.Context, account *models.Account, videoID string, sample models.TelemetrySample) (*models.VideoProgress, error)
	ResetProgress(ctx context.Context, caller *models.Account, ownerID, videoID string) (*models.VideoProgress, error)
	AllProgressForVideo(ctx context.Context, caller *models.Account, videoID string) ([]models.VideoProgress, error)
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo          repository.Repository
	log           *logger.Logger
	jwtSecret     []byte
	tokenDuration time.Duration
}

// NewDefaultService creates a new DefaultService
func NewDefaultService(repo repository.Repository, log *logger.Logger, jwtSecret string) Service {
	return &DefaultService{
		repo:          repo,
		log:           log,
		jwtSecret:     []byte(jwtSecret),
		tokenDuration: 24 * time.Hour, // 24 hours token validity
	}
}

// Authentication methods
func (s *DefaultService) SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error) {
	// Check if account already exists
	existing, err := s.repo.GetAccountByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error checking account existence: %w", err)
	}

	if existing != nil {
		return nil, models.ErrEmailTaken
	}

	// Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	account := &models.Account{
		Email:    req.Email,
		Name:     req.Name,
		Password: string(hashedPassword),
		Role:     models.RoleRegular,
	}

	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("error creating account: %w", err)
	}

	s.log.Infow("account created", "accountId", account.ID)

	return &models.AuthResponse{
		Status:    "success",
		AccountID: account.ID,
		Email:     account.Email,
		Name:      account.Name,
		Role:      account.Role,
	}, nil
}

func (s *DefaultService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	account, err := s.repo.GetAccountByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error getting account: %w", err)
	}

	if account == nil {
		return nil, errors.New("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(req.Password)); err != nil {
		return nil, errors.New("invalid email or password")
	}

	token, err := s.generateJWT(account)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &models.AuthResponse{
		Status:    "success",
		AccountID: account.ID,
		Role:      account.Role,
		Token:     token,
		ExpiresIn: int(s.tokenDuration.Seconds()),
	}, nil
}

// Helper methods
func (s *DefaultService) generateJWT(account *models.Account) (string, error) {
	expirationTime := time.Now().Add(s.tokenDuration)

	claims := jwt.MapClaims{
		"sub":  account.ID, // subject
		"role": account.Role,
		"exp":  expirationTime.Unix(),
		"iat":  time.Now().Unix(), // issued at
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
