package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lessonhub/lessonhub-server/internal/api"
	"github.com/lessonhub/lessonhub-server/internal/models"
	"github.com/lessonhub/lessonhub-server/internal/repository"
	"github.com/lessonhub/lessonhub-server/internal/service"
	"github.com/lessonhub/lessonhub-server/pkg/logger"
)

const testJWTSecret = "test-secret-key"

// TestContext holds all dependencies for tests
type TestContext struct {
	Router     *gin.Engine
	Repository *repository.MemoryRepository
	Service    service.Service
	JWTSecret  []byte

	RegularID  string
	RegularJWT string
	AdminID    string
	AdminJWT   string
}

// SetupTestContext wires the router, service and an in-memory repository,
// and seeds one regular and one privileged account.
func SetupTestContext(t *testing.T) *TestContext {
	repo := repository.NewMemoryRepository()
	log := logger.NewNop()
	svc := service.NewDefaultService(repo, log, testJWTSecret)
	handler := api.NewHandler(svc, log)

	gin.SetMode(gin.TestMode)
	router := gin.New()

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(testJWTSecret))
		c.Next()
	})

	handler.SetupRoutes(router)

	regularID, regularJWT := createTestAccount(t, repo, "student@example.com", models.RoleRegular)
	adminID, adminJWT := createTestAccount(t, repo, "admin@example.com", models.RolePrivileged)

	return &TestContext{
		Router:     router,
		Repository: repo,
		Service:    svc,
		JWTSecret:  []byte(testJWTSecret),
		RegularID:  regularID,
		RegularJWT: regularJWT,
		AdminID:    adminID,
		AdminJWT:   adminJWT,
	}
}

// CreateContent seeds a catalog item directly through the repository.
func (tc *TestContext) CreateContent(t *testing.T, title string, price int64, videoID string) *models.ContentItem {
	item := &models.ContentItem{
		Kind:  models.ContentLesson,
		Title: title,
		Price: price,
	}
	if videoID != "" {
		item.VideoID = &videoID
	}
	require.NoError(t, tc.Repository.CreateContent(context.Background(), item))
	return item
}

// Recharge seeds a wallet balance via the service.
func (tc *TestContext) Recharge(t *testing.T, accountID string, amount int64) {
	_, err := tc.Service.Recharge(context.Background(), accountID, models.RechargeRequest{Amount: amount})
	require.NoError(t, err)
}

// Helper functions
func createTestAccount(t *testing.T, repo *repository.MemoryRepository, email, role string) (string, string) {
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("testpassword"), bcrypt.DefaultCost)

	account := &models.Account{
		Email:    email,
		Name:     "Test Account",
		Password: string(hashedPassword),
		Role:     role,
	}

	err := repo.CreateAccount(context.Background(), account)
	require.NoError(t, err, "Failed to create test account")

	// Generate JWT token with the test secret
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  account.ID,
		"role": account.Role,
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
		"iat":  time.Now().Unix(),
	})

	tokenString, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err, "Failed to generate JWT token")

	return account.ID, tokenString
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}
