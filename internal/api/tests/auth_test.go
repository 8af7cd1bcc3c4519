package api_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lessonhub/lessonhub-server/internal/api/testutils"
	"github.com/lessonhub/lessonhub-server/internal/models"
)

func TestSignUpEndpoint(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	// Test case 1: Successful signup
	signUpReq := models.SignUpRequest{
		Email:    "newstudent@example.com",
		Password: "password123",
		Name:     "New Student",
	}

	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/auth/signup", signUpReq, nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	var response models.AuthResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.NotEmpty(t, response.AccountID)
	assert.Equal(t, models.RoleRegular, response.Role)

	// Test case 2: Duplicate email
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/auth/signup", signUpReq, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Test case 3: Invalid request (short password)
	invalidReq := models.SignUpRequest{
		Email:    "short@example.com",
		Password: "short",
		Name:     "Short",
	}
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/auth/signup", invalidReq, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginEndpoint(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	// Test case 1: Successful login with the seeded account
	loginReq := models.LoginRequest{
		Email:    "student@example.com",
		Password: "testpassword",
	}

	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/auth/login", loginReq, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var response models.AuthResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.NotEmpty(t, response.Token)
	assert.Equal(t, testCtx.RegularID, response.AccountID)

	// Test case 2: Wrong password
	loginReq.Password = "wrongpassword"
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/auth/login", loginReq, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRequired(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	// No token
	w := testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/wallet", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Malformed token
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/wallet", nil,
		map[string]string{"Authorization": "Bearer not-a-token"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Regular accounts cannot reach admin endpoints
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/admin/content",
		models.CreateContentRequest{Kind: "lesson", Title: "X", Price: 10},
		testutils.AuthHeaders(testCtx.RegularJWT))
	assert.Equal(t, http.StatusForbidden, w.Code)
}
