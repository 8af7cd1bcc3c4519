package api_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lessonhub/lessonhub-server/internal/api/testutils"
	"github.com/lessonhub/lessonhub-server/internal/models"
)

func TestProgressEndpoints(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	testCtx.CreateContent(t, "Free Video Lesson", 0, "vid-1")

	// Test case 1: Fetch before any telemetry returns a zero record
	w := testutils.PerformRequest(testCtx.Router, http.MethodGet,
		"/api/videos/vid-1/progress", nil, testutils.AuthHeaders(testCtx.RegularJWT))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.ProgressResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Progress.ProgressPercent)
	assert.Empty(t, resp.Progress.Checkpoints)

	// Test case 2: Telemetry merges and returns the updated record
	sample := models.TelemetrySample{
		CurrentTime:       120,
		Duration:          600,
		ProgressPercent:   20,
		WatchTimeDelta:    30,
		ReachedPercentage: 20,
	}
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost,
		"/api/videos/vid-1/progress", sample, testutils.AuthHeaders(testCtx.RegularJWT))
	assert.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 20, resp.Progress.ProgressPercent)
	assert.Equal(t, 30.0, resp.Progress.TotalWatchTime)
	require.Len(t, resp.Progress.Checkpoints, 1)
	assert.Equal(t, 20, resp.Progress.Checkpoints[0].Percentage)

	// Test case 3: Reset clears playback state but keeps watch time
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost,
		"/api/videos/vid-1/progress/reset", nil, testutils.AuthHeaders(testCtx.RegularJWT))
	assert.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Progress.ProgressPercent)
	assert.Empty(t, resp.Progress.Checkpoints)
	assert.Equal(t, 30.0, resp.Progress.TotalWatchTime)

	// Test case 4: Unknown video
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet,
		"/api/videos/no-such-video/progress", nil, testutils.AuthHeaders(testCtx.RegularJWT))
	assert.Equal(t, http.StatusNotFound, w.Code)

	var errResp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "VIDEO_NOT_FOUND", errResp.Code)
}

func TestTelemetryRequiresGrantForPaidContent(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	lesson := testCtx.CreateContent(t, "Paid Video Lesson", 50, "vid-paid")

	sample := models.TelemetrySample{ProgressPercent: 10}

	// Without a grant, telemetry on paid content is forbidden
	w := testutils.PerformRequest(testCtx.Router, http.MethodPost,
		"/api/videos/vid-paid/progress", sample, testutils.AuthHeaders(testCtx.RegularJWT))
	assert.Equal(t, http.StatusForbidden, w.Code)

	// After an admin grant the same request succeeds
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/admin/grants",
		models.AdminGrantRequest{AccountID: testCtx.RegularID, ContentID: lesson.ID},
		testutils.AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusCreated, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodPost,
		"/api/videos/vid-paid/progress", sample, testutils.AuthHeaders(testCtx.RegularJWT))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPrivilegedTelemetryAcceptedButNotStored(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	testCtx.CreateContent(t, "Free Video Lesson", 0, "vid-1")

	sample := models.TelemetrySample{ProgressPercent: 80, WatchTimeDelta: 100}
	w := testutils.PerformRequest(testCtx.Router, http.MethodPost,
		"/api/videos/vid-1/progress", sample, testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.ProgressResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Progress.ProgressPercent)

	// Nothing appears in the admin listing for this video
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet,
		"/api/admin/videos/vid-1/progress", nil, testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusOK, w.Code)

	var list models.VideoProgressListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Empty(t, list.Records)
}

func TestAdminProgressListing(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	testCtx.CreateContent(t, "Free Video Lesson", 0, "vid-1")

	sample := models.TelemetrySample{ProgressPercent: 35, WatchTimeDelta: 60}
	w := testutils.PerformRequest(testCtx.Router, http.MethodPost,
		"/api/videos/vid-1/progress", sample, testutils.AuthHeaders(testCtx.RegularJWT))
	require.Equal(t, http.StatusOK, w.Code)

	// Regular accounts cannot list all viewers
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet,
		"/api/admin/videos/vid-1/progress", nil, testutils.AuthHeaders(testCtx.RegularJWT))
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Privileged accounts can
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet,
		"/api/admin/videos/vid-1/progress", nil, testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusOK, w.Code)

	var list models.VideoProgressListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Records, 1)
	assert.Equal(t, testCtx.RegularID, list.Records[0].AccountID)
	assert.Equal(t, 35, list.Records[0].ProgressPercent)

	// Privileged accounts may also read another account's record directly
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet,
		fmt.Sprintf("/api/videos/vid-1/progress?accountId=%s", testCtx.RegularID), nil,
		testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.ProgressResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 35, resp.Progress.ProgressPercent)
}
