package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lessonhub/lessonhub-server/internal/models"
	"github.com/lessonhub/lessonhub-server/internal/service"
	"github.com/lessonhub/lessonhub-server/pkg/logger"
)

// Handler holds the service and exposes the HTTP endpoints
type Handler struct {
	svc service.Service
	log *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(svc service.Service, log *logger.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// SetupRoutes registers all routes on the router
func (h *Handler) SetupRoutes(router *gin.Engine) {
	auth := router.Group("/api/auth")
	{
		auth.POST("/signup", h.SignUp)
		auth.POST("/login", h.Login)
	}

	authed := router.Group("/api")
	authed.Use(AuthMiddleware())
	{
		authed.GET("/wallet", h.GetBalance)
		authed.POST("/wallet/recharge", h.Recharge)
		authed.GET("/wallet/transactions", h.GetHistory)

		authed.POST("/content/:contentId/purchase", h.Purchase)
		authed.GET("/content/:contentId/access", h.GetAccess)

		authed.GET("/videos/:videoId/progress", h.GetProgress)
		authed.POST("/videos/:videoId/progress", h.PostTelemetry)
		authed.POST("/videos/:videoId/progress/reset", h.ResetProgress)
	}

	admin := router.Group("/api/admin")
	admin.Use(AuthMiddleware(), RequirePrivileged())
	{
		admin.POST("/content", h.CreateContent)
		admin.POST("/grants", h.AdminGrant)
		admin.GET("/videos/:videoId/progress", h.AllProgressForVideo)
	}
}

// Authentication handlers
func (h *Handler) SignUp(c *gin.Context) {
	var req models.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.svc.SignUp(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Status:  "error",
			Code:    "UNAUTHORIZED",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Wallet handlers
func (h *Handler) GetBalance(c *gin.Context) {
	resp, err := h.svc.Balance(c.Request.Context(), c.GetString("accountId"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Recharge(c *gin.Context) {
	var req models.RechargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.svc.Recharge(c.Request.Context(), c.GetString("accountId"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetHistory(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	resp, err := h.svc.History(c.Request.Context(), c.GetString("accountId"), page, pageSize)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Purchase and access handlers
func (h *Handler) Purchase(c *gin.Context) {
	receipt, err := h.svc.Purchase(c.Request.Context(), currentAccount(c), c.Param("contentId"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, receipt)
}

func (h *Handler) GetAccess(c *gin.Context) {
	contentID := c.Param("contentId")
	hasAccess, err := h.svc.HasAccess(c.Request.Context(), currentAccount(c), contentID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AccessResponse{
		Status:    "success",
		ContentID: contentID,
		HasAccess: hasAccess,
	})
}

// Progress handlers
func (h *Handler) GetProgress(c *gin.Context) {
	progress, err := h.svc.FetchProgress(c.Request.Context(), currentAccount(c),
		c.Query("accountId"), c.Param("videoId"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ProgressResponse{Status: "success", Progress: *progress})
}

func (h *Handler) PostTelemetry(c *gin.Context) {
	var sample models.TelemetrySample
	if err := c.ShouldBindJSON(&sample); err != nil {
		badRequest(c, err)
		return
	}

	progress, err := h.svc.ApplyTelemetry(c.Request.Context(), currentAccount(c), c.Param("videoId"), sample)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ProgressResponse{Status: "success", Progress: *progress})
}

func (h *Handler) ResetProgress(c *gin.Context) {
	progress, err := h.svc.ResetProgress(c.Request.Context(), currentAccount(c),
		c.Query("accountId"), c.Param("videoId"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ProgressResponse{Status: "success", Progress: *progress})
}

// Admin handlers
func (h *Handler) CreateContent(c *gin.Context) {
	var req models.CreateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	item, err := h.svc.CreateContent(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.ContentResponse{Status: "success", Content: *item})
}

func (h *Handler) AdminGrant(c *gin.Context) {
	var req models.AdminGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	grant, err := h.svc.AdminGrant(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.GrantResponse{Status: "success", Grant: *grant})
}

func (h *Handler) AllProgressForVideo(c *gin.Context) {
	videoID := c.Param("videoId")
	records, err := h.svc.AllProgressForVideo(c.Request.Context(), currentAccount(c), videoID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.VideoProgressListResponse{
		Status:  "success",
		VideoID: videoID,
		Records: records,
	})
}

// Error mapping
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Status:  "error",
		Code:    "VALIDATION_ERROR",
		Message: err.Error(),
	})
}

// writeError maps service failures onto the HTTP error taxonomy. Anything
// untyped is a storage failure and safe to retry.
func (h *Handler) writeError(c *gin.Context, err error) {
	var insufficient *models.InsufficientFundsError
	switch {
	case errors.As(err, &insufficient):
		c.JSON(http.StatusPaymentRequired, models.ErrorResponse{
			Status:  "error",
			Code:    "INSUFFICIENT_FUNDS",
			Message: insufficient.Error(),
		})
	case errors.Is(err, models.ErrContentNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Status:  "error",
			Code:    "CONTENT_NOT_FOUND",
			Message: err.Error(),
		})
	case errors.Is(err, models.ErrVideoNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Status:  "error",
			Code:    "VIDEO_NOT_FOUND",
			Message: err.Error(),
		})
	case errors.Is(err, models.ErrNotPurchasable):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "NOT_PURCHASABLE",
			Message: err.Error(),
		})
	case errors.Is(err, models.ErrUnauthorized):
		c.JSON(http.StatusForbidden, models.ErrorResponse{
			Status:  "error",
			Code:    "FORBIDDEN",
			Message: err.Error(),
		})
	case errors.Is(err, models.ErrEmailTaken):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Status:  "error",
			Code:    "EMAIL_TAKEN",
			Message: err.Error(),
		})
	case errors.Is(err, models.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "VALIDATION_ERROR",
			Message: err.Error(),
		})
	default:
		h.log.Errorw("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Status:  "error",
			Code:    "STORAGE_FAILURE",
			Message: "Operation could not be persisted, retry is safe",
		})
	}
}
