package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mailit/tracking-gateway/internal/models"
	"github.com/mailit/tracking-gateway/internal/repository"
	"github.com/mailit/tracking-gateway/internal/service"
)

type usageStore interface {
	UsageSince(ctx context.Context, since time.Time) ([]repository.TenantUsage, error)
}

// AdminHandler exposes the operator plane: login, tenant provisioning,
// credential lifecycle and usage reporting.
type AdminHandler struct {
	admin   *service.AdminService
	tenants *service.TenantService
	usage   usageStore
}

func NewAdminHandler(admin *service.AdminService, tenants *service.TenantService, usage usageStore) *AdminHandler {
	return &AdminHandler{admin: admin, tenants: tenants, usage: usage}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name"`
}

func (h *AdminHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "email and a password of at least 8 characters are required")
		return
	}

	user, err := h.admin.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			respondError(c, http.StatusConflict, "EMAIL_TAKEN", "email already registered")
			return
		}
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": user.ID, "email": user.Email})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AdminHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "email and password are required")
		return
	}

	token, err := h.admin.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			respondError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
			return
		}
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

type createTenantRequest struct {
	Name      string     `json:"name" binding:"required"`
	Plan      string     `json:"plan" binding:"required"`
	Live      bool       `json:"live"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// CreateTenant provisions a tenant. The plaintext API key appears in
// this response only.
func (h *AdminHandler) CreateTenant(c *gin.Context) {
	var req createTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "name and plan are required")
		return
	}

	tenant, key, err := h.tenants.CreateTenant(c.Request.Context(), req.Name, models.UsagePlan(req.Plan), req.Live, req.ExpiresAt)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"tenant":  tenant,
		"api_key": key,
	})
}

func (h *AdminHandler) ListTenants(c *gin.Context) {
	tenants, err := h.tenants.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tenants": tenants})
}

func (h *AdminHandler) GetTenant(c *gin.Context) {
	id, ok := h.tenantID(c)
	if !ok {
		return
	}

	tenant, err := h.tenants.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, tenant)
}

func (h *AdminHandler) RotateKey(c *gin.Context) {
	id, ok := h.tenantID(c)
	if !ok {
		return
	}

	key, err := h.tenants.RotateKey(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"api_key": key})
}

func (h *AdminHandler) RevokeKey(c *gin.Context) {
	id, ok := h.tenantID(c)
	if !ok {
		return
	}

	if err := h.tenants.RevokeKey(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "key revoked"})
}

type updatePlanRequest struct {
	Plan string `json:"plan" binding:"required"`
}

func (h *AdminHandler) UpdatePlan(c *gin.Context) {
	id, ok := h.tenantID(c)
	if !ok {
		return
	}

	var req updatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "plan is required")
		return
	}

	if err := h.tenants.UpdatePlan(c.Request.Context(), id, models.UsagePlan(req.Plan)); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "plan updated"})
}

func (h *AdminHandler) ResetQuota(c *gin.Context) {
	id, ok := h.tenantID(c)
	if !ok {
		return
	}

	if err := h.tenants.ResetQuota(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "quota reset"})
}

// Usage aggregates per-tenant traffic over a trailing window given in
// hours (default 24).
func (h *AdminHandler) Usage(c *gin.Context) {
	hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if err != nil || hours < 1 {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "hours must be a positive integer")
		return
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	usage, err := h.usage.UsageSince(c.Request.Context(), since)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"since": since, "usage": usage})
}

func (h *AdminHandler) tenantID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("tenantId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "tenantId must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
