package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"callcard-platform/internal/auth"
	"callcard-platform/internal/calls"
	"callcard-platform/internal/voucher"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth      *auth.Manager
	Vouchers  *voucher.Service
	Allocator *voucher.Allocator
	Calls     *calls.Service
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: Credential validation happens upstream (SSO/IdP); this endpoint
// only mints tokens for already-verified identities.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Device surface ---

type validateRequest struct {
	Code     string `json:"code"`
	DeviceID string `json:"device_id"`
}

// ValidateVoucher checks a code for redemption. Disqualifying conditions
// come back as valid=false with HTTP 200; only storage faults error.
func (h Handlers) ValidateVoucher(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.DeviceID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "device_id required"})
		return
	}

	res, err := h.Vouchers.Validate(c.Request.Context(), req.Code, req.DeviceID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type startCallRequest struct {
	VoucherID   string `json:"voucher_id"`
	PhoneNumber string `json:"phone_number"`
	CountryCode string `json:"country_code"`
	CallType    string `json:"call_type"`
}

func (h Handlers) StartCall(c *gin.Context) {
	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	res, err := h.Calls.StartCall(c.Request.Context(), calls.StartRequest{
		VoucherID:   req.VoucherID,
		PhoneNumber: req.PhoneNumber,
		CountryCode: req.CountryCode,
		CallType:    calls.CallType(req.CallType),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type endCallRequest struct {
	DurationSeconds *int `json:"duration_seconds"`
}

func (h Handlers) EndCall(c *gin.Context) {
	callID := c.Param("call_id")
	var req endCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.DurationSeconds == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "duration_seconds required"})
		return
	}

	res, err := h.Calls.EndCall(c.Request.Context(), callID, *req.DurationSeconds)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h Handlers) CancelCall(c *gin.Context) {
	if err := h.Calls.CancelCall(c.Request.Context(), c.Param("call_id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// --- Admin surface ---

type generateVoucherRequest struct {
	DurationMinutes int        `json:"duration_minutes"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}

func (h Handlers) GenerateVoucher(c *gin.Context) {
	var req generateVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	actor, _ := auth.UserID(c.Request.Context())

	v, err := h.Allocator.Allocate(c.Request.Context(), req.DurationMinutes, actor, req.ExpiresAt)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

type generateBatchRequest struct {
	Quantity        int `json:"quantity"`
	DurationMinutes int `json:"duration_minutes"`
}

func (h Handlers) GenerateVoucherBatch(c *gin.Context) {
	var req generateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	actor, _ := auth.UserID(c.Request.Context())

	b, vouchers, err := h.Allocator.AllocateBatch(c.Request.Context(), req.Quantity, req.DurationMinutes, actor)
	if err != nil {
		abortWithError(c, err)
		return
	}

	codes := make([]string, len(vouchers))
	for i, v := range vouchers {
		codes[i] = v.Code
	}
	c.JSON(http.StatusCreated, gin.H{"batch_id": b.ID, "codes": codes})
}

func (h Handlers) ListVouchers(c *gin.Context) {
	f := voucher.ListFilter{
		BatchID: c.Query("batch_id"),
		Limit:   intQuery(c, "limit"),
		Offset:  intQuery(c, "offset"),
	}
	if v, ok := boolQuery(c, "used"); ok {
		f.IsUsed = &v
	}
	if v, ok := boolQuery(c, "active"); ok {
		f.IsActive = &v
	}

	items, total, err := h.Vouchers.List(c.Request.Context(), f)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}

func (h Handlers) GetVoucher(c *gin.Context) {
	v, err := h.Vouchers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

type setActiveRequest struct {
	Active *bool `json:"active"`
}

func (h Handlers) SetVoucherActive(c *gin.Context) {
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "active required"})
		return
	}
	actor, _ := auth.UserID(c.Request.Context())

	v, err := h.Vouchers.SetActive(c.Request.Context(), c.Param("id"), *req.Active, actor)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h Handlers) DeleteVoucher(c *gin.Context) {
	actor, _ := auth.UserID(c.Request.Context())
	if err := h.Vouchers.Delete(c.Request.Context(), c.Param("id"), actor); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) ListCalls(c *gin.Context) {
	f := calls.ListFilter{
		VoucherID: c.Query("voucher_id"),
		Status:    calls.CallStatus(c.Query("status")),
		Limit:     intQuery(c, "limit"),
		Offset:    intQuery(c, "offset"),
	}

	items, total, err := h.Calls.List(c.Request.Context(), f)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}

// --- helpers ---

// abortWithError maps service sentinels onto HTTP statuses.
func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, voucher.ErrInvalidArgument) || errors.Is(err, calls.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, voucher.ErrNotFound) || errors.Is(err, calls.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, calls.ErrAlreadyTerminal):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, calls.ErrVoucherUnavailable):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, voucher.ErrCodeExists):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, voucher.ErrUnavailable),
		errors.Is(err, voucher.ErrTimeout),
		errors.Is(err, calls.ErrTimeout):
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func intQuery(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}

func boolQuery(c *gin.Context, key string) (bool, bool) {
	s := c.Query(key)
	if s == "" {
		return false, false
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, false
	}
	return v, true
}
