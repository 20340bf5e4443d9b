package main

import (
	"database/sql"
	"net/http"
	"time"

	"callcard-platform/internal/httpapi"
	"callcard-platform/internal/rbac"
	"callcard-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW, validateLimiter gin.HandlerFunc, db *sql.DB, rdb *redis.Client) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")

	// AUTH routes (token issuance).
	// NOTE: Credential verification happens upstream; see Handlers.Login.
	v1.POST("/auth/login", h.Login)

	// DEVICE routes. Callers are handsets, not operators; they carry no JWT.
	// Validate is rate limited per device so code guessing stays expensive.
	v1.POST("/vouchers/validate", validateLimiter, h.ValidateVoucher)
	v1.POST("/calls/start", h.StartCall)
	v1.POST("/calls/:call_id/end", h.EndCall)
	v1.POST("/calls/:call_id/cancel", h.CancelCall)

	// ADMIN routes. Hidden fraud_analyst is opted in only where review
	// access makes sense (read-only listings).
	admin := v1.Group("/admin")
	admin.Use(authMW)
	{
		write := admin.Group("")
		write.Use(rbac.RequireAnyRole(rbac.RoleAdmin, rbac.RoleSuperAdmin))
		{
			write.POST("/vouchers", h.GenerateVoucher)
			write.POST("/vouchers/batch", h.GenerateVoucherBatch)
			write.PATCH("/vouchers/:id/active", h.SetVoucherActive)
			write.DELETE("/vouchers/:id", h.DeleteVoucher)
		}

		read := admin.Group("")
		read.Use(rbac.RequireAnyRole(rbac.RoleAdmin, rbac.RoleSupport, rbac.RoleSuperAdmin, rbac.RoleFraudAnalyst))
		{
			read.GET("/vouchers", h.ListVouchers)
			read.GET("/vouchers/:id", h.GetVoucher)
			read.GET("/calls", h.ListCalls)
		}
	}
}
