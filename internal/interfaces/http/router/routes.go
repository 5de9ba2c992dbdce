package router

import (
	"github.com/gin-gonic/gin"

	"github.com/tally/backend/internal/interfaces/http/handler"
)

// Handlers bundles the handlers the billing API is built from.
type Handlers struct {
	System       *handler.SystemHandler
	TimeTracking *handler.TimeTrackingHandler
	Invoice      *handler.InvoiceHandler
	Payment      *handler.PaymentHandler
	// PaymentWrites runs before the payment and refund handlers. Optional.
	PaymentWrites []gin.HandlerFunc
}

// TimeTrackingRoutes returns the timer, time entry and rounding routes.
func TimeTrackingRoutes(h *handler.TimeTrackingHandler) []RouteRegistrar {
	timers := NewDomainGroup("timers", "/timers").
		POST("", h.StartTimer).
		GET("/:id", h.GetTimer).
		POST("/:id/stop", h.StopTimer)

	entries := NewDomainGroup("time-entries", "/time-entries").
		POST("", h.CreateEntry).
		GET("", h.ListEntries).
		GET("/:id", h.GetEntry)

	projects := NewDomainGroup("projects", "/projects").
		GET("/:id/summary", h.ProjectSummary)

	rounding := NewDomainGroup("rounding", "/rounding").
		POST("/preview", h.PreviewRounding)

	return []RouteRegistrar{timers, entries, projects, rounding}
}

// BillingRoutes returns the invoice, reconciliation and payment routes.
// writes wraps the payment and refund POSTs.
func BillingRoutes(inv *handler.InvoiceHandler, pay *handler.PaymentHandler, writes ...gin.HandlerFunc) RouteRegistrar {
	invoices := NewDomainGroup("invoices", "/invoices").
		POST("", inv.Create).
		POST("/from-time-entries", inv.CreateFromTimeEntries).
		GET("", inv.List).
		GET("/:id", inv.GetByID).
		POST("/:id/issue", inv.Issue).
		POST("/:id/cancel", inv.Cancel).
		GET("/:id/billing-state", pay.BillingState).
		GET("/:id/payments", pay.List).
		POST("/:id/payments/preview", pay.Preview).
		POST("/:id/payments", chain(writes, pay.RecordPayment)...).
		POST("/:id/refunds", chain(writes, pay.RecordRefund)...)
	return invoices
}

// SystemRoutes returns /system/info. Ping sits at the API root.
func SystemRoutes(h *handler.SystemHandler) RouteRegistrar {
	return NewDomainGroup("system", "/system").
		GET("/info", h.GetSystemInfo)
}

// Mount registers the whole API on engine: GET /health outside the
// versioned prefix, everything else under /api/v1.
func Mount(engine *gin.Engine, h Handlers) {
	engine.GET("/health", h.System.Health)

	r := NewRouter(engine, WithAPIVersion("v1"))
	r.Register(SystemRoutes(h.System))
	r.Register(TimeTrackingRoutes(h.TimeTracking)...)
	r.Register(BillingRoutes(h.Invoice, h.Payment, h.PaymentWrites...))
	api := r.Setup()
	api.GET("/ping", h.System.Ping)
}

func chain(middleware []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(middleware)+1)
	out = append(out, middleware...)
	return append(out, h)
}
