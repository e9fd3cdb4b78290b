// Package http provides the HTTP adapter for the workflow application layer.
// It is a thin layer translating requests into engine and stage handler calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jmwangi/schoolflow/internal/application/process"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Services bundles the per-process stage handlers the server exposes
type Services struct {
	Disposal     *process.DisposalService
	Procurement  *process.ProcurementService
	Transfer     *process.TransferService
	Audit        *process.AuditService
	TermSchedule *process.TermScheduleService
	Timetable    *process.TimetableService
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	services   Services
	logger     Logger
}

// NewServer creates a new HTTP server with the given handlers and services
func NewServer(config ServerConfig, handlers *Handlers, services Services, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:   config,
		router:   gin.New(),
		handlers: handlers,
		services: services,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api")
	{
		// Generic workflow queries
		api.GET("/workflows", h.ListInstances)
		api.GET("/workflows/:id", h.GetInstance)
		api.GET("/workflows/:id/history", h.GetHistory)
		api.GET("/workflows/:id/stages", h.GetPermittedStages)

		// Asset disposal
		disposal := s.services.Disposal
		disposals := api.Group("/disposals")
		{
			disposals.POST("", h.Start(disposal.Start))
			disposals.POST("/:id/assess", h.Action("disposal_assess", disposal.AssessCondition))
			disposals.POST("/:id/reject-request", h.Action("disposal_reject_request", disposal.RejectRequest))
			disposals.POST("/:id/valuation", h.Action("disposal_valuation", disposal.RecordValuation))
			disposals.POST("/:id/return", h.Action("disposal_return", disposal.ReturnToRequest))
			disposals.POST("/:id/submit", h.Action("disposal_submit", disposal.SubmitForApproval))
			disposals.POST("/:id/cancel", h.Action("disposal_cancel", disposal.Cancel))
			disposals.POST("/:id/approve", h.Action("disposal_approve", disposal.Approve))
			disposals.POST("/:id/reject", h.Action("disposal_reject", disposal.Reject))
			disposals.POST("/:id/execute", h.Action("disposal_execute", disposal.Execute))
			disposals.POST("/:id/proceeds", h.Action("disposal_proceeds", disposal.RecordProceeds))
			disposals.POST("/:id/write-off", h.Action("disposal_write_off", disposal.ProcessWriteOff))
			disposals.POST("/:id/remove", h.Action("disposal_remove", disposal.RemoveFromInventory))
		}

		// Stock procurement
		procurement := s.services.Procurement
		procurements := api.Group("/procurements")
		{
			procurements.POST("", h.Start(procurement.Start))
			procurements.POST("/:id/verify-budget", h.Action("procurement_verify_budget", procurement.VerifyBudget))
			procurements.POST("/:id/reject-request", h.Action("procurement_reject_request", procurement.RejectRequest))
			procurements.POST("/:id/select-supplier", h.Action("procurement_select_supplier", procurement.SelectSupplier))
			procurements.POST("/:id/reject-budget", h.Action("procurement_reject_budget", procurement.RejectBudget))
			procurements.POST("/:id/submit", h.Action("procurement_submit", procurement.SubmitForApproval))
			procurements.POST("/:id/cancel", h.Action("procurement_cancel", procurement.Cancel))
			procurements.POST("/:id/approve", h.Action("procurement_approve", procurement.Approve))
			procurements.POST("/:id/reject", h.Action("procurement_reject", procurement.Reject))
			procurements.POST("/:id/place-order", h.Action("procurement_place_order", procurement.PlaceOrder))
			procurements.POST("/:id/receive", h.Action("procurement_receive", procurement.ReceiveGoods))
			procurements.POST("/:id/match-invoice", h.Action("procurement_match_invoice", procurement.MatchInvoice))
			procurements.POST("/:id/pay", h.Action("procurement_pay", procurement.ProcessPayment))
			procurements.POST("/:id/update-stock", h.Action("procurement_update_stock", procurement.UpdateStock))
		}

		// Stock transfer
		transfer := s.services.Transfer
		transfers := api.Group("/transfers")
		{
			transfers.POST("", h.Start(transfer.Start))
			transfers.POST("/:id/approve", h.Action("transfer_approve", transfer.Approve))
			transfers.POST("/:id/reject", h.Action("transfer_reject", transfer.Reject))
			transfers.POST("/:id/pick", h.Action("transfer_pick", transfer.PickStock))
			transfers.POST("/:id/cancel", h.Action("transfer_cancel", transfer.Cancel))
			transfers.POST("/:id/quality-check", h.Action("transfer_quality_check", transfer.PerformQualityCheck))
			transfers.POST("/:id/dispatch", h.Action("transfer_dispatch", transfer.Dispatch))
			transfers.POST("/:id/receive", h.Action("transfer_receive", transfer.ReceiveGoods))
			transfers.POST("/:id/inspect", h.Action("transfer_inspect", transfer.Inspect))
			transfers.POST("/:id/resolve", h.Action("transfer_resolve", transfer.ResolveDiscrepancy))
			transfers.POST("/:id/post", h.Action("transfer_post", transfer.PostStock))
		}

		// Stock audit
		audit := s.services.Audit
		audits := api.Group("/audits")
		{
			audits.POST("", h.Start(audit.Start))
			audits.POST("/:id/begin-count", h.Action("audit_begin_count", audit.BeginCount))
			audits.POST("/:id/cancel", h.Action("audit_cancel", audit.Cancel))
			audits.POST("/:id/record-counts", h.Action("audit_record_counts", audit.RecordCounts))
			audits.POST("/:id/analyze", h.Action("audit_analyze", audit.AnalyzeVariances))
			audits.POST("/:id/close-investigation", h.Action("audit_close_investigation", audit.CloseInvestigation))
			audits.POST("/:id/propose", h.Action("audit_propose", audit.ProposeAdjustments))
			audits.POST("/:id/approve", h.Action("audit_approve", audit.ApproveAdjustments))
			audits.POST("/:id/reject", h.Action("audit_reject", audit.RejectAdjustments))
			audits.POST("/:id/apply", h.Action("audit_apply", audit.ApplyAdjustments))
		}

		// Term scheduling
		term := s.services.TermSchedule
		terms := api.Group("/term-schedules")
		{
			terms.POST("", h.Start(term.Start))
			terms.POST("/:id/map-holidays", h.Action("term_map_holidays", term.MapHolidays))
			terms.POST("/:id/cancel", h.Action("term_cancel", term.Cancel))
			terms.POST("/:id/submit-review", h.Action("term_submit_review", term.SubmitForReview))
			terms.POST("/:id/complete-review", h.Action("term_complete_review", term.CompleteReview))
			terms.POST("/:id/approve", h.Action("term_approve", term.ApproveCalendar))
			terms.POST("/:id/reject", h.Action("term_reject", term.RejectCalendar))
			terms.POST("/:id/publish", h.Action("term_publish", term.Publish))
		}

		// Class timetabling
		timetable := s.services.Timetable
		timetables := api.Group("/timetables")
		{
			timetables.POST("", h.Start(timetable.Start))
			timetables.POST("/:id/allocate", h.Action("timetable_allocate", timetable.AllocateSlots))
			timetables.POST("/:id/cancel", h.Action("timetable_cancel", timetable.Cancel))
			timetables.POST("/:id/clash-check", h.Action("timetable_clash_check", timetable.SubmitForClashCheck))
			timetables.POST("/:id/record-clashes", h.Action("timetable_record_clashes", timetable.RecordClashResults))
			timetables.POST("/:id/confirm-teachers", h.Action("timetable_confirm_teachers", timetable.ConfirmTeachers))
			timetables.POST("/:id/reallocate", h.Action("timetable_reallocate", timetable.RequestReallocation))
			timetables.POST("/:id/approve", h.Action("timetable_approve", timetable.ApproveTimetable))
			timetables.POST("/:id/reject", h.Action("timetable_reject", timetable.RejectTimetable))
			timetables.POST("/:id/publish", h.Action("timetable_publish", timetable.Publish))
		}
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
