/*
handlers.go - HTTP API handlers for the rent engine

PURPOSE:
  Exposes period generation, payment recording, status, cash flow and
  invoicing over REST. Handles request parsing and JSON serialization and
  delegates to the rent package components.

ENDPOINTS:
  System:
    GET    /api/health                       Store capability and version
    GET    /api/overdue                      Last overdue sweep (?refresh=true)

  Directory:
    GET    /api/properties                   List properties
    POST   /api/properties                   Create property
    GET    /api/tenants                      List tenants
    POST   /api/tenants                      Create tenant + payment schedule
    GET    /api/tenants/{id}                 Tenant with merged lease

  Rent:
    GET    /api/tenants/{id}/payments        Payment rows by due date
    GET    /api/tenants/{id}/status          Current or overdue (?on=YYYY-MM-DD)
    GET    /api/tenants/{id}/cashflow        Projection (?from&to&format=json|xlsx)
    POST   /api/schedules/preview            Generate periods without storing
    POST   /api/payments/{id}/record         Record a payment
    POST   /api/payments/{id}/invoice        Allocate an invoice number
    GET    /api/payments/{id}/invoice.pdf    Invoice PDF

READ PATHS:
  payments, status and cashflow never fail because of the store; they
  answer with empty or "current" results when the payment tables are
  missing.

ERROR HANDLING:
  Errors are returned as JSON with a status chosen by statusFor:
  - 400: Validation errors, invalid input
  - 404: Tenant, property or payment not found
  - 409: Duplicate period, payment already recorded
  - 503: Payment tables missing on a write
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - export.go: PDF and XLSX rendering
  - scenarios.go: Demo portfolios
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/rent-engine/factory"
	"github.com/warp/rent-engine/logger"
	"github.com/warp/rent-engine/metrics"
	"github.com/warp/rent-engine/rent"
	"github.com/warp/rent-engine/store/sqldb"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqldb.Store
	Leases    *factory.LeaseFactory
	Scheduler *rent.Scheduler
	Status    *rent.StatusEvaluator
	CashFlow  *rent.CashFlowProjector
	Invoices  *rent.InvoiceAllocator
	Logger    *zap.Logger
	Clock     func() time.Time
	Version   string

	mu              sync.Mutex
	currentScenario string
}

// Options configures a Handler. Zero values pick defaults.
type Options struct {
	Logger   *zap.Logger
	Numberer rent.InvoiceNumberer
	Clock    func() time.Time
	Version  string
}

// NewHandler wires the rent components over store.
func NewHandler(store *sqldb.Store, opts Options) *Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	status := rent.NewStatusEvaluator(store, log)
	status.Clock = clock
	cashFlow := rent.NewCashFlowProjector(store, log)
	cashFlow.Clock = clock
	invoices := rent.NewInvoiceAllocator(store, log)
	invoices.Clock = clock
	if opts.Numberer != nil {
		invoices.Numberer = opts.Numberer
	}

	return &Handler{
		Store:     store,
		Leases:    factory.NewLeaseFactory(),
		Scheduler: rent.NewScheduler(store, log),
		Status:    status,
		CashFlow:  cashFlow,
		Invoices:  invoices,
		Logger:    log,
		Clock:     clock,
		Version:   opts.Version,
	}
}

func (h *Handler) today() rent.Date {
	return rent.Today(h.Clock)
}

// =============================================================================
// SYSTEM
// =============================================================================

// Health reports the payment store capability.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	capability := h.Store.Capability(r.Context())
	status := "ok"
	if capability != rent.CapabilityAvailable {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, HealthDTO{
		Status:     status,
		Store:      h.Store.Dialect().Name(),
		Capability: capability.String(),
		Version:    h.Version,
	})
}

// =============================================================================
// PROPERTY HANDLERS
// =============================================================================

// ListProperties returns all properties.
func (h *Handler) ListProperties(w http.ResponseWriter, r *http.Request) {
	properties, err := h.Store.ListProperties(r.Context())
	if err != nil {
		h.writeFailure(w, r, "Failed to list properties", err)
		return
	}
	writeJSON(w, http.StatusOK, properties)
}

// CreateProperty creates or updates a property.
func (h *Handler) CreateProperty(w http.ResponseWriter, r *http.Request) {
	var req CreatePropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Address) == "" {
		writeError(w, http.StatusBadRequest, "address is required", nil)
		return
	}
	if req.ID == "" {
		req.ID = "prop-" + uuid.NewString()
	}

	p := sqldb.Property{ID: rent.PropertyID(req.ID), Name: req.Name, Address: req.Address}
	if err := h.Store.SaveProperty(r.Context(), p); err != nil {
		h.writeFailure(w, r, "Failed to create property", err)
		return
	}
	saved, err := h.Store.GetProperty(r.Context(), p.ID)
	if err != nil {
		h.writeFailure(w, r, "Failed to load property", err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// =============================================================================
// TENANT HANDLERS
// =============================================================================

// ListTenants returns all tenants.
func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.Store.ListTenants(r.Context())
	if err != nil {
		h.writeFailure(w, r, "Failed to list tenants", err)
		return
	}
	dtos := make([]TenantDTO, len(tenants))
	for i, t := range tenants {
		dtos[i] = h.toTenantDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetTenant returns a tenant with its merged lease.
func (h *Handler) GetTenant(w http.ResponseWriter, r *http.Request) {
	t, err := h.Store.GetTenant(r.Context(), rent.TenantID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeFailure(w, r, "Failed to get tenant", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toTenantDTO(*t))
}

// CreateTenant stores a tenant and generates its payment schedule.
//
// The lease is validated and its periods generated before anything is
// written. An existing tenant ID fails with 409 and leaves the stored lease
// and its payments untouched. A tenant whose schedule cannot be inserted is
// removed again.
func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if req.PropertyID == "" {
		writeError(w, http.StatusBadRequest, "property_id is required", nil)
		return
	}
	if _, err := h.Store.GetProperty(ctx, rent.PropertyID(req.PropertyID)); err != nil {
		h.writeFailure(w, r, "Unknown property", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	doc := req.Lease
	if len(doc) == 0 {
		doc = req.Details
	}
	lease, err := h.Leases.MergeLease(factory.LeaseColumns{
		TenantID:   rent.TenantID(req.ID),
		PropertyID: rent.PropertyID(req.PropertyID),
	}, doc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid lease", err)
		return
	}
	if _, err := h.Scheduler.Preview(lease); err != nil {
		h.writeFailure(w, r, "Invalid lease", err)
		return
	}

	switch _, err := h.Store.GetTenant(ctx, lease.TenantID); {
	case err == nil:
		h.writeFailure(w, r, "Tenant already exists", rent.ErrTenantExists)
		return
	case !errors.Is(err, rent.ErrTenantNotFound):
		h.writeFailure(w, r, "Failed to check tenant", err)
		return
	}

	tenant := sqldb.Tenant{
		ID:         lease.TenantID,
		PropertyID: lease.PropertyID,
		Name:       req.Name,
		Email:      req.Email,
		Lease:      lease,
		Details:    req.Details,
	}
	if err := h.Store.SaveTenant(ctx, tenant); err != nil {
		h.writeFailure(w, r, "Failed to save tenant", err)
		return
	}

	start := time.Now()
	periods, err := h.Scheduler.CreateSchedule(ctx, lease)
	metrics.ObserveSchedule(metrics.Result(err), len(periods), time.Since(start))
	if err != nil {
		if delErr := h.Store.DeleteTenant(ctx, tenant.ID); delErr != nil {
			h.Logger.Warn("failed to remove tenant after schedule failure",
				zap.String("tenant_id", string(tenant.ID)), zap.Error(delErr))
		}
		h.writeFailure(w, r, "Failed to create payment schedule", err)
		return
	}

	saved, err := h.Store.GetTenant(ctx, tenant.ID)
	if err != nil {
		h.writeFailure(w, r, "Failed to load tenant", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateTenantResponse{
		Tenant:   h.toTenantDTO(*saved),
		Schedule: toScheduleDTO(periods),
	})
}

// =============================================================================
// RENT HANDLERS
// =============================================================================

// GetPayments lists the tenant's payment rows.
func (h *Handler) GetPayments(w http.ResponseWriter, r *http.Request) {
	tenantID := rent.TenantID(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, PaymentsDTO{
		TenantID: string(tenantID),
		Payments: h.Scheduler.Payments(r.Context(), tenantID),
	})
}

// GetStatus classifies the tenant's current period.
// GET /api/tenants/{id}/status?on=2024-03-15
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	on := h.today()
	if v := r.URL.Query().Get("on"); v != "" {
		d, err := rent.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid on date (use YYYY-MM-DD)", err)
			return
		}
		on = d
	}

	t, err := h.Store.GetTenant(ctx, rent.TenantID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeFailure(w, r, "Failed to get tenant", err)
		return
	}
	lease := t.Lease
	if lease.TenantID == "" {
		lease.TenantID = t.ID
	}

	result := h.Status.EvaluateAt(ctx, lease, on)
	metrics.IncStatusEvaluation(string(result.Status))
	writeJSON(w, http.StatusOK, StatusDTO{
		TenantID:         string(t.ID),
		AsOf:             on.String(),
		RentStatusResult: result,
	})
}

// GetCashFlow projects scheduled rent for a tenant.
// GET /api/tenants/{id}/cashflow?from=2024-01-01&to=2024-12-31&format=xlsx
func (h *Handler) GetCashFlow(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tenantID := rent.TenantID(chi.URLParam(r, "id"))

	from := h.today()
	if v := q.Get("from"); v != "" {
		d, err := rent.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
			return
		}
		from = d
	}
	var to *rent.Date
	if v := q.Get("to"); v != "" {
		d, err := rent.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
			return
		}
		if d.Before(from) {
			writeError(w, http.StatusBadRequest, "to must not be before from", nil)
			return
		}
		to = &d
	}

	format := strings.ToLower(q.Get("format"))
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "xlsx" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unsupported format %q (use json or xlsx)", format), nil)
		return
	}

	entries := h.CashFlow.Project(r.Context(), tenantID, from, to)
	metrics.IncCashFlowProjection(format)
	dto := CashFlowDTO{
		TenantID: string(tenantID),
		From:     from.String(),
		Entries:  entries,
		Summary:  rent.Summarize(entries),
	}
	if to != nil {
		dto.To = to.String()
	}

	if format == "json" {
		writeJSON(w, http.StatusOK, dto)
		return
	}

	start := time.Now()
	data, err := BuildCashFlowXLSX(dto)
	metrics.ObserveExport("xlsx", metrics.Result(err), time.Since(start))
	if err != nil {
		h.writeFailure(w, r, "Failed to render cash flow", err)
		return
	}
	writeAttachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		fmt.Sprintf("cashflow-%s-%s.xlsx", tenantID, from), data)
}

// PreviewSchedule generates periods for a lease document without storing
// anything.
func (h *Handler) PreviewSchedule(w http.ResponseWriter, r *http.Request) {
	var doc json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	lease, err := h.Leases.MergeLease(factory.LeaseColumns{TenantID: "preview"}, doc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid lease", err)
		return
	}
	periods, err := h.Scheduler.Preview(lease)
	if err != nil {
		h.writeFailure(w, r, "Failed to generate schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleDTO(periods))
}

// RecordPayment marks a pending period paid.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	paymentDate := h.today()
	if req.PaymentDate != "" {
		d, err := rent.ParseDate(req.PaymentDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid payment_date (use YYYY-MM-DD)", err)
			return
		}
		paymentDate = d
	}

	rec := rent.PaymentRecord{
		PaymentID:        rent.PaymentID(chi.URLParam(r, "id")),
		AmountPaid:       req.AmountPaid,
		PaymentDate:      paymentDate,
		PaymentMethod:    req.PaymentMethod,
		PaymentReference: req.PaymentReference,
		Notes:            req.Notes,
	}
	err := h.Scheduler.RecordPayment(r.Context(), rec)
	metrics.IncPaymentRecorded(metrics.Result(err))
	if err != nil {
		h.writeFailure(w, r, "Failed to record payment", err)
		return
	}

	joined, err := h.Store.PaymentForInvoice(r.Context(), rec.PaymentID)
	if err != nil || joined == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": string(rent.PaymentPaid)})
		return
	}
	writeJSON(w, http.StatusOK, joined.Payment)
}

// GenerateInvoice allocates and stamps an invoice number.
func (h *Handler) GenerateInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Invoices.Generate(r.Context(), rent.PaymentID(chi.URLParam(r, "id")))
	metrics.IncInvoiceGenerated(metrics.Result(err))
	if err != nil {
		h.writeFailure(w, r, "Failed to generate invoice", err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

// GetInvoicePDF renders the payment's invoice, allocating a number first
// when the payment has none.
func (h *Handler) GetInvoicePDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	paymentID := rent.PaymentID(chi.URLParam(r, "id"))

	joined, err := h.Store.PaymentForInvoice(ctx, paymentID)
	if err != nil {
		h.writeFailure(w, r, "Failed to load payment", err)
		return
	}
	if joined == nil {
		writeError(w, http.StatusNotFound, "Payment not found", rent.ErrPaymentNotFound)
		return
	}

	var inv *rent.Invoice
	if joined.Payment.InvoiceNumber != "" && joined.Payment.InvoiceGeneratedAt != nil {
		inv = &rent.Invoice{
			Number:          joined.Payment.InvoiceNumber,
			GeneratedAt:     *joined.Payment.InvoiceGeneratedAt,
			Payment:         joined.Payment,
			TenantName:      joined.TenantName,
			PropertyAddress: joined.PropertyAddress,
		}
	} else {
		inv, err = h.Invoices.Generate(ctx, paymentID)
		metrics.IncInvoiceGenerated(metrics.Result(err))
		if err != nil {
			h.writeFailure(w, r, "Failed to generate invoice", err)
			return
		}
	}

	start := time.Now()
	data, err := BuildInvoicePDF(inv)
	metrics.ObserveExport("pdf", metrics.Result(err), time.Since(start))
	if err != nil {
		h.writeFailure(w, r, "Failed to render invoice", err)
		return
	}
	writeAttachment(w, "application/pdf", inv.Number+".pdf", data)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) toTenantDTO(t sqldb.Tenant) TenantDTO {
	dto := TenantDTO{
		ID:         string(t.ID),
		PropertyID: string(t.PropertyID),
		Name:       t.Name,
		Email:      t.Email,
		CreatedAt:  t.CreatedAt.Format(time.RFC3339),
	}
	if !t.Lease.Start.IsZero() {
		lease := h.Leases.ToJSON(t.Lease)
		dto.Lease = &lease
	}
	return dto
}

func toScheduleDTO(periods []rent.BillingPeriod) ScheduleDTO {
	if periods == nil {
		periods = []rent.BillingPeriod{}
	}
	return ScheduleDTO{Periods: periods, Count: len(periods), TotalDue: rent.TotalDue(periods)}
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case rent.IsClientError(err):
		return http.StatusBadRequest
	case rent.IsNotFound(err):
		return http.StatusNotFound
	case rent.IsConflict(err):
		return http.StatusConflict
	case errors.Is(err, rent.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeFailure writes err with the status chosen by statusFor. Server
// errors are logged with the request's logger.
func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context(), h.Logger).Error(message, zap.Int("status", status), zap.Error(err))
	}
	writeError(w, status, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
