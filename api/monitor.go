/*
monitor.go - Periodic overdue sweep

PURPOSE:
  Evaluates every tenant's rent status on an interval and keeps the last
  result for GET /api/overdue and the rent_overdue_tenants gauge. The
  sweep only reads; it never changes payment rows.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Sweeps once immediately on Start
  - Tenants whose lease cannot be merged are skipped
  - Stop waits for an in-flight sweep to finish

USAGE:
  monitor := NewOverdueMonitor(handler, time.Hour)
  monitor.Start()
  defer monitor.Stop()

SEE ALSO:
  - rent/status.go: StatusEvaluator
*/
package api

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/rent-engine/metrics"
	"github.com/warp/rent-engine/rent"
)

// OverdueTenant is one overdue tenant found by a sweep.
type OverdueTenant struct {
	TenantID    string          `json:"tenant_id"`
	Name        string          `json:"name"`
	PaymentID   string          `json:"payment_id"`
	DueDate     string          `json:"due_date"`
	AmountDue   decimal.Decimal `json:"amount_due"`
	DaysOverdue int             `json:"days_overdue"`
}

// SweepResult is the outcome of one overdue sweep.
type SweepResult struct {
	RunAt          time.Time       `json:"run_at"`
	AsOf           string          `json:"as_of"`
	TenantsChecked int             `json:"tenants_checked"`
	Overdue        []OverdueTenant `json:"overdue"`
}

// OverdueMonitor sweeps tenant statuses in the background.
type OverdueMonitor struct {
	Handler       *Handler
	CheckInterval time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastMu sync.RWMutex
	last   *SweepResult
}

// NewOverdueMonitor creates a monitor; an interval <= 0 means hourly.
func NewOverdueMonitor(h *Handler, interval time.Duration) *OverdueMonitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &OverdueMonitor{Handler: h, CheckInterval: interval}
}

// Start begins periodic sweeps. Calling Start twice is a no-op.
func (m *OverdueMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ticker != nil {
		return
	}

	m.ticker = time.NewTicker(m.CheckInterval)
	m.stop = make(chan struct{})
	m.wg.Add(1)
	go m.run(m.ticker, m.stop)

	m.Handler.Logger.Info("overdue monitor started", zap.Duration("interval", m.CheckInterval))
}

// Stop halts the sweeps and waits for the running one.
func (m *OverdueMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ticker == nil {
		return
	}
	m.ticker.Stop()
	close(m.stop)
	m.wg.Wait()
	m.ticker = nil
	m.Handler.Logger.Info("overdue monitor stopped")
}

func (m *OverdueMonitor) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer m.wg.Done()

	m.RunNow(context.Background())
	for {
		select {
		case <-ticker.C:
			m.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow sweeps immediately and stores the result.
func (m *OverdueMonitor) RunNow(ctx context.Context) SweepResult {
	h := m.Handler
	today := h.today()
	result := SweepResult{RunAt: h.Clock().UTC(), AsOf: today.String(), Overdue: []OverdueTenant{}}

	tenants, err := h.Store.ListTenants(ctx)
	if err != nil {
		h.Logger.Warn("overdue sweep could not list tenants", zap.Error(err))
		return m.store(result)
	}

	for _, t := range tenants {
		if t.Lease.Start.IsZero() {
			continue
		}
		lease := t.Lease
		if lease.TenantID == "" {
			lease.TenantID = t.ID
		}
		result.TenantsChecked++
		status := h.Status.EvaluateAt(ctx, lease, today)
		if status.Status != rent.StatusOverdue || status.Payment == nil {
			continue
		}
		result.Overdue = append(result.Overdue, OverdueTenant{
			TenantID:    string(t.ID),
			Name:        t.Name,
			PaymentID:   string(status.Payment.ID),
			DueDate:     status.Payment.DueDate.String(),
			AmountDue:   status.Payment.AmountDue,
			DaysOverdue: *status.DaysOverdue,
		})
	}
	sort.Slice(result.Overdue, func(i, j int) bool {
		if result.Overdue[i].DaysOverdue != result.Overdue[j].DaysOverdue {
			return result.Overdue[i].DaysOverdue > result.Overdue[j].DaysOverdue
		}
		return result.Overdue[i].TenantID < result.Overdue[j].TenantID
	})

	metrics.SetOverdueTenants(len(result.Overdue))
	h.Logger.Info("overdue sweep finished",
		zap.String("as_of", result.AsOf),
		zap.Int("tenants", result.TenantsChecked),
		zap.Int("overdue", len(result.Overdue)),
	)
	return m.store(result)
}

func (m *OverdueMonitor) store(r SweepResult) SweepResult {
	m.lastMu.Lock()
	defer m.lastMu.Unlock()
	m.last = &r
	return r
}

// Last returns the most recent sweep, or nil before the first one.
func (m *OverdueMonitor) Last() *SweepResult {
	m.lastMu.RLock()
	defer m.lastMu.RUnlock()
	return m.last
}

// GetOverdue serves the most recent sweep, running one if none exists
// or ?refresh=true is passed.
// GET /api/overdue
func (m *OverdueMonitor) GetOverdue(w http.ResponseWriter, r *http.Request) {
	last := m.Last()
	if last == nil || r.URL.Query().Get("refresh") == "true" {
		res := m.RunNow(r.Context())
		last = &res
	}
	writeJSON(w, http.StatusOK, last)
}
