/*
scenarios.go - Demo portfolios for testing and demonstrations

PURPOSE:

	Populates the store with properties, tenants and payment schedules
	that show specific behaviours: pro-rated move-ins, arrears, tenants
	whose lease only exists in the legacy details document.

DEFINITIONS:

	Scenarios are declared in scenarios.yaml, embedded at build time.
	Dates may be relative ("today-40d", "month+9m") so a freshly loaded
	demo always has current and overdue periods.

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Save properties
 3. Save each tenant and create its schedule through rent.Scheduler
 4. Record the listed payments against the generated periods

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "arrears"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.
*/
package api

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/warp/rent-engine/factory"
	"github.com/warp/rent-engine/rent"
	"github.com/warp/rent-engine/store/sqldb"
)

//go:embed scenarios.yaml
var scenarioYAML []byte

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenarioFile struct {
	Scenarios []scenarioSpec `yaml:"scenarios"`
}

type scenarioSpec struct {
	ID          string             `yaml:"id"`
	Name        string             `yaml:"name"`
	Description string             `yaml:"description"`
	Properties  []scenarioProperty `yaml:"properties"`
	Tenants     []scenarioTenant   `yaml:"tenants"`
}

type scenarioProperty struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
}

type scenarioTenant struct {
	ID         string            `yaml:"id"`
	PropertyID string            `yaml:"property_id"`
	Name       string            `yaml:"name"`
	Email      string            `yaml:"email"`
	Lease      map[string]any    `yaml:"lease"`
	Details    map[string]any    `yaml:"details"`
	Payments   []scenarioPayment `yaml:"payments"`
}

// scenarioPayment pays period Period of the generated schedule. Amount
// defaults to the amount due, Date to the due date.
type scenarioPayment struct {
	Period int    `yaml:"period"`
	Amount string `yaml:"amount"`
	Date   string `yaml:"date"`
	Method string `yaml:"method"`
}

var builtinScenarios = sync.OnceValues(func() ([]scenarioSpec, error) {
	return parseScenarios(scenarioYAML)
})

func parseScenarios(data []byte) ([]scenarioSpec, error) {
	var f scenarioFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse scenarios: %w", err)
	}
	seen := make(map[string]bool, len(f.Scenarios))
	for _, s := range f.Scenarios {
		if s.ID == "" || seen[s.ID] {
			return nil, fmt.Errorf("scenario id %q is empty or duplicated", s.ID)
		}
		seen[s.ID] = true
	}
	return f.Scenarios, nil
}

func (s scenarioSpec) dto() ScenarioDTO {
	return ScenarioDTO{ID: s.ID, Name: s.Name, Description: s.Description, Tenants: len(s.Tenants)}
}

func findScenario(id string) (scenarioSpec, bool, error) {
	all, err := builtinScenarios()
	if err != nil {
		return scenarioSpec{}, false, err
	}
	for _, s := range all {
		if s.ID == id {
			return s, true, nil
		}
	}
	return scenarioSpec{}, false, nil
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	all, err := builtinScenarios()
	if err != nil {
		h.writeFailure(w, r, "Failed to load scenarios", err)
		return
	}
	dtos := make([]ScenarioDTO, len(all))
	for i, s := range all {
		dtos[i] = s.dto()
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	id := h.currentScenario
	h.mu.Unlock()

	if id == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	s, ok, err := findScenario(id)
	if err != nil || !ok {
		writeJSON(w, http.StatusOK, ScenarioDTO{ID: id, Name: id})
		return
	}
	writeJSON(w, http.StatusOK, s.dto())
}

// LoadScenario resets the store and loads a scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	s, ok, err := findScenario(req.ScenarioID)
	if err != nil {
		h.writeFailure(w, r, "Failed to load scenarios", err)
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	result, err := h.loadScenario(r.Context(), s)
	if err != nil {
		h.writeFailure(w, r, fmt.Sprintf("Failed to load scenario %s", s.ID), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		h.writeFailure(w, r, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// LOADER
// =============================================================================

func (h *Handler) loadScenario(ctx context.Context, s scenarioSpec) (ScenarioLoadedDTO, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := ScenarioLoadedDTO{Scenario: s.dto()}
	if err := h.Store.Reset(ctx); err != nil {
		return out, err
	}
	h.currentScenario = ""
	today := h.today()

	for _, p := range s.Properties {
		prop := sqldb.Property{ID: rent.PropertyID(p.ID), Name: p.Name, Address: p.Address}
		if err := h.Store.SaveProperty(ctx, prop); err != nil {
			return out, err
		}
	}

	for _, t := range s.Tenants {
		periods, paid, err := h.loadScenarioTenant(ctx, t, today)
		if err != nil {
			return out, fmt.Errorf("tenant %s: %w", t.ID, err)
		}
		out.Periods += periods
		out.Payments += paid
	}

	h.currentScenario = s.ID
	h.Logger.Info("scenario loaded",
		zap.String("scenario", s.ID),
		zap.Int("periods", out.Periods),
		zap.Int("payments", out.Payments),
	)
	return out, nil
}

func (h *Handler) loadScenarioTenant(ctx context.Context, t scenarioTenant, today rent.Date) (int, int, error) {
	legacy := t.Lease == nil
	doc := t.Lease
	if legacy {
		doc = t.Details
	}
	raw, err := resolveDocument(doc, today)
	if err != nil {
		return 0, 0, err
	}

	lease, err := h.Leases.MergeLease(factory.LeaseColumns{
		TenantID:   rent.TenantID(t.ID),
		PropertyID: rent.PropertyID(t.PropertyID),
	}, raw)
	if err != nil {
		return 0, 0, err
	}

	tenant := sqldb.Tenant{
		ID:         rent.TenantID(t.ID),
		PropertyID: rent.PropertyID(t.PropertyID),
		Name:       t.Name,
		Email:      t.Email,
	}
	if legacy {
		tenant.Details = raw
	} else {
		tenant.Lease = lease
	}
	if err := h.Store.SaveTenant(ctx, tenant); err != nil {
		return 0, 0, err
	}

	periods, err := h.Scheduler.CreateSchedule(ctx, lease)
	if err != nil {
		return 0, 0, err
	}
	if len(t.Payments) == 0 {
		return len(periods), 0, nil
	}

	rows := h.Scheduler.Payments(ctx, lease.TenantID)
	for _, sp := range t.Payments {
		if sp.Period < 0 || sp.Period >= len(rows) {
			return 0, 0, fmt.Errorf("payment for period %d, schedule has %d", sp.Period, len(rows))
		}
		row := rows[sp.Period]
		rec := rent.PaymentRecord{
			PaymentID:     row.ID,
			AmountPaid:    row.AmountDue,
			PaymentDate:   row.DueDate,
			PaymentMethod: sp.Method,
		}
		if sp.Amount != "" {
			if rec.AmountPaid, err = decimal.NewFromString(sp.Amount); err != nil {
				return 0, 0, fmt.Errorf("payment amount %q: %w", sp.Amount, err)
			}
		}
		if sp.Date != "" {
			if rec.PaymentDate, err = resolveDate(sp.Date, today); err != nil {
				return 0, 0, err
			}
		}
		if err := h.Scheduler.RecordPayment(ctx, rec); err != nil {
			return 0, 0, err
		}
	}
	return len(periods), len(t.Payments), nil
}

// =============================================================================
// RELATIVE DATES
// =============================================================================

var documentDateKeys = []string{"lease_start", "lease_end", "leaseStart", "leaseEnd"}

// resolveDocument resolves relative dates in a lease document and
// encodes it as JSON.
func resolveDocument(doc map[string]any, today rent.Date) (json.RawMessage, error) {
	resolved := make(map[string]any, len(doc))
	for k, v := range doc {
		resolved[k] = v
	}
	for _, key := range documentDateKeys {
		switch v := resolved[key].(type) {
		case string:
			d, err := resolveDate(v, today)
			if err != nil {
				return nil, err
			}
			resolved[key] = d.String()
		case time.Time:
			resolved[key] = rent.DateOf(v).String()
		}
	}
	return json.Marshal(resolved)
}

// resolveDate accepts YYYY-MM-DD or an anchor ("today", "month") followed
// by an optional signed offset in days ("d") or months ("m").
func resolveDate(s string, today rent.Date) (rent.Date, error) {
	s = strings.TrimSpace(s)
	if d, err := rent.ParseDate(s); err == nil {
		return d, nil
	}

	var base rent.Date
	var rest string
	switch {
	case strings.HasPrefix(s, "today"):
		base, rest = today, strings.TrimPrefix(s, "today")
	case strings.HasPrefix(s, "month"):
		base, rest = today.StartOfMonth(), strings.TrimPrefix(s, "month")
	default:
		return rent.Date{}, fmt.Errorf("invalid scenario date %q", s)
	}
	if rest == "" {
		return base, nil
	}

	unit := rest[len(rest)-1]
	n, err := strconv.Atoi(rest[:len(rest)-1])
	if err != nil || (rest[0] != '+' && rest[0] != '-') {
		return rent.Date{}, fmt.Errorf("invalid scenario date offset %q", s)
	}
	switch unit {
	case 'd':
		return base.AddDays(n), nil
	case 'm':
		return rent.AnchorInMonth(base.Year(), base.Month()+time.Month(n), base.Day()), nil
	default:
		return rent.Date{}, fmt.Errorf("invalid scenario date unit %q", s)
	}
}
