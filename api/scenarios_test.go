package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rent-engine/rent"
)

func TestResolveDate(t *testing.T) {
	today := rent.MustParseDate("2024-03-15")

	tests := []struct {
		in   string
		want string
	}{
		{"2024-01-01", "2024-01-01"},
		{"today", "2024-03-15"},
		{" today ", "2024-03-15"},
		{"today-40d", "2024-02-04"},
		{"today+11m", "2025-02-15"},
		{"month", "2024-03-01"},
		{"month-3m", "2023-12-01"},
		{"month+9m", "2024-12-01"},
		{"month-14m", "2023-01-01"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := resolveDate(tt.in, today)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}

	for _, bad := range []string{"yesterday", "today+3w", "today3d", "today+d", "2024-13-01"} {
		_, err := resolveDate(bad, today)
		assert.Error(t, err, bad)
	}
}

func TestResolveDate_ClampsToMonthEnd(t *testing.T) {
	got, err := resolveDate("today+1m", rent.MustParseDate("2024-01-31"))
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", got.String())
}

func TestResolveDocument(t *testing.T) {
	today := rent.MustParseDate("2024-03-15")
	doc := map[string]any{"leaseStart": "month-2m", "lease_end": "today+1m", "monthly_rent": "900"}

	raw, err := resolveDocument(doc, today)

	require.NoError(t, err)
	assert.JSONEq(t, `{"leaseStart": "2024-01-01", "lease_end": "2024-04-15", "monthly_rent": "900"}`, string(raw))
	assert.Equal(t, "month-2m", doc["leaseStart"], "input is not modified")

	_, err = resolveDocument(map[string]any{"lease_start": "someday"}, today)
	assert.Error(t, err)
}

func TestParseScenarios(t *testing.T) {
	all, err := builtinScenarios()
	require.NoError(t, err)
	require.NotEmpty(t, all)

	seen := map[string]bool{}
	for _, s := range all {
		assert.False(t, seen[s.ID], s.ID)
		seen[s.ID] = true
		assert.NotEmpty(t, s.Tenants, s.ID)
	}

	_, err = parseScenarios([]byte("scenarios:\n  - id: a\n  - id: a\n"))
	assert.Error(t, err)
	_, err = parseScenarios([]byte("scenarios:\n  - name: nameless\n"))
	assert.Error(t, err)
	_, err = parseScenarios([]byte("scenarios: [\n"))
	assert.Error(t, err)
}

func TestLoadScenario_EveryScenario(t *testing.T) {
	all, err := builtinScenarios()
	require.NoError(t, err)

	s := newTestServer(t)
	for _, sc := range all {
		t.Run(sc.ID, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: sc.ID})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			loaded := decode[ScenarioLoadedDTO](t, rec)
			assert.Equal(t, sc.ID, loaded.Scenario.ID)
			assert.Positive(t, loaded.Periods)

			rec = s.do(http.MethodGet, "/api/tenants", nil)
			tenants := decode[[]TenantDTO](t, rec)
			assert.Len(t, tenants, len(sc.Tenants), "previous scenario was reset")
			for _, tenant := range tenants {
				require.NotNil(t, tenant.Lease, tenant.ID)
				assert.NotEmpty(t, s.payments(tenant.ID), tenant.ID)
			}

			rec = s.do(http.MethodGet, "/api/scenarios/current", nil)
			assert.Equal(t, sc.ID, decode[ScenarioDTO](t, rec).ID)
		})
	}
}

func TestLoadScenario_Arrears(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "arrears"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 4, decode[ScenarioLoadedDTO](t, rec).Payments)

	rec = s.do(http.MethodGet, "/api/tenants/ten-barbara/status", nil)
	status := decode[StatusDTO](t, rec)
	assert.Equal(t, rent.StatusOverdue, status.Status)
	require.NotNil(t, status.DaysOverdue)
	assert.Equal(t, 14, *status.DaysOverdue)
}

func TestLoadScenario_LegacyDetails(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "legacy-details"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/tenants/ten-edsger", nil)
	tenant := decode[TenantDTO](t, rec)
	require.NotNil(t, tenant.Lease)
	assert.Equal(t, "2024-01-01", tenant.Lease.LeaseStart)
	assert.Equal(t, "1100", tenant.Lease.MonthlyRent.String())
	assert.Equal(t, 1, *tenant.Lease.RentDueDay)
}

func TestScenarios_ListResetUnknown(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[[]ScenarioDTO](t, rec))

	rec = s.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "single-flat"})
	rec = s.do(http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "null\n", rec.Body.String())
	rec = s.do(http.MethodGet, "/api/tenants", nil)
	assert.Empty(t, decode[[]TenantDTO](t, rec))
}
