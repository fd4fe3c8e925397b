package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NicolasHaas/matchadmin/pkg/model"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAPIStatus(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(adminP, aliceP, bobP)
	f.srv.mapName = "de_inferno"
	f.chat(aliceP, ".voterestart")

	rec := get(t, f.srv.Router(), "/api/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var got StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "de_inferno", got.Map)
	assert.True(t, got.HostConnected)
	assert.Equal(t, 3, got.Players)
	require.NotNil(t, got.Vote)
	assert.Equal(t, "restart", got.Vote.Type)
	assert.Equal(t, 1, got.Vote.Yes)
}

func TestAPIPunishmentLookup(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.srv.ledger.Ban(model.Actor{ID: bobP.SteamID, Name: bobP.Name}, model.Console, 2*time.Hour, "smurfing")
	require.NoError(t, err)
	h := f.srv.Router()

	tests := map[string]struct {
		path string
		code int
	}{
		"active ban": {path: "/api/v1/bans/76561198000000003", code: http.StatusOK},
		"no ban":     {path: "/api/v1/bans/76561198000000002", code: http.StatusNotFound},
		"no mute":    {path: "/api/v1/mutes/76561198000000003", code: http.StatusNotFound},
		"bad id":     {path: "/api/v1/bans/abc", code: http.StatusBadRequest},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			rec := get(t, h, tc.path)
			assert.Equal(t, tc.code, rec.Code, rec.Body.String())
		})
	}

	var ban model.Punishment
	rec := get(t, h, "/api/v1/bans/76561198000000003")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ban))
	assert.Equal(t, "smurfing", ban.Reason)
}

func TestAPIAuditLimit(t *testing.T) {
	f := newFixture(t, nil)
	f.makeAdmin(t, adminP)
	for i := range 3 {
		_, err := f.srv.ledger.Mute(model.Actor{ID: uint64(76561198000000010 + i), Name: "p"}, model.Console, time.Minute, "")
		require.NoError(t, err)
	}
	h := f.srv.Router()

	rec := get(t, h, "/api/v1/audit?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []model.AuditEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Len(t, entries, 2)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/v1/audit?limit=-1").Code)
}

func TestAPIEmptyListsAreArrays(t *testing.T) {
	f := newFixture(t, nil)
	h := f.srv.Router()
	for _, path := range []string{"/api/v1/admins", "/api/v1/groups"} {
		rec := get(t, h, path)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()), path)
	}
}

func TestPrometheusMetrics(t *testing.T) {
	f := newFixture(t, nil)
	f.srv.metrics.BanCount.Add(2)

	rec := get(t, f.srv.Router(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "matchadmin_bans_total 2\n")
	assert.Contains(t, rec.Body.String(), "# TYPE matchadmin_bridge_active gauge\n")
}
