package charging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/smartcharge/core/control"
	"github.com/kilianp07/smartcharge/core/journal"
	"github.com/kilianp07/smartcharge/core/model"
)

type fakeController struct {
	update  control.Update
	log     []string
	inputs  map[string]string
	cleared bool
	refresh bool
}

func (f *fakeController) Status() control.Update { return f.update }
func (f *fakeController) ActionLog() []string    { return f.log }
func (f *fakeController) DebugDump() control.Dump {
	return control.Dump{Timestamp: time.Date(2025, 1, 10, 0, 45, 0, 0, time.UTC), VirtualSoC: model.VirtualSoCState{Value: 58}}
}
func (f *fakeController) SetUserInput(key, value string) error {
	if key == "min_soc" && value == "150" {
		return fmt.Errorf("%w for %s: out of range", control.ErrInvalidValue, key)
	}
	if f.inputs == nil {
		f.inputs = map[string]string{}
	}
	f.inputs[key] = value
	return nil
}
func (f *fakeController) ClearManualOverride() { f.cleared = true }
func (f *fakeController) RequestRefresh()      { f.refresh = true }

type memJournal struct {
	journal.NopStore
	recs []journal.Record
	last journal.Query
}

func (m *memJournal) Query(_ context.Context, q journal.Query) ([]journal.Record, error) {
	m.last = q
	return m.recs, nil
}

func serve(h http.Handler, method, target, body, token string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	h.ServeHTTP(rr, req)
	return rr
}

func TestStatus(t *testing.T) {
	ctrl := &fakeController{update: control.Update{Status: control.StatusCharging, Plan: control.PlanActive, SafeCurrentA: 16}}
	h := NewHandler(ctrl, nil, "")
	rr := serve(h, http.MethodGet, "/api/charging/status", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var out control.Update
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, "Charging", out.Status)
	assert.Equal(t, 16.0, out.SafeCurrentA)
}

func TestAuthRequired(t *testing.T) {
	h := NewHandler(&fakeController{}, nil, "secret")
	rr := serve(h, http.MethodGet, "/api/charging/status", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	rr = serve(h, http.MethodGet, "/api/charging/status", "", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	rr = serve(h, http.MethodGet, "/api/charging/status", "", "secret")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestActionLogEmptyArray(t *testing.T) {
	h := NewHandler(&fakeController{}, nil, "")
	rr := serve(h, http.MethodGet, "/api/charging/log", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]\n", rr.Body.String())
}

func TestDebugDumpFormats(t *testing.T) {
	h := NewHandler(&fakeController{}, nil, "")
	rr := serve(h, http.MethodGet, "/api/charging/debug", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	d, err := control.DecodeDump(rr.Body.Bytes(), "json")
	require.NoError(t, err)
	assert.Equal(t, 58.0, d.VirtualSoC.Value)

	rr = serve(h, http.MethodGet, "/api/charging/debug?format=yaml", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/yaml", rr.Header().Get("Content-Type"))
	d, err = control.DecodeDump(rr.Body.Bytes(), "yaml")
	require.NoError(t, err)
	assert.Equal(t, 58.0, d.VirtualSoC.Value)

	rr = serve(h, http.MethodGet, "/api/charging/debug?format=xml", "", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestJournalQuery(t *testing.T) {
	store := &memJournal{recs: []journal.Record{{Kind: journal.KindAction, Message: "Started"}}}
	h := NewHandler(&fakeController{}, store, "")
	rr := serve(h, http.MethodGet, "/api/charging/journal?kind=action&start=2025-01-10T00:00:00Z", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var out []journal.Record
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, journal.KindAction, store.last.Kind)
	assert.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), store.last.Start)

	rr = serve(h, http.MethodGet, "/api/charging/journal?kind=other", "", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = serve(h, http.MethodGet, "/api/charging/journal?end=yesterday", "", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSettings(t *testing.T) {
	ctrl := &fakeController{}
	h := NewHandler(ctrl, nil, "")
	rr := serve(h, http.MethodPost, "/api/charging/settings", `{"target_soc":85,"smart_charging":false,"departure_time":"06:30"}`, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]string{"target_soc": "85", "smart_charging": "false", "departure_time": "06:30"}, ctrl.inputs)

	var res settingsResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, []string{"departure_time", "smart_charging", "target_soc"}, res.Applied)
}

func TestSettingsRejectsUnknownKey(t *testing.T) {
	ctrl := &fakeController{}
	h := NewHandler(ctrl, nil, "")
	rr := serve(h, http.MethodPost, "/api/charging/settings", `{"target_soc":85,"colour":"red"}`, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, ctrl.inputs)
}

func TestSettingsInvalidValue(t *testing.T) {
	ctrl := &fakeController{}
	h := NewHandler(ctrl, nil, "")
	rr := serve(h, http.MethodPost, "/api/charging/settings", `{"min_soc":150,"departure_time":"06:00"}`, "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	var res settingsResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, []string{"departure_time"}, res.Applied)
	assert.Contains(t, res.Error, "min_soc")

	rr = serve(h, http.MethodPost, "/api/charging/settings", `not json`, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestButtons(t *testing.T) {
	ctrl := &fakeController{}
	h := NewHandler(ctrl, nil, "")
	rr := serve(h, http.MethodPost, "/api/charging/override/clear", "", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.True(t, ctrl.cleared)
	rr = serve(h, http.MethodPost, "/api/charging/refresh", "", "")
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.True(t, ctrl.refresh)

	rr = serve(h, http.MethodGet, "/api/charging/refresh", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
