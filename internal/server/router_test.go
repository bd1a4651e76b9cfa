package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pb-analyzer/internal/analysis"
	"pb-analyzer/internal/server"
)

const salesSchema = `{"Entities":[{"Name":"Sales","Properties":[
  {"Name":"Region","Column":{}},
  {"Name":"Amount","Column":{}},
  {"Name":"Cost","Hidden":true,"Column":{}}
]}]}`

const amountVisual = `{"Select":[{"Column":{"Expression":{"SourceRef":{"Entity":"Sales"}},"Property":"Amount"}}]}`

func post(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/v1/analyze", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(server.NewRouter(nil, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAnalyze(t *testing.T) {
	srv := httptest.NewServer(server.NewRouter(nil, analysis.New()))
	defer srv.Close()

	resp := post(t, srv, `{"report_id":"r-1","report_name":"Sales","schema":`+salesSchema+`,"exploration":`+amountVisual+`}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var res analysis.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, "r-1", res.ReportID)
	assert.Equal(t, []string{"Sales.Cost", "Sales.Region"}, res.UnusedColumns)
	assert.Equal(t, 1, res.HiddenColumnCount)
}

func TestAnalyzeWithoutExploration(t *testing.T) {
	srv := httptest.NewServer(server.NewRouter(nil, nil))
	defer srv.Close()

	resp := post(t, srv, `{"report_id":"r-2","schema":`+salesSchema+`}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res analysis.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, res.AllColumns, res.UnusedColumns)
}

func TestAnalyzeErrors(t *testing.T) {
	srv := httptest.NewServer(server.NewRouter(nil, nil))
	defer srv.Close()

	tests := []struct {
		name   string
		body   string
		status int
		kind   string
	}{
		{"not json", `{`, http.StatusBadRequest, ""},
		{"no schema", `{"report_id":"x"}`, http.StatusBadRequest, ""},
		{"malformed schema", `{"report_id":"x","schema":{"Entities":[{"Properties":[{"Name":"A"}]}]}}`, http.StatusUnprocessableEntity, "schema-parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, srv, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.NotEmpty(t, body["error"])
			assert.Equal(t, tt.kind, body["kind"])
		})
	}
}

func TestAnalyzeMethodNotAllowed(t *testing.T) {
	srv := httptest.NewServer(server.NewRouter(nil, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/analyze")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
