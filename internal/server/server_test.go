package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"qualityline/internal/config"
	"qualityline/internal/domain"
	"qualityline/internal/engine"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	e := engine.New(config.Default("Acme"),
		engine.WithClock(func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }),
	)
	handler, err := New(Config{Engine: e, BasePath: "/v0"})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func createProcess(t *testing.T, srv *testServer, name, typ string) domain.Process {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/processes", map[string]any{
		"name":    name,
		"type":    typ,
		"purpose": "run " + name,
		"inputs":  []string{"requests"},
		"outputs": []string{"results"},
		"status":  "active",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create process status %d: %s", res.StatusCode, string(data))
	}
	var p domain.Process
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal process: %v", err)
	}
	return p
}

func decodeError(t *testing.T, data []byte) apiErrorBody {
	t.Helper()
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(data))
	}
	return env.Error
}

func TestProcessLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	p := createProcess(t, srv, "Production", "operational")
	if p.Code != "PRC-001" || p.Version != 1 {
		t.Fatalf("unexpected process: %+v", p)
	}

	res, data := doJSON(t, client, http.MethodPatch, srv.URL+"/v0/processes/"+p.ID, map[string]any{
		"pilot_name":    "Dana",
		"revision_note": "pilot assigned",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("update status %d: %s", res.StatusCode, string(data))
	}
	var updated domain.Process
	_ = json.Unmarshal(data, &updated)
	if updated.Version != 2 || updated.PilotName != "Dana" || updated.RevisionNote != "pilot assigned" {
		t.Fatalf("unexpected update: %+v", updated)
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/processes/"+p.ID, map[string]any{"name": "  "}, nil)
	if res.StatusCode != http.StatusBadRequest || decodeError(t, data).Code != "bad_request" {
		t.Fatalf("expected bad_request, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/processes/nope", nil, nil)
	if res.StatusCode != http.StatusNotFound || decodeError(t, data).Code != "not_found" {
		t.Fatalf("expected not_found, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/processes/"+p.ID+"/archive", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("archive status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/processes?status=archived", nil, nil)
	var archived []domain.Process
	_ = json.Unmarshal(data, &archived)
	if res.StatusCode != http.StatusOK || len(archived) != 1 {
		t.Fatalf("archived list: %d %s", res.StatusCode, string(data))
	}
}

func TestCreateProcessValidation(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/processes", map[string]any{
		"name":    "Sales",
		"type":    "operational",
		"purpose": "sell",
		"inputs":  []string{" "},
		"outputs": []string{"invoice"},
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", res.StatusCode, string(data))
	}
	if body := decodeError(t, data); body.Details["field"] != "inputs" {
		t.Fatalf("unexpected error body: %+v", body)
	}
}

func TestAttachUniqueFunctionBlocked(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	a := createProcess(t, srv, "Direction", "management")
	b := createProcess(t, srv, "Strategy", "management")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/processes/"+a.ID+"/functions", map[string]any{
		"function_id": "fn-4.1-context",
	}, map[string]string{actorHeader: "alice"})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("attach status %d: %s", res.StatusCode, string(data))
	}
	var fi domain.FunctionInstance
	_ = json.Unmarshal(data, &fi)
	if fi.History[0].ChangedBy != "alice" {
		t.Fatalf("actor not recorded: %+v", fi.History)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/processes/"+b.ID+"/functions", map[string]any{
		"function_id": "fn-4.1-context",
	}, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", res.StatusCode, string(data))
	}
	body := decodeError(t, data)
	if body.Code != "function_blocked" || body.Details["host_process_id"] != a.ID {
		t.Fatalf("unexpected error body: %+v", body)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/processes/"+b.ID+"/functions", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("applicability status %d: %s", res.StatusCode, string(data))
	}
	var app domain.Applicability
	_ = json.Unmarshal(data, &app)
	found := false
	for _, g := range app.Groups {
		for _, item := range g.Items {
			if item.Function.ID == "fn-4.1-context" {
				found = true
				if !item.IsBlocked || item.BlockedByProcessID != a.ID || item.CanAttach {
					t.Fatalf("expected blocked item: %+v", item)
				}
			}
		}
	}
	if !found {
		t.Fatalf("fn-4.1-context missing from applicability")
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/processes/"+a.ID+"/functions", map[string]any{
		"function_id": "fn-8.1-operational-planning",
	}, nil)
	if res.StatusCode != http.StatusUnprocessableEntity || decodeError(t, data).Code != "not_eligible" {
		t.Fatalf("expected not_eligible, got %d %s", res.StatusCode, string(data))
	}
}

func TestFunctionInstanceEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	p := createProcess(t, srv, "Production", "operational")
	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/processes/"+p.ID+"/functions", map[string]any{
		"function_id": "fn-8.5-production-service",
	}, nil)
	var fi domain.FunctionInstance
	_ = json.Unmarshal(data, &fi)
	base := srv.URL + "/v0/function-instances/" + fi.ID

	res, data := doJSON(t, client, http.MethodPost, base+"/status", map[string]any{"status": "active"}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, base+"/evidence", map[string]any{"type": "note", "title": "Line checks"}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("evidence %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPatch, base+"/data", map[string]any{"data": map[string]any{"capacity": 12}}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("data %d: %s", res.StatusCode, string(data))
	}
	_, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/actions", map[string]any{
		"process_id":  p.ID,
		"description": "Calibrate press",
		"due_date":    "2023-12-01",
	}, nil)
	var action domain.Action
	_ = json.Unmarshal(data, &action)
	res, data = doJSON(t, client, http.MethodPost, base+"/actions", map[string]any{"action_id": action.ID}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("link %d: %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &fi)
	if fi.Status != "active" || len(fi.Evidence) != 1 || len(fi.LinkedActionIDs) != 1 || len(fi.History) != 5 {
		t.Fatalf("unexpected instance: %+v", fi)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/actions/overdue", nil, nil)
	var overdue []domain.Action
	_ = json.Unmarshal(data, &overdue)
	if res.StatusCode != http.StatusOK || len(overdue) != 1 {
		t.Fatalf("overdue: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/actions/"+action.ID, map[string]any{"due_date": nil}, nil)
	var cleared domain.Action
	_ = json.Unmarshal(data, &cleared)
	if res.StatusCode != http.StatusOK || cleared.DueDate != nil {
		t.Fatalf("clear due date: %d %s", res.StatusCode, string(data))
	}
}

func TestIssuesAndDashboard(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	p := createProcess(t, srv, "Purchasing", "support")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/issues", map[string]any{
		"process_id":  p.ID,
		"quadrant":    "threat",
		"description": "single supplier",
		"severity":    4,
		"probability": 2,
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create issue %d: %s", res.StatusCode, string(data))
	}
	var issue domain.ContextIssue
	_ = json.Unmarshal(data, &issue)
	if issue.Type != "risk" || issue.Criticality == nil || *issue.Criticality != 8 {
		t.Fatalf("unexpected issue: %+v", issue)
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/issues/"+issue.ID, map[string]any{"severity": nil}, nil)
	_ = json.Unmarshal(data, &issue)
	if res.StatusCode != http.StatusOK || issue.Severity != nil || issue.Criticality != nil {
		t.Fatalf("clear severity: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/issues", map[string]any{
		"process_id":  "nope",
		"quadrant":    "strength",
		"description": "x",
	}, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown process, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/dashboard", nil, nil)
	var dash domain.Dashboard
	_ = json.Unmarshal(data, &dash)
	if res.StatusCode != http.StatusOK || dash.ActiveProcesses != 1 || dash.Risks != 1 || dash.TotalIssues != 1 {
		t.Fatalf("dashboard: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/issues/"+issue.ID, nil, nil)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: %d %s", res.StatusCode, string(data))
	}
}

func TestEventsPagination(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	for _, name := range []string{"A", "B", "C"} {
		createProcess(t, srv, name, "support")
	}
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?limit=2", nil, nil)
	var page paginatedEvents
	_ = json.Unmarshal(data, &page)
	if res.StatusCode != http.StatusOK || len(page.Items) != 2 || page.NextCursor == "" {
		t.Fatalf("first page: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?limit=2&cursor="+page.NextCursor, nil, nil)
	var next paginatedEvents
	_ = json.Unmarshal(data, &next)
	if res.StatusCode != http.StatusOK || len(next.Items) != 1 || next.Items[0].ID != 1 || next.NextCursor != "" {
		t.Fatalf("second page: %d %s", res.StatusCode, string(data))
	}
}

func TestCatalogAndOpenAPI(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/catalog/functions?process_type=management&rule=unique", nil, nil)
	var fns []domain.StandardFunction
	_ = json.Unmarshal(data, &fns)
	if res.StatusCode != http.StatusOK || len(fns) != 11 {
		t.Fatalf("catalog filter: %d %d %s", res.StatusCode, len(fns), string(data))
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/catalog/functions/fn-0-none", nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.StatusCode)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK || !bytes.Contains(data, []byte("attach-function")) {
		t.Fatalf("openapi: %d", res.StatusCode)
	}
}

func TestPatchExplicitNullClearsFields(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	p := createProcess(t, srv, "Purchasing", "support")

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/issues", map[string]any{
		"process_id":  p.ID,
		"quadrant":    "weakness",
		"description": "no second source",
		"severity":    3,
		"probability": 5,
	}, nil)
	var issue domain.ContextIssue
	_ = json.Unmarshal(data, &issue)
	issueURL := srv.URL + "/v0/issues/" + issue.ID

	res, data := doJSON(t, client, http.MethodPatch, issueURL, map[string]any{"description": "no backup supplier"}, nil)
	_ = json.Unmarshal(data, &issue)
	if res.StatusCode != http.StatusOK || issue.Criticality == nil || *issue.Criticality != 15 {
		t.Fatalf("omitted scores must be kept: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPatch, issueURL, map[string]any{"probability": nil}, nil)
	_ = json.Unmarshal(data, &issue)
	if res.StatusCode != http.StatusOK || issue.Probability != nil || issue.Criticality != nil || issue.Severity == nil || *issue.Severity != 3 {
		t.Fatalf("null probability: %d %s", res.StatusCode, string(data))
	}

	_, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/actions", map[string]any{
		"process_id":  p.ID,
		"description": "Audit supplier",
		"due_date":    "2024-03-01",
	}, nil)
	var action domain.Action
	_ = json.Unmarshal(data, &action)
	actionURL := srv.URL + "/v0/actions/" + action.ID

	res, data = doJSON(t, client, http.MethodPatch, actionURL, map[string]any{"status": "in_progress"}, nil)
	_ = json.Unmarshal(data, &action)
	if res.StatusCode != http.StatusOK || action.DueDate == nil {
		t.Fatalf("omitted due date must be kept: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPatch, actionURL, map[string]any{"due_date": nil}, nil)
	_ = json.Unmarshal(data, &action)
	if res.StatusCode != http.StatusOK || action.DueDate != nil || action.Status != "in_progress" {
		t.Fatalf("null due date: %d %s", res.StatusCode, string(data))
	}
}

func TestRecordsRejectUnknownProcesses(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	p := createProcess(t, srv, "Production", "operational")

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/issues", map[string]any{
		"process_id": p.ID, "quadrant": "strength", "description": "skilled team",
	}, nil)
	var issue domain.ContextIssue
	_ = json.Unmarshal(data, &issue)
	_, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/actions", map[string]any{
		"process_id": p.ID, "description": "train operators",
	}, nil)
	var action domain.Action
	_ = json.Unmarshal(data, &action)

	cases := []struct {
		name   string
		method string
		url    string
		body   map[string]any
	}{
		{"issue patch", http.MethodPatch, "/v0/issues/" + issue.ID, map[string]any{"process_id": "nope"}},
		{"action patch", http.MethodPatch, "/v0/actions/" + action.ID, map[string]any{"process_id": "nope"}},
		{"document create", http.MethodPost, "/v0/documents", map[string]any{
			"title": "Work instruction", "type": "instruction", "process_ids": []string{p.ID, "nope"},
		}},
	}
	for _, tc := range cases {
		res, data := doJSON(t, client, tc.method, srv.URL+tc.url, tc.body, nil)
		if res.StatusCode != http.StatusNotFound || decodeError(t, data).Code != "not_found" {
			t.Fatalf("%s: expected 404 not_found, got %d %s", tc.name, res.StatusCode, string(data))
		}
	}

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/documents", map[string]any{
		"title": "Work instruction", "type": "instruction", "process_ids": []string{p.ID},
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create document: %d %s", res.StatusCode, string(data))
	}
	var doc domain.Document
	_ = json.Unmarshal(data, &doc)
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/documents/"+doc.ID, map[string]any{"process_ids": []string{"nope"}}, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("document patch: expected 404, got %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/documents/"+doc.ID, nil, nil)
	_ = json.Unmarshal(data, &doc)
	if res.StatusCode != http.StatusOK || len(doc.ProcessIDs) != 1 || doc.ProcessIDs[0] != p.ID || doc.Version != 1 {
		t.Fatalf("document changed after rejected patch: %s", string(data))
	}
}

func TestProcessTypeLockedWhileHosting(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	p := createProcess(t, srv, "Direction", "management")
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/processes/"+p.ID+"/functions", map[string]any{
		"function_id": "fn-4.1-context",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("attach: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/processes/"+p.ID, map[string]any{"type": "operational"}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", res.StatusCode, string(data))
	}
	if apiErr := decodeError(t, data); apiErr.Details["field"] != "type" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestOpenAPIDefaultErrorResponse(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("openapi: %d", res.StatusCode)
	}
	var doc struct {
		Paths map[string]map[string]struct {
			Responses map[string]json.RawMessage `json:"responses"`
		} `json:"paths"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode openapi: %v", err)
	}
	op, ok := doc.Paths["/v0/processes/{process_id}/functions"]["post"]
	if !ok {
		t.Fatalf("attach operation missing from %v", doc.Paths)
	}
	if !bytes.Contains(op.Responses["default"], []byte("#/components/schemas/")) {
		t.Fatalf("default response lacks envelope ref: %s", string(op.Responses["default"]))
	}
}
