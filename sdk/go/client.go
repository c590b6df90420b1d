package qualitylinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal QualityLine HTTP API client.
type Client struct {
	BaseURL    string
	BasePath   string
	ActorID    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "v0",
		Timeout:  10 * time.Second,
	}
}

// Process represents the API process model (partial).
type Process struct {
	ID      string   `json:"id"`
	Code    string   `json:"code"`
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Purpose string   `json:"purpose"`
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`
	Status  string   `json:"status"`
	Version int      `json:"version"`
}

// Issue is a SWOT context issue.
type Issue struct {
	ID          string `json:"id"`
	ProcessID   string `json:"process_id"`
	Type        string `json:"type"`
	Quadrant    string `json:"quadrant"`
	Description string `json:"description"`
	Severity    *int   `json:"severity,omitempty"`
	Probability *int   `json:"probability,omitempty"`
	Criticality *int   `json:"criticality,omitempty"`
}

type Action struct {
	ID          string  `json:"id"`
	ProcessID   string  `json:"process_id"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	DueDate     *string `json:"due_date,omitempty"`
}

type Document struct {
	ID         string   `json:"id"`
	Code       string   `json:"code"`
	Title      string   `json:"title"`
	Type       string   `json:"type"`
	ProcessIDs []string `json:"process_ids"`
	Status     string   `json:"status"`
}

// FunctionInstance is a standard function attached to a process.
type FunctionInstance struct {
	ID         string         `json:"id"`
	FunctionID string         `json:"function_id"`
	ProcessID  string         `json:"process_id"`
	Status     string         `json:"status"`
	Data       map[string]any `json:"data"`
}

// ApplicableFunction is one row of a process applicability report.
type ApplicableFunction struct {
	Function struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Category string `json:"category"`
	} `json:"function"`
	Instance           *FunctionInstance `json:"instance,omitempty"`
	IsAttached         bool              `json:"is_attached"`
	IsBlocked          bool              `json:"is_blocked"`
	BlockedByProcessID string            `json:"blocked_by_process_id,omitempty"`
	IsMandatory        bool              `json:"is_mandatory"`
	CanAttach          bool              `json:"can_attach"`
}

type Applicability struct {
	ProcessID        string `json:"process_id"`
	AttachedCount    int    `json:"attached_count"`
	MandatoryMissing int    `json:"mandatory_missing"`
	Groups           []struct {
		Category string               `json:"category"`
		Items    []ApplicableFunction `json:"items"`
	} `json:"groups"`
}

type Compliance struct {
	TotalRequirements      int `json:"total_requirements"`
	AllocatedCount         int `json:"allocated_count"`
	UnallocatedUniqueCount int `json:"unallocated_unique_count"`
	Percentage             int `json:"percentage"`
}

type Dashboard struct {
	ActiveProcesses int        `json:"active_processes"`
	OpenActions     int        `json:"open_actions"`
	OverdueActions  int        `json:"overdue_actions"`
	Risks           int        `json:"risks"`
	TotalIssues     int        `json:"total_issues"`
	Compliance      Compliance `json:"compliance"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateProcess creates a process.
func (c *Client) CreateProcess(ctx context.Context, p Process) (Process, error) {
	body := map[string]any{
		"name":    p.Name,
		"type":    p.Type,
		"purpose": p.Purpose,
		"inputs":  p.Inputs,
		"outputs": p.Outputs,
	}
	if p.Status != "" {
		body["status"] = p.Status
	}
	var resp Process
	err := c.do(ctx, http.MethodPost, "processes", body, &resp)
	return resp, err
}

// ListProcesses returns processes, optionally filtered by status.
func (c *Client) ListProcesses(ctx context.Context, status string) ([]Process, error) {
	endpoint := "processes"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp []Process
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) CreateIssue(ctx context.Context, issue Issue) (Issue, error) {
	body := map[string]any{
		"process_id":  issue.ProcessID,
		"quadrant":    issue.Quadrant,
		"description": issue.Description,
	}
	if issue.Severity != nil {
		body["severity"] = *issue.Severity
	}
	if issue.Probability != nil {
		body["probability"] = *issue.Probability
	}
	var resp Issue
	err := c.do(ctx, http.MethodPost, "issues", body, &resp)
	return resp, err
}

func (c *Client) CreateAction(ctx context.Context, a Action) (Action, error) {
	body := map[string]any{
		"process_id":  a.ProcessID,
		"description": a.Description,
	}
	if a.Status != "" {
		body["status"] = a.Status
	}
	if a.DueDate != nil {
		body["due_date"] = *a.DueDate
	}
	var resp Action
	err := c.do(ctx, http.MethodPost, "actions", body, &resp)
	return resp, err
}

// OverdueActions returns open actions past their due date.
func (c *Client) OverdueActions(ctx context.Context) ([]Action, error) {
	var resp []Action
	err := c.do(ctx, http.MethodGet, "actions/overdue", nil, &resp)
	return resp, err
}

func (c *Client) CreateDocument(ctx context.Context, d Document, clauses []string) (Document, error) {
	body := map[string]any{
		"title":       d.Title,
		"type":        d.Type,
		"process_ids": d.ProcessIDs,
	}
	if len(clauses) > 0 {
		body["clauses"] = clauses
	}
	var resp Document
	err := c.do(ctx, http.MethodPost, "documents", body, &resp)
	return resp, err
}

// AttachFunction attaches a standard function to a process.
func (c *Client) AttachFunction(ctx context.Context, processID, functionID string) (FunctionInstance, error) {
	var resp FunctionInstance
	endpoint := fmt.Sprintf("processes/%s/functions", url.PathEscape(processID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"function_id": functionID}, &resp)
	return resp, err
}

// Applicability resolves which standard functions apply to a process.
func (c *Client) Applicability(ctx context.Context, processID string) (Applicability, error) {
	var resp Applicability
	endpoint := fmt.Sprintf("processes/%s/functions", url.PathEscape(processID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) Compliance(ctx context.Context) (Compliance, error) {
	var resp Compliance
	err := c.do(ctx, http.MethodGet, "compliance", nil, &resp)
	return resp, err
}

func (c *Client) Dashboard(ctx context.Context) (Dashboard, error) {
	var resp Dashboard
	err := c.do(ctx, http.MethodGet, "dashboard", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.ActorID != "" {
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
