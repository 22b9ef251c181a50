package galaxy

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-version"
)

// MinimumServerVersion is the oldest release whose invocation API reports step job ids.
const MinimumServerVersion = "19.09"

// APIError is a non-success response from the server.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

type ClientInput struct {
	ServerURL string
	APIKey    string

	// Per-request timeout. 60s by default.
	RequestTimeout time.Duration
}

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(input *ClientInput) (*Client, error) {
	if input.ServerURL == "" {
		return nil, fmt.Errorf("galaxy server URL is required")
	}
	if _, err := url.Parse(input.ServerURL); err != nil {
		return nil, fmt.Errorf("invalid galaxy server URL: %w", err)
	}
	timeout := input.RequestTimeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(input.ServerURL, "/"),
		apiKey:  input.APIKey,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) ServerURL() string {
	return c.baseURL
}

// CheckVersion fetches the server version and fails if it is older than minimum.
func (c *Client) CheckVersion(ctx context.Context, minimum string) (*version.Version, error) {
	var resp struct {
		Major string `json:"version_major"`
		Minor string `json:"version_minor"`
	}
	if err := c.get(ctx, "/api/version", nil, &resp); err != nil {
		return nil, err
	}
	v, err := version.NewVersion(resp.Major)
	if err != nil {
		return nil, fmt.Errorf("server reported an unparseable version %q: %w", resp.Major, err)
	}
	minVersion, err := version.NewVersion(minimum)
	if err != nil {
		return nil, err
	}
	if v.LessThan(minVersion) {
		return v, fmt.Errorf("galaxy %s is older than the minimum supported version %s", v, minVersion)
	}
	slog.Debug("galaxy server version", slog.String("server", c.baseURL), slog.String("version", v.String()), slog.String("minor", resp.Minor))
	return v, nil
}

func (c *Client) ShowWorkflow(ctx context.Context, id string) (*Workflow, error) {
	wf := &Workflow{}
	if err := c.get(ctx, "/api/workflows/"+url.PathEscape(id), nil, wf); err != nil {
		return nil, err
	}
	return wf, nil
}

func (c *Client) ListWorkflows(ctx context.Context, name string, published bool) ([]*Workflow, error) {
	q := url.Values{}
	if published {
		q.Set("show_published", "true")
	}
	all := []*Workflow{}
	if err := c.get(ctx, "/api/workflows", q, &all); err != nil {
		return nil, err
	}
	out := []*Workflow{}
	for _, wf := range all {
		if wf.Name == name {
			out = append(out, wf)
		}
	}
	return out, nil
}

func (c *Client) WorkflowInputs(ctx context.Context, workflowID, label string) ([]string, error) {
	wf, err := c.ShowWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return MatchInputs(wf, label), nil
}

type invokePayload struct {
	Inputs   map[string]InvocationInput `json:"inputs"`
	InputsBy string                     `json:"inputs_by"`
	History  string                     `json:"history,omitempty"`
}

func (c *Client) InvokeWorkflow(ctx context.Context, workflowID string, inputs map[string]InvocationInput, historyName string) (*Invocation, error) {
	payload := invokePayload{Inputs: inputs, InputsBy: "step_index"}
	if historyName != "" {
		payload.History = "hist_name=" + historyName
	}
	raw, err := c.do(ctx, http.MethodPost, "/api/workflows/"+url.PathEscape(workflowID)+"/invocations", nil, payload)
	if err != nil {
		return nil, err
	}
	return decodeInvocation(raw)
}

func (c *Client) ShowDataset(ctx context.Context, id string) (*Dataset, error) {
	ds := &Dataset{}
	if err := c.get(ctx, "/api/datasets/"+url.PathEscape(id), nil, ds); err != nil {
		return nil, err
	}
	return ds, nil
}

func (c *Client) ListDatasets(ctx context.Context, name string) ([]*Dataset, error) {
	q := url.Values{}
	q.Set("q", "name-eq")
	q.Set("qv", name)
	all := []*Dataset{}
	if err := c.get(ctx, "/api/datasets", q, &all); err != nil {
		return nil, err
	}
	out := []*Dataset{}
	for _, ds := range all {
		if ds.Name == name {
			out = append(out, ds)
		}
	}
	return out, nil
}

func (c *Client) ShowInvocation(ctx context.Context, id string) (*Invocation, error) {
	raw, err := c.do(ctx, http.MethodGet, "/api/invocations/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeInvocation(raw)
}

func (c *Client) WaitForInvocation(ctx context.Context, id string, timeout, interval time.Duration) (*Invocation, error) {
	return PollInvocation(ctx, c, id, timeout, interval)
}

func (c *Client) WaitForJob(ctx context.Context, id string, timeout, interval time.Duration) (string, error) {
	return PollJob(ctx, c, id, timeout, interval)
}

func (c *Client) ShowJob(ctx context.Context, id string, full bool) (map[string]any, error) {
	q := url.Values{}
	if full {
		q.Set("full", "true")
	}
	job := map[string]any{}
	if err := c.get(ctx, "/api/jobs/"+url.PathEscape(id), q, &job); err != nil {
		return nil, err
	}
	return job, nil
}

// MatchInputs returns the ids of the input slots of wf labelled label, in slot order.
func MatchInputs(wf *Workflow, label string) []string {
	ids := []string{}
	for id, in := range wf.Inputs {
		if in.Label == label {
			ids = append(ids, id)
		}
	}
	sortSlotIDs(ids)
	return ids
}

// Slot ids are step indexes; order them numerically and fall back to string order.
func sortSlotIDs(ids []string) {
	slices.SortFunc(ids, func(a, b string) int {
		ai, aerr := strconv.Atoi(a)
		bi, berr := strconv.Atoi(b)
		if aerr == nil && berr == nil {
			return cmp.Compare(ai, bi)
		}
		return strings.Compare(a, b)
	})
}

func decodeInvocation(raw []byte) (*Invocation, error) {
	inv := &Invocation{}
	if err := json.Unmarshal(raw, inv); err != nil {
		return nil, fmt.Errorf("decoding invocation failed: %w", err)
	}
	inv.Raw = json.RawMessage(raw)
	return inv, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	raw, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding response from %s failed: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(buf)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s failed: %w", path, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	}
	if resp.StatusCode >= 300 {
		return nil, &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return raw, nil
}
