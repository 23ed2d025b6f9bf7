// Package servicenow implements the Ticket Store over the ServiceNow Table API.
package servicenow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/mahi1722/ticketflow/internal/logging"
	"github.com/mahi1722/ticketflow/pkg/domain"
)

const (
	DefaultTable   = "sc_task"
	DefaultTimeout = 30 * time.Second
)

var sysIDPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// DefaultStates maps ticket states onto ServiceNow choice values.
var DefaultStates = map[domain.TicketState]string{
	domain.TicketStateResolved: "6",
}

// Error is a non-2xx answer from the instance.
type Error struct {
	StatusCode int
	Message    string
	Detail     string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("servicenow: HTTP %d: %s: %s", e.StatusCode, e.Message, e.Detail)
	}
	return fmt.Sprintf("servicenow: HTTP %d: %s", e.StatusCode, e.Message)
}

// Client writes work notes, states and assignment groups back to tickets.
type Client struct {
	httpClient *http.Client
	baseURL    string
	table      string
	username   string
	password   string
	states     map[domain.TicketState]string
	logger     *slog.Logger

	sysIDs sync.Map // ticket number -> sys_id
}

// Option configures a Client.
type Option func(*Client)

// WithTable selects the table tickets live in.
func WithTable(table string) Option {
	return func(c *Client) {
		c.table = table
	}
}

// WithBasicAuth sets the integration user credentials.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithStateValue overrides the choice value written for state.
func WithStateValue(state domain.TicketState, value string) Option {
	return func(c *Client) {
		c.states[state] = value
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client for the instance at baseURL (https://<name>.service-now.com).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		table:      DefaultTable,
		states:     make(map[domain.TicketState]string, len(DefaultStates)),
		logger:     logging.NewNop(),
	}
	for k, v := range DefaultStates {
		c.states[k] = v
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) PostWorkNote(ctx context.Context, ticketID, text string) error {
	return c.patch(ctx, ticketID, map[string]string{"work_notes": text})
}

func (c *Client) SetState(ctx context.Context, ticketID string, state domain.TicketState) error {
	value, ok := c.states[state]
	if !ok {
		return fmt.Errorf("servicenow: no choice value for state %q", state)
	}
	return c.patch(ctx, ticketID, map[string]string{"state": value})
}

func (c *Client) Reassign(ctx context.Context, ticketID, group string) error {
	return c.patch(ctx, ticketID, map[string]string{"assignment_group": group})
}

func (c *Client) patch(ctx context.Context, ticketID string, fields map[string]string) error {
	sysID, err := c.resolve(ctx, ticketID)
	if err != nil {
		return err
	}

	body, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/api/now/table/%s/%s", c.baseURL, c.table, url.PathEscape(sysID))
	resp, err := c.do(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	resp.Body.Close()

	c.logger.Debug("ticket updated", "ticket", ticketID, "sys_id", sysID, "fields", keys(fields))
	return nil
}

// resolve turns a ticket number into a sys_id. sys_ids pass through.
func (c *Client) resolve(ctx context.Context, ticketID string) (string, error) {
	if sysIDPattern.MatchString(ticketID) {
		return ticketID, nil
	}
	if v, ok := c.sysIDs.Load(ticketID); ok {
		return v.(string), nil
	}

	q := url.Values{}
	q.Set("sysparm_query", "number="+ticketID)
	q.Set("sysparm_fields", "sys_id")
	q.Set("sysparm_limit", "1")
	endpoint := fmt.Sprintf("%s/api/now/table/%s?%s", c.baseURL, c.table, q.Encode())

	resp, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		Result []struct {
			SysID string `json:"sys_id"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("servicenow: decoding lookup: %w", err)
	}
	if len(out.Result) == 0 || out.Result[0].SysID == "" {
		return "", fmt.Errorf("servicenow: ticket %s not found in %s", ticketID, c.table)
	}
	c.sysIDs.Store(ticketID, out.Result[0].SysID)
	return out.Result[0].SysID, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("servicenow: creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("servicenow: %s %s: %w", method, c.table, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, readError(resp)
	}
	return resp, nil
}

func readError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var wire struct {
		Error struct {
			Message string `json:"message"`
			Detail  string `json:"detail"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &wire) == nil && wire.Error.Message != "" {
		return &Error{StatusCode: resp.StatusCode, Message: wire.Error.Message, Detail: wire.Error.Detail}
	}
	return &Error{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
