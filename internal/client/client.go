// Package client is a Go client for the HTTP API. Authentication state lives
// in an explicit Session rather than in process globals.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dvloznov/finance-analytics/internal/analytics"
	"github.com/dvloznov/finance-analytics/internal/auth"
	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/finance"
	"github.com/dvloznov/finance-analytics/internal/ingest"
	"github.com/dvloznov/finance-analytics/internal/jobs"
)

// ErrNotLoggedIn is returned by calls that need a token when the session has none.
var ErrNotLoggedIn = errors.New("not logged in")

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Session holds the bearer token of one logged-in user. It is created empty,
// filled by Login and cleared by Logout or when the server rejects the token.
type Session struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{now: time.Now}
}

// Token returns the current token, or ErrNotLoggedIn when there is none or
// it has expired.
func (s *Session) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" || (!s.expiresAt.IsZero() && !s.now().Before(s.expiresAt)) {
		return "", ErrNotLoggedIn
	}
	return s.token, nil
}

// Set stores a token.
func (s *Session) Set(tok auth.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.expiresAt = tok.AccessToken, tok.ExpiresAt
}

// Clear forgets the token.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.expiresAt = "", time.Time{}
}

// Client talks to one API server on behalf of one Session.
type Client struct {
	baseURL string
	http    *http.Client
	session *Session
}

// New creates a Client. A nil httpClient uses a 30s-timeout default.
func New(baseURL string, session *Session, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient, session: session}
}

// Session returns the client's session.
func (c *Client) Session() *Session { return c.session }

// Login exchanges credentials for a token and stores it in the session.
func (c *Client) Login(ctx context.Context, username, password string) error {
	form := url.Values{"username": {username}, "password": {password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("Login: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tok auth.Token
	if err := c.send(req, false, &tok); err != nil {
		return fmt.Errorf("Login: %w", err)
	}
	c.session.Set(tok)
	return nil
}

// Logout clears the session.
func (c *Client) Logout() { c.session.Clear() }

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	var u domain.User
	body := map[string]string{"username": username, "email": email, "password": password}
	if err := c.doJSON(ctx, http.MethodPost, "/auth/register", body, false, &u); err != nil {
		return nil, fmt.Errorf("Register: %w", err)
	}
	return &u, nil
}

// Me returns the logged-in user.
func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	var u domain.User
	if err := c.doJSON(ctx, http.MethodGet, "/users/me", nil, true, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Categories lists the user's categories.
func (c *Client) Categories(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	if err := c.doJSON(ctx, http.MethodGet, "/categories/", nil, true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateCategory creates a category.
func (c *Client) CreateCategory(ctx context.Context, in finance.CategoryInput) (*domain.Category, error) {
	var out domain.Category
	if err := c.doJSON(ctx, http.MethodPost, "/categories/", in, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Performance evaluates budgets for the month containing monthStart.
func (c *Client) Performance(ctx context.Context, monthStart time.Time) (*finance.Performance, error) {
	path := "/budgets/performance"
	if !monthStart.IsZero() {
		path += "?month_start=" + monthStart.Format(domain.DateLayout)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	out := &finance.Performance{Lines: []analytics.BudgetPerformance{}}
	header, err := c.exchange(req, true, &out.Lines)
	if err != nil {
		return nil, err
	}
	if v := header.Get(finance.HeaderMonthStart); v != "" {
		if out.MonthStart, err = time.Parse(domain.DateLayout, v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", finance.HeaderMonthStart, err)
		}
	}
	out.Anomalies = append([]string{}, header.Values(finance.HeaderAnomaly)...)
	return out, nil
}

// Trends returns the monthly series.
func (c *Client) Trends(ctx context.Context) ([]analytics.MonthlyPoint, error) {
	var out []analytics.MonthlyPoint
	if err := c.doJSON(ctx, http.MethodGet, "/analytics/trends", nil, true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Forecast returns next month's spend forecast.
func (c *Client) Forecast(ctx context.Context) (*analytics.ForecastResult, error) {
	var out analytics.ForecastResult
	if err := c.doJSON(ctx, http.MethodGet, "/analytics/forecast", nil, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadStatement sends a CSV statement for import.
func (c *Client) UploadStatement(ctx context.Context, filename string, r io.Reader) (*ingest.Summary, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("UploadStatement: %w", err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return nil, fmt.Errorf("UploadStatement: read file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("UploadStatement: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transactions/upload", &body)
	if err != nil {
		return nil, fmt.Errorf("UploadStatement: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var out ingest.Summary
	if err := c.send(req, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitReport starts a report job and returns its task id.
func (c *Client) SubmitReport(ctx context.Context, month string) (string, error) {
	var out struct {
		TaskID string `json:"task_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/reports/generate?month="+url.QueryEscape(month), nil, true, &out); err != nil {
		return "", err
	}
	return out.TaskID, nil
}

// ReportStatus returns the job behind taskID.
func (c *Client) ReportStatus(ctx context.Context, taskID string) (*jobs.ReportJob, error) {
	var out jobs.ReportJob
	if err := c.doJSON(ctx, http.MethodGet, "/reports/status/"+url.PathEscape(taskID), nil, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DownloadReport returns the PDF for a finished report.
func (c *Client) DownloadReport(ctx context.Context, filename string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reports/download/"+url.PathEscape(filename), nil)
	if err != nil {
		return nil, fmt.Errorf("DownloadReport: %w", err)
	}
	var buf bytes.Buffer
	if err := c.send(req, true, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, authed bool, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, authed, out)
}

// send executes req. out may be a *bytes.Buffer for raw bodies or any JSON
// target. A 401 clears the session.
func (c *Client) send(req *http.Request, authed bool, out any) error {
	_, err := c.exchange(req, authed, out)
	return err
}

// exchange is send that also hands back the response headers.
func (c *Client) exchange(req *http.Request, authed bool, out any) (http.Header, error) {
	if authed {
		tok, err := c.session.Token()
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	return resp.Header, decodeResponse(resp, authed, c.session, out)
}

func decodeResponse(resp *http.Response, authed bool, session *Session, out any) error {

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusUnauthorized && authed {
			session.Clear()
		}
		var body struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &body) != nil || body.Error == "" {
			body.Error = strings.TrimSpace(string(data))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: body.Error}
	}

	switch dst := out.(type) {
	case nil:
		return nil
	case *bytes.Buffer:
		_, err := dst.ReadFrom(resp.Body)
		return err
	default:
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
}
