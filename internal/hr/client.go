// Package hr is the read-only HTTP client for the HR system: employees and
// approved leave. Authentication is delegated to a TokenSource so the OAuth
// handshake lives outside this service; on a 401 the token is refreshed
// once per call before the failure surfaces as unavailable.
package hr

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"adviser-allocation/internal/calendar"
	"adviser-allocation/internal/domain"
	"adviser-allocation/internal/repository"
)

// TokenSource supplies and refreshes the HR access token.
type TokenSource interface {
	// Token returns the current access token, fetching one if needed.
	Token(ctx context.Context) (string, error)
	// Refresh discards the cached token and fetches a new one.
	Refresh(ctx context.Context) (string, error)
}

// Client wraps the HR REST API.
type Client struct {
	httpClient *resty.Client
	tokens     TokenSource
	logger     *zap.Logger
}

func NewClient(baseURL string, tokens TokenSource, timeout time.Duration, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{httpClient: client, tokens: tokens, logger: logger}
}

type employeeDTO struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type leaveDTO struct {
	EmployeeID string `json:"employee_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Status     string `json:"status"`
}

// ListEmployees returns every employee id/email pair.
func (c *Client) ListEmployees(ctx context.Context) ([]domain.Employee, error) {
	const op = "hr.list_employees"
	var out struct {
		Results []employeeDTO `json:"results"`
	}
	if err := c.get(ctx, op, "/api/v1/employees", nil, &out); err != nil {
		return nil, err
	}

	employees := make([]domain.Employee, 0, len(out.Results))
	for _, dto := range out.Results {
		employees = append(employees, domain.Employee{EmployeeID: dto.ID, Email: dto.Email})
	}
	return employees, nil
}

// ListApprovedLeave returns the employee's approved leave intersecting
// [from, to].
func (c *Client) ListApprovedLeave(ctx context.Context, employeeID string, from, to time.Time) ([]domain.LeaveRequest, error) {
	const op = "hr.list_approved_leave"
	var out struct {
		Results []leaveDTO `json:"results"`
	}
	params := map[string]string{
		"status": domain.LeaveApproved,
		"from":   calendar.FormatDate(from),
		"to":     calendar.FormatDate(to),
	}
	if err := c.get(ctx, op, "/api/v1/employees/"+employeeID+"/leave", params, &out); err != nil {
		return nil, err
	}

	requests := make([]domain.LeaveRequest, 0, len(out.Results))
	for _, dto := range out.Results {
		start, err := calendar.ParseDate(dto.StartDate)
		if err != nil {
			c.logger.Warn("Skipping leave with bad start date",
				zap.String("employee_id", employeeID),
				zap.String("start_date", dto.StartDate),
			)
			continue
		}
		end, err := calendar.ParseDate(dto.EndDate)
		if err != nil {
			c.logger.Warn("Skipping leave with bad end date",
				zap.String("employee_id", employeeID),
				zap.String("end_date", dto.EndDate),
			)
			continue
		}
		requests = append(requests, domain.LeaveRequest{
			EmployeeID: dto.EmployeeID,
			StartDate:  start,
			EndDate:    end,
			Status:     dto.Status,
		})
	}
	return requests, nil
}

// get issues an authenticated GET, refreshing the token once on 401.
func (c *Client) get(ctx context.Context, op, path string, params map[string]string, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return repository.Unavailable(op, fmt.Errorf("acquire token: %w", err))
	}

	resp, err := c.request(ctx, token, path, params, out)
	if err != nil {
		return repository.Unavailable(op, err)
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		c.logger.Info("HR token expired, refreshing", zap.String("op", op))
		if token, err = c.tokens.Refresh(ctx); err != nil {
			return repository.Unavailable(op, fmt.Errorf("refresh token: %w", err))
		}
		if resp, err = c.request(ctx, token, path, params, out); err != nil {
			return repository.Unavailable(op, err)
		}
	}
	if resp.IsError() {
		return repository.Unavailable(op, fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()))
	}
	return nil
}

func (c *Client) request(ctx context.Context, token, path string, params map[string]string, out any) (*resty.Response, error) {
	req := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(out)
	if params != nil {
		req.SetQueryParams(params)
	}
	return req.Get(path)
}

// StaticTokenSource returns a fixed token; Refresh is a no-op. Used when
// the deployment injects a long-lived token through the environment.
type StaticTokenSource string

func (s StaticTokenSource) Token(context.Context) (string, error)   { return string(s), nil }
func (s StaticTokenSource) Refresh(context.Context) (string, error) { return string(s), nil }

// OAuthTokenSource fetches tokens from a client-credentials token endpoint
// and caches them until refreshed.
type OAuthTokenSource struct {
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *resty.Client

	mu    sync.Mutex
	token string
}

func NewOAuthTokenSource(tokenURL, clientID, clientSecret string, timeout time.Duration) *OAuthTokenSource {
	return &OAuthTokenSource{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   resty.New().SetTimeout(timeout),
	}
}

func (s *OAuthTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" {
		return s.token, nil
	}
	return s.fetchLocked(ctx)
}

func (s *OAuthTokenSource) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return s.fetchLocked(ctx)
}

func (s *OAuthTokenSource) fetchLocked(ctx context.Context) (string, error) {
	var out struct {
		AccessToken string `json:"access_token"`
	}
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "client_credentials",
			"client_id":     s.clientID,
			"client_secret": s.clientSecret,
		}).
		SetResult(&out).
		Post(s.tokenURL)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	if resp.IsError() || out.AccessToken == "" {
		return "", fmt.Errorf("token request: status %d", resp.StatusCode())
	}
	s.token = out.AccessToken
	return s.token, nil
}
