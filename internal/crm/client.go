// Package crm is the HTTP client for the CRM system of record: advisers,
// deals, and onboarding meetings. Transient failures (timeouts, 429, 5xx)
// are retried inside the client with exponential backoff; permanent
// rejections surface immediately.
package crm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"adviser-allocation/internal/calendar"
	"adviser-allocation/internal/domain"
)

var (
	// ErrNotFound marks a missing CRM object (deal or adviser).
	ErrNotFound = errors.New("crm object not found")
	// ErrTransient marks a retryable CRM failure that persisted through
	// the client's internal retries.
	ErrTransient = errors.New("crm transient failure")
	// ErrPermanent marks a CRM rejection that retrying cannot fix.
	ErrPermanent = errors.New("crm permanent rejection")
)

const (
	retryCount   = 3
	retryWait    = 500 * time.Millisecond
	retryMaxWait = 4 * time.Second
)

// Client wraps the CRM REST API.
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewClient creates a CRM client against baseURL authenticated with token.
func NewClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(retryWait).
		SetRetryMaxWaitTime(retryMaxWait).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return retryableStatus(resp.StatusCode())
		})

	return &Client{httpClient: client, logger: logger}
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// adviserDTO is the wire shape of a CRM adviser record.
type adviserDTO struct {
	ID         string `json:"id"`
	Properties struct {
		Email              string `json:"email"`
		TakingOnClients    bool   `json:"taking_on_clients"`
		ServicePackages    []string `json:"service_packages"`
		HouseholdTypes     []string `json:"household_types"`
		PodType            string `json:"pod_type"`
		ClientLimitMonthly int    `json:"client_limit_monthly"`
		AdviserStartDate   string `json:"adviser_start_date"`
	} `json:"properties"`
}

type dealDTO struct {
	ID         string `json:"id"`
	Properties struct {
		ServicePackage     string `json:"service_package"`
		HouseholdType      string `json:"household_type"`
		AgreementStartDate string `json:"agreement_start_date"`
		OwnerID            string `json:"owner_id"`
		HasClarify         bool   `json:"has_clarify"`
	} `json:"properties"`
}

type meetingDTO struct {
	AdviserID    string `json:"adviser_id"`
	ActivityType string `json:"activity_type"`
	StartDate    string `json:"start_date"`
	DealID       string `json:"deal_id"`
}

type listResponse[T any] struct {
	Results []T `json:"results"`
}

// ListAdvisers returns every adviser profile known to the CRM.
func (c *Client) ListAdvisers(ctx context.Context) ([]domain.Adviser, error) {
	var out listResponse[adviserDTO]
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/v1/advisers")
	if err := c.classify("list advisers", resp, err); err != nil {
		return nil, err
	}

	advisers := make([]domain.Adviser, 0, len(out.Results))
	for _, dto := range out.Results {
		advisers = append(advisers, dto.toDomain())
	}
	c.logger.Debug("Loaded CRM advisers", zap.Int("count", len(advisers)))
	return advisers, nil
}

// GetDeal fetches a single deal; ErrNotFound when the CRM has no such deal.
func (c *Client) GetDeal(ctx context.Context, dealID string) (*domain.Deal, error) {
	var out dealDTO
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/v1/deals/" + dealID)
	if err := c.classify("get deal", resp, err); err != nil {
		return nil, err
	}
	deal := out.toDomain()
	return &deal, nil
}

// ListMeetings returns the adviser's Clarify and Kick Off meetings whose
// start date falls in [from, to).
func (c *Client) ListMeetings(ctx context.Context, adviserID string, from, to time.Time) ([]domain.Meeting, error) {
	var out listResponse[meetingDTO]
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"from": calendar.FormatDate(from),
			"to":   calendar.FormatDate(to),
		}).
		SetResult(&out).
		Get("/api/v1/advisers/" + adviserID + "/meetings")
	if err := c.classify("list meetings", resp, err); err != nil {
		return nil, err
	}

	meetings := make([]domain.Meeting, 0, len(out.Results))
	for _, dto := range out.Results {
		start, err := calendar.ParseDate(dto.StartDate)
		if err != nil {
			c.logger.Warn("Skipping meeting with bad start date",
				zap.String("adviser_id", adviserID),
				zap.String("start_date", dto.StartDate),
			)
			continue
		}
		meetings = append(meetings, domain.Meeting{
			AdviserID: adviserID,
			Kind:      domain.ParseMeetingKind(dto.ActivityType),
			StartDate: start,
			DealID:    dto.DealID,
		})
	}
	return meetings, nil
}

// ListDealsWithoutFirstMeeting returns the adviser's open deals that have
// no Clarify booked or held yet.
func (c *Client) ListDealsWithoutFirstMeeting(ctx context.Context, adviserID string, before time.Time) ([]domain.Deal, error) {
	var out listResponse[dealDTO]
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("before", calendar.FormatDate(before)).
		SetResult(&out).
		Get("/api/v1/advisers/" + adviserID + "/deals/awaiting-clarify")
	if err := c.classify("list deals without clarify", resp, err); err != nil {
		return nil, err
	}

	deals := make([]domain.Deal, 0, len(out.Results))
	for _, dto := range out.Results {
		deals = append(deals, dto.toDomain())
	}
	return deals, nil
}

// SetDealOwner reassigns the deal to the adviser. Transient failures were
// already retried with backoff by the underlying client.
func (c *Client) SetDealOwner(ctx context.Context, dealID, adviserID string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]any{"properties": map[string]string{"owner_id": adviserID}}).
		Patch("/api/v1/deals/" + dealID)
	if err := c.classify("set deal owner", resp, err); err != nil {
		return err
	}
	c.logger.Info("Assigned deal owner",
		zap.String("deal_id", dealID),
		zap.String("adviser_id", adviserID),
	)
	return nil
}

// classify maps a resty response to the client's error taxonomy.
func (c *Client) classify(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrTransient, err)
	}
	code := resp.StatusCode()
	switch {
	case code < 300:
		return nil
	case code == http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case retryableStatus(code):
		return fmt.Errorf("%s: %w: status %d", op, ErrTransient, code)
	default:
		return fmt.Errorf("%s: %w: status %d: %s", op, ErrPermanent, code, resp.String())
	}
}

func (dto adviserDTO) toDomain() domain.Adviser {
	a := domain.Adviser{
		ID:                 dto.ID,
		Email:              dto.Properties.Email,
		ServicePackages:    dto.Properties.ServicePackages,
		HouseholdTypes:     dto.Properties.HouseholdTypes,
		PodType:            dto.Properties.PodType,
		ClientLimitMonthly: dto.Properties.ClientLimitMonthly,
		TakingOnClients:    dto.Properties.TakingOnClients,
	}
	if dto.Properties.AdviserStartDate != "" {
		if start, err := calendar.ParseDate(dto.Properties.AdviserStartDate); err == nil {
			a.AdviserStartDate = &start
		}
	}
	return a
}

func (dto dealDTO) toDomain() domain.Deal {
	d := domain.Deal{
		ID:             dto.ID,
		ServicePackage: dto.Properties.ServicePackage,
		HouseholdType:  dto.Properties.HouseholdType,
		OwnerID:        dto.Properties.OwnerID,
		HasClarify:     dto.Properties.HasClarify,
	}
	if dto.Properties.AgreementStartDate != "" {
		if start, err := calendar.ParseDate(dto.Properties.AgreementStartDate); err == nil {
			d.AgreementStartDate = &start
		}
	}
	return d
}
