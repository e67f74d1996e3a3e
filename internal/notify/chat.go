// Package notify posts allocation results to a chat webhook so operators
// see every assignment as it happens. Delivery is best-effort: the
// allocator logs failures and moves on.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"adviser-allocation/internal/allocator"
	"adviser-allocation/internal/calendar"
)

// ChatNotifier posts card-style messages to an incoming-webhook URL.
type ChatNotifier struct {
	httpClient *resty.Client
	webhookURL string
	logger     *zap.Logger
}

func NewChatNotifier(webhookURL string, timeout time.Duration, logger *zap.Logger) *ChatNotifier {
	return &ChatNotifier{
		httpClient: resty.New().SetTimeout(timeout),
		webhookURL: webhookURL,
		logger:     logger,
	}
}

var _ allocator.Notifier = (*ChatNotifier)(nil)

type cardSection struct {
	Header string   `json:"header"`
	Lines  []string `json:"lines"`
}

type cardPayload struct {
	Title    string        `json:"title"`
	Sections []cardSection `json:"sections"`
}

// NotifyAllocation sends the allocation card: deal details, the evaluated
// advisers, and the selected adviser.
func (n *ChatNotifier) NotifyAllocation(ctx context.Context, result *allocator.Result) error {
	if n.webhookURL == "" {
		return nil
	}

	candidateLines := make([]string, 0, len(result.Candidates))
	for _, c := range result.Candidates {
		earliest := "no availability"
		if c.EarliestWeek != nil {
			earliest = calendar.ISOWeekLabel(*c.EarliestWeek)
		}
		candidateLines = append(candidateLines, fmt.Sprintf("%s — %s", c.Adviser.Email, earliest))
	}
	if len(candidateLines) == 0 {
		candidateLines = []string{"No eligible advisers"}
	}

	payload := cardPayload{
		Title: "Deal Allocation",
		Sections: []cardSection{
			{
				Header: "Deal",
				Lines: []string{
					"Deal ID: " + result.Record.DealID,
					"Service Package: " + result.Record.ServicePackage,
					"Household Type: " + emptyDash(result.Record.HouseholdType),
				},
			},
			{Header: "Eligible Advisers", Lines: candidateLines},
			{
				Header: "Selected Adviser",
				Lines: []string{
					result.Adviser.Email,
					"Earliest Week: " + calendar.ISOWeekLabel(result.EarliestWeek),
					"Pod Type: " + emptyDash(result.Adviser.PodType),
				},
			},
		},
	}

	resp, err := n.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(n.webhookURL)
	if err != nil {
		return fmt.Errorf("post chat alert: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("post chat alert: status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	n.logger.Debug("Chat alert sent", zap.String("deal_id", result.Record.DealID))
	return nil
}

func emptyDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
