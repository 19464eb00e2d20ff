package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ademelnik/jobsieve/internal/model"
)

// Ensure SlackNotifier implements model.Notifier.
var _ model.Notifier = (*SlackNotifier)(nil)

// SlackNotifier sends delivered vacancies to a Slack channel via Incoming
// Webhooks, one Block Kit message per vacancy.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSlackNotifier returns a notifier that posts each vacancy to Slack via
// webhook.
func NewSlackNotifier(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Notify posts the vacancy with its classification and, when present, the
// generated cover letter.
func (s *SlackNotifier) Notify(v model.Vacancy, c model.Classification, letter string) error {
	payload := buildPayload(v, c, letter)

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	resp, err := s.httpClient.Post(s.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := resp.Header.Get("Retry-After")
		secs, _ := strconv.Atoi(retryAfter)
		if secs <= 0 {
			secs = 1
		}
		s.logger.Warn("slack rate limited, retrying", "retry_after_secs", secs)
		time.Sleep(time.Duration(secs) * time.Second)

		resp2, err := s.httpClient.Post(s.webhookURL, "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("post to slack (retry): %w", err)
		}
		defer resp2.Body.Close()

		if resp2.StatusCode != http.StatusOK {
			return fmt.Errorf("slack returned %d on retry", resp2.StatusCode)
		}
		s.logger.Info("slack message sent", "vacancy", v.ID, "retried", true)
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned %d", resp.StatusCode)
	}
	s.logger.Info("slack message sent", "vacancy", v.ID)
	return nil
}

// Block Kit payload types.

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string         `json:"type"`
	Text     *slackText     `json:"text,omitempty"`
	Fields   []slackText    `json:"fields,omitempty"`
	Elements []slackElement `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackElement struct {
	Type  string    `json:"type"`
	Text  slackText `json:"text"`
	URL   string    `json:"url"`
	Style string    `json:"style"`
}

// SendTestMessage sends a dummy vacancy to verify the integration works.
func SendTestMessage(n model.Notifier) error {
	now := time.Now()
	testVacancy := model.Vacancy{
		ID:       "test-001",
		Title:    "Test Notification — Integration Verified",
		Employer: "Jobsieve Test",
		Location: "Everywhere",
		URL:      "https://example.com/vacancies/test-001",
		PostedAt: now,
	}
	testClassification := model.Classification{
		Accepted: true,
		Score:    1,
		Reason:   "integration test",
	}
	return n.Notify(testVacancy, testClassification, "")
}

func buildPayload(v model.Vacancy, c model.Classification, letter string) slackPayload {
	postedText := "Just detected"
	if !v.PostedAt.IsZero() {
		postedText = v.PostedAt.Format(time.RFC1123)
	}

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: "🎯 " + v.Employer + ": " + v.Title},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Employer:*\n" + v.Employer},
				{Type: "mrkdwn", Text: "*Location:*\n" + v.Location},
			},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Posted:*\n" + postedText},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Score:*\n%.2f", c.Score)},
			},
		},
		{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: "*Why:* " + c.Reason},
		},
	}

	if len(c.Tags) > 0 {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: "*Tags:* " + strings.Join(c.Tags, ", ")},
		})
	}

	if letter != "" {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: "*Suggested cover letter:*\n" + letter},
		})
	}

	blocks = append(blocks,
		slackBlock{
			Type: "actions",
			Elements: []slackElement{
				{
					Type:  "button",
					Text:  slackText{Type: "plain_text", Text: "Open Vacancy"},
					URL:   v.URL,
					Style: "primary",
				},
			},
		},
		slackBlock{Type: "divider"},
	)

	return slackPayload{Blocks: blocks}
}
