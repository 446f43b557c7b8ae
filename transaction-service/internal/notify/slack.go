// Package notify posts alert payloads to a Slack incoming webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/coffeeandit/transaction/shared/models"
)

// TemplateSlack is the Slack message shape: a headline and its attachments.
type TemplateSlack struct {
	Text        string         `json:"text"`
	Attachments []SlackMessage `json:"attachments"`
}

type SlackMessage struct {
	Color string `json:"color,omitempty"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

// Notifier is told about every situation change.
type Notifier interface {
	TransactionChanged(ctx context.Context, tx *models.Transaction)
}

// SlackNotifier alerts on transactions that need a human: fraud suspects and
// manual reviews. Other situations are ignored.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
	logger     *slog.Logger
}

func NewSlackNotifier(webhookURL string, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
		logger:     logger,
	}
}

// TransactionChanged never fails the caller; delivery errors are logged.
func (n *SlackNotifier) TransactionChanged(ctx context.Context, tx *models.Transaction) {
	template, ok := NewTemplate(tx)
	if !ok || n.webhookURL == "" {
		return
	}
	if err := n.Send(ctx, template); err != nil {
		n.logger.Error("slack notification failed", "id", tx.ID, "situation", tx.Situation, "error", err)
		return
	}
	n.logger.Info("slack notification sent", "id", tx.ID, "situation", tx.Situation)
}

// NewTemplate builds the alert for tx, or reports false when its situation
// does not call for one.
func NewTemplate(tx *models.Transaction) (TemplateSlack, bool) {
	var title, color string
	switch tx.Situation {
	case models.SituationFraudSuspect:
		title, color = "Transação em suspeita de fraude", "danger"
	case models.SituationHumanReview:
		title, color = "Transação aguardando análise humana", "warning"
	default:
		return TemplateSlack{}, false
	}

	return TemplateSlack{
		Text: fmt.Sprintf("Transação %s: %s", tx.ID, tx.Situation),
		Attachments: []SlackMessage{{
			Color: color,
			Title: title,
			Text: fmt.Sprintf("valor %s, conta %s, beneficiário %s, tipo %s, data %s",
				tx.Amount.StringFixed(2), tx.Account, tx.Beneficiary.Name, tx.Type, tx.Date),
		}},
	}, true
}

func (n *SlackNotifier) Send(ctx context.Context, template TemplateSlack) error {
	body, err := json.Marshal(template)
	if err != nil {
		return fmt.Errorf("failed to marshal slack template: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post to slack: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("slack responded with status %d", resp.StatusCode)
	}
	return nil
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) TransactionChanged(context.Context, *models.Transaction) {}
