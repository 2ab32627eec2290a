package activities

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"incident-pipeline/internal/models"
)

// SendNotification tells responders about an escalate or remind decision.
// It always logs; when a notify webhook is configured it also posts the
// payload there (chat or email gateway).
//
// Duplicate-tolerant: the gateway receives the incident id and decision,
// so a retried call repeats one reminder at most.
func (a *Activities) SendNotification(ctx context.Context, input models.NotifyInput) error {
	a.logger().WithFields(logrus.Fields{
		"incident_id": input.IncidentID,
		"severity":    input.Severity,
		"decision":    input.Decision,
	}).Warnf("[NOTIFY] %s: %s", input.Title, input.Summary)

	if a.NotifyURL == "" {
		return nil
	}
	body, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.NotifyURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := a.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification gateway answered %d", resp.StatusCode)
	}
	return nil
}
