// Package integrations implements outbound synchronization with third-party
// issue trackers linked to a group.
package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// StatusSyncer pushes resolution-state and assignee changes to an external
// tracker issue. Calls are scoped per linked external issue.
type StatusSyncer interface {
	SyncStatus(ctx context.Context, integrationID int64, externalIssueKey string, resolved bool, projectID int64) error
	SyncAssignee(ctx context.Context, integrationID int64, externalIssueKey string, assign bool, projectID int64) error
}

// WebhookSyncer posts sync payloads to the integration gateway.
type WebhookSyncer struct {
	baseURL string
	http    *http.Client
}

func NewWebhookSyncer(baseURL string, timeout time.Duration) *WebhookSyncer {
	return &WebhookSyncer{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

var _ StatusSyncer = (*WebhookSyncer)(nil)

type syncPayload struct {
	IntegrationID    int64  `json:"integration_id"`
	ExternalIssueKey string `json:"external_issue_key"`
	ProjectID        int64  `json:"project_id"`
	Resolved         *bool  `json:"resolved,omitempty"`
	Assign           *bool  `json:"assign,omitempty"`
}

func (s *WebhookSyncer) SyncStatus(ctx context.Context, integrationID int64, externalIssueKey string, resolved bool, projectID int64) error {
	const op = "internal.integrations.SyncStatus"

	payload := syncPayload{
		IntegrationID:    integrationID,
		ExternalIssueKey: externalIssueKey,
		ProjectID:        projectID,
		Resolved:         &resolved,
	}

	if err := s.post(ctx, "/api/sync/status", payload); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *WebhookSyncer) SyncAssignee(ctx context.Context, integrationID int64, externalIssueKey string, assign bool, projectID int64) error {
	const op = "internal.integrations.SyncAssignee"

	payload := syncPayload{
		IntegrationID:    integrationID,
		ExternalIssueKey: externalIssueKey,
		ProjectID:        projectID,
		Assign:           &assign,
	}

	if err := s.post(ctx, "/api/sync/assignee", payload); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *WebhookSyncer) post(ctx context.Context, path string, payload syncPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	res, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("unexpected status %d", res.StatusCode)
	}

	return nil
}
