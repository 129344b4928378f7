// Package eventstream holds the client for the external event-stream service
// that keeps the search index consistent with issue status changes. Merge and
// delete operations bracket their destructive work with start/end
// notifications so the index never serves a half-migrated issue.
package eventstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/errwatch/issue-lifecycle-service/internal/config"
)

// Rates reports windowed event and unique-user counts for a group, used by
// the snooze evaluator for windowed thresholds.
type Rates struct {
	Events int `json:"events"`
	Users  int `json:"users"`
}

// Notifier is the event-stream contract consumed by the merge and deletion
// coordinators. Start calls return an opaque state token that must be passed
// back on the corresponding end call.
type Notifier interface {
	StartMerge(ctx context.Context, projectID int64, loserIDs []int64, survivorID int64) (string, error)
	EndMerge(ctx context.Context, token string) error
	StartDelete(ctx context.Context, projectID int64, groupIDs []int64) (string, error)
	EndDelete(ctx context.Context, token string) error
}

// RateProvider exposes windowed counters from the search index.
type RateProvider interface {
	GroupRates(ctx context.Context, groupID int64, windowMinutes int) (*Rates, error)
}

// Client talks to the event-stream service over HTTP. Calls are blocking RPCs
// with no in-process retry; failures propagate to the triggering request.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg config.EventStream) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

var _ Notifier = (*Client)(nil)
var _ RateProvider = (*Client)(nil)

type startMergeRequest struct {
	ProjectID  int64   `json:"project_id"`
	LoserIDs   []int64 `json:"loser_ids"`
	SurvivorID int64   `json:"survivor_id"`
}

type startDeleteRequest struct {
	ProjectID int64   `json:"project_id"`
	GroupIDs  []int64 `json:"group_ids"`
}

type stateTokenResponse struct {
	Token string `json:"token"`
}

type endRequest struct {
	Token string `json:"token"`
}

func (c *Client) StartMerge(ctx context.Context, projectID int64, loserIDs []int64, survivorID int64) (string, error) {
	const op = "internal.eventstream.StartMerge"

	var resp stateTokenResponse
	err := c.post(ctx, "/api/merge/start", startMergeRequest{
		ProjectID:  projectID,
		LoserIDs:   loserIDs,
		SurvivorID: survivorID,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return resp.Token, nil
}

func (c *Client) EndMerge(ctx context.Context, token string) error {
	const op = "internal.eventstream.EndMerge"

	if err := c.post(ctx, "/api/merge/end", endRequest{Token: token}, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (c *Client) StartDelete(ctx context.Context, projectID int64, groupIDs []int64) (string, error) {
	const op = "internal.eventstream.StartDelete"

	var resp stateTokenResponse
	err := c.post(ctx, "/api/delete/start", startDeleteRequest{
		ProjectID: projectID,
		GroupIDs:  groupIDs,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return resp.Token, nil
}

func (c *Client) EndDelete(ctx context.Context, token string) error {
	const op = "internal.eventstream.EndDelete"

	if err := c.post(ctx, "/api/delete/end", endRequest{Token: token}, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (c *Client) GroupRates(ctx context.Context, groupID int64, windowMinutes int) (*Rates, error) {
	const op = "internal.eventstream.GroupRates"

	url := fmt.Sprintf("%s/api/groups/%d/rates?window=%d", c.baseURL, groupID, windowMinutes)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build request: %w", op, err)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", op, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %d", op, res.StatusCode)
	}

	var rates Rates
	if err := json.NewDecoder(res.Body).Decode(&rates); err != nil {
		return nil, fmt.Errorf("%s: failed to decode response: %w", op, err)
	}

	return &rates, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", res.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
