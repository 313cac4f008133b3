package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// replicatePrediction mirrors the polling shape used by Replicate-hosted
// models: submit returns an id and an initial status, GetStatus is polled
// until the status reaches a terminal value.
type replicatePrediction struct {
	ID     string      `json:"id"`
	Status string      `json:"status"`
	Output interface{} `json:"output,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// replicateClient is the shared submit-then-poll HTTP transport for the
// vision, transcription and image-generation collaborators.
type replicateClient struct {
	apiToken   string
	httpClient *http.Client
	logger     *zap.Logger
}

func newReplicateClient(apiToken string, logger *zap.Logger) *replicateClient {
	return &replicateClient{
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

func (c *replicateClient) submit(ctx context.Context, modelVersion string, input map[string]interface{}) (*replicatePrediction, error) {
	body, err := json.Marshal(map[string]interface{}{
		"version": modelVersion,
		"input":   input,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode prediction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.replicate.com/v1/predictions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build prediction request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to submit prediction: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read prediction response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("prediction submit failed: status %d: %s", resp.StatusCode, string(raw))
	}

	var pred replicatePrediction
	if err := json.Unmarshal(raw, &pred); err != nil {
		return nil, fmt.Errorf("failed to decode prediction response: %w", err)
	}
	return &pred, nil
}

func (c *replicateClient) status(ctx context.Context, id string) (*replicatePrediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.replicate.com/v1/predictions/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prediction status: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read status response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("prediction status failed: status %d: %s", resp.StatusCode, string(raw))
	}

	var pred replicatePrediction
	if err := json.Unmarshal(raw, &pred); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}
	return &pred, nil
}

// pollUntilDone submits modelVersion/input and polls up to maxAttempts
// times at pollInterval.
func (c *replicateClient) pollUntilDone(ctx context.Context, label, modelVersion string, input map[string]interface{}, maxAttempts int, pollInterval time.Duration) (*replicatePrediction, error) {
	pred, err := c.submit(ctx, modelVersion, input)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if pred.Status == "succeeded" || pred.Status == "completed" {
			return pred, nil
		}
		if pred.Status == "failed" || pred.Status == "canceled" {
			errMsg := pred.Error
			if errMsg == "" {
				errMsg = "unknown error: prediction returned failed status without details"
			}
			return nil, fmt.Errorf("%s prediction failed: %s", label, errMsg)
		}

		time.Sleep(pollInterval)
		next, err := c.status(ctx, pred.ID)
		if err != nil {
			c.logger.Warn("polling failed, retrying", zap.String("collaborator", label), zap.Error(err))
			continue
		}
		pred = next
	}

	return nil, fmt.Errorf("%s prediction timed out after %d attempts", label, maxAttempts)
}
