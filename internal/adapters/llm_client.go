package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scenegenhq/sgs/pkg/retry"
)

// ReplicateLLMClient implements LLMClient against a Replicate-hosted
// instruction-following model.
type ReplicateLLMClient struct {
	apiToken     string
	httpClient   *http.Client
	logger       *zap.Logger
	modelVersion string
}

// NewReplicateLLMClient builds a ReplicateLLMClient. modelVersion identifies
// the hosted model+version, e.g. "openai/gpt-4o:<hash>".
func NewReplicateLLMClient(apiToken, modelVersion string, logger *zap.Logger) *ReplicateLLMClient {
	return &ReplicateLLMClient{
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger:       logger,
		modelVersion: modelVersion,
	}
}

type replicateSyncRequest struct {
	Version string                 `json:"version"`
	Input   map[string]interface{} `json:"input"`
}

type replicateSyncResponse struct {
	ID     string      `json:"id"`
	Status string      `json:"status"`
	Output interface{} `json:"output,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Complete sends prompt to the model and returns its concatenated output.
// Replicate's streaming models return output as an array of string chunks;
// non-streaming models return a single string — both are normalized here.
// Transient transport and 5xx/429 failures are retried; other client errors
// are not.
func (c *ReplicateLLMClient) Complete(ctx context.Context, prompt string) (string, error) {
	c.logger.Info("calling LLM collaborator", zap.Int("prompt_length", len(prompt)))

	body, err := json.Marshal(replicateSyncRequest{
		Version: c.modelVersion,
		Input: map[string]interface{}{
			"prompt": prompt,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode LLM request: %w", err)
	}

	var raw []byte
	err = retry.Do(ctx, retry.APIConfig(), func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.replicate.com/v1/predictions?wait=true", bytes.NewReader(body))
		if err != nil {
			return retry.NewNonRetryableError(fmt.Errorf("failed to build LLM request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("llm call failed: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read LLM response: %w", err)
		}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("llm call failed: status %d: %s", resp.StatusCode, string(data))
		}
		if resp.StatusCode >= 300 {
			return retry.NewNonRetryableError(fmt.Errorf("llm call failed: status %d: %s", resp.StatusCode, string(data)))
		}
		raw = data
		return nil
	})
	if err != nil {
		return "", err
	}

	var parsed replicateSyncResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode LLM response: %w", err)
	}
	if parsed.Status == "failed" || parsed.Status == "canceled" {
		return "", fmt.Errorf("llm prediction failed: %s", parsed.Error)
	}

	return joinOutput(parsed.Output), nil
}

func joinOutput(output interface{}) string {
	switch v := output.(type) {
	case string:
		return v
	case []interface{}:
		var sb strings.Builder
		for _, chunk := range v {
			if s, ok := chunk.(string); ok {
				sb.WriteString(s)
			}
		}
		return sb.String()
	default:
		return ""
	}
}
