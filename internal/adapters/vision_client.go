package adapters

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ReplicateVisionClient implements VisionClient via a Replicate-hosted
// image-captioning model, using the shared submit-then-poll transport
//.
type ReplicateVisionClient struct {
	client       *replicateClient
	modelVersion string
}

func NewReplicateVisionClient(apiToken, modelVersion string, logger *zap.Logger) *ReplicateVisionClient {
	return &ReplicateVisionClient{
		client:       newReplicateClient(apiToken, logger),
		modelVersion: modelVersion,
	}
}

func (c *ReplicateVisionClient) Describe(ctx context.Context, imageURL string) (string, error) {
	pred, err := c.client.pollUntilDone(ctx, "vision", c.modelVersion, map[string]interface{}{
		"image": imageURL,
	}, 24, 5*time.Second)
	if err != nil {
		return "", err
	}
	return joinOutput(pred.Output), nil
}
