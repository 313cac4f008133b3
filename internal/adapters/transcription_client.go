package adapters

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// ReplicateTranscriptionClient implements TranscriptionClient via a
// Replicate-hosted speech-to-text model.
type ReplicateTranscriptionClient struct {
	client       *replicateClient
	modelVersion string
}

func NewReplicateTranscriptionClient(apiToken, modelVersion string, logger *zap.Logger) *ReplicateTranscriptionClient {
	return &ReplicateTranscriptionClient{
		client:       newReplicateClient(apiToken, logger),
		modelVersion: modelVersion,
	}
}

// Transcribe reads audioPath, base64-encodes it as a data URI and submits it
// for transcription. The caller is responsible for extracting the audio
// track from the source video first.
func (c *ReplicateTranscriptionClient) Transcribe(ctx context.Context, audioPath string) (string, error) {
	raw, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("failed to read audio file: %w", err)
	}
	dataURI := "data:audio/mp3;base64," + base64.StdEncoding.EncodeToString(raw)

	pred, err := c.client.pollUntilDone(ctx, "transcription", c.modelVersion, map[string]interface{}{
		"audio": dataURI,
	}, 60, 5*time.Second)
	if err != nil {
		return "", err
	}

	switch out := pred.Output.(type) {
	case map[string]interface{}:
		if text, ok := out["text"].(string); ok {
			return text, nil
		}
	}
	return joinOutput(pred.Output), nil
}
