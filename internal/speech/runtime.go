// Package speech owns the text-to-speech worker: a synthesis model loaded
// once into an inference runtime, converting caption text into audio.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultModelID is the synthesis model fetched from the hub.
	DefaultModelID = "onnx-community/Kokoro-82M-ONNX"

	// DefaultVoice is used when the caller does not override.
	DefaultVoice = "af_nicole"
)

// ModelFiles are the assets prefetched before session init.
var ModelFiles = []string{
	"config.json",
	"tokenizer.json",
	"onnx/model_quantized.onnx",
	"voices/af_nicole.bin",
}

// RuntimeClient talks to the synthesis inference runtime over HTTP.
type RuntimeClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRuntimeClient(baseURL string) *RuntimeClient {
	return &RuntimeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

type loadRequest struct {
	ModelID   string `json:"model_id"`
	AssetsDir string `json:"assets_dir,omitempty"`
}

// InitSession asks the runtime to load the synthesis model.
func (c *RuntimeClient) InitSession(ctx context.Context, req loadRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/load", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("session init failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("session init: status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	return nil
}

type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// Synthesize converts text to WAV bytes.
func (c *RuntimeClient) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	body, err := json.Marshal(synthesizeRequest{Text: text, Voice: voice})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesize request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("synthesize request: status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("synthesize request: read body: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("synthesize request: empty audio")
	}
	return audio, nil
}
