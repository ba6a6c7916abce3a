// Package vision owns the captioning worker: a vision-language model loaded
// once into an inference runtime, answering per-image caption requests.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultModelID is the captioning model fetched from the hub.
	DefaultModelID = "onnx-community/Florence-2-base-ft"

	// DefaultTask asks the model for a full-sentence scene description.
	DefaultTask = "<DETAILED_CAPTION>"

	// Devices the inference runtime can host the model on.
	DeviceAccelerated = "gpu"
	DeviceCPU         = "cpu"
)

// ModelFiles are the assets prefetched into the shared cache before the
// runtime initializes a session.
var ModelFiles = []string{
	"config.json",
	"tokenizer.json",
	"onnx/vision_encoder.onnx",
	"onnx/embed_tokens.onnx",
	"onnx/encoder_model.onnx",
	"onnx/decoder_model_merged.onnx",
}

// Capabilities describes what the inference runtime can do.
type Capabilities struct {
	Devices []string `json:"devices"`
	FP16    bool     `json:"fp16"`
}

// Accelerated reports whether a GPU device with fp16 support is available.
func (c Capabilities) Accelerated() bool {
	if !c.FP16 {
		return false
	}
	for _, d := range c.Devices {
		if d == DeviceAccelerated || d == "cuda" {
			return true
		}
	}
	return false
}

// RuntimeClient talks to the captioning inference runtime over HTTP.
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

// Probe queries the runtime's compute capabilities.
func (c *RuntimeClient) Probe(ctx context.Context) (Capabilities, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/capabilities", nil)
	if err != nil {
		return Capabilities{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Capabilities{}, fmt.Errorf("capability probe failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Capabilities{}, fmt.Errorf("capability probe: unexpected status %d", resp.StatusCode)
	}

	var caps Capabilities
	if err := json.NewDecoder(resp.Body).Decode(&caps); err != nil {
		return Capabilities{}, fmt.Errorf("capability probe: decode: %w", err)
	}
	return caps, nil
}

type loadRequest struct {
	ModelID   string `json:"model_id"`
	Device    string `json:"device"`
	DType     string `json:"dtype"`
	AssetsDir string `json:"assets_dir,omitempty"`
}

// InitSession asks the runtime to load the model onto the chosen device.
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

type captionRequest struct {
	Image string `json:"image"` // base64 PNG
	Task  string `json:"task"`
}

type captionResponse struct {
	Results map[string]string `json:"results"`
	Error   string            `json:"error,omitempty"`
}

// Caption submits one image and returns the per-task results.
func (c *RuntimeClient) Caption(ctx context.Context, imageData []byte, task string) (map[string]string, error) {
	body, err := json.Marshal(captionRequest{
		Image: base64.StdEncoding.EncodeToString(imageData),
		Task:  task,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/caption", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("caption request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("caption request: status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var decoded captionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("caption request: decode: %w", err)
	}
	if decoded.Error != "" {
		return nil, fmt.Errorf("caption request: %s", decoded.Error)
	}
	return decoded.Results, nil
}
