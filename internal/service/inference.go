package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// ErrEngineUnavailable means the inference engine is not loaded or not
// reachable. Operations fail fast on it before any work starts.
var ErrEngineUnavailable = errors.New("inference engine unavailable")

// Inference is the text-completion contract the analysis core consumes.
// Complete may be slow (seconds) and may fail on engine-level errors;
// content-level garbage is the parser's problem, not the gateway's.
type Inference interface {
	Ready(ctx context.Context) bool
	Complete(ctx context.Context, system, user string) (string, error)
}

// EngineClient talks to a local chat-completions endpoint (llama.cpp,
// Ollama's OpenAI-compatible server, or any similar single-instance engine).
type EngineClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client

	mu        sync.Mutex
	readyAt   time.Time
	lastReady bool
}

const readyProbeTTL = 30 * time.Second

func NewEngineClient(baseURL, apiKey, modelName string) *EngineClient {
	return &EngineClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   modelName,
		client:  &http.Client{},
	}
}

// Ready probes the engine's model list. The engine may be unloaded and
// reloaded at any time, so the probe result is cached only briefly.
func (c *EngineClient) Ready(ctx context.Context) bool {
	c.mu.Lock()
	if time.Since(c.readyAt) < readyProbeTTL {
		ready := c.lastReady
		c.mu.Unlock()
		return ready
	}
	c.mu.Unlock()

	ready := c.probe(ctx)

	c.mu.Lock()
	c.readyAt = time.Now()
	c.lastReady = ready
	c.mu.Unlock()
	return ready
}

func (c *EngineClient) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/v1/models", nil)
	if err != nil {
		return false
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == 200
}

func (c *EngineClient) Complete(ctx context.Context, system, user string) (string, error) {
	body := map[string]interface{}{
		"model":  c.model,
		"stream": false,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	}
	payload, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("llm status %d: %s", resp.StatusCode, data)
	}

	data, _ := io.ReadAll(resp.Body)
	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("empty choices")
	}
	return result.Choices[0].Message.Content, nil
}
