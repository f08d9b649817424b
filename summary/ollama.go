/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const systemPrompt = "You are a helpful medical assistant. Provide concise, clear summaries of lab results. " +
	"Highlight any abnormal values and their potential significance. Be informative but not alarmist."

// OllamaConfig holds the Ollama server configuration
type OllamaConfig struct {
	URL   string
	Model string
}

// GetOllamaConfig loads Ollama configuration from environment variables
func GetOllamaConfig() (*OllamaConfig, error) {
	url := os.Getenv("OLLAMA_URL")
	model := os.Getenv("OLLAMA_MODEL")

	if url == "" || model == "" {
		return nil, ErrOllamaNotConfigured
	}

	return &OllamaConfig{
		URL:   url,
		Model: model,
	}, nil
}

// OpenAI-compatible request/response structures
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Ollama talks to Ollama's OpenAI-compatible chat endpoint.
type Ollama struct {
	config OllamaConfig
	client *http.Client
}

// NewOllama returns a client for config.
func NewOllama(config *OllamaConfig) *Ollama {
	return &Ollama{
		config: *config,
		client: &http.Client{
			Timeout: 300 * time.Second, // 5 minutes for local models
		},
	}
}

func (o *Ollama) Model() string {
	return o.config.Model
}

// Generate returns the complete response for prompt.
func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := o.post(ctx, prompt)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode Ollama response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("Ollama error: %s", chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 || strings.TrimSpace(chatResp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}

	return chatResp.Choices[0].Message.Content, nil
}

func (o *Ollama) post(ctx context.Context, prompt string) (*http.Response, error) {
	reqBody := chatRequest{
		Model: o.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := strings.TrimSuffix(o.config.URL, "/") + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call Ollama: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		return nil, fmt.Errorf("Ollama returned status %d: %s", resp.StatusCode, string(body))
	}

	return resp, nil
}
