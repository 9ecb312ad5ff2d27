// Package openai talks to the OpenAI HTTP API for transcription and screening classification.
package openai

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"call-screener/internal/config"
)

// Client is safe for concurrent use.
type Client struct {
	apiKey          string
	baseURL         string
	chatModel       string
	transcribeModel string
	httpClient      *http.Client
}

// New builds a client from explicit configuration. Request deadlines come from the
// caller's context; the http.Client timeout is only a backstop.
func New(cfg config.OpenAIConfig) *Client {
	return NewWithHTTPClient(cfg, &http.Client{Timeout: 2 * time.Minute})
}

func NewWithHTTPClient(cfg config.OpenAIConfig, hc *http.Client) *Client {
	c := &Client{
		apiKey:          cfg.APIKey,
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		chatModel:       cfg.ChatModel,
		transcribeModel: cfg.TranscribeModel,
		httpClient:      hc,
	}
	if c.baseURL == "" {
		c.baseURL = "https://api.openai.com/v1"
	}
	if c.chatModel == "" {
		c.chatModel = config.DefaultChatModel
	}
	if c.transcribeModel == "" {
		c.transcribeModel = config.DefaultTranscribeModel
	}
	return c
}

func (c *Client) setAuth(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("openai %d %s: %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("openai %d: %s", e.StatusCode, e.Message)
}

func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var env struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		return &APIError{StatusCode: resp.StatusCode, Type: env.Error.Type, Message: env.Error.Message}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}
