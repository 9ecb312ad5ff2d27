package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"call-screener/internal/apperrors"
)

const classifySystemPrompt = "You are an AI assistant that analyzes call transcripts to detect intent, " +
	"spam likelihood, and recommend actions. Format your response as JSON with the following fields: " +
	"intent, confidence, spam_likelihood, sentiment, suggested_response, and action_recommendation " +
	"(one of: Forward, TakeMessage, BlockCaller, OfferCallback)."

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Classify asks the chat model to analyse transcript and returns the raw message
// content. The content is expected to be JSON but is not validated here.
func (c *Client) Classify(ctx context.Context, transcript string) ([]byte, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.chatModel,
		Messages: []chatMessage{
			{Role: "system", Content: classifySystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Analyze the following call transcript and provide the analysis in JSON format: %q", transcript)},
		},
		Temperature:    0,
		ResponseFormat: map[string]any{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setAuth(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, parseError(resp)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrMalformedResult, "openai.classify", err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return nil, apperrors.New(apperrors.ErrMalformedResult, "openai.classify", "response has no content")
	}
	return []byte(out.Choices[0].Message.Content), nil
}
