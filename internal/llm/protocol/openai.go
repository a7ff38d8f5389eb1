package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kehao95/rlmtrace/internal/usage"
)

// OpenAI implements Protocol for the Chat Completions API.
// This is also compatible with OpenRouter and other OpenAI-compatible APIs.
type OpenAI struct{}

// ---------------------------------------------------------------------------
// API request/response types
// ---------------------------------------------------------------------------

type openaiRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	// Asks OpenRouter to include pricing in the usage block.
	Usage *openaiUsageOption `json:"usage,omitempty"`
}

type openaiUsageOption struct {
	Include bool `json:"include"`
}

type openaiResponse struct {
	Choices []openaiChoice `json:"choices"`
	Usage   *openaiUsage   `json:"usage"`
}

type openaiChoice struct {
	Message      json.RawMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type openaiMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
	// OpenRouter uses "reasoning"; some upstreams use "reasoning_content".
	Reasoning        *string `json:"reasoning"`
	ReasoningContent *string `json:"reasoning_content"`
}

type openaiUsage struct {
	PromptTokens        int      `json:"prompt_tokens"`
	CompletionTokens    int      `json:"completion_tokens"`
	TotalTokens         int      `json:"total_tokens"`
	Cost                *float64 `json:"cost"`
	PromptTokensDetails *struct {
		CachedTokens int `json:"cached_tokens"`
	} `json:"prompt_tokens_details"`
	CompletionTokensDetails *struct {
		ReasoningTokens int `json:"reasoning_tokens"`
	} `json:"completion_tokens_details"`
}

type openaiError struct {
	Error struct {
		Type    string          `json:"type"`
		Message string          `json:"message"`
		Code    json.RawMessage `json:"code"`
	} `json:"error"`
}

// ---------------------------------------------------------------------------
// Protocol implementation
// ---------------------------------------------------------------------------

func (p *OpenAI) ContentType() string {
	return "application/json"
}

func (p *OpenAI) EndpointPath() string {
	return "/chat/completions"
}

func (p *OpenAI) EncodeRequest(req Request) ([]byte, error) {
	return json.Marshal(openaiRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Usage:    &openaiUsageOption{Include: true},
	})
}

func (p *OpenAI) DecodeResponse(body []byte) (Completion, error) {
	var resp openaiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Completion{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message) == 0 {
		return Completion{}, fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}

	raw := resp.Choices[0].Message
	var msg openaiMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Completion{}, fmt.Errorf("%w: message: %v", ErrMalformedResponse, err)
	}

	c := Completion{Message: raw, Usage: normalizeUsage(resp.Usage)}
	if msg.Content != nil {
		c.Content = *msg.Content
	}
	switch {
	case msg.Reasoning != nil:
		c.Reasoning = *msg.Reasoning
	case msg.ReasoningContent != nil:
		c.Reasoning = *msg.ReasoningContent
	}
	return c, nil
}

// normalizeUsage maps the provider's usage block onto usage.Usage. Absent
// counters become 0; an absent cost stays unknown.
func normalizeUsage(u *openaiUsage) usage.Usage {
	if u == nil {
		return usage.Usage{}
	}
	out := usage.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
	if u.PromptTokensDetails != nil {
		out.CachedTokens = u.PromptTokensDetails.CachedTokens
	}
	if u.CompletionTokensDetails != nil {
		out.ReasoningTokens = u.CompletionTokensDetails.ReasoningTokens
	}
	if u.Cost != nil {
		out.Cost = usage.Float(*u.Cost)
	}
	return out
}

func (p *OpenAI) ClassifyError(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode}

	var oe openaiError
	if json.Unmarshal(body, &oe) == nil && oe.Error.Message != "" {
		apiErr.Type = oe.Error.Type
		apiErr.Message = oe.Error.Message
		apiErr.Code = strings.Trim(string(oe.Error.Code), `"`)
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}

	switch {
	case statusCode == 429 || statusCode >= 500:
		// Rate-limit and server messages often mention tokens; never read
		// them as an overflow.
		return apiErr
	case statusCode == 401 || statusCode == 403:
		return fmt.Errorf("%w: %s", ErrAuth, apiErr.Error())
	case statusCode >= 400 && isContextOverflow(apiErr):
		apiErr.overflow = true
		return apiErr
	default:
		return apiErr
	}
}

func isContextOverflow(e *APIError) bool {
	msg := strings.ToLower(e.Message)
	code := strings.ToLower(e.Code)
	return code == "context_length_exceeded" ||
		strings.Contains(msg, "maximum context length") ||
		strings.Contains(msg, "too many tokens") ||
		(strings.Contains(msg, "token") && strings.Contains(msg, "exceed"))
}
