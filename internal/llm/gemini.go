// Package llm wraps the Google GenAI SDK behind the small surface the
// agent loop needs: one generate call with function declarations.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"dcagent/internal/logging"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// Config holds Gemini client construction parameters.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// FunctionCall is a tool invocation requested by the model.
type FunctionCall struct {
	Name string
	Args map[string]any
}

// Response is the reshaped result of one generate call.
type Response struct {
	// Text is the concatenated text parts of the first candidate.
	Text string

	// FunctionCalls lists tool invocations, in response order.
	FunctionCalls []FunctionCall

	// Content is the model turn to append to conversation history.
	Content *genai.Content

	// FinishReason reports why the model stopped.
	FinishReason string
}

// GeminiClient calls the Gemini API through the GenAI SDK.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(ctx context.Context, config Config) (*GeminiClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	model := strings.TrimSpace(config.Model)
	if model == "" {
		model = DefaultModel
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: config.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{
		client:  client,
		model:   model,
		timeout: timeout,
	}, nil
}

// Model returns the configured model name.
func (c *GeminiClient) Model() string {
	return c.model
}

// GenerateWithTools sends the conversation history plus function
// declarations and reshapes the first candidate into text and calls.
func (c *GeminiClient) GenerateWithTools(ctx context.Context, system string, history []*genai.Content, decls []*genai.FunctionDeclaration) (*Response, error) {
	// Apply the client timeout when the caller did not set a deadline.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	logging.APIDebug("[Gemini] GenerateWithTools: model=%s history=%d tools=%d", c.model, len(history), len(decls))

	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if len(decls) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, history, config)
	if err != nil {
		logging.APIError("[Gemini] GenerateWithTools: request failed after %v: %v", time.Since(start), err)
		return nil, fmt.Errorf("Gemini request failed: %w", err)
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no completion returned")
	}
	candidate := result.Candidates[0]

	resp := &Response{
		Content:      candidate.Content,
		FinishReason: string(candidate.FinishReason),
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			resp.FunctionCalls = append(resp.FunctionCalls, FunctionCall{
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
		}
	}
	resp.Text = strings.TrimSpace(text.String())

	logging.API("[Gemini] GenerateWithTools: completed in %v text_len=%d tool_calls=%d finish=%s",
		time.Since(start), len(resp.Text), len(resp.FunctionCalls), resp.FinishReason)
	return resp, nil
}
