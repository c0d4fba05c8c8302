// Package agent runs the conversation loop: it forwards user queries to
// the model, executes the tool calls the model requests, and feeds the
// results back until the model answers in plain text.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"dcagent/internal/llm"
	"dcagent/internal/logging"
	"dcagent/internal/tools"
)

// maxToolIterations bounds a single Ask. A well-behaved query resolves
// in two or three rounds; the cap stops a model stuck requesting tools.
const maxToolIterations = 8

const systemInstruction = "You are a helpful agent who can access Data Commons to provide information about " +
	"places. You can help users find data about specific cities, states, and countries by " +
	"first looking up their Data Commons IDs (DCIDs), retrieving available statistics for " +
	"the place, and retrieving population counts."

// LLM is the model surface the agent needs. *llm.GeminiClient satisfies it.
type LLM interface {
	GenerateWithTools(ctx context.Context, system string, history []*genai.Content, decls []*genai.FunctionDeclaration) (*llm.Response, error)
}

// Agent holds one conversation with the model.
type Agent struct {
	llm       LLM
	registry  *tools.Registry
	sessionID string
	history   []*genai.Content
}

// New creates an agent over the given model client and tool registry.
func New(client LLM, registry *tools.Registry) *Agent {
	a := &Agent{
		llm:       client,
		registry:  registry,
		sessionID: uuid.NewString(),
	}
	logging.Session("Session %s started with %d tools", a.sessionID, registry.Count())
	return a
}

// SessionID returns the identifier for this conversation.
func (a *Agent) SessionID() string {
	return a.sessionID
}

// HistoryLen returns the number of turns accumulated so far.
func (a *Agent) HistoryLen() int {
	return len(a.history)
}

// Reset discards conversation history while keeping the session open.
func (a *Agent) Reset() {
	a.history = nil
	logging.Session("Session %s history reset", a.sessionID)
}

// Ask sends a query through the tool loop and returns the model's final
// text answer. Conversation history carries over between calls.
func (a *Agent) Ask(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("query must not be empty")
	}

	logging.Agent("[%s] query: %q", a.sessionID, query)
	a.history = append(a.history, genai.NewContentFromText(query, genai.RoleUser))
	decls := a.registry.Declarations()

	for iteration := 0; iteration < maxToolIterations; iteration++ {
		resp, err := a.llm.GenerateWithTools(ctx, systemInstruction, a.history, decls)
		if err != nil {
			return "", fmt.Errorf("model call failed: %w", err)
		}
		if resp.Content != nil {
			a.history = append(a.history, resp.Content)
		}

		if len(resp.FunctionCalls) == 0 {
			if resp.Text == "" {
				return "", fmt.Errorf("model returned an empty response (finish reason: %s)", resp.FinishReason)
			}
			logging.Agent("[%s] answered after %d tool rounds", a.sessionID, iteration)
			return resp.Text, nil
		}

		a.history = append(a.history, genai.NewContentFromParts(a.runCalls(ctx, resp.FunctionCalls), genai.RoleUser))
	}

	return "", fmt.Errorf("no answer after %d tool iterations", maxToolIterations)
}

// runCalls executes each requested tool and wraps the outcomes as
// function responses. Tool failures go back to the model as error
// content instead of aborting the conversation, so it can recover or
// explain the problem to the user.
func (a *Agent) runCalls(ctx context.Context, calls []llm.FunctionCall) []*genai.Part {
	parts := make([]*genai.Part, 0, len(calls))
	for _, call := range calls {
		logging.AgentDebug("[%s] tool call: %s(%v)", a.sessionID, call.Name, call.Args)

		response := map[string]any{}
		result, err := a.registry.Execute(ctx, call.Name, call.Args)
		if err != nil {
			logging.Agent("[%s] tool %s failed: %v", a.sessionID, call.Name, err)
			response["error"] = err.Error()
		} else {
			response["content"] = result.Report
		}

		parts = append(parts, &genai.Part{
			FunctionResponse: &genai.FunctionResponse{
				Name:     call.Name,
				Response: response,
			},
		})
	}
	return parts
}
