package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/goleak"
	"google.golang.org/genai"

	"dcagent/internal/llm"
	"dcagent/internal/tools"
)

func TestMain(m *testing.M) {
	// go.opencensus.io starts a background worker goroutine in its package
	// init (pulled in via google.golang.org/genai); it is not something the
	// code under test starts or can stop, so exclude it from leak checks.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// fakeLLM replays a scripted sequence of responses and records the
// history it was called with.
type fakeLLM struct {
	script    []*llm.Response
	calls     int
	histories [][]*genai.Content
	err       error
}

func (f *fakeLLM) GenerateWithTools(ctx context.Context, system string, history []*genai.Content, decls []*genai.FunctionDeclaration) (*llm.Response, error) {
	f.histories = append(f.histories, history)
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.script) {
		return nil, fmt.Errorf("fake exhausted after %d calls", f.calls)
	}
	resp := f.script[f.calls]
	f.calls++
	return resp, nil
}

func textResponse(text string) *llm.Response {
	return &llm.Response{
		Text:    text,
		Content: genai.NewContentFromText(text, genai.RoleModel),
	}
}

func callResponse(name string, args map[string]any) *llm.Response {
	return &llm.Response{
		Content: genai.NewContentFromParts([]*genai.Part{
			{FunctionCall: &genai.FunctionCall{Name: name, Args: args}},
		}, genai.RoleModel),
		FunctionCalls: []llm.FunctionCall{{Name: name, Args: args}},
	}
}

func newTestRegistry(t *testing.T) (*tools.Registry, *[]map[string]any) {
	t.Helper()
	var seen []map[string]any
	reg := tools.NewRegistry()
	reg.MustRegister(&tools.Tool{
		Name:        "get_dcid",
		Description: "resolve a place name",
		Category:    tools.CategoryPlace,
		Schema:      tools.Schema{Required: []string{"place"}},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			seen = append(seen, args)
			return "DCID for Tokyo: wikidataId/Q1490", nil
		},
	})
	reg.MustRegister(&tools.Tool{
		Name:        "always_fails",
		Description: "a tool that errors",
		Category:    tools.CategoryGeneral,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return "", fmt.Errorf("upstream unavailable")
		},
	})
	return reg, &seen
}

func TestAskPlainAnswer(t *testing.T) {
	reg, _ := newTestRegistry(t)
	fake := &fakeLLM{script: []*llm.Response{textResponse("Tokyo is in Japan.")}}
	a := New(fake, reg)

	answer, err := a.Ask(context.Background(), "Where is Tokyo?")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if answer != "Tokyo is in Japan." {
		t.Errorf("unexpected answer: %q", answer)
	}
	if fake.calls != 1 {
		t.Errorf("expected 1 model call, got %d", fake.calls)
	}
}

func TestAskExecutesToolAndFeedsResultBack(t *testing.T) {
	reg, seen := newTestRegistry(t)
	fake := &fakeLLM{script: []*llm.Response{
		callResponse("get_dcid", map[string]any{"place": "Tokyo"}),
		textResponse("The DCID for Tokyo is wikidataId/Q1490."),
	}}
	a := New(fake, reg)

	answer, err := a.Ask(context.Background(), "What is the DCID of Tokyo?")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if !strings.Contains(answer, "wikidataId/Q1490") {
		t.Errorf("unexpected answer: %q", answer)
	}

	if len(*seen) != 1 || (*seen)[0]["place"] != "Tokyo" {
		t.Errorf("tool saw wrong args: %v", *seen)
	}

	// Second model call must include the function response turn.
	if len(fake.histories) != 2 {
		t.Fatalf("expected 2 model calls, got %d", len(fake.histories))
	}
	last := fake.histories[1]
	final := last[len(last)-1]
	if len(final.Parts) != 1 || final.Parts[0].FunctionResponse == nil {
		t.Fatal("last history turn is not a function response")
	}
	fr := final.Parts[0].FunctionResponse
	if fr.Name != "get_dcid" {
		t.Errorf("function response name = %q", fr.Name)
	}
	if content, _ := fr.Response["content"].(string); !strings.Contains(content, "wikidataId/Q1490") {
		t.Errorf("function response missing report: %v", fr.Response)
	}
}

func TestAskToolErrorGoesBackToModel(t *testing.T) {
	reg, _ := newTestRegistry(t)
	fake := &fakeLLM{script: []*llm.Response{
		callResponse("always_fails", nil),
		textResponse("I could not reach the data source."),
	}}
	a := New(fake, reg)

	answer, err := a.Ask(context.Background(), "Try the flaky tool")
	if err != nil {
		t.Fatalf("tool error should not abort Ask: %v", err)
	}
	if answer != "I could not reach the data source." {
		t.Errorf("unexpected answer: %q", answer)
	}

	last := fake.histories[1]
	fr := last[len(last)-1].Parts[0].FunctionResponse
	if errMsg, _ := fr.Response["error"].(string); !strings.Contains(errMsg, "upstream unavailable") {
		t.Errorf("error not relayed to model: %v", fr.Response)
	}
}

func TestAskUnknownToolReportedAsError(t *testing.T) {
	reg, _ := newTestRegistry(t)
	fake := &fakeLLM{script: []*llm.Response{
		callResponse("no_such_tool", nil),
		textResponse("That tool does not exist."),
	}}
	a := New(fake, reg)

	if _, err := a.Ask(context.Background(), "call something unknown"); err != nil {
		t.Fatalf("unknown tool should not abort Ask: %v", err)
	}

	last := fake.histories[1]
	fr := last[len(last)-1].Parts[0].FunctionResponse
	if errMsg, _ := fr.Response["error"].(string); !strings.Contains(errMsg, "no_such_tool") {
		t.Errorf("expected not-found error in response, got %v", fr.Response)
	}
}

func TestAskIterationCap(t *testing.T) {
	reg, _ := newTestRegistry(t)
	script := make([]*llm.Response, maxToolIterations+1)
	for i := range script {
		script[i] = callResponse("get_dcid", map[string]any{"place": "Tokyo"})
	}
	fake := &fakeLLM{script: script}
	a := New(fake, reg)

	_, err := a.Ask(context.Background(), "loop forever")
	if err == nil {
		t.Fatal("expected iteration cap error")
	}
	if fake.calls != maxToolIterations {
		t.Errorf("expected %d model calls, got %d", maxToolIterations, fake.calls)
	}
}

func TestAskEmptyQuery(t *testing.T) {
	reg, _ := newTestRegistry(t)
	a := New(&fakeLLM{}, reg)

	if _, err := a.Ask(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestAskModelErrorPropagates(t *testing.T) {
	reg, _ := newTestRegistry(t)
	a := New(&fakeLLM{err: fmt.Errorf("quota exceeded")}, reg)

	_, err := a.Ask(context.Background(), "anything")
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected model error, got %v", err)
	}
}

func TestHistoryCarriesAcrossAsks(t *testing.T) {
	reg, _ := newTestRegistry(t)
	fake := &fakeLLM{script: []*llm.Response{
		textResponse("First answer."),
		textResponse("Second answer."),
	}}
	a := New(fake, reg)

	if _, err := a.Ask(context.Background(), "first"); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Ask(context.Background(), "second"); err != nil {
		t.Fatal(err)
	}

	// Second call sees: user, model, user.
	if got := len(fake.histories[1]); got != 3 {
		t.Errorf("expected 3 turns in second call, got %d", got)
	}

	a.Reset()
	if a.HistoryLen() != 0 {
		t.Error("Reset did not clear history")
	}
}

func TestSessionIDStable(t *testing.T) {
	reg, _ := newTestRegistry(t)
	a := New(&fakeLLM{}, reg)

	if a.SessionID() == "" {
		t.Fatal("empty session ID")
	}
	if a.SessionID() != a.SessionID() {
		t.Error("session ID changed between calls")
	}
}
