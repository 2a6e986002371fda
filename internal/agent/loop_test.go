package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/haasonsaas/agentcore/internal/permissions"
	"github.com/haasonsaas/agentcore/internal/toolsrt"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// scriptedProvider returns queued results/errors in order, one per Call.
type scriptedProvider struct {
	results []*Result
	errs    []error
	calls   int
}

func (p *scriptedProvider) Call(ctx context.Context, req Request) (*Result, error) {
	i := p.calls
	p.calls++
	var err error
	if i < len(p.errs) {
		err = p.errs[i]
	}
	if i < len(p.results) {
		return p.results[i], err
	}
	return &Result{Content: "done"}, err
}

func (p *scriptedProvider) Name() string { return "scripted" }

func mustRegister(t *testing.T, reg *toolsrt.Registry, tool toolsrt.Tool) {
	t.Helper()
	if err := reg.Register(tool); err != nil {
		t.Fatalf("register %s: %v", tool.Name(), err)
	}
}

func argsJSON(t *testing.T, v map[string]any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	return string(b)
}

func newUserMessage(content string) models.Message {
	iso, unix := models.NowStamps()
	return models.Message{ID: models.NewID(), Role: models.RoleUser, Content: content, Timestamp: iso, UnixTimestamp: unix}
}

func TestLoopCompletesWithoutToolCalls(t *testing.T) {
	provider := &scriptedProvider{results: []*Result{{Content: "hi there"}}}
	reg := toolsrt.NewRegistry()
	l := New(provider, reg, permissions.New(nil))

	res := l.Run(context.Background(), []models.Message{newUserMessage("hello")}, Hooks{})
	if res.Status != StatusCompleted {
		t.Fatalf("status = %v, want completed", res.Status)
	}
	if len(res.Appended) != 1 || res.Appended[0].Role != models.RoleAssistant {
		t.Fatalf("expected one assistant message, got %+v", res.Appended)
	}
}

// TestLoopScenario4PendingStopsTheLineBeforeExecution covers spec
// scenario 4: file_read(approved) + bash(pending) in the same
// message must produce zero tool messages on this invocation.
func TestLoopScenario4PendingStopsTheLineBeforeExecution(t *testing.T) {
	reg := toolsrt.NewRegistry()
	mustRegister(t, reg, toolsrt.FileReadTool{})
	mustRegister(t, reg, toolsrt.NewBashTool(nil))

	provider := &scriptedProvider{results: []*Result{
		{
			Content: "",
			ToolCalls: []models.ToolCall{
				{ID: "call_1", Function: models.ToolCallFunction{Name: "file_read", Arguments: argsJSON(t, map[string]any{"path": "a"})}},
				{ID: "call_2", Function: models.ToolCallFunction{Name: "bash", Arguments: argsJSON(t, map[string]any{"command": "rm a"})}},
			},
		},
	}}

	l := New(provider, reg, permissions.New(nil))
	res := l.Run(context.Background(), []models.Message{newUserMessage("do stuff")}, Hooks{})

	if res.Status != StatusApprovalNeeded {
		t.Fatalf("status = %v, want approval_needed", res.Status)
	}
	if len(res.Appended) != 1 {
		t.Fatalf("expected exactly the assistant message appended, got %d: %+v", len(res.Appended), res.Appended)
	}
	msg := res.Appended[0]
	if msg.Role != models.RoleAssistant || len(msg.ToolCalls) != 2 {
		t.Fatalf("unexpected appended message: %+v", msg)
	}
	if msg.ToolCalls[0].Status != models.ToolCallApproved {
		t.Fatalf("call_1 status = %v, want approved", msg.ToolCalls[0].Status)
	}
	if msg.ToolCalls[1].Status != models.ToolCallPending {
		t.Fatalf("call_2 status = %v, want pending", msg.ToolCalls[1].Status)
	}
}

// TestLoopResumeExecutesApprovedPrefixAfterDecision covers the next
// invocation: once call_2 has been approved out-of-band, resuming the
// loop must execute both calls in order before calling the model again.
func TestLoopResumeExecutesApprovedPrefixAfterDecision(t *testing.T) {
	reg := toolsrt.NewRegistry()
	mustRegister(t, reg, toolsrt.FileReadTool{})
	mustRegister(t, reg, toolsrt.NewBashTool(nil))

	assistant := models.Message{
		ID:   "asst_1",
		Role: models.RoleAssistant,
		ToolCalls: []models.ToolCall{
			{ID: "call_1", Status: models.ToolCallApproved, Function: models.ToolCallFunction{Name: "file_read", Arguments: argsJSON(t, map[string]any{"path": "/no/such/file"})}},
			{ID: "call_2", Status: models.ToolCallApproved, Function: models.ToolCallFunction{Name: "bash", Arguments: argsJSON(t, map[string]any{"command": "echo hi"})}},
		},
	}
	history := []models.Message{newUserMessage("do stuff"), assistant}

	var emitted []models.Message
	provider := &scriptedProvider{results: []*Result{{Content: "wrapped up"}}}
	l := New(provider, reg, permissions.New(nil))

	res := l.Run(context.Background(), history, Hooks{MessageCallback: func(m models.Message) { emitted = append(emitted, m) }})
	if res.Status != StatusCompleted {
		t.Fatalf("status = %v, want completed, err=%v", res.Status, res.Err)
	}

	var toolMsgs int
	for _, m := range res.Appended {
		if m.Role == models.RoleTool {
			toolMsgs++
		}
	}
	if toolMsgs != 2 {
		t.Fatalf("expected 2 tool messages from resume, got %d: %+v", toolMsgs, res.Appended)
	}
	if len(emitted) != len(res.Appended) {
		t.Fatalf("MessageCallback fired %d times, want %d", len(emitted), len(res.Appended))
	}
}

func TestLoopRejectedCallProducesDeniedMessageAndContinues(t *testing.T) {
	reg := toolsrt.NewRegistry()
	mustRegister(t, reg, toolsrt.NewBashTool(nil))

	assistant := models.Message{
		ID:   "asst_1",
		Role: models.RoleAssistant,
		ToolCalls: []models.ToolCall{
			{ID: "call_1", Status: models.ToolCallRejected, Function: models.ToolCallFunction{Name: "bash", Arguments: argsJSON(t, map[string]any{"command": "rm -rf /"})}},
		},
	}
	history := []models.Message{newUserMessage("do stuff"), assistant}

	provider := &scriptedProvider{results: []*Result{{Content: "understood, not running that"}}}
	l := New(provider, reg, permissions.New(nil))

	res := l.Run(context.Background(), history, Hooks{})
	if res.Status != StatusCompleted {
		t.Fatalf("status = %v, want completed, err=%v", res.Status, res.Err)
	}
	if len(res.Appended) != 2 {
		t.Fatalf("expected tool message + final assistant message, got %+v", res.Appended)
	}
	if res.Appended[0].Role != models.RoleTool || res.Appended[0].Content != DeniedMessage("bash", assistant.ToolCalls[0].Function.Arguments) {
		t.Fatalf("unexpected first appended message: %+v", res.Appended[0])
	}
}

func TestLoopMaxIterationsReached(t *testing.T) {
	reg := toolsrt.NewRegistry()
	mustRegister(t, reg, toolsrt.FileReadTool{})

	call := func(i int) *Result {
		return &Result{ToolCalls: []models.ToolCall{
			{ID: models.NewID(), Function: models.ToolCallFunction{Name: "file_read", Arguments: argsJSON(t, map[string]any{"path": "/no/such/file"})}},
		}}
	}
	var results []*Result
	for i := 0; i < 5; i++ {
		results = append(results, call(i))
	}

	perms := permissions.New([]string{"file_read"})
	l := New(&scriptedProvider{results: results}, reg, perms)
	l.Config.MaxIterations = 5

	res := l.Run(context.Background(), []models.Message{newUserMessage("loop forever")}, Hooks{})
	if res.Status != StatusMaxIterations {
		t.Fatalf("status = %v, want max_iterations", res.Status)
	}
}

func TestLoopClientErrorProducesSyntheticAssistantMessage(t *testing.T) {
	reg := toolsrt.NewRegistry()
	provider := &scriptedProvider{errs: []error{&ClientError{Err: errString("bad request: invalid model")}}}
	l := New(provider, reg, permissions.New(nil))

	res := l.Run(context.Background(), []models.Message{newUserMessage("hi")}, Hooks{})
	if res.Status != StatusError {
		t.Fatalf("status = %v, want error", res.Status)
	}
	if len(res.Appended) != 1 || res.Appended[0].Role != models.RoleAssistant {
		t.Fatalf("expected synthetic assistant message, got %+v", res.Appended)
	}
}

func TestLoopCheckInterruptedStopsBeforeModelCall(t *testing.T) {
	reg := toolsrt.NewRegistry()
	provider := &scriptedProvider{results: []*Result{{Content: "should not be reached"}}}
	l := New(provider, reg, permissions.New(nil))

	res := l.Run(context.Background(), []models.Message{newUserMessage("hi")}, Hooks{
		CheckInterrupted: func() bool { return true },
	})
	if res.Status != StatusInterrupted {
		t.Fatalf("status = %v, want interrupted", res.Status)
	}
	if provider.calls != 0 {
		t.Fatalf("provider was called %d times, want 0", provider.calls)
	}
}

type errString string

func (e errString) Error() string { return string(e) }
