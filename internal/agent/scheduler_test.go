package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clewhq/clew/internal/tool"
)

// fakeTool implements tool.Tool for agent tests.
type fakeTool struct {
	name     string
	confirm  *tool.Confirmation
	result   tool.Result
	execErr  error
	delay    time.Duration
	panicMsg string
	executed *atomic.Int32
}

func (f *fakeTool) Name() string            { return f.name }
func (f *fakeTool) DisplayName() string     { return f.name }
func (f *fakeTool) Description() string     { return "fake" }
func (f *fakeTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }

func (f *fakeTool) ShouldConfirmExecute(context.Context, json.RawMessage) (*tool.Confirmation, error) {
	return f.confirm, nil
}

func (f *fakeTool) Execute(ctx context.Context, _ json.RawMessage) (tool.Result, error) {
	if f.executed != nil {
		f.executed.Add(1)
	}
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return tool.Result{}, ctx.Err()
		}
	}
	return f.result, f.execErr
}

func newTestScheduler(t *testing.T, tools ...tool.Tool) (*Scheduler, *tool.Registry) {
	t.Helper()
	reg := tool.NewRegistry(nil)
	for _, tl := range tools {
		if err := reg.Register(tl, tool.SourceBuiltin); err != nil {
			t.Fatalf("register %s: %v", tl.Name(), err)
		}
	}
	return NewScheduler(SchedulerConfig{Registry: reg}), reg
}

func TestScheduler_MissingTool(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t)
	outcomes := s.Schedule(context.Background(), []tool.Call{{ID: "1", Name: "read_file"}})

	if len(outcomes) != 1 {
		t.Fatalf("got %d outcomes, want 1", len(outcomes))
	}
	out := outcomes[0]
	if !errors.Is(out.Err, tool.ErrNotFound) {
		t.Errorf("Err = %v, want ErrNotFound", out.Err)
	}
	want := `Tool "read_file" not found or is not registered.`
	if out.Err.Error() != want {
		t.Errorf("Err message = %q, want %q", out.Err.Error(), want)
	}
	if out.Result != nil || out.Confirmation != nil {
		t.Error("missing tool produced a result or confirmation")
	}
}

func TestScheduler_PreApprovedExecutes(t *testing.T) {
	t.Parallel()

	var n atomic.Int32
	s, _ := newTestScheduler(t, &fakeTool{
		name:     "read_file",
		result:   tool.Result{LLMContent: "contents"},
		executed: &n,
	})

	outcomes := s.Schedule(context.Background(), []tool.Call{{ID: "1", Name: "read_file"}})
	if outcomes[0].Result == nil || outcomes[0].Result.LLMContent != "contents" {
		t.Errorf("outcome = %+v, want executed result", outcomes[0])
	}
	if n.Load() != 1 {
		t.Errorf("tool executed %d times, want 1", n.Load())
	}
}

func TestScheduler_ConfirmationBlocksExecution(t *testing.T) {
	t.Parallel()

	var n atomic.Int32
	s, _ := newTestScheduler(t, &fakeTool{
		name:     "run_command",
		confirm:  &tool.Confirmation{Kind: tool.ConfirmExec, Title: "run ls", OnConfirm: func(tool.Outcome) {}},
		executed: &n,
	})

	outcomes := s.Schedule(context.Background(), []tool.Call{{ID: "1", Name: "run_command"}})
	if outcomes[0].Confirmation == nil {
		t.Fatal("no confirmation attached")
	}
	if outcomes[0].Result != nil {
		t.Error("tool executed despite pending confirmation")
	}
	if n.Load() != 0 {
		t.Errorf("tool executed %d times, want 0", n.Load())
	}
}

func TestScheduler_OutcomesInInputOrder(t *testing.T) {
	t.Parallel()

	// The slowest tool comes first; outcome order must still match input.
	s, _ := newTestScheduler(t,
		&fakeTool{name: "slow", delay: 50 * time.Millisecond, result: tool.Result{LLMContent: "slow"}},
		&fakeTool{name: "fast", result: tool.Result{LLMContent: "fast"}},
	)

	calls := []tool.Call{
		{ID: "a", Name: "slow"},
		{ID: "b", Name: "fast"},
		{ID: "c", Name: "slow"},
	}
	outcomes := s.Schedule(context.Background(), calls)

	for i, out := range outcomes {
		if out.Call.ID != calls[i].ID {
			t.Errorf("outcome %d has call %s, want %s", i, out.Call.ID, calls[i].ID)
		}
	}
}

func TestScheduler_PanicRecovered(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t, &fakeTool{name: "boom", panicMsg: "kaput"})
	outcomes := s.Schedule(context.Background(), []tool.Call{{ID: "1", Name: "boom"}})

	if outcomes[0].Err == nil || !strings.Contains(outcomes[0].Err.Error(), "panicked") {
		t.Errorf("panic not folded into outcome: %+v", outcomes[0])
	}
}

func TestScheduler_ExecuteApprovedSkipsConfirmation(t *testing.T) {
	t.Parallel()

	var n atomic.Int32
	s, _ := newTestScheduler(t, &fakeTool{
		name:     "run_command",
		confirm:  &tool.Confirmation{Kind: tool.ConfirmExec, OnConfirm: func(tool.Outcome) {}},
		result:   tool.Result{LLMContent: "ran"},
		executed: &n,
	})

	out := s.ExecuteApproved(context.Background(), tool.Call{ID: "1", Name: "run_command"})
	if out.Result == nil || out.Result.LLMContent != "ran" {
		t.Errorf("outcome = %+v, want executed result", out)
	}
	if n.Load() != 1 {
		t.Errorf("tool executed %d times, want 1", n.Load())
	}
}

func TestScheduler_DomainErrorIsNotInvocationError(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t, &fakeTool{
		name:   "grep",
		result: tool.Result{LLMContent: "", Err: "no matches"},
	})

	out := s.Schedule(context.Background(), []tool.Call{{ID: "1", Name: "grep"}})[0]
	if out.Err != nil {
		t.Errorf("domain failure surfaced as invocation error: %v", out.Err)
	}
	if !out.Failed() || out.FailureMessage() != "no matches" {
		t.Errorf("Failed/FailureMessage = %v/%q", out.Failed(), out.FailureMessage())
	}
}

func TestScheduler_MixedBatch(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t,
		&fakeTool{name: "ok", result: tool.Result{LLMContent: "fine"}},
		&fakeTool{name: "bad", execErr: fmt.Errorf("disk on fire")},
	)

	outcomes := s.Schedule(context.Background(), []tool.Call{
		{ID: "1", Name: "ok"},
		{ID: "2", Name: "bad"},
		{ID: "3", Name: "missing"},
	})

	if outcomes[0].Err != nil || outcomes[0].Result == nil {
		t.Errorf("outcome 0 = %+v, want success", outcomes[0])
	}
	if outcomes[1].Err == nil {
		t.Errorf("outcome 1 = %+v, want invocation error", outcomes[1])
	}
	if !errors.Is(outcomes[2].Err, tool.ErrNotFound) {
		t.Errorf("outcome 2 = %+v, want not-found", outcomes[2])
	}
}
