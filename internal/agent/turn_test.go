package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/clewhq/clew/internal/provider"
	"github.com/clewhq/clew/internal/provider/providertest"
	"github.com/clewhq/clew/internal/tool"
)

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var got []Event
	for ev := range events {
		got = append(got, ev)
	}
	return got
}

func TestTurn_StreamsContent(t *testing.T) {
	t.Parallel()

	client := &providertest.MockClient{Script: [][]provider.Chunk{
		{{Text: "hello"}, {Text: " world"}},
	}}
	s, _ := newTestScheduler(t)
	turn := NewTurn(client, s, nil, nil)

	events, err := turn.Run(context.Background(), []provider.Part{provider.TextPart("hi")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := collect(t, events)
	if len(got) != 2 || got[0].Text != "hello" || got[1].Text != " world" {
		t.Errorf("events = %+v, want two content events", got)
	}
	if len(turn.Responses()) != 0 {
		t.Errorf("responses = %+v, want none", turn.Responses())
	}
}

func TestTurn_InitialErrorReturnedDirectly(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("connection refused")
	client := &providertest.MockClient{
		StreamFunc: func(context.Context, []provider.Part) (<-chan provider.Chunk, error) {
			return nil, sentinel
		},
	}
	s, _ := newTestScheduler(t)

	_, err := NewTurn(client, s, nil, nil).Run(context.Background(), nil)
	if !errors.Is(err, sentinel) {
		t.Errorf("Run error = %v, want %v", err, sentinel)
	}
}

func TestTurn_MidStreamErrorEndsSequence(t *testing.T) {
	t.Parallel()

	streamErr := errors.New("stream reset")
	client := &providertest.MockClient{Script: [][]provider.Chunk{
		{{Text: "partial"}, {Err: streamErr}, {Text: "never seen"}},
	}}
	s, _ := newTestScheduler(t)
	turn := NewTurn(client, s, nil, nil)

	events, err := turn.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := collect(t, events)
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(got), got)
	}
	if got[1].Type != EventError || !errors.Is(got[1].Err, streamErr) {
		t.Errorf("final event = %+v, want stream error", got[1])
	}
}

func TestTurn_CancellationObservedAtChunkBoundary(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	client := &providertest.MockClient{
		StreamFunc: func(context.Context, []provider.Part) (<-chan provider.Chunk, error) {
			ch := make(chan provider.Chunk, 3)
			ch <- provider.Chunk{Text: "first"}
			ch <- provider.Chunk{Text: "second"}
			ch <- provider.Chunk{Text: "third"}
			close(ch)
			return ch, nil
		},
	}
	s, _ := newTestScheduler(t)
	turn := NewTurn(client, s, nil, nil)

	// Cancel before the turn observes any chunk.
	cancel()

	events, err := turn.Run(ctx, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := collect(t, events)
	last := got[len(got)-1]
	if last.Type != EventError || !errors.Is(last.Err, ErrCancelled) {
		t.Errorf("final event = %+v, want ErrCancelled", last)
	}
}

func TestTurn_MissingToolResponse(t *testing.T) {
	t.Parallel()

	client := &providertest.MockClient{Script: [][]provider.Chunk{
		{{FunctionCalls: []provider.FunctionCall{{ID: "c1", Name: "read_file"}}}},
	}}
	s, _ := newTestScheduler(t) // empty registry
	turn := NewTurn(client, s, nil, nil)

	events, err := turn.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := collect(t, events)

	// Pending event, then one explanatory error line.
	if got[0].ToolCall == nil || got[0].ToolCall.Status != StatusPending {
		t.Errorf("event 0 = %+v, want pending tool call", got[0])
	}
	last := got[len(got)-1]
	wantLine := `Tool "read_file" not found or is not registered.`
	if last.Type != EventContent || !last.IsError || last.Text != wantLine {
		t.Errorf("final event = %+v, want error content %q", last, wantLine)
	}

	responses := turn.Responses()
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	wantResp := "Invocation failed: " + wantLine
	if responses[0].Response["error"] != wantResp {
		t.Errorf("response = %+v, want error %q", responses[0].Response, wantResp)
	}
}

func TestTurn_BatchWithOneFailure(t *testing.T) {
	t.Parallel()

	client := &providertest.MockClient{Script: [][]provider.Chunk{
		{{FunctionCalls: []provider.FunctionCall{
			{ID: "a", Name: "ok"},
			{ID: "b", Name: "bad"},
			{ID: "c", Name: "ok"},
		}}},
	}}
	s, _ := newTestScheduler(t,
		&fakeTool{name: "ok", result: tool.Result{LLMContent: "fine", ReturnDisplay: "fine"}},
		&fakeTool{name: "bad", execErr: fmt.Errorf("it broke")},
	)
	turn := NewTurn(client, s, nil, nil)

	events, err := turn.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := collect(t, events)

	// Three pending events, one invoked event for call a, then emission
	// stops at the failed call b with a single error line. Call c is not
	// surfaced as an event.
	var errLines, invoked int
	for _, ev := range got {
		if ev.Type == EventContent && ev.IsError {
			errLines++
			if !strings.Contains(ev.Text, "it broke") {
				t.Errorf("error line = %q, want the failure message", ev.Text)
			}
		}
		if ev.ToolCall != nil && ev.ToolCall.Status == StatusInvoked {
			invoked++
		}
	}
	if errLines != 1 {
		t.Errorf("got %d error lines, want 1", errLines)
	}
	if invoked != 1 {
		t.Errorf("got %d invoked events, want 1 (emission stops at the failure)", invoked)
	}

	// Every call in the batch still produces a function response.
	responses := turn.Responses()
	if len(responses) != 3 {
		t.Fatalf("got %d responses, want 3", len(responses))
	}
	if responses[0].Response["output"] != "fine" {
		t.Errorf("response a = %+v", responses[0].Response)
	}
	if responses[1].Response["error"] != "Invocation failed: it broke" {
		t.Errorf("response b = %+v", responses[1].Response)
	}
	if responses[2].Response["output"] != "fine" {
		t.Errorf("response c = %+v", responses[2].Response)
	}
}

func TestTurn_ConfirmationResponse(t *testing.T) {
	t.Parallel()

	client := &providertest.MockClient{Script: [][]provider.Chunk{
		{{FunctionCalls: []provider.FunctionCall{{ID: "x", Name: "run_command"}}}},
	}}
	s, _ := newTestScheduler(t, &fakeTool{
		name:    "run_command",
		confirm: &tool.Confirmation{Kind: tool.ConfirmExec, OnConfirm: func(tool.Outcome) {}},
	})
	turn := NewTurn(client, s, nil, nil)

	events, err := turn.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := collect(t, events)

	last := got[len(got)-1]
	if last.ToolCall == nil || last.ToolCall.Status != StatusConfirming || last.ToolCall.Confirmation == nil {
		t.Errorf("final event = %+v, want confirming tool call", last)
	}

	responses := turn.Responses()
	if len(responses) != 1 || responses[0].Response["output"] != "Tool call is pending user confirmation." {
		t.Errorf("responses = %+v", responses)
	}
}

func TestTurn_SynthesizesCallID(t *testing.T) {
	t.Parallel()

	client := &providertest.MockClient{Script: [][]provider.Chunk{
		{{FunctionCalls: []provider.FunctionCall{{Name: "ok"}}}},
	}}
	s, _ := newTestScheduler(t, &fakeTool{name: "ok", result: tool.Result{LLMContent: "x"}})
	turn := NewTurn(client, s, nil, nil)

	events, err := turn.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	collect(t, events)

	responses := turn.Responses()
	if len(responses) != 1 || responses[0].ID == "" {
		t.Errorf("responses = %+v, want a synthesized ID", responses)
	}
}
