package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oneagenthq/oneagent/llm"
	"github.com/oneagenthq/oneagent/observe"
	"github.com/oneagenthq/oneagent/tools"
)

// ErrMaxIterations is returned when the tool loop exhausts its budget
// without the model producing a final answer.
var ErrMaxIterations = errors.New("agent: max iterations reached without a final answer")

// ToolEvent records one tool invocation inside a run.
type ToolEvent struct {
	CallID  string `json:"callId,omitempty"`
	Tool    string `json:"tool"`
	Args    string `json:"args,omitempty"`
	Result  string `json:"result,omitempty"`
	Display string `json:"display,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RunResult describes one completed run.
type RunResult struct {
	RunID      string        `json:"runId"`
	SessionID  string        `json:"sessionId"`
	Output     string        `json:"output"`
	Usage      llm.Usage     `json:"usage"`
	Iterations int           `json:"iterations"`
	ToolEvents []ToolEvent   `json:"toolEvents,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Run executes one instruction and returns the model's final text.
func (a *Agent) Run(ctx context.Context, input string) (string, error) {
	result, err := a.RunDetailed(ctx, input)
	if err != nil {
		return "", err
	}
	return result.Output, nil
}

// RunDetailed executes one instruction and returns the full run record.
// Exactly one execution attempt is made: provider-call retries happen inside
// the attempt, but a failed run is never restarted.
func (a *Agent) RunDetailed(ctx context.Context, input string) (*RunResult, error) {
	if a == nil || a.provider == nil {
		return nil, fmt.Errorf("agent is not initialized")
	}

	runID := uuid.New().String()
	sessionID := a.sessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	started := time.Now()

	a.emit(ctx, observe.Event{Type: observe.EventRunStarted, RunID: runID, SessionID: sessionID, Detail: input})

	messages, err := a.loadHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	userMsg := llm.Message{Role: llm.RoleUser, Content: input}
	messages = append(messages, userMsg)
	newMessages := []llm.Message{userMsg}

	result := &RunResult{RunID: runID, SessionID: sessionID}

	for iteration := 0; iteration < a.maxIterations; iteration++ {
		result.Iterations = iteration + 1

		a.emit(ctx, observe.Event{Type: observe.EventModelCall, RunID: runID, SessionID: sessionID})
		resp, err := a.generate(ctx, llm.Request{
			Model:           a.model,
			SystemPrompt:    a.systemPrompt,
			Messages:        messages,
			Tools:           tools.Definitions(a.toolset),
			MaxOutputTokens: a.maxOutputTokens,
		})
		if err != nil {
			a.emit(ctx, observe.Event{Type: observe.EventRunFailed, RunID: runID, SessionID: sessionID, Detail: err.Error()})
			return nil, err
		}
		result.Usage.Add(resp.Usage)

		assistantMsg := resp.Message
		assistantMsg.Role = llm.RoleAssistant
		assistantMsg.ToolCalls = resp.ToolCalls
		messages = append(messages, assistantMsg)
		newMessages = append(newMessages, assistantMsg)

		if len(resp.ToolCalls) == 0 {
			result.Output = resp.Message.Content
			result.Duration = time.Since(started)
			a.emit(ctx, observe.Event{Type: observe.EventRunFinished, RunID: runID, SessionID: sessionID})
			if err := a.persist(ctx, sessionID, newMessages); err != nil {
				a.logger.Warn("session persist failed", "session_id", sessionID, "error", err)
			}
			return result, nil
		}

		for _, call := range resp.ToolCalls {
			toolMsg, event := a.executeToolCall(ctx, runID, sessionID, call)
			result.ToolEvents = append(result.ToolEvents, event)
			messages = append(messages, toolMsg)
			newMessages = append(newMessages, toolMsg)
		}
	}

	a.emit(ctx, observe.Event{Type: observe.EventRunFailed, RunID: runID, SessionID: sessionID, Detail: ErrMaxIterations.Error()})
	return nil, ErrMaxIterations
}

// executeToolCall runs a single model-requested tool call and converts the
// outcome into a tool message for the next model turn. Tool failures are
// reported back to the model rather than aborting the run.
func (a *Agent) executeToolCall(ctx context.Context, runID, sessionID string, call llm.ToolCall) (llm.Message, ToolEvent) {
	event := ToolEvent{CallID: call.ID, Tool: call.Name, Args: string(call.Arguments)}
	a.emit(ctx, observe.Event{Type: observe.EventToolCalled, RunID: runID, SessionID: sessionID, Tool: call.Name})

	payload, display, err := a.invokeTool(ctx, call)
	if err != nil {
		event.Error = err.Error()
		a.emit(ctx, observe.Event{Type: observe.EventToolFailed, RunID: runID, SessionID: sessionID, Tool: call.Name, Detail: err.Error()})
		return llm.Message{
			Role:       llm.RoleTool,
			ToolCallID: call.ID,
			Name:       call.Name,
			Content:    fmt.Sprintf("error: %s", err.Error()),
		}, event
	}

	event.Result = payload
	event.Display = display
	a.emit(ctx, observe.Event{Type: observe.EventToolFinished, RunID: runID, SessionID: sessionID, Tool: call.Name})
	if display != "" && a.config.OutputFormat == OutputStream {
		a.logger.Info("tool completed", "tool", call.Name, "display", display)
	}
	return llm.Message{
		Role:       llm.RoleTool,
		ToolCallID: call.ID,
		Name:       call.Name,
		Content:    payload,
	}, event
}

func (a *Agent) invokeTool(ctx context.Context, call llm.ToolCall) (payload, display string, err error) {
	t, ok := a.toolIndex[call.Name]
	if !ok {
		return "", "", fmt.Errorf("unknown tool %q", call.Name)
	}
	if a.config.ApprovalMode != ApprovalFullAuto {
		if a.config.NonInteractive {
			return "", "", fmt.Errorf("tool %q requires approval, but the run is non-interactive", call.Name)
		}
		return "", "", fmt.Errorf("tool %q requires approval mode %q", call.Name, ApprovalFullAuto)
	}

	args := call.Arguments
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	raw, err := t.Execute(ctx, args)
	if err != nil {
		return "", "", err
	}
	if d, ok := raw.(tools.DisplayResult); ok {
		display = d.Display()
	}
	return tools.ResultPayload(raw), display, nil
}

// generate calls the provider with the per-call retry policy applied.
func (a *Agent) generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	var lastErr error
	attempts := 0
	rateLimitRetries := 0

	for {
		attempts++
		resp, err := a.provider.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if IsRateLimitError(err) {
			if rateLimitRetries >= a.retry.RateLimitMaxAttempts {
				break
			}
			rateLimitRetries++
			a.logger.Warn("provider rate limited, backing off",
				"attempt", rateLimitRetries, "error", err)
			if sleepErr := sleepFor(ctx, a.retry.rateLimitBackoffForAttempt(rateLimitRetries)); sleepErr != nil {
				return llm.Response{}, sleepErr
			}
			continue
		}

		if attempts >= a.retry.MaxAttempts {
			break
		}
		if sleepErr := sleepFor(ctx, a.retry.backoffForAttempt(attempts)); sleepErr != nil {
			return llm.Response{}, sleepErr
		}
	}
	return llm.Response{}, fmt.Errorf("provider %s: %w", a.provider.Name(), lastErr)
}

func (a *Agent) loadHistory(ctx context.Context, sessionID string) ([]llm.Message, error) {
	if a.store == nil {
		return nil, nil
	}
	history, err := a.store.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session history: %w", err)
	}
	return history, nil
}

func (a *Agent) persist(ctx context.Context, sessionID string, msgs []llm.Message) error {
	if a.store == nil || len(msgs) == 0 {
		return nil
	}
	return a.store.Append(ctx, sessionID, msgs...)
}

func (a *Agent) emit(ctx context.Context, event observe.Event) {
	if a.observer == nil {
		return
	}
	event.Normalize()
	_ = a.observer.Emit(ctx, event)
}
