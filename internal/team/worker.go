package team

import (
	"context"
	"fmt"

	"eva/internal/llm"
)

// Specialist generation prompts, keyed by agent type.
var specialistPrompts = map[string]string{
	AgentSOP: `You are an SOP writer on a meeting agent team. Produce a concise standard operating procedure for the task described. Use numbered steps.

You must respond ONLY with a JSON object like: {"result": "..."}

The task follows:`,
	AgentCRO: `You are a customer outcome writer on a meeting agent team. Produce a concise customer outcome document for the task described: the outcome, who it serves, and how success is measured.

You must respond ONLY with a JSON object like: {"result": "..."}

The task follows:`,
	AgentScrum: `You are a scrum assistant on a meeting agent team. Produce concise facilitation notes for the task described: the concern, its impact, and a suggested next step.

You must respond ONLY with a JSON object like: {"result": "..."}

The task follows:`,
}

// Worker executes one assigned specialist task and produces its result text.
type Worker interface {
	Execute(ctx context.Context, task Task) (string, error)
}

// LLMWorker backs the Worker contract with the chat completion capability.
type LLMWorker struct {
	client *llm.Client
}

// NewLLMWorker wraps an LLM client as a specialist task executor.
func NewLLMWorker(client *llm.Client) *LLMWorker {
	return &LLMWorker{client: client}
}

// Execute runs the specialist prompt for the task's agent type.
func (w *LLMWorker) Execute(ctx context.Context, task Task) (string, error) {
	if w == nil || w.client == nil {
		return "", fmt.Errorf("team worker: no client configured")
	}
	prompt, ok := specialistPrompts[task.AgentType]
	if !ok {
		return "", fmt.Errorf("team worker: no prompt for agent %q", task.AgentType)
	}
	raw, err := w.client.CompleteJSON(ctx, prompt, task.Description)
	if err != nil {
		return "", fmt.Errorf("team worker (%s): %w", task.AgentType, err)
	}
	var parsed struct {
		Result string `json:"result"`
	}
	if err := llm.DecodeJSON(raw, &parsed); err != nil {
		return "", fmt.Errorf("team worker (%s): parse payload: %w", task.AgentType, err)
	}
	if parsed.Result == "" {
		return "", fmt.Errorf("team worker (%s): empty result", task.AgentType)
	}
	return parsed.Result, nil
}
